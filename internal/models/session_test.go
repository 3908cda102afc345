package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatSession(t *testing.T) {
	sess := NewChatSession("chat-1")
	assert.Equal(t, "chat-1", sess.ID)
	assert.Empty(t, sess.Messages)
	assert.Zero(t, sess.UnreadCount)
}

func TestNewChatSession_GeneratesID(t *testing.T) {
	sess := NewChatSession("")
	assert.NotEmpty(t, sess.ID)
}

func TestMessage_Clone_DeepCopiesTranslations(t *testing.T) {
	msg := NewMessage("chat-1", "user-1", "Alice", "hello")
	msg.TranslatedVersions = map[string]string{"ru": "привет"}

	c := msg.Clone()
	c.TranslatedVersions["ru"] = "здравствуйте"

	assert.Equal(t, "привет", msg.TranslatedVersions["ru"])
}

func TestChatSession_Clone_DeepCopiesMessages(t *testing.T) {
	sess := NewChatSession("chat-1")
	sess.Messages = append(sess.Messages, NewMessage("chat-1", "user-1", "Alice", "hello"))

	c := sess.Clone()
	require.Len(t, c.Messages, 1)

	c.Messages[0].Text = "changed"
	assert.Equal(t, "hello", sess.Messages[0].Text)
}
