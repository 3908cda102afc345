package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/draftsync/internal/models"
	"github.com/iudanet/draftsync/internal/storage/boltdb"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *time.Time) {
	t.Helper()

	bolt, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = bolt.Close()
	})

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return New(bolt, testLogger(), opts...), &now
}

func msg(text string, read bool) models.Message {
	m := models.NewMessage("", "user-1", "Alice", text)
	m.IsRead = read
	return m
}

func TestAddMessage_CreatesSession(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	sess, err := s.AddMessage(ctx, "chat-1", msg("hello", false))
	require.NoError(t, err)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "chat-1", sess.Messages[0].SessionID)
	assert.Equal(t, 1, sess.UnreadCount)

	loaded, err := s.Load(ctx, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.Messages, 1)
}

func TestAddMessage_ReadMessageDoesNotBumpUnread(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	sess, err := s.AddMessage(ctx, "chat-1", msg("hello", true))
	require.NoError(t, err)
	assert.Zero(t, sess.UnreadCount)
}

func TestAddMessage_TrimsOldestBeyondLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithMaxMessages(3))

	for _, text := range []string{"m1", "m2", "m3", "m4"} {
		_, err := s.AddMessage(ctx, "chat-1", msg(text, false))
		require.NoError(t, err)
	}

	sess, err := s.Load(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 3)
	// Вытесняются самые старые
	assert.Equal(t, "m2", sess.Messages[0].Text)
	assert.Equal(t, "m4", sess.Messages[2].Text)
	// Непрочитанное вытесненное сообщение уменьшает счетчик
	assert.Equal(t, 3, sess.UnreadCount)
}

func TestUpdateMessage(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	m := msg("hello", false)
	_, err := s.AddMessage(ctx, "chat-1", m)
	require.NoError(t, err)

	m.Text = "hello, edited"
	m.IsRead = true
	require.NoError(t, s.UpdateMessage(ctx, "chat-1", m))

	sess, err := s.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "hello, edited", sess.Messages[0].Text)
	// Прочтение при обновлении уменьшает счетчик
	assert.Zero(t, sess.UnreadCount)
}

func TestUpdateMessage_NotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.AddMessage(ctx, "chat-1", msg("hello", false))
	require.NoError(t, err)

	err = s.UpdateMessage(ctx, "chat-1", msg("other", false))
	assert.ErrorIs(t, err, ErrMessageNotFound)

	err = s.UpdateMessage(ctx, "no-session", msg("other", false))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	m := msg("hello", false)
	_, err := s.AddMessage(ctx, "chat-1", m)
	require.NoError(t, err)

	require.NoError(t, s.DeleteMessage(ctx, "chat-1", m.ID))

	sess, err := s.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, sess.Messages)
	assert.Zero(t, sess.UnreadCount)

	// Удаление отсутствующего сообщения - ошибка, не тихий no-op
	err = s.DeleteMessage(ctx, "chat-1", m.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMarkAsRead_All(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, text := range []string{"m1", "m2", "m3"} {
		_, err := s.AddMessage(ctx, "chat-1", msg(text, false))
		require.NoError(t, err)
	}

	require.NoError(t, s.MarkAsRead(ctx, "chat-1"))

	sess, err := s.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Zero(t, sess.UnreadCount)
	for _, m := range sess.Messages {
		assert.True(t, m.IsRead)
	}
}

func TestMarkAsRead_Selected(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	m1 := msg("m1", false)
	m2 := msg("m2", false)
	_, err := s.AddMessage(ctx, "chat-1", m1)
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, "chat-1", m2)
	require.NoError(t, err)

	require.NoError(t, s.MarkAsRead(ctx, "chat-1", m1.ID))

	sess, err := s.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.UnreadCount)
	assert.True(t, sess.Messages[0].IsRead)
	assert.False(t, sess.Messages[1].IsRead)

	// Повторное прочтение того же сообщения не трогает счетчик
	require.NoError(t, s.MarkAsRead(ctx, "chat-1", m1.ID))
	sess, err = s.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.UnreadCount)
}

func TestSetScrollPosition(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Create(ctx, "chat-1")
	require.NoError(t, err)

	require.NoError(t, s.SetScrollPosition(ctx, "chat-1", 420))

	sess, err := s.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 420, sess.ScrollPosition)
}

func TestClear_Preserve(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.AddMessage(ctx, "chat-1", msg("hello", false))
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx, "chat-1", true))

	sess, err := s.Load(ctx, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Empty(t, sess.Messages)
	assert.Zero(t, sess.UnreadCount)
	assert.Zero(t, sess.ScrollPosition)
}

func TestClear_Remove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.AddMessage(ctx, "chat-1", msg("hello", false))
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx, "chat-1", false))

	sess, err := s.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Nil(t, sess)

	assert.ErrorIs(t, s.Clear(ctx, "chat-1", false), ErrSessionNotFound)
}

func TestCleanupStale(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore(t)

	_, err := s.AddMessage(ctx, "old", msg("hello", false))
	require.NoError(t, err)

	*now = now.Add(48 * time.Hour)
	_, err = s.AddMessage(ctx, "fresh", msg("hello", false))
	require.NoError(t, err)

	removed, err := s.CleanupStale(ctx, DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	sess, err := s.Load(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, sess)

	sess, err = s.Load(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, sess)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var received []string
	unsubscribe := s.Subscribe("chat-1", func(m models.Message) {
		received = append(received, m.Text)
	})

	_, err := s.AddMessage(ctx, "chat-1", msg("m1", false))
	require.NoError(t, err)
	// Сообщения других сессий не доставляются
	_, err = s.AddMessage(ctx, "chat-2", msg("other", false))
	require.NoError(t, err)

	assert.Equal(t, []string{"m1"}, received)

	unsubscribe()
	_, err = s.AddMessage(ctx, "chat-1", msg("m2", false))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, received)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.AddMessage(ctx, "chat-1", msg("m1", false))
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, "chat-1", msg("m2", true))
	require.NoError(t, err)

	stats, err := s.Stats(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MessageCount)
	assert.Equal(t, 1, stats.UnreadCount)
	assert.Positive(t, stats.Bytes)

	_, err = s.Stats(ctx, "absent")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBackupOnPut(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.AddMessage(ctx, "chat-1", msg("m1", false))
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, "chat-1", msg("m2", false))
	require.NoError(t, err)

	// Откат к предыдущей записи через backup-ключ
	require.NoError(t, s.store.RestoreFromBackup(ctx, Key("chat-1")))

	sess, err := s.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 1)
}

func TestUnreadNeverNegative(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	m := msg("m1", true)
	_, err := s.AddMessage(ctx, "chat-1", m)
	require.NoError(t, err)

	require.NoError(t, s.DeleteMessage(ctx, "chat-1", m.ID))

	sess, err := s.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sess.UnreadCount)
}
