package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxSessionMessages верхняя граница количества сообщений в сессии.
// При превышении самые старые сообщения вытесняются первыми.
const MaxSessionMessages = 500

// Message представляет одно сообщение чата.
type Message struct {
	Timestamp          time.Time         `json:"timestamp"`
	TranslatedVersions map[string]string `json:"translatedVersions,omitempty"` // TranslatedVersions кэш переводов language->text, не авторитативен
	ID                 string            `json:"id"`
	SessionID          string            `json:"sessionId"`
	SenderID           string            `json:"senderId"`
	SenderName         string            `json:"senderName"`
	Text               string            `json:"text"`
	OriginalLanguage   string            `json:"originalLanguage,omitempty"`
	IsRead             bool              `json:"isRead"`
}

// NewMessage создает сообщение с новым UUID и текущим временем.
func NewMessage(sessionID, senderID, senderName, text string) Message {
	return Message{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		Timestamp:  time.Now().UTC(),
	}
}

// Clone создает глубокую копию сообщения.
func (m Message) Clone() Message {
	c := m
	if m.TranslatedVersions != nil {
		c.TranslatedVersions = make(map[string]string, len(m.TranslatedVersions))
		for k, v := range m.TranslatedVersions {
			c.TranslatedVersions[k] = v
		}
	}
	return c
}

// ChatSession представляет локально сохраненную сессию чата:
// упорядоченный журнал сообщений плюс UI-состояние (scroll, счетчик непрочитанных).
type ChatSession struct {
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
	ID                     string    `json:"id"`
	UserLanguagePreference string    `json:"userLanguagePreference,omitempty"`
	Messages               []Message `json:"messages"`
	ScrollPosition         int       `json:"scrollPosition"`
	UnreadCount            int       `json:"unreadCount"`
	AutoTranslate          bool      `json:"autoTranslate"`
}

// NewChatSession создает пустую сессию с заданным идентификатором.
// Если id пустой, генерируется UUID.
func NewChatSession(id string) *ChatSession {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &ChatSession{
		ID:        id,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch обновляет время последнего изменения сессии.
func (s *ChatSession) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Clone создает глубокую копию сессии.
func (s *ChatSession) Clone() *ChatSession {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m.Clone()
	}
	return &c
}
