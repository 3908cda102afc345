package session

import (
	"context"
	"time"
)

// Stats статистика сессии. Все значения вычисляются из авторитативной
// копии в хранилище, отдельно ничего не хранится - так счетчики не могут
// разойтись с данными.
type Stats struct {
	LastUpdated  time.Time `json:"lastUpdated"`
	MessageCount int       `json:"messageCount"`
	UnreadCount  int       `json:"unreadCount"`
	Bytes        int64     `json:"bytes"`
}

// Stats возвращает производную статистику сессии.
func (s *Store) Stats(ctx context.Context, sessionID string) (*Stats, error) {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	size, err := s.store.SizeOf(ctx, Key(sessionID))
	if err != nil {
		return nil, err
	}

	unread := 0
	for _, m := range sess.Messages {
		if !m.IsRead {
			unread++
		}
	}

	return &Stats{
		MessageCount: len(sess.Messages),
		UnreadCount:  unread,
		Bytes:        size,
		LastUpdated:  sess.UpdatedAt,
	}, nil
}
