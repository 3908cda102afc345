// Package session реализует CRUD над локальными сессиями чата:
// упорядоченный журнал сообщений, счетчик непрочитанных, scroll-позиция.
// Store - единственный писатель семейства ключей session:<sessionId>.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/draftsync/internal/models"
	"github.com/iudanet/draftsync/internal/storage"
)

// KeyPrefix префикс ключей сессий в хранилище
const KeyPrefix = "session:"

// DefaultTTL время жизни неактивной сессии по умолчанию
const DefaultTTL = 24 * time.Hour

// Session store errors
var (
	// ErrSessionNotFound indicates that the session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrMessageNotFound indicates that the message does not exist in session
	ErrMessageNotFound = errors.New("message not found")
)

// Handler вызывается при добавлении сообщения в сессию.
type Handler func(msg models.Message)

// Store управляет сессиями чата поверх storage.Store.
type Store struct {
	store       storage.Store
	logger      *slog.Logger
	now         func() time.Time
	subscribers map[string]map[int]Handler
	mu          sync.Mutex
	nextSubID   int
	maxMessages int
}

// Option настраивает Store.
type Option func(*Store)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMaxMessages задает предел количества сообщений в сессии.
func WithMaxMessages(n int) Option {
	return func(s *Store) {
		s.maxMessages = n
	}
}

// New создает хранилище сессий.
func New(store storage.Store, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		store:       store,
		logger:      logger,
		now:         time.Now,
		maxMessages: models.MaxSessionMessages,
		subscribers: make(map[string]map[int]Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key возвращает ключ хранилища для sessionID.
func Key(sessionID string) string {
	return KeyPrefix + sessionID
}

// Create создает пустую сессию.
func (s *Store) Create(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	sess := models.NewChatSession(sessionID)
	sess.CreatedAt = s.now().UTC()
	sess.UpdatedAt = sess.CreatedAt

	if err := s.put(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("chat session created", "session_id", sess.ID)
	return sess, nil
}

// Load возвращает сессию или nil, если ее нет.
func (s *Store) Load(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	return storage.LoadJSON[models.ChatSession](ctx, s.store, Key(sessionID))
}

// Save обновляет UpdatedAt и записывает сессию.
func (s *Store) Save(ctx context.Context, sess *models.ChatSession) error {
	sess.UpdatedAt = s.now().UTC()
	return s.put(ctx, sess)
}

// AddMessage добавляет сообщение: load-or-create, append, обрезка самых
// старых сообщений сверх лимита, инкремент unread для непрочитанных.
func (s *Store) AddMessage(ctx context.Context, sessionID string, msg models.Message) (*models.ChatSession, error) {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = models.NewChatSession(sessionID)
		sess.CreatedAt = s.now().UTC()
	}

	msg.SessionID = sess.ID
	sess.Messages = append(sess.Messages, msg)

	// Вытесняем с начала: старые сообщения уходят первыми
	if len(sess.Messages) > s.maxMessages {
		evicted := sess.Messages[:len(sess.Messages)-s.maxMessages]
		for _, e := range evicted {
			if !e.IsRead && sess.UnreadCount > 0 {
				sess.UnreadCount--
			}
		}
		sess.Messages = sess.Messages[len(sess.Messages)-s.maxMessages:]
	}

	if !msg.IsRead {
		sess.UnreadCount++
	}

	sess.UpdatedAt = s.now().UTC()
	if err := s.put(ctx, sess); err != nil {
		return nil, err
	}

	s.notify(sess.ID, msg)
	return sess, nil
}

// UpdateMessage заменяет сообщение с тем же ID.
func (s *Store) UpdateMessage(ctx context.Context, sessionID string, msg models.Message) error {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	for i := range sess.Messages {
		if sess.Messages[i].ID != msg.ID {
			continue
		}
		wasRead := sess.Messages[i].IsRead
		msg.SessionID = sess.ID
		sess.Messages[i] = msg

		switch {
		case wasRead && !msg.IsRead:
			sess.UnreadCount++
		case !wasRead && msg.IsRead && sess.UnreadCount > 0:
			sess.UnreadCount--
		}

		sess.UpdatedAt = s.now().UTC()
		return s.put(ctx, sess)
	}

	return ErrMessageNotFound
}

// DeleteMessage удаляет сообщение по ID.
// Отсутствующее сообщение - ErrMessageNotFound, не тихий no-op.
func (s *Store) DeleteMessage(ctx context.Context, sessionID, messageID string) error {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	for i := range sess.Messages {
		if sess.Messages[i].ID != messageID {
			continue
		}
		if !sess.Messages[i].IsRead && sess.UnreadCount > 0 {
			sess.UnreadCount--
		}
		sess.Messages = append(sess.Messages[:i], sess.Messages[i+1:]...)
		sess.UpdatedAt = s.now().UTC()
		return s.put(ctx, sess)
	}

	return ErrMessageNotFound
}

// MarkAsRead помечает сообщения прочитанными. Без аргументов помечает
// все и обнуляет счетчик непрочитанных.
func (s *Store) MarkAsRead(ctx context.Context, sessionID string, messageIDs ...string) error {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	if len(messageIDs) == 0 {
		for i := range sess.Messages {
			sess.Messages[i].IsRead = true
		}
		sess.UnreadCount = 0
	} else {
		ids := make(map[string]struct{}, len(messageIDs))
		for _, id := range messageIDs {
			ids[id] = struct{}{}
		}
		for i := range sess.Messages {
			if _, ok := ids[sess.Messages[i].ID]; ok && !sess.Messages[i].IsRead {
				sess.Messages[i].IsRead = true
				if sess.UnreadCount > 0 {
					sess.UnreadCount--
				}
			}
		}
	}

	sess.UpdatedAt = s.now().UTC()
	return s.put(ctx, sess)
}

// SetScrollPosition сохраняет позицию прокрутки окна чата.
func (s *Store) SetScrollPosition(ctx context.Context, sessionID string, position int) error {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	sess.ScrollPosition = position
	sess.UpdatedAt = s.now().UTC()
	return s.put(ctx, sess)
}

// Clear очищает сессию. При preserveSession сообщения и счетчики
// сбрасываются на месте, иначе запись удаляется целиком.
func (s *Store) Clear(ctx context.Context, sessionID string, preserveSession bool) error {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	if preserveSession {
		sess.Messages = []models.Message{}
		sess.UnreadCount = 0
		sess.ScrollPosition = 0
		sess.UpdatedAt = s.now().UTC()
		return s.put(ctx, sess)
	}

	key := Key(sessionID)
	if err := s.store.Remove(ctx, key); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, storage.BackupKey(key)); err != nil {
		return err
	}

	s.logger.Info("chat session removed", "session_id", sessionID)
	return nil
}

// CleanupStale удаляет сессии, не обновлявшиеся дольше olderThan.
// Возвращает количество удаленных.
func (s *Store) CleanupStale(ctx context.Context, olderThan time.Duration) (int, error) {
	keys, err := s.store.KeysByPrefix(ctx, KeyPrefix)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().Add(-olderThan)
	removed := 0

	for _, key := range keys {
		sess, err := storage.LoadJSON[models.ChatSession](ctx, s.store, key)
		if err != nil || sess == nil {
			continue
		}
		if !sess.UpdatedAt.Before(cutoff) {
			continue
		}

		if err := s.store.Remove(ctx, key); err != nil {
			return removed, err
		}
		if err := s.store.Remove(ctx, storage.BackupKey(key)); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("stale sessions removed", "count", removed)
	}
	return removed, nil
}

// Subscribe регистрирует обработчик новых сообщений сессии.
// Возвращает функцию отписки; подписчик обязан вызвать ее при teardown -
// реестр не удерживает подписки дольше, чем живет вызывающий код.
func (s *Store) Subscribe(sessionID string, handler Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribers[sessionID] == nil {
		s.subscribers[sessionID] = make(map[int]Handler)
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[sessionID][id] = handler

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers[sessionID], id)
		if len(s.subscribers[sessionID]) == 0 {
			delete(s.subscribers, sessionID)
		}
	}
}

func (s *Store) notify(sessionID string, msg models.Message) {
	s.mu.Lock()
	handlers := make([]Handler, 0, len(s.subscribers[sessionID]))
	for _, h := range s.subscribers[sessionID] {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

// put записывает сессию с backup предыдущего значения.
func (s *Store) put(ctx context.Context, sess *models.ChatSession) error {
	key := Key(sess.ID)
	if err := s.store.CreateBackup(ctx, key); err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return err
	}
	return storage.SetJSON(ctx, s.store, key, sess)
}
