// Package autosave реализует отложенный сброс изменений сессий чата
// в хранилище: debounce коалесцирует шквал правок в одну запись,
// фоновый интервал страхует от так и не сработавшего таймера,
// а внешний flush-триггер (blur/закрытие/SIGTERM у хоста) форсирует
// синхронный сброс всего отложенного.
//
// Состояния сессии: Idle -> Pending (debounce) -> Saving -> Idle.
// Планировщик держит только заимствованный снимок состояния: после flush
// авторитативная копия живет в session.Store.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/draftsync/internal/models"
)

// Значения по умолчанию
const (
	// DefaultDebounce пауза тишины перед сбросом после последней правки
	DefaultDebounce = 1000 * time.Millisecond
	// DefaultInterval период фонового обхода отложенных сессий
	DefaultInterval = 30000 * time.Millisecond
)

// Saver принимает сброшенные сессии. Реализуется session.Store.
type Saver interface {
	Save(ctx context.Context, sess *models.ChatSession) error
}

// Scheduler планирует отложенные сохранения сессий.
// Все таймеры и горутины принадлежат экземпляру и останавливаются в Close.
type Scheduler struct {
	saver    Saver
	logger   *slog.Logger
	pending  map[string]*models.ChatSession
	timers   map[string]*time.Timer
	done     chan struct{}
	debounce time.Duration
	interval time.Duration
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	closed   bool
}

// Option настраивает Scheduler.
type Option func(*Scheduler)

// WithDebounce задает паузу debounce.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) {
		s.debounce = d
	}
}

// WithInterval задает период фонового обхода.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// New создает планировщик. Таймеры не запускаются до Start.
func New(saver Saver, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		saver:    saver,
		logger:   logger,
		pending:  make(map[string]*models.ChatSession),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
		debounce: DefaultDebounce,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start запускает фоновый интервальный обход отложенных сессий.
// Обход - страховка на случай, когда debounce-таймер не сработал
// (например, замороженная вкладка у хоста).
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.ForceFlush(context.Background())
			case <-s.done:
				return
			}
		}
	}()
}

// Schedule планирует отложенное сохранение сессии.
// Повторный вызов для того же id сбрасывает debounce-таймер и заменяет
// отложенный снимок последним - шквал правок превращается в одну запись.
func (s *Scheduler) Schedule(id string, sess *models.ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if t, ok := s.timers[id]; ok {
		t.Stop()
	}

	s.pending[id] = sess.Clone()
	s.timers[id] = time.AfterFunc(s.debounce, func() {
		// Сработавший таймер регистрируется в WaitGroup, чтобы Close
		// дождался и уже запущенных сбросов, а не только таймеров
		if !s.beginFlush() {
			return
		}
		defer s.wg.Done()
		s.flush(context.Background(), id)
	})
}

// SaveImmediately сохраняет сессию немедленно, минуя debounce,
// и снимает отложенное состояние для id.
func (s *Scheduler) SaveImmediately(ctx context.Context, id string, sess *models.ChatSession) error {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	delete(s.pending, id)
	s.mu.Unlock()

	return s.saver.Save(ctx, sess)
}

// CancelPending снимает запланированное сохранение без записи.
// Используется, когда сессию сознательно выбрасывают.
func (s *Scheduler) CancelPending(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	delete(s.pending, id)
}

// ForceFlush синхронно сбрасывает все отложенные сессии.
// Идемпотентен: без отложенных сессий это no-op.
func (s *Scheduler) ForceFlush(ctx context.Context) {
	s.mu.Lock()
	batch := make(map[string]*models.ChatSession, len(s.pending))
	for id, sess := range s.pending {
		batch[id] = sess
		if t, ok := s.timers[id]; ok {
			t.Stop()
			delete(s.timers, id)
		}
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for id, sess := range batch {
		if err := s.saver.Save(ctx, sess); err != nil {
			s.logger.Warn("autosave flush failed", "session_id", id, "error", err)
			// Возвращаем в pending: данные остаются dirty, а не теряются
			s.requeue(id, sess)
		}
	}
}

// PendingCount возвращает количество сессий, ожидающих сброса.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// BindTrigger подписывает планировщик на внешний flush-триггер.
// Хост-окружение транслирует свои сигналы (скрытие страницы, закрытие,
// SIGTERM) в посылки по каналу; каждая посылка форсирует полный сброс.
func (s *Scheduler) BindTrigger(trigger <-chan struct{}) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case _, ok := <-trigger:
				if !ok {
					return
				}
				s.ForceFlush(context.Background())
			case <-s.done:
				return
			}
		}
	}()
}

// Close останавливает все таймеры и горутины и делает финальный сброс.
// Детерминированный teardown: после возврата планировщик ничего не держит.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	close(s.done)
	s.mu.Unlock()

	// Ждем фоновые горутины и уже начавшиеся debounce-сбросы
	s.wg.Wait()

	// Финальный сброс: то, что осталось pending, дописываем синхронно
	s.flushAllLocked()
}

func (s *Scheduler) flushAllLocked() {
	s.mu.Lock()
	batch := make(map[string]*models.ChatSession, len(s.pending))
	for id, sess := range s.pending {
		batch[id] = sess
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for id, sess := range batch {
		if err := s.saver.Save(context.Background(), sess); err != nil {
			s.logger.Warn("final autosave flush failed", "session_id", id, "error", err)
		}
	}
}

// beginFlush регистрирует сработавший debounce-сброс в WaitGroup.
// После Close новые сбросы не начинаются: pending допишет сам Close.
func (s *Scheduler) beginFlush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// flush сбрасывает одну сессию по срабатыванию debounce-таймера.
func (s *Scheduler) flush(ctx context.Context, id string) {
	s.mu.Lock()
	sess, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	if t, tok := s.timers[id]; tok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	if err := s.saver.Save(ctx, sess); err != nil {
		s.logger.Warn("autosave failed", "session_id", id, "error", err)
		s.requeue(id, sess)
		return
	}
	s.logger.Debug("session autosaved", "session_id", id)
}

// requeue возвращает неудачно сброшенную сессию в pending, если ее
// не успела заменить более свежая версия.
func (s *Scheduler) requeue(id string, sess *models.ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, exists := s.pending[id]; !exists {
		s.pending[id] = sess
	}
}
