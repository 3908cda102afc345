// Package draft реализует CRUD над версионными черновиками бронирования.
// Менеджер - единственный писатель семейства ключей draft:<entityId>;
// каждая мутация увеличивает версию ровно на 1.
package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/iudanet/draftsync/internal/models"
	"github.com/iudanet/draftsync/internal/storage"
	"github.com/iudanet/draftsync/internal/validation"
	"github.com/iudanet/draftsync/internal/version"
)

const (
	// KeyPrefix префикс ключей черновиков в хранилище
	KeyPrefix = "draft:"
	// historySuffix суффикс ключа истории версий черновика
	historySuffix = ":history"
)

// ErrUnknownField возвращается при попытке обновить несуществующее поле.
// Это ошибка программиста, а не данных.
var ErrUnknownField = errors.New("unknown draft field")

// Manager управляет черновиками поверх Store.
type Manager struct {
	store       storage.Store
	validator   *validation.BookingValidator
	logger      *slog.Logger
	now         func() time.Time
	historySize int
}

// Option настраивает Manager.
type Option func(*Manager)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithHistorySize задает глубину истории версий.
func WithHistorySize(n int) Option {
	return func(m *Manager) {
		m.historySize = n
	}
}

// NewManager создает менеджер черновиков.
func NewManager(store storage.Store, validator *validation.BookingValidator, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		validator:   validator,
		logger:      logger,
		now:         time.Now,
		historySize: version.DefaultHistorySize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key возвращает ключ хранилища для entityID.
func Key(entityID string) string {
	return KeyPrefix + entityID
}

// Create создает черновик первой версии для entityID.
// Если initial задан, поля применяются без увеличения версии.
func (m *Manager) Create(ctx context.Context, entityID string, initial *models.BookingFields) (*models.Draft, error) {
	d := models.NewDraft(entityID)
	d.CreatedAt = m.now().UTC()
	d.LastModifiedAt = d.CreatedAt
	if initial != nil {
		d.Fields = *initial
	}

	if err := m.put(ctx, d); err != nil {
		return nil, err
	}

	m.logger.Info("draft created", "entity_id", entityID, "draft_id", d.ID)
	return d, nil
}

// Load возвращает черновик для entityID или nil, если его нет.
func (m *Manager) Load(ctx context.Context, entityID string) (*models.Draft, error) {
	return storage.LoadJSON[models.Draft](ctx, m.store, Key(entityID))
}

// Save обновляет время последнего изменения и записывает черновик.
// Перед перезаписью текущее значение копируется в backup-ключ, чтобы
// испорченную запись можно было откатить. Неудачный Save означает
// "черновик все еще dirty", а не "черновик потерян".
func (m *Manager) Save(ctx context.Context, d *models.Draft) error {
	d.LastModifiedAt = m.now().UTC()
	d.IsSynced = false
	return m.put(ctx, d)
}

// UpdateField обновляет одно поле черновика: load-or-create, применение,
// version++, запись.
func (m *Manager) UpdateField(ctx context.Context, entityID, field, value string) (*models.Draft, error) {
	return m.UpdateFields(ctx, entityID, map[string]string{field: value})
}

// UpdateFields обновляет несколько полей за одну запись.
// Если черновика нет, он создается с версией 1; существующий черновик
// получает version+1.
func (m *Manager) UpdateFields(ctx context.Context, entityID string, partial map[string]string) (*models.Draft, error) {
	d, err := m.Load(ctx, entityID)
	if err != nil {
		return nil, err
	}

	created := false
	if d == nil {
		d = models.NewDraft(entityID)
		d.CreatedAt = m.now().UTC()
		created = true
	}

	for field, value := range partial {
		if err := applyField(d, field, value); err != nil {
			return nil, err
		}
	}

	if !created {
		d.Version++
	}
	d.LastModifiedAt = m.now().UTC()
	d.IsSynced = false

	if err := m.put(ctx, d); err != nil {
		return nil, err
	}

	m.logger.Debug("draft updated", "entity_id", entityID, "version", d.Version, "fields", len(partial))
	return d, nil
}

// Clear удаляет черновик. При preserve поля сбрасываются на месте
// (версия растет дальше), иначе запись удаляется после backup.
func (m *Manager) Clear(ctx context.Context, entityID string, preserve bool) error {
	d, err := m.Load(ctx, entityID)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}

	if preserve {
		d.Fields = models.BookingFields{}
		d.Version++
		d.LastModifiedAt = m.now().UTC()
		d.IsSynced = false
		return m.put(ctx, d)
	}

	key := Key(entityID)
	if err := m.store.CreateBackup(ctx, key); err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return err
	}
	if err := m.store.Remove(ctx, key); err != nil {
		return err
	}

	m.logger.Info("draft cleared", "entity_id", entityID)
	return nil
}

// Restore восстанавливает черновик из backup-ключа.
func (m *Manager) Restore(ctx context.Context, entityID string) (*models.Draft, error) {
	if err := m.store.RestoreFromBackup(ctx, Key(entityID)); err != nil {
		return nil, err
	}
	return m.Load(ctx, entityID)
}

// Adopt записывает черновик как есть, не трогая версию и временные метки.
// Используется при принятии удаленной или слитой после конфликта копии.
func (m *Manager) Adopt(ctx context.Context, d *models.Draft) error {
	if d.EntityID == "" {
		return fmt.Errorf("draft has no entityId")
	}
	return m.put(ctx, d)
}

// IncrementSyncAttempts увеличивает счетчик попыток синхронизации.
// Счетчик хранится вместе с черновиком и переживает перезапуск процесса.
func (m *Manager) IncrementSyncAttempts(ctx context.Context, entityID string) (*models.Draft, error) {
	return m.mutateBookkeeping(ctx, entityID, func(d *models.Draft) {
		d.SyncAttempts++
	})
}

// ResetSyncAttempts обнуляет счетчик попыток.
func (m *Manager) ResetSyncAttempts(ctx context.Context, entityID string) (*models.Draft, error) {
	return m.mutateBookkeeping(ctx, entityID, func(d *models.Draft) {
		d.SyncAttempts = 0
	})
}

// MarkSynced помечает черновик синхронизированным и сбрасывает счетчик
// попыток. Время последнего изменения не трогается: иначе локальная копия
// стала бы "новее" только что отправленной.
func (m *Manager) MarkSynced(ctx context.Context, entityID string) (*models.Draft, error) {
	return m.mutateBookkeeping(ctx, entityID, func(d *models.Draft) {
		d.IsSynced = true
		d.SyncAttempts = 0
	})
}

// HasReachedMaxAttempts сообщает, исчерпан ли лимит попыток для entityID.
func (m *Manager) HasReachedMaxAttempts(ctx context.Context, entityID string) (bool, error) {
	d, err := m.Load(ctx, entityID)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, nil
	}
	return d.HasReachedMaxAttempts(), nil
}

// ListUnsynced возвращает все несинхронизированные черновики.
func (m *Manager) ListUnsynced(ctx context.Context) ([]*models.Draft, error) {
	keys, err := m.store.KeysByPrefix(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}

	var drafts []*models.Draft
	for _, key := range keys {
		if isHistoryKey(key) {
			continue
		}
		d, err := storage.LoadJSON[models.Draft](ctx, m.store, key)
		if err != nil || d == nil {
			continue
		}
		if !d.IsSynced {
			drafts = append(drafts, d)
		}
	}
	return drafts, nil
}

// CleanupStale удаляет черновики, которые синхронизированы И старше
// olderThan. Несинхронизированные черновики не удаляются никогда:
// это единственная копия пользовательского ввода.
// Возвращает количество удаленных.
func (m *Manager) CleanupStale(ctx context.Context, olderThan time.Duration) (int, error) {
	keys, err := m.store.KeysByPrefix(ctx, KeyPrefix)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().UTC().Add(-olderThan)
	removed := 0

	for _, key := range keys {
		if isHistoryKey(key) {
			continue
		}
		d, err := storage.LoadJSON[models.Draft](ctx, m.store, key)
		if err != nil || d == nil {
			continue
		}
		if !d.IsSynced || !d.LastModifiedAt.Before(cutoff) {
			continue
		}

		for _, k := range []string{key, storage.BackupKey(key), key + historySuffix} {
			if err := m.store.Remove(ctx, k); err != nil {
				return removed, err
			}
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("stale drafts removed", "count", removed)
	}
	return removed, nil
}

// Validator возвращает валидатор менеджера.
func (m *Manager) Validator() *validation.BookingValidator {
	return m.validator
}

// mutateBookkeeping применяет служебную мутацию без изменения версии
// и времени последнего изменения.
func (m *Manager) mutateBookkeeping(ctx context.Context, entityID string, mutate func(*models.Draft)) (*models.Draft, error) {
	d, err := m.Load(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, storage.ErrKeyNotFound
	}

	mutate(d)
	if err := m.put(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// put записывает черновик: пересчитывает isValid, делает backup предыдущего
// значения и дополняет историю версий.
func (m *Manager) put(ctx context.Context, d *models.Draft) error {
	d.IsValid = m.validator.Validate(d).IsValid

	key := Key(d.EntityID)
	if err := m.store.CreateBackup(ctx, key); err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return err
	}
	if err := storage.SetJSON(ctx, m.store, key, d); err != nil {
		return err
	}

	if err := m.appendHistory(ctx, d); err != nil {
		// История - best effort: ее потеря не должна ронять сохранение
		m.logger.Warn("failed to append draft history", "entity_id", d.EntityID, "error", err)
	}
	return nil
}

func (m *Manager) appendHistory(ctx context.Context, d *models.Draft) error {
	raw, err := marshalSnapshot(d)
	if err != nil {
		return err
	}
	return version.AppendToHistory(ctx, m.store, Key(d.EntityID)+historySuffix, raw, m.historySize)
}

func isHistoryKey(key string) bool {
	return len(key) > len(historySuffix) && key[len(key)-len(historySuffix):] == historySuffix
}

// applyField применяет строковое значение к полю черновика.
// Неизвестное имя поля - ErrUnknownField.
func applyField(d *models.Draft, field, value string) error {
	f := &d.Fields
	switch field {
	case validation.FieldCustomerName:
		f.CustomerName = value
	case validation.FieldContactNumber:
		f.ContactNumber = value
	case validation.FieldCountryCode:
		f.CountryCode = value
	case validation.FieldAddress1:
		f.Address1 = value
	case validation.FieldAddress2:
		f.Address2 = value
	case validation.FieldServiceType:
		f.ServiceType = value
	case validation.FieldDiscountCode:
		f.DiscountCode = value
	case validation.FieldNotes:
		f.Notes = value
	case "correlationId":
		f.CorrelationID = value
	case "discountPercentage":
		pct, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid discountPercentage %q: %w", value, err)
		}
		f.DiscountPercentage = pct
	case validation.FieldScheduledTime:
		if value == "" {
			f.ScheduledAt = nil
			return nil
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("invalid scheduledTime %q: %w", value, err)
		}
		f.ScheduledAt = &t
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}
