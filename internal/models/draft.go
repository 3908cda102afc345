package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxSyncAttempts максимальное количество попыток синхронизации черновика.
// После исчерпания лимита sync-клиент возвращает терминальную ошибку,
// но сам черновик остается в хранилище и может быть отправлен позже.
const MaxSyncAttempts = 3

// BookingFields содержит пользовательские поля черновика бронирования.
// Все поля заполняются постепенно по мере ввода, поэтому каждое из них optional
// на уровне структуры; обязательность проверяет validation-пакет перед отправкой.
type BookingFields struct {
	ScheduledAt        *time.Time `json:"scheduledTime,omitempty"` // ScheduledAt желаемое время услуги
	CustomerName       string     `json:"customerName,omitempty"`
	ContactNumber      string     `json:"contactNumber,omitempty"` // ContactNumber номер WhatsApp/телефона, только цифры после sanitize
	CountryCode        string     `json:"countryCode,omitempty"`   // CountryCode телефонный код страны, формат +NNN
	Address1           string     `json:"address1,omitempty"`
	Address2           string     `json:"address2,omitempty"`
	ServiceType        string     `json:"serviceType,omitempty"`
	DiscountCode       string     `json:"discountCode,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	CorrelationID      string     `json:"correlationId,omitempty"` // CorrelationID сквозной идентификатор для трассировки заказа
	DiscountPercentage int        `json:"discountPercentage,omitempty"`
}

// Draft представляет локально сохраненный черновик бронирования.
// Черновик создается при первом изменении поля для entityID и живет
// в хранилище до успешной синхронизации и последующей очистки.
type Draft struct {
	CreatedAt      time.Time     `json:"createdAt"`
	LastModifiedAt time.Time     `json:"lastModifiedAt"`
	ID             string        `json:"id"`
	EntityID       string        `json:"entityId"` // EntityID идентификатор субъекта черновика (например, провайдера услуги)
	Fields         BookingFields `json:"fields"`
	Version        int64         `json:"version"`      // Version увеличивается на 1 при каждой мутации
	SyncAttempts   int           `json:"syncAttempts"` // SyncAttempts счетчик неудачных попыток отправки, переживает перезапуск
	IsSynced       bool          `json:"isSynced"`
	IsValid        bool          `json:"isValid"`
}

// NewDraft создает черновик первой версии для entityID.
func NewDraft(entityID string) *Draft {
	now := time.Now().UTC()
	return &Draft{
		ID:             uuid.NewString(),
		EntityID:       entityID,
		Version:        1,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
}

// Touch обновляет время последнего изменения и сбрасывает флаг синхронизации:
// любая мутация делает локальную копию новее удаленной.
func (d *Draft) Touch() {
	d.LastModifiedAt = time.Now().UTC()
	d.IsSynced = false
}

// HasReachedMaxAttempts сообщает, исчерпан ли лимит попыток синхронизации.
func (d *Draft) HasReachedMaxAttempts() bool {
	return d.SyncAttempts >= MaxSyncAttempts
}

// Envelope оборачивает черновик в версионный конверт для conflict resolution.
func (d *Draft) Envelope() Envelope[Draft] {
	return Envelope[Draft]{
		Version:   d.Version,
		Timestamp: d.LastModifiedAt,
		Data:      *d,
	}
}

// Clone создает глубокую копию черновика.
func (d *Draft) Clone() *Draft {
	c := *d
	if d.Fields.ScheduledAt != nil {
		t := *d.Fields.ScheduledAt
		c.Fields.ScheduledAt = &t
	}
	return &c
}
