package models

import "time"

// Envelope оборачивает произвольную запись метаданными версионирования.
// Используется для обнаружения и разрешения конфликтов между локальной
// и удаленной копией одной и той же логической записи.
type Envelope[T any] struct {
	Timestamp        time.Time `json:"timestamp"`                  // Timestamp момент последнего изменения
	Data             T         `json:"data"`                       // Data полезная нагрузка
	LastModifiedBy   string    `json:"lastModifiedBy,omitempty"`   // LastModifiedBy идентификатор последнего писателя
	Version          int64     `json:"version"`                    // Version монотонно растущая версия (>= 1)
	ConflictResolved bool      `json:"conflictResolved,omitempty"` // ConflictResolved true, если запись получена слиянием конфликта
}

// NewEnvelope создает конверт первой версии для данных data.
func NewEnvelope[T any](data T, modifiedBy string) Envelope[T] {
	return Envelope[T]{
		Version:        1,
		Timestamp:      time.Now().UTC(),
		Data:           data,
		LastModifiedBy: modifiedBy,
	}
}

// IsNewerThan сравнивает два конверта по timestamp.
// Возвращает true, если текущий конверт строго новее other.
func (e Envelope[T]) IsNewerThan(other Envelope[T]) bool {
	return e.Timestamp.After(other.Timestamp)
}
