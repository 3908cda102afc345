package storage

import (
	"errors"
	"fmt"
)

// Common storage errors
var (
	// ErrKeyNotFound indicates that the requested key does not exist
	ErrKeyNotFound = errors.New("key not found")

	// ErrBackupNotFound indicates that no backup exists for the key
	ErrBackupNotFound = errors.New("backup not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)

// ErrorKind классифицирует причину StorageError.
type ErrorKind string

const (
	// KindSerialization ошибка (де)сериализации значения
	KindSerialization ErrorKind = "serialization"
	// KindQuotaExceeded превышена квота хранилища
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	// KindUnavailable хранилище недоступно (нет прав на запись, закрыто и т.п.)
	KindUnavailable ErrorKind = "unavailable"
	// KindIO прочие ошибки ввода-вывода нижележащего движка
	KindIO ErrorKind = "io"
)

// StorageError типизированная ошибка слоя хранения.
// Все сбои хранилища возвращаются как StorageError и всегда восстановимы:
// вызывающий код может повторить операцию или показать пользователю
// уведомление, но процесс из-за них не падает.
type StorageError struct {
	Err  error
	Key  string
	Kind ErrorKind
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("storage error (%s) for key %q: %v", e.Kind, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError создает StorageError с заданной классификацией.
func NewStorageError(kind ErrorKind, key string, err error) *StorageError {
	return &StorageError{Kind: kind, Key: key, Err: err}
}

// IsQuotaExceeded сообщает, вызвана ли ошибка превышением квоты.
func IsQuotaExceeded(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Kind == KindQuotaExceeded
}
