// Package storage определяет контракт персистентного key/value хранилища движка.
// Реализации: boltdb (по умолчанию) и sqlite. Хранилище ничего не знает
// о семантике записей: ключи с префиксами draft:/session: раздают
// вышестоящие менеджеры.
package storage

import "context"

// BackupSuffix суффикс теневого ключа, в который копируется предыдущее
// значение перед перезаписью.
const BackupSuffix = "_backup"

// DefaultQuotaBytes квота хранилища по умолчанию (5 MiB, как у localStorage
// в исходной системе).
const DefaultQuotaBytes = 5 * 1024 * 1024

// UsageStats агрегированная статистика использования хранилища.
type UsageStats struct {
	Count       int     `json:"count"`       // Count количество ключей
	Bytes       int64   `json:"bytes"`       // Bytes суммарный размер значений
	QuotaBytes  int64   `json:"quotaBytes"`  // QuotaBytes настроенная квота
	PercentUsed float64 `json:"percentUsed"` // PercentUsed Bytes/QuotaBytes * 100
}

// IntegrityReport результат проверки целостности хранилища.
type IntegrityReport struct {
	Checked int      `json:"checked"` // Checked количество проверенных ключей
	Removed []string `json:"removed"` // Removed ключи с поврежденными значениями, удаленные при проверке
}

// Store контракт key/value хранилища. Все операции тотальны:
// сбой никогда не покидает границу пакета иначе как StorageError.
type Store interface {
	// Get возвращает значение по ключу. Если ключа нет - ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set записывает значение по ключу, проверяя квоту.
	Set(ctx context.Context, key string, value []byte) error

	// Remove удаляет ключ. Удаление отсутствующего ключа не ошибка.
	Remove(ctx context.Context, key string) error

	// HasKey проверяет существование ключа.
	HasKey(ctx context.Context, key string) (bool, error)

	// KeysByPrefix возвращает отсортированные ключи с заданным префиксом.
	// Теневые *_backup ключи не включаются.
	KeysByPrefix(ctx context.Context, prefix string) ([]string, error)

	// CreateBackup копирует текущее значение ключа в теневой ключ key+"_backup".
	CreateBackup(ctx context.Context, key string) error

	// RestoreFromBackup восстанавливает значение ключа из теневого ключа.
	// Если backup отсутствует - ErrBackupNotFound.
	RestoreFromBackup(ctx context.Context, key string) error

	// SizeOf возвращает размер значения в байтах.
	SizeOf(ctx context.Context, key string) (int64, error)

	// UsageStats возвращает агрегированную статистику использования.
	UsageStats(ctx context.Context) (*UsageStats, error)

	// IsAvailable проверяет работоспособность хранилища пробной записью/чтением.
	IsAvailable(ctx context.Context) bool

	// CheckIntegrity сканирует все значения и удаляет те, что не являются
	// корректным JSON. Возвращает отчет о проверке.
	CheckIntegrity(ctx context.Context) (*IntegrityReport, error)

	// Close освобождает ресурсы хранилища.
	Close() error
}

// BackupKey возвращает имя теневого ключа для key.
func BackupKey(key string) string {
	return key + BackupSuffix
}

// IsBackupKey сообщает, является ли ключ теневым.
func IsBackupKey(key string) bool {
	return len(key) > len(BackupSuffix) && key[len(key)-len(BackupSuffix):] == BackupSuffix
}
