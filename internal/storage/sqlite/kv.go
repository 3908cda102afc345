package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/draftsync/internal/storage"
)

// Get возвращает значение по ключу
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if s.db == nil {
		return nil, s.closedErr(key)
	}

	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrKeyNotFound
		}
		return nil, storage.NewStorageError(storage.KindIO, key, err)
	}

	return value, nil
}

// Set записывает значение по ключу с учетом квоты
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	if s.db == nil {
		return s.closedErr(key)
	}

	if s.quotaBytes > 0 {
		var used, old int64
		err := s.db.QueryRowContext(ctx,
			"SELECT COALESCE(SUM(LENGTH(value)), 0), COALESCE((SELECT LENGTH(value) FROM kv WHERE key = ?), 0) FROM kv",
			key).Scan(&used, &old)
		if err != nil {
			return storage.NewStorageError(storage.KindIO, key, err)
		}
		if used-old+int64(len(value)) > s.quotaBytes {
			return storage.NewStorageError(storage.KindQuotaExceeded, key,
				fmt.Errorf("quota %d bytes exceeded", s.quotaBytes))
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return storage.NewStorageError(storage.KindIO, key, err)
	}

	return nil
}

// Remove удаляет ключ. Отсутствующий ключ не считается ошибкой.
func (s *Storage) Remove(ctx context.Context, key string) error {
	if s.db == nil {
		return s.closedErr(key)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return storage.NewStorageError(storage.KindIO, key, err)
	}
	return nil
}

// HasKey проверяет существование ключа
func (s *Storage) HasKey(ctx context.Context, key string) (bool, error) {
	if s.db == nil {
		return false, s.closedErr(key)
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM kv WHERE key = ?)", key).Scan(&exists)
	if err != nil {
		return false, storage.NewStorageError(storage.KindIO, key, err)
	}
	return exists, nil
}

// KeysByPrefix возвращает отсортированные ключи с заданным префиксом,
// исключая теневые *_backup ключи
func (s *Storage) KeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	if s.db == nil {
		return nil, s.closedErr("")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM kv WHERE key LIKE ? || '%' ORDER BY key", prefix)
	if err != nil {
		return nil, storage.NewStorageError(storage.KindIO, "", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, storage.NewStorageError(storage.KindIO, "", err)
		}
		if storage.IsBackupKey(key) {
			continue
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewStorageError(storage.KindIO, "", err)
	}

	return keys, nil
}

// CreateBackup копирует текущее значение ключа в теневой ключ
func (s *Storage) CreateBackup(ctx context.Context, key string) error {
	if s.db == nil {
		return s.closedErr(key)
	}

	value, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return s.Set(ctx, storage.BackupKey(key), value)
}

// RestoreFromBackup восстанавливает значение ключа из теневого ключа
func (s *Storage) RestoreFromBackup(ctx context.Context, key string) error {
	if s.db == nil {
		return s.closedErr(key)
	}

	value, err := s.Get(ctx, storage.BackupKey(key))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return storage.ErrBackupNotFound
		}
		return err
	}
	return s.Set(ctx, key, value)
}

// SizeOf возвращает размер значения в байтах
func (s *Storage) SizeOf(ctx context.Context, key string) (int64, error) {
	if s.db == nil {
		return 0, s.closedErr(key)
	}

	var size int64
	err := s.db.QueryRowContext(ctx, "SELECT LENGTH(value) FROM kv WHERE key = ?", key).Scan(&size)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrKeyNotFound
		}
		return 0, storage.NewStorageError(storage.KindIO, key, err)
	}
	return size, nil
}

// UsageStats возвращает агрегированную статистику использования
func (s *Storage) UsageStats(ctx context.Context) (*storage.UsageStats, error) {
	if s.db == nil {
		return nil, s.closedErr("")
	}

	stats := &storage.UsageStats{QuotaBytes: s.quotaBytes}
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0) FROM kv").Scan(&stats.Count, &stats.Bytes)
	if err != nil {
		return nil, storage.NewStorageError(storage.KindIO, "", err)
	}

	if stats.QuotaBytes > 0 {
		stats.PercentUsed = float64(stats.Bytes) / float64(stats.QuotaBytes) * 100
	}
	return stats, nil
}

// IsAvailable проверяет работоспособность пробной записью и чтением
func (s *Storage) IsAvailable(ctx context.Context) bool {
	if s.db == nil {
		return false
	}

	const probeKey = "__probe__"
	if err := s.Set(ctx, probeKey, []byte(`"ok"`)); err != nil {
		return false
	}
	return s.Remove(ctx, probeKey) == nil
}

// CheckIntegrity удаляет значения, не являющиеся корректным JSON
func (s *Storage) CheckIntegrity(ctx context.Context) (*storage.IntegrityReport, error) {
	if s.db == nil {
		return nil, s.closedErr("")
	}

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM kv")
	if err != nil {
		return nil, storage.NewStorageError(storage.KindIO, "", err)
	}
	defer rows.Close()

	report := &storage.IntegrityReport{}
	var corrupt []string
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, storage.NewStorageError(storage.KindIO, "", err)
		}
		report.Checked++
		if !json.Valid(value) {
			corrupt = append(corrupt, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewStorageError(storage.KindIO, "", err)
	}

	for _, key := range corrupt {
		if err := s.Remove(ctx, key); err != nil {
			return report, err
		}
		report.Removed = append(report.Removed, key)
	}

	return report, nil
}
