package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.etcd.io/bbolt"

	"github.com/iudanet/draftsync/internal/storage"
)

// Get возвращает значение по ключу
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if s.db == nil {
		return nil, s.closedErr(key)
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(kvBucket).Get([]byte(key))
		if data == nil {
			return storage.ErrKeyNotFound
		}
		// Копируем: данные bbolt валидны только внутри транзакции
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return nil, err
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

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(kvBucket)

		if s.quotaBytes > 0 {
			used := usedBytes(bucket)
			// Перезапись освобождает место старого значения
			if old := bucket.Get([]byte(key)); old != nil {
				used -= int64(len(old))
			}
			if used+int64(len(value)) > s.quotaBytes {
				return storage.NewStorageError(storage.KindQuotaExceeded, key,
					fmt.Errorf("quota %d bytes exceeded", s.quotaBytes))
			}
		}

		return bucket.Put([]byte(key), value)
	})
	if err != nil {
		if se, ok := err.(*storage.StorageError); ok {
			return se
		}
		return storage.NewStorageError(storage.KindIO, key, err)
	}

	return nil
}

// Remove удаляет ключ. Отсутствующий ключ не считается ошибкой.
func (s *Storage) Remove(ctx context.Context, key string) error {
	if s.db == nil {
		return s.closedErr(key)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(kvBucket).Delete([]byte(key))
	})
	if err != nil {
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
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(kvBucket).Get([]byte(key)) != nil
		return nil
	})
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

	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(kvBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			key := string(k)
			if storage.IsBackupKey(key) {
				continue
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, storage.NewStorageError(storage.KindIO, "", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// CreateBackup копирует текущее значение ключа в теневой ключ
func (s *Storage) CreateBackup(ctx context.Context, key string) error {
	if s.db == nil {
		return s.closedErr(key)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(kvBucket)
		data := bucket.Get([]byte(key))
		if data == nil {
			return storage.ErrKeyNotFound
		}
		return bucket.Put([]byte(storage.BackupKey(key)), data)
	})
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return err
		}
		return storage.NewStorageError(storage.KindIO, key, err)
	}

	return nil
}

// RestoreFromBackup восстанавливает значение ключа из теневого ключа
func (s *Storage) RestoreFromBackup(ctx context.Context, key string) error {
	if s.db == nil {
		return s.closedErr(key)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(kvBucket)
		data := bucket.Get([]byte(storage.BackupKey(key)))
		if data == nil {
			return storage.ErrBackupNotFound
		}
		return bucket.Put([]byte(key), data)
	})
	if err != nil {
		if err == storage.ErrBackupNotFound {
			return err
		}
		return storage.NewStorageError(storage.KindIO, key, err)
	}

	return nil
}

// SizeOf возвращает размер значения в байтах
func (s *Storage) SizeOf(ctx context.Context, key string) (int64, error) {
	if s.db == nil {
		return 0, s.closedErr(key)
	}

	var size int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(kvBucket).Get([]byte(key))
		if data == nil {
			return storage.ErrKeyNotFound
		}
		size = int64(len(data))
		return nil
	})
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return 0, err
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
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(kvBucket).ForEach(func(k, v []byte) error {
			stats.Count++
			stats.Bytes += int64(len(v))
			return nil
		})
	})
	if err != nil {
		return nil, storage.NewStorageError(storage.KindIO, "", err)
	}

	if stats.QuotaBytes > 0 {
		stats.PercentUsed = float64(stats.Bytes) / float64(stats.QuotaBytes) * 100
	}
	return stats, nil
}

// IsAvailable проверяет работоспособность пробной записью и чтением.
// Аналог проверки localStorage в ограниченном (private browsing) контексте.
func (s *Storage) IsAvailable(ctx context.Context) bool {
	if s.db == nil {
		return false
	}

	const probeKey = "__probe__"
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(kvBucket)
		if err := bucket.Put([]byte(probeKey), []byte("ok")); err != nil {
			return err
		}
		return bucket.Delete([]byte(probeKey))
	})
	return err == nil
}

// CheckIntegrity удаляет значения, не являющиеся корректным JSON
func (s *Storage) CheckIntegrity(ctx context.Context) (*storage.IntegrityReport, error) {
	if s.db == nil {
		return nil, s.closedErr("")
	}

	report := &storage.IntegrityReport{}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(kvBucket)

		var corrupt [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			report.Checked++
			if !json.Valid(v) {
				key := make([]byte, len(k))
				copy(key, k)
				corrupt = append(corrupt, key)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range corrupt {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			report.Removed = append(report.Removed, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, storage.NewStorageError(storage.KindIO, "", err)
	}

	return report, nil
}

// usedBytes суммирует размер всех значений корзины
func usedBytes(bucket *bbolt.Bucket) int64 {
	var total int64
	_ = bucket.ForEach(func(k, v []byte) error {
		total += int64(len(v))
		return nil
	})
	return total
}
