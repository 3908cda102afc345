// Package boltdb реализует storage.Store поверх BoltDB.
// Это хранилище по умолчанию: один файл, одна kv-корзина,
// значения - сериализованный JSON вышестоящих менеджеров.
package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/draftsync/internal/storage"
)

var (
	// kvBucket единственная корзина со значениями движка
	kvBucket = []byte("kv")
)

// Storage represents BoltDB storage implementation
type Storage struct {
	db         *bbolt.DB
	quotaBytes int64
}

// Option настраивает Storage при создании.
type Option func(*Storage)

// WithQuota задает квоту хранилища в байтах.
func WithQuota(bytes int64) Option {
	return func(s *Storage) {
		s.quotaBytes = bytes
	}
}

// New creates a new BoltDB storage instance.
// dbPath is the path to the BoltDB database file.
func New(ctx context.Context, dbPath string, opts ...Option) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, storage.NewStorageError(storage.KindUnavailable, "", fmt.Errorf("failed to open boltdb: %w", err))
	}

	s := &Storage{db: db, quotaBytes: storage.DefaultQuotaBytes}
	for _, opt := range opts {
		opt(s)
	}

	// Инициализируем bucket заранее, чтобы читатели не видели nil bucket
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(kvBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, storage.NewStorageError(storage.KindUnavailable, "", fmt.Errorf("failed to initialize bucket: %w", err))
	}

	return s, nil
}

// Close closes the underlying BoltDB database
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying database for testing purposes
func (s *Storage) DB() *bbolt.DB {
	return s.db
}

func (s *Storage) closedErr(key string) error {
	return storage.NewStorageError(storage.KindUnavailable, key, storage.ErrStorageClosed)
}
