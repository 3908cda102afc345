// Package sqlite реализует storage.Store поверх SQLite.
// Альтернативный бэкенд для окружений, где файл BoltDB неудобен
// (например, когда рядом уже живет SQLite-база приложения).
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/draftsync/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage represents SQLite storage implementation
type Storage struct {
	db         *sql.DB
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

// New creates a new SQLite storage instance.
// dbPath is the path to the SQLite database file.
// Use ":memory:" for in-memory database (useful for testing).
func New(ctx context.Context, dbPath string, opts ...Option) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storage.NewStorageError(storage.KindUnavailable, "", fmt.Errorf("failed to open database: %w", err))
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storage.NewStorageError(storage.KindUnavailable, "", fmt.Errorf("failed to ping database: %w", err))
	}

	// SQLite с WAL mode поддерживает несколько читателей, но одного писателя
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, storage.NewStorageError(storage.KindUnavailable, "", fmt.Errorf("failed to set pragma: %w", err))
		}
	}

	s := &Storage{db: db, quotaBytes: storage.DefaultQuotaBytes}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, storage.NewStorageError(storage.KindUnavailable, "", fmt.Errorf("failed to run migrations: %w", err))
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying database connection for testing purposes
func (s *Storage) DB() *sql.DB {
	return s.db
}

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations() error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

func (s *Storage) closedErr(key string) error {
	return storage.NewStorageError(storage.KindUnavailable, key, storage.ErrStorageClosed)
}
