// Package cli содержит cobra-команды утилиты draftsync: инспекция
// локального хранилища, экспорт/импорт черновиков, синхронизация и очистка.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iudanet/draftsync/internal/config"
	"github.com/iudanet/draftsync/internal/crypto"
	"github.com/iudanet/draftsync/internal/draft"
	"github.com/iudanet/draftsync/internal/session"
	"github.com/iudanet/draftsync/internal/storage"
	"github.com/iudanet/draftsync/internal/storage/boltdb"
	"github.com/iudanet/draftsync/internal/storage/sqlite"
	"github.com/iudanet/draftsync/internal/syncer"
	"github.com/iudanet/draftsync/internal/validation"
)

var (
	cfgPath string
	cfg     *config.Config
	logger  *slog.Logger
)

// rootCmd корневая команда CLI
var rootCmd = &cobra.Command{
	Use:           "draftsync",
	Short:         "Local-first draft persistence and sync engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger = newLogger(cfg.LogLevel)
		return nil
	},
}

// SetVersion задает строку версии, отображаемую командой --version.
func SetVersion(version, buildDate string) {
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildDate)
}

// Execute запускает CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// openStore открывает настроенный бэкенд хранилища и, если включено
// шифрование, оборачивает его в EncryptedStore.
func openStore(ctx context.Context) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)

	switch cfg.Backend {
	case config.BackendSQLite:
		store, err = sqlite.New(ctx, cfg.DBPath, sqlite.WithQuota(cfg.QuotaBytes))
	default:
		store, err = boltdb.New(ctx, cfg.DBPath, boltdb.WithQuota(cfg.QuotaBytes))
	}
	if err != nil {
		return nil, err
	}

	if !cfg.EncryptionEnabled {
		return store, nil
	}

	key, err := encryptionKey()
	if err != nil {
		store.Close()
		return nil, err
	}
	return storage.NewEncryptedStore(store, key), nil
}

// encryptionKey выводит ключ шифрования из парольной фразы.
// Фраза берется из DRAFTSYNC_PASSPHRASE или запрашивается интерактивно.
func encryptionKey() ([]byte, error) {
	if cfg.EncryptionSalt == "" {
		return nil, fmt.Errorf("encryption enabled but encryption_salt is not set")
	}

	passphrase := os.Getenv("DRAFTSYNC_PASSPHRASE")
	if passphrase == "" {
		fmt.Fprint(os.Stderr, "Passphrase: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to read passphrase: %w", err)
		}
		passphrase = string(raw)
	}

	return crypto.DeriveKeyFromBase64Salt(passphrase, cfg.EncryptionSalt)
}

// buildEngine собирает менеджеры движка поверх открытого хранилища.
func buildEngine(store storage.Store) (*draft.Manager, *session.Store, *syncer.Client) {
	validator := validation.NewBookingValidator()
	drafts := draft.NewManager(store, validator, logger, draft.WithHistorySize(cfg.HistorySize))
	sessions := session.New(store, logger, session.WithMaxMessages(cfg.MaxMessages))

	var clientOpts []syncer.ClientOption
	if cfg.AuthToken != "" {
		clientOpts = append(clientOpts, syncer.WithAuthToken(cfg.AuthToken))
	}
	client := syncer.NewClient(drafts, logger, clientOpts...)

	return drafts, sessions, client
}
