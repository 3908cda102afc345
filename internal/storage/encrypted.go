package storage

import (
	"context"

	"github.com/iudanet/draftsync/internal/crypto"
)

// EncryptedStore оборачивает любой Store, шифруя значения AES-256-GCM.
// Ключи остаются открытыми (по ним работает префиксная навигация),
// шифруется только содержимое записей.
type EncryptedStore struct {
	inner Store
	key   []byte
}

// NewEncryptedStore создает шифрующую обертку над inner.
// key должен быть 32-байтовым ключом, см. crypto.DeriveKey.
func NewEncryptedStore(inner Store, key []byte) *EncryptedStore {
	return &EncryptedStore{inner: inner, key: key}
}

func (s *EncryptedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	plaintext, err := crypto.Decrypt(data, s.key)
	if err != nil {
		return nil, NewStorageError(KindSerialization, key, err)
	}
	return plaintext, nil
}

func (s *EncryptedStore) Set(ctx context.Context, key string, value []byte) error {
	encrypted, err := crypto.Encrypt(value, s.key)
	if err != nil {
		return NewStorageError(KindSerialization, key, err)
	}
	return s.inner.Set(ctx, key, encrypted)
}

func (s *EncryptedStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *EncryptedStore) HasKey(ctx context.Context, key string) (bool, error) {
	return s.inner.HasKey(ctx, key)
}

func (s *EncryptedStore) KeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.KeysByPrefix(ctx, prefix)
}

func (s *EncryptedStore) CreateBackup(ctx context.Context, key string) error {
	return s.inner.CreateBackup(ctx, key)
}

func (s *EncryptedStore) RestoreFromBackup(ctx context.Context, key string) error {
	return s.inner.RestoreFromBackup(ctx, key)
}

func (s *EncryptedStore) SizeOf(ctx context.Context, key string) (int64, error) {
	return s.inner.SizeOf(ctx, key)
}

func (s *EncryptedStore) UsageStats(ctx context.Context) (*UsageStats, error) {
	return s.inner.UsageStats(ctx)
}

func (s *EncryptedStore) IsAvailable(ctx context.Context) bool {
	return s.inner.IsAvailable(ctx)
}

// CheckIntegrity для шифрованного хранилища проверяет расшифровываемость
// значений: запись, которую нельзя расшифровать, считается поврежденной.
func (s *EncryptedStore) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	keys, err := s.inner.KeysByPrefix(ctx, "")
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{}
	for _, key := range keys {
		report.Checked++
		if _, err := s.Get(ctx, key); err != nil {
			if remErr := s.inner.Remove(ctx, key); remErr != nil {
				return report, remErr
			}
			report.Removed = append(report.Removed, key)
		}
	}

	return report, nil
}

func (s *EncryptedStore) Close() error {
	return s.inner.Close()
}
