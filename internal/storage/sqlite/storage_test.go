package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/draftsync/internal/storage"
)

func newTestStorage(t *testing.T, opts ...Option) *Storage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(context.Background(), dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestNew_RunsMigrations(t *testing.T) {
	s := newTestStorage(t)

	var name string
	err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'kv'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "kv", name)
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.Set(ctx, "draft:p1", []byte(`{"v":1}`)))

	got, err := s.Get(ctx, "draft:p1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), got)

	// Перезапись заменяет значение
	require.NoError(t, s.Set(ctx, "draft:p1", []byte(`{"v":2}`)))
	got, err = s.Get(ctx, "draft:p1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), got)
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestRemove_AbsentKeyIsNotError(t *testing.T) {
	s := newTestStorage(t)
	assert.NoError(t, s.Remove(context.Background(), "absent"))
}

func TestKeysByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.Set(ctx, "session:b", []byte("{}")))
	require.NoError(t, s.Set(ctx, "session:a", []byte("{}")))
	require.NoError(t, s.Set(ctx, "draft:c", []byte("{}")))
	require.NoError(t, s.Set(ctx, storage.BackupKey("session:a"), []byte("{}")))

	keys, err := s.KeysByPrefix(ctx, "session:")
	require.NoError(t, err)
	assert.Equal(t, []string{"session:a", "session:b"}, keys)
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	require.NoError(t, s.CreateBackup(ctx, "k"))
	require.NoError(t, s.Set(ctx, "k", []byte("v2")))
	require.NoError(t, s.RestoreFromBackup(ctx, "k"))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
}

func TestRestoreFromBackup_MissingBackup(t *testing.T) {
	s := newTestStorage(t)
	err := s.RestoreFromBackup(context.Background(), "absent")
	assert.ErrorIs(t, err, storage.ErrBackupNotFound)
}

func TestSet_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, WithQuota(10))

	err := s.Set(ctx, "k", []byte("this value is longer than ten bytes"))
	require.Error(t, err)
	assert.True(t, storage.IsQuotaExceeded(err))

	// Перезапись освобождает место старого значения
	require.NoError(t, s.Set(ctx, "k", []byte("1234567890")))
	require.NoError(t, s.Set(ctx, "k", []byte("0987654321")))
}

func TestUsageStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, WithQuota(100))

	require.NoError(t, s.Set(ctx, "a", []byte("12345")))
	require.NoError(t, s.Set(ctx, "b", []byte("12345")))

	stats, err := s.UsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, int64(10), stats.Bytes)
	assert.InDelta(t, 10.0, stats.PercentUsed, 0.001)
}

func TestIsAvailable(t *testing.T) {
	s := newTestStorage(t)
	assert.True(t, s.IsAvailable(context.Background()))

	require.NoError(t, s.Close())
	assert.False(t, s.IsAvailable(context.Background()))
}

func TestCheckIntegrity_RemovesCorruptJSON(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.Set(ctx, "good", []byte(`{"ok":true}`)))
	require.NoError(t, s.Set(ctx, "bad", []byte(`{"ok":`)))

	report, err := s.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, []string{"bad"}, report.Removed)

	has, err := s.HasKey(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestClosedStorage(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	require.NoError(t, s.Close())

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	err = s.Set(ctx, "k", []byte("v"))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	assert.NoError(t, s.Close())
}
