package storage

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore простая in-memory реализация Store для тестов пакета.
// Настоящие бэкенды (boltdb, sqlite) тестируются в своих пакетах.
type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *memStore) Remove(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memStore) HasKey(_ context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func (m *memStore) KeysByPrefix(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) && !IsBackupKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStore) CreateBackup(_ context.Context, key string) error {
	v, ok := m.data[key]
	if !ok {
		return ErrKeyNotFound
	}
	m.data[BackupKey(key)] = v
	return nil
}

func (m *memStore) RestoreFromBackup(_ context.Context, key string) error {
	v, ok := m.data[BackupKey(key)]
	if !ok {
		return ErrBackupNotFound
	}
	m.data[key] = v
	return nil
}

func (m *memStore) SizeOf(_ context.Context, key string) (int64, error) {
	v, ok := m.data[key]
	if !ok {
		return 0, ErrKeyNotFound
	}
	return int64(len(v)), nil
}

func (m *memStore) UsageStats(_ context.Context) (*UsageStats, error) {
	stats := &UsageStats{QuotaBytes: DefaultQuotaBytes}
	for _, v := range m.data {
		stats.Count++
		stats.Bytes += int64(len(v))
	}
	return stats, nil
}

func (m *memStore) IsAvailable(_ context.Context) bool {
	return true
}

func (m *memStore) CheckIntegrity(_ context.Context) (*IntegrityReport, error) {
	return &IntegrityReport{Checked: len(m.data)}, nil
}

func (m *memStore) Close() error {
	return nil
}

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSetJSON_GetJSON_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	require.NoError(t, SetJSON(ctx, store, "rec", record{Name: "a", Count: 2}))

	got, err := GetJSON[record](ctx, store, "rec")
	require.NoError(t, err)
	assert.Equal(t, record{Name: "a", Count: 2}, *got)
}

func TestGetJSON_KeyNotFound(t *testing.T) {
	_, err := GetJSON[record](context.Background(), newMemStore(), "absent")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestGetJSON_CorruptValue(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.Set(ctx, "rec", []byte("{not json")))

	_, err := GetJSON[record](ctx, store, "rec")
	require.Error(t, err)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindSerialization, se.Kind)
	assert.Equal(t, "rec", se.Key)
}

func TestLoadJSON_AbsentKeyIsNotError(t *testing.T) {
	got, err := LoadJSON[record](context.Background(), newMemStore(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSetJSON_UnserializableValue(t *testing.T) {
	err := SetJSON(context.Background(), newMemStore(), "rec", make(chan int))
	require.Error(t, err)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindSerialization, se.Kind)
}

func TestBackupKey(t *testing.T) {
	assert.Equal(t, "draft:p1_backup", BackupKey("draft:p1"))
	assert.True(t, IsBackupKey("draft:p1_backup"))
	assert.False(t, IsBackupKey("draft:p1"))
	assert.False(t, IsBackupKey("_backup"))
}

func TestIsQuotaExceeded(t *testing.T) {
	err := NewStorageError(KindQuotaExceeded, "k", assert.AnError)
	assert.True(t, IsQuotaExceeded(err))
	assert.False(t, IsQuotaExceeded(NewStorageError(KindIO, "k", assert.AnError)))
	assert.False(t, IsQuotaExceeded(assert.AnError))
}
