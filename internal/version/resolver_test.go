package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/draftsync/internal/models"
)

func envAt(version int64, ts time.Time, data string) models.Envelope[string] {
	return models.Envelope[string]{Version: version, Timestamp: ts, Data: data}
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, -1, CompareVersions(1, 2))
	assert.Equal(t, 1, CompareVersions(2, 1))
	assert.Equal(t, 0, CompareVersions(2, 2))
}

func TestCompareTimestamps(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, -1, CompareTimestamps(t0, t0.Add(time.Second)))
	assert.Equal(t, 1, CompareTimestamps(t0.Add(time.Second), t0))
	assert.Equal(t, 0, CompareTimestamps(t0, t0))
}

func TestHasConflict(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.False(t, HasConflict(envAt(2, t0, "a"), envAt(2, t0.Add(time.Hour), "b")))
	assert.True(t, HasConflict(envAt(2, t0, "a"), envAt(3, t0, "b")))
}

func TestResolveLastWriteWins(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		local    models.Envelope[string]
		remote   models.Envelope[string]
		wantData string
		wantVer  int64
	}{
		{
			name:     "local newer",
			local:    envAt(2, t0.Add(time.Minute), "local"),
			remote:   envAt(3, t0, "remote"),
			wantData: "local",
			wantVer:  4,
		},
		{
			name:     "remote newer",
			local:    envAt(5, t0, "local"),
			remote:   envAt(2, t0.Add(time.Minute), "remote"),
			wantData: "remote",
			wantVer:  6,
		},
		{
			name:     "equal timestamps remote wins",
			local:    envAt(2, t0, "local"),
			remote:   envAt(2, t0, "remote"),
			wantData: "remote",
			wantVer:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveLastWriteWins(tt.local, tt.remote)
			assert.Equal(t, tt.wantData, got.Data)
			assert.Equal(t, tt.wantVer, got.Version)
			assert.True(t, got.ConflictResolved)
		})
	}
}

func TestResolveLastWriteWins_Deterministic(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	local := envAt(2, t0, "local")
	remote := envAt(4, t0, "remote")

	first := ResolveLastWriteWins(local, remote)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ResolveLastWriteWins(local, remote))
	}
}

func TestResolveHighestVersion(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	got := ResolveHighestVersion(envAt(5, t0, "local"), envAt(3, t0, "remote"))
	assert.Equal(t, "local", got.Data)
	assert.Equal(t, int64(6), got.Version)

	// При равных версиях побеждает remote
	got = ResolveHighestVersion(envAt(3, t0, "local"), envAt(3, t0, "remote"))
	assert.Equal(t, "remote", got.Data)
	assert.Equal(t, int64(4), got.Version)
}

func TestMergeFields(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	local := models.Envelope[map[string]any]{
		Version:   2,
		Timestamp: t0.Add(time.Minute),
		Data:      map[string]any{"name": "local", "notes": "keep"},
	}
	remote := models.Envelope[map[string]any]{
		Version:   3,
		Timestamp: t0,
		Data:      map[string]any{"name": "remote", "address": "street"},
	}

	tests := []struct {
		name     string
		strategy MergeStrategy
		wantName string
	}{
		{"local priority", StrategyLocalPriority, "local"},
		{"remote priority", StrategyRemotePriority, "remote"},
		{"shallow merge takes later writer on overlap", StrategyShallowMerge, "local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeFields(local, remote, tt.strategy)
			assert.Equal(t, tt.wantName, got.Data["name"])
			// Непересекающиеся поля сохраняются с обеих сторон
			assert.Equal(t, "keep", got.Data["notes"])
			assert.Equal(t, "street", got.Data["address"])
			assert.Equal(t, int64(4), got.Version)
			assert.True(t, got.ConflictResolved)
		})
	}
}
