// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "subarr.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, len(migrations), n)
}

func TestMigrationVersionsAreOrderedAndUnique(t *testing.T) {
	seen := map[int]bool{}
	last := 0
	for _, m := range migrations {
		assert.Greater(t, m.version, last, "migration versions must be strictly increasing")
		assert.False(t, seen[m.version])
		seen[m.version] = true
		last = m.version
	}
}

func TestBlacklistUniquenessTreatedAsSuccess(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "subarr.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db))

	s := NewBlacklistStore(db)
	ctx := context.Background()

	id1, err := s.Add(ctx, BlacklistEntry{ProviderName: "gestdown", ExternalID: "x1", Reason: "bad sync"})
	require.NoError(t, err)
	id2, err := s.Add(ctx, BlacklistEntry{ProviderName: "gestdown", ExternalID: "x1", Reason: "again"})
	require.NoError(t, err, "duplicate insert must not surface an error")
	assert.Equal(t, id1, id2)

	banned, err := s.Contains(ctx, "gestdown", "x1")
	require.NoError(t, err)
	assert.True(t, banned)

	ok, err := s.Delete(ctx, id1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProviderStatsLedger(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "subarr.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db))

	s := NewProviderStatsStore(db)
	ctx := context.Background()

	require.NoError(t, s.RecordSuccess(ctx, "opensubtitles", 200, 120*time.Millisecond))
	require.NoError(t, s.RecordSuccess(ctx, "opensubtitles", 100, 80*time.Millisecond))
	require.NoError(t, s.RecordFailure(ctx, "opensubtitles", 2*time.Second, 0, time.Time{}))

	ps, err := s.Get(ctx, "opensubtitles")
	require.NoError(t, err)
	assert.Equal(t, int64(3), ps.TotalSearches)
	assert.Equal(t, int64(2), ps.Successes)
	assert.Equal(t, int64(1), ps.Failures)
	assert.Equal(t, 1, ps.ConsecutiveFailures)
	assert.InDelta(t, 150, ps.AvgScore, 0.01)
	require.NotNil(t, ps.LastSuccessAt)
	require.NotNil(t, ps.LastFailureAt)
	assert.False(t, ps.AutoDisabled)
}

func TestProviderAutoDisableAfterRun(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "subarr.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db))

	s := NewProviderStatsStore(db)
	ctx := context.Background()
	until := time.Now().Add(time.Hour)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordFailure(ctx, "podnapisi", time.Second, 5, until))
	}

	ps, err := s.Get(ctx, "podnapisi")
	require.NoError(t, err)
	assert.True(t, ps.AutoDisabled)
	require.NotNil(t, ps.DisabledUntil)

	// One success re-enables.
	require.NoError(t, s.RecordSuccess(ctx, "podnapisi", 150, time.Second))
	ps, err = s.Get(ctx, "podnapisi")
	require.NoError(t, err)
	assert.False(t, ps.AutoDisabled)
	assert.Nil(t, ps.DisabledUntil)
}

func TestSettingsOverridesRoundTrip(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "subarr.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db))

	s := NewSettingsStore(db)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "WEBHOOK_DELAY_MINUTES", "5"))
	require.NoError(t, s.Set(ctx, "WEBHOOK_DELAY_MINUTES", "10"))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10", all["WEBHOOK_DELAY_MINUTES"])

	require.NoError(t, s.Delete(ctx, "WEBHOOK_DELAY_MINUTES"))
	all, err = s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
