// SPDX-License-Identifier: MIT

package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzmx/subarr/internal/cache"
	"github.com/kzmx/subarr/internal/config"
	"github.com/kzmx/subarr/internal/providers"
	"github.com/kzmx/subarr/internal/resilience"
	"github.com/kzmx/subarr/internal/storage"
)

type fakeProvider struct {
	name       string
	candidates []providers.Candidate
	payload    []byte
	err        error
	searches   int
	downloads  int
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) Info() providers.Info { return providers.Info{} }

func (f *fakeProvider) Search(context.Context, providers.Query) ([]providers.Candidate, error) {
	f.searches++
	return f.candidates, f.err
}

func (f *fakeProvider) Download(context.Context, providers.Candidate) ([]byte, error) {
	f.downloads++
	return f.payload, f.err
}

func testStores(t *testing.T) (*storage.ProviderStatsStore, *storage.BlacklistStore, *storage.HistoryStore) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "subarr.db"), storage.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(db))
	return storage.NewProviderStatsStore(db), storage.NewBlacklistStore(db), storage.NewHistoryStore(db)
}

func testAggregator(t *testing.T, cfg config.Settings, ps ...providers.Provider) (*Aggregator, *resilience.Registry, *storage.BlacklistStore) {
	t.Helper()
	reg := providers.NewRegistry()
	for _, p := range ps {
		reg.Register(p)
	}
	stats, blacklist, _ := testStores(t)
	breakers := resilience.NewRegistry(cfg.BreakerFailures, cfg.BreakerCooldown)
	return NewAggregator(reg, cache.NewMemory(), breakers, stats, blacklist, nil, cfg), breakers, blacklist
}

func cand(provider, id string, title string, season, episode int) providers.Candidate {
	return providers.Candidate{
		ProviderName: provider,
		ExternalID:   id,
		Language:     "de",
		Filename:     title + ".srt",
		Title:        title,
		Season:       season,
		Episode:      episode,
	}
}

func TestSearchMergesAndRanks(t *testing.T) {
	cfg := config.Defaults()
	cfg.ProviderOrder = []string{"alpha", "beta"}
	cfg.ProviderBias = map[string]int{"beta": 40}

	alpha := &fakeProvider{name: "alpha", candidates: []providers.Candidate{
		cand("alpha", "a1", "Some Show", 1, 2),
	}}
	beta := &fakeProvider{name: "beta", candidates: []providers.Candidate{
		cand("beta", "b1", "Some Show", 1, 2),
	}}
	agg, _, _ := testAggregator(t, cfg, alpha, beta)

	q := providers.Query{Title: "Some Show", Season: 1, Episode: 2, Language: "de"}
	results, err := agg.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Equal base scores, so beta's bias puts it first.
	assert.Equal(t, "beta", results[0].Candidate.ProviderName)
	assert.Equal(t, results[0].BaseScore+40, results[0].Effective)
	assert.Equal(t, "alpha", results[1].Candidate.ProviderName)

	best, ok := Best(results, results[1].Effective)
	require.True(t, ok)
	assert.Equal(t, "beta", best.Candidate.ProviderName)

	_, ok = Best(results, results[0].Effective+1)
	assert.False(t, ok, "below the minimum score there is no result")
}

func TestSearchUsesCacheOnSecondRun(t *testing.T) {
	cfg := config.Defaults()
	cfg.ProviderOrder = []string{"alpha"}

	alpha := &fakeProvider{name: "alpha", candidates: []providers.Candidate{
		cand("alpha", "a1", "Some Show", 1, 2),
	}}
	agg, _, _ := testAggregator(t, cfg, alpha)

	q := providers.Query{Title: "Some Show", Season: 1, Episode: 2, Language: "de"}
	ctx := context.Background()

	first, err := agg.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.False(t, first[0].FromCache)

	second, err := agg.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].FromCache)
	assert.Equal(t, 1, alpha.searches, "second run must not reach the provider")

	// A different kind filter is a different cache entry.
	q.Kind = "forced"
	_, err = agg.Search(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, alpha.searches)
}

func TestSearchIsolatesProviderFailure(t *testing.T) {
	cfg := config.Defaults()
	cfg.ProviderOrder = []string{"broken", "alpha"}

	broken := &fakeProvider{name: "broken", err: errors.New("upstream 500")}
	alpha := &fakeProvider{name: "alpha", candidates: []providers.Candidate{
		cand("alpha", "a1", "Some Show", 1, 2),
	}}
	agg, breakers, _ := testAggregator(t, cfg, broken, alpha)

	results, err := agg.Search(context.Background(), providers.Query{
		Title: "Some Show", Season: 1, Episode: 2, Language: "de",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha", results[0].Candidate.ProviderName)

	assert.Equal(t, 1, breakers.For("broken").Status().Failures)

	ps, err := agg.stats.Get(context.Background(), "broken")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ps.Failures)
}

func TestSearchSkipsOpenBreaker(t *testing.T) {
	cfg := config.Defaults()
	cfg.ProviderOrder = []string{"alpha"}
	cfg.BreakerFailures = 1
	cfg.BreakerCooldown = time.Hour

	alpha := &fakeProvider{name: "alpha"}
	agg, breakers, _ := testAggregator(t, cfg, alpha)
	breakers.For("alpha").RecordFailure() // trips at threshold 1

	_, err := agg.Search(context.Background(), providers.Query{Title: "x", Language: "de"})
	require.NoError(t, err)
	assert.Zero(t, alpha.searches)
}

func TestSearchFiltersBlacklistKindAndLanguage(t *testing.T) {
	cfg := config.Defaults()
	cfg.ProviderOrder = []string{"alpha"}

	banned := cand("alpha", "bad", "Some Show", 1, 2)
	forced := cand("alpha", "f1", "Some Show", 1, 2)
	forced.Filename = "Some.Show.forced.srt"
	wrongLang := cand("alpha", "fr", "Some Show", 1, 2)
	wrongLang.Language = "fr"
	good := cand("alpha", "ok", "Some Show", 1, 2)

	alpha := &fakeProvider{name: "alpha", candidates: []providers.Candidate{banned, forced, wrongLang, good}}
	agg, _, blacklist := testAggregator(t, cfg, alpha)

	_, err := blacklist.Add(context.Background(), storage.BlacklistEntry{
		ProviderName: "alpha", ExternalID: "bad", Reason: "bad sync",
	})
	require.NoError(t, err)

	results, err := agg.Search(context.Background(), providers.Query{
		Title: "Some Show", Season: 1, Episode: 2, Language: "de", Kind: "full",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Candidate.ExternalID)
}

type blockingProvider struct {
	name    string
	started chan struct{}
}

func (b *blockingProvider) Name() string         { return b.name }
func (b *blockingProvider) Info() providers.Info { return providers.Info{} }

func (b *blockingProvider) Search(ctx context.Context, _ providers.Query) ([]providers.Candidate, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingProvider) Download(context.Context, providers.Candidate) ([]byte, error) {
	return nil, nil
}

func TestSearchCancelledMidFanOutDrainsWorkers(t *testing.T) {
	cfg := config.Defaults()
	cfg.ProviderOrder = []string{"slow", "alpha"}
	cfg.SearchConcurrency = 1

	slow := &blockingProvider{name: "slow", started: make(chan struct{})}
	alpha := &fakeProvider{name: "alpha"}
	agg, _, _ := testAggregator(t, cfg, slow, alpha)

	// With one slot the fan-out loop sits in Acquire for "alpha" while
	// "slow" holds the semaphore; cancelling must drain the in-flight
	// worker before Search hands back the results slice.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-slow.started
		cancel()
	}()

	_, err := agg.Search(ctx, providers.Query{
		Title: "Some Show", Season: 1, Episode: 2, Language: "de",
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, alpha.searches, "second provider never admitted")
}

func TestFingerprintStability(t *testing.T) {
	q := providers.Query{Title: "Some Show", Season: 1, Episode: 2, Language: "de"}
	assert.Equal(t, Fingerprint(q), Fingerprint(q))

	other := q
	other.Episode = 3
	assert.NotEqual(t, Fingerprint(q), Fingerprint(other))

	assert.NotEqual(t, cacheKey("a", Fingerprint(q), ""), cacheKey("b", Fingerprint(q), ""))
	assert.NotEqual(t, cacheKey("a", Fingerprint(q), "full"), cacheKey("a", Fingerprint(q), "forced"))
}
