// SPDX-License-Identifier: MIT

// Package search fans a wanted-item query out across the enabled
// providers, with the response cache and circuit breakers in front of
// every call, and turns the merged candidates into one ranked result set.
package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/kzmx/subarr/internal/cache"
	"github.com/kzmx/subarr/internal/config"
	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/metrics"
	"github.com/kzmx/subarr/internal/providers"
	"github.com/kzmx/subarr/internal/resilience"
	"github.com/kzmx/subarr/internal/storage"
)

// Result is one scored candidate. Effective is the base match score plus
// the per-provider bias; ranking uses Effective only.
type Result struct {
	Candidate providers.Candidate
	BaseScore int
	Bias      int
	Effective int
	Latency   time.Duration
	FromCache bool
}

// Aggregator coordinates provider fan-out for one search.
type Aggregator struct {
	registry  *providers.Registry
	cache     cache.Cache
	breakers  *resilience.Registry
	stats     *storage.ProviderStatsStore
	blacklist *storage.BlacklistStore
	bus       *events.Bus
	cfg       config.Settings
	logger    zerolog.Logger
}

func NewAggregator(
	registry *providers.Registry,
	c cache.Cache,
	breakers *resilience.Registry,
	stats *storage.ProviderStatsStore,
	blacklist *storage.BlacklistStore,
	bus *events.Bus,
	cfg config.Settings,
) *Aggregator {
	return &Aggregator{
		registry:  registry,
		cache:     c,
		breakers:  breakers,
		stats:     stats,
		blacklist: blacklist,
		bus:       bus,
		cfg:       cfg,
		logger:    log.WithComponent("search"),
	}
}

// order returns the providers to query, preference first. A configured
// order restricts the set; otherwise every registered provider runs.
func (a *Aggregator) order() []string {
	if len(a.cfg.ProviderOrder) > 0 {
		return a.cfg.ProviderOrder
	}
	return a.registry.Names()
}

func (a *Aggregator) orderIndex(name string) int {
	for i, n := range a.order() {
		if n == name {
			return i
		}
	}
	return len(a.order())
}

// Search queries every admissible provider concurrently and returns the
// merged, scored, filtered results. Per-provider failures are isolated; an
// empty slice with a nil error means no provider had anything usable.
func (a *Aggregator) Search(ctx context.Context, q providers.Query) ([]Result, error) {
	names := a.order()
	fingerprint := Fingerprint(q)

	limit := int64(a.cfg.SearchConcurrency)
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)

	var (
		mu      sync.Mutex
		results []Result
		wg      sync.WaitGroup
	)
	for _, name := range names {
		p, ok := a.registry.Get(name)
		if !ok {
			a.logger.Warn().Str("provider", name).Msg("configured provider not registered")
			continue
		}
		if !a.admit(ctx, name) {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			// Launched goroutines still append to results; wait them out
			// before the slice escapes.
			wg.Wait()
			return results, err
		}
		wg.Add(1)
		go func(name string, p providers.Provider) {
			defer wg.Done()
			defer sem.Release(1)
			rs := a.searchOne(ctx, name, p, q, fingerprint)
			mu.Lock()
			results = append(results, rs...)
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Effective != results[j].Effective {
			return results[i].Effective > results[j].Effective
		}
		oi, oj := a.orderIndex(results[i].Candidate.ProviderName), a.orderIndex(results[j].Candidate.ProviderName)
		if oi != oj {
			return oi < oj
		}
		return results[i].Latency < results[j].Latency
	})
	return results, nil
}

// Best returns the top result at or above minScore.
func Best(results []Result, minScore int) (Result, bool) {
	for _, r := range results {
		if r.Effective >= minScore {
			return r, true
		}
	}
	return Result{}, false
}

// admit combines the circuit breaker with the ledger-level auto-disable.
func (a *Aggregator) admit(ctx context.Context, name string) bool {
	if !a.breakers.For(name).AllowRequest() {
		a.logger.Debug().Str("provider", name).Msg("breaker open, provider skipped")
		metrics.RecordProviderSearch(name, "breaker_open", 0)
		return false
	}
	ps, err := a.stats.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			a.logger.Warn().Err(err).Str("provider", name).Msg("provider ledger read failed")
		}
		return true
	}
	if ps.AutoDisabled && ps.DisabledUntil != nil && ps.DisabledUntil.After(time.Now()) {
		a.logger.Debug().Str("provider", name).Time("until", *ps.DisabledUntil).Msg("provider auto-disabled")
		metrics.RecordProviderSearch(name, "disabled", 0)
		return false
	}
	return true
}

func (a *Aggregator) searchOne(ctx context.Context, name string, p providers.Provider, q providers.Query, fingerprint string) []Result {
	key := a.cfg.CacheKeyPrefix + cacheKey(name, fingerprint, q.Kind)

	var (
		candidates []providers.Candidate
		latency    time.Duration
		fromCache  bool
	)
	if raw, ok := a.cache.Get(ctx, key); ok {
		if err := json.Unmarshal(raw, &candidates); err == nil {
			fromCache = true
			metrics.RecordProviderSearch(name, "cached", 0)
		} else {
			a.cache.Delete(ctx, key)
		}
	}

	if !fromCache {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.SearchTimeout)
		start := time.Now()
		got, err := p.Search(callCtx, q)
		latency = time.Since(start)
		cancel()

		if err != nil {
			a.recordFailure(ctx, name, latency)
			a.logger.Warn().Err(err).Str("provider", name).Dur("latency", latency).Msg("provider search failed")
			return nil
		}
		a.recordSuccess(ctx, name, bestBase(q, got), latency)
		metrics.RecordProviderSearch(name, "success", latency)
		candidates = got

		if raw, err := json.Marshal(candidates); err == nil {
			a.cache.Set(ctx, key, raw, a.cfg.TTLFor(name))
		}
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if !a.usable(ctx, q, c) {
			continue
		}
		base := providers.Score(q, c)
		bias := a.cfg.BiasFor(name)
		results = append(results, Result{
			Candidate: c,
			BaseScore: base,
			Bias:      bias,
			Effective: base + bias,
			Latency:   latency,
			FromCache: fromCache,
		})
	}
	return results
}

// usable applies the blacklist, language and kind filters.
func (a *Aggregator) usable(ctx context.Context, q providers.Query, c providers.Candidate) bool {
	if c.Language != "" && !strings.EqualFold(baseLang(c.Language), baseLang(q.Language)) {
		return false
	}
	if q.Kind != "" {
		if kind, _ := c.DetectKind(); kind != q.Kind {
			return false
		}
	}
	banned, err := a.blacklist.Contains(ctx, c.ProviderName, c.ExternalID)
	if err != nil {
		a.logger.Warn().Err(err).Msg("blacklist lookup failed")
		return true
	}
	return !banned
}

func baseLang(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i]
	}
	return tag
}

// bestBase feeds the ledger's rolling score average with the strongest
// unbiased match of the run, zero when nothing came back.
func bestBase(q providers.Query, candidates []providers.Candidate) int {
	best := 0
	for _, c := range candidates {
		if s := providers.Score(q, c); s > best {
			best = s
		}
	}
	return best
}

func (a *Aggregator) recordSuccess(ctx context.Context, name string, score int, latency time.Duration) {
	cb := a.breakers.For(name)
	before := cb.Status().State
	cb.RecordSuccess()
	a.emitBreakerChange(name, before, cb.Status().State)

	if err := a.stats.RecordSuccess(ctx, name, score, latency); err != nil {
		a.logger.Warn().Err(err).Str("provider", name).Msg("provider ledger update failed")
	}
}

func (a *Aggregator) recordFailure(ctx context.Context, name string, latency time.Duration) {
	cb := a.breakers.For(name)
	before := cb.Status().State
	cb.RecordFailure()
	a.emitBreakerChange(name, before, cb.Status().State)
	metrics.RecordProviderSearch(name, "error", latency)

	until := time.Now().Add(a.cfg.ProviderDisableFor)
	if err := a.stats.RecordFailure(ctx, name, latency, a.cfg.ProviderDisableAfter, until); err != nil {
		a.logger.Warn().Err(err).Str("provider", name).Msg("provider ledger update failed")
	}
}

func (a *Aggregator) emitBreakerChange(name string, before, after resilience.State) {
	if before == after || a.bus == nil {
		return
	}
	a.bus.Emit(events.ProviderBreakerChanged, map[string]any{
		"provider": name,
		"state":    string(after),
	})
}
