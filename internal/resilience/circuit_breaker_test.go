// SPDX-License-Identifier: MIT

package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(t *testing.T, threshold int, cooldown time.Duration) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	return New("test-provider", threshold, cooldown, WithClock(clk)), clk
}

func TestBreakerStartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(t, 3, time.Minute)

	assert.True(t, cb.AllowRequest())
	assert.Equal(t, StateClosed, cb.Status().State)
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(t, 3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.Status().State, "below threshold must stay closed")

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.Status().State)
	assert.False(t, cb.AllowRequest(), "open breaker must reject")
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	cb, clk := newTestBreaker(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.False(t, cb.AllowRequest())

	// 61s later the next read must flip the state, without any timer.
	clk.Advance(61 * time.Second)
	assert.True(t, cb.AllowRequest())
	assert.Equal(t, StateHalfOpen, cb.Status().State)
}

func TestBreakerProbeOutcomes(t *testing.T) {
	t.Run("success closes", func(t *testing.T) {
		cb, clk := newTestBreaker(t, 3, time.Minute)
		for i := 0; i < 3; i++ {
			cb.RecordFailure()
		}
		clk.Advance(61 * time.Second)
		require.True(t, cb.AllowRequest())

		cb.RecordSuccess()
		s := cb.Status()
		assert.Equal(t, StateClosed, s.State)
		assert.Zero(t, s.Failures)
	})

	t.Run("failure reopens", func(t *testing.T) {
		cb, clk := newTestBreaker(t, 3, time.Minute)
		for i := 0; i < 3; i++ {
			cb.RecordFailure()
		}
		clk.Advance(61 * time.Second)
		require.True(t, cb.AllowRequest())

		cb.RecordFailure()
		assert.Equal(t, StateOpen, cb.Status().State)
		assert.False(t, cb.AllowRequest())
	})
}

func TestBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(t, 1, time.Hour)

	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.Status().State)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.Status().State)
	assert.True(t, cb.AllowRequest())
}

func TestBreakerExecute(t *testing.T) {
	cb, _ := newTestBreaker(t, 2, time.Hour)
	boom := errors.New("upstream boom")

	require.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	require.ErrorIs(t, cb.Execute(func() error { return boom }), boom)

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerConcurrentFailuresAccumulate(t *testing.T) {
	cb, _ := newTestBreaker(t, 100, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.RecordFailure()
		}()
	}
	wg.Wait()

	s := cb.Status()
	assert.Equal(t, StateOpen, s.State)
	assert.Equal(t, 100, s.Failures)
}

func TestRegistryHandsOutOneBreakerPerProvider(t *testing.T) {
	r := NewRegistry(3, time.Minute)

	a := r.For("opensubtitles")
	b := r.For("opensubtitles")
	c := r.For("gestdown")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)

	a.RecordFailure()
	snaps := r.Snapshots()
	require.Contains(t, snaps, "opensubtitles")
	assert.Equal(t, 1, snaps["opensubtitles"].Failures)
}
