// SPDX-License-Identifier: MIT

package resilience

import (
	"sync"
	"time"
)

// Registry hands out one breaker per provider name, created on first use
// with shared threshold and cooldown settings.
type Registry struct {
	mu        sync.Mutex
	breakers  map[string]*CircuitBreaker
	threshold int
	cooldown  time.Duration
	opts      []Option
}

// NewRegistry creates a breaker registry.
func NewRegistry(threshold int, cooldown time.Duration, opts ...Option) *Registry {
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		cooldown:  cooldown,
		opts:      opts,
	}
}

// For returns the breaker for the given provider, creating it if needed.
func (r *Registry) For(provider string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[provider]
	if !ok {
		cb = New(provider, r.threshold, r.cooldown, r.opts...)
		r.breakers[provider] = cb
	}
	return cb
}

// Snapshots returns the status of every known breaker.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.Status()
	}
	return out
}
