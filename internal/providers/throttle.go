// SPDX-License-Identifier: MIT

package providers

import (
	"context"

	"golang.org/x/time/rate"
)

// throttled wraps a provider with a shared request budget so search and
// download traffic together stay under the remote's politeness limit.
type throttled struct {
	Provider
	limiter *rate.Limiter
}

// Throttle caps a provider at perMinute requests per minute. A zero or
// negative cap returns the provider unchanged.
func Throttle(p Provider, perMinute int) Provider {
	if perMinute <= 0 {
		return p
	}
	return &throttled{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	}
}

func (t *throttled) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.Provider.Search(ctx, q)
}

func (t *throttled) Download(ctx context.Context, c Candidate) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.Provider.Download(ctx, c)
}

// Configure forwards to the wrapped provider so throttling stays
// transparent to the registry.
func (t *throttled) Configure(settings map[string]string) error {
	if c, ok := t.Provider.(Configurable); ok {
		return c.Configure(settings)
	}
	return nil
}
