// SPDX-License-Identifier: MIT

package scheduler

import (
	"math/rand"
	"time"
)

// Backoff returns the wait before retry number searchCount (1-based). The
// deterministic core doubles per attempt and saturates at the ceiling; the jitter
// spreads retries to ±50% of the core so failing items do not thunder in
// lockstep. The jittered value never exceeds the ceiling.
func Backoff(base, ceiling time.Duration, searchCount int, rnd func() float64) time.Duration {
	if searchCount < 1 {
		searchCount = 1
	}
	if base <= 0 {
		base = time.Minute
	}

	core := base
	for i := 1; i < searchCount; i++ {
		if core >= ceiling/2 {
			core = ceiling
			break
		}
		core *= 2
	}
	if core > ceiling {
		core = ceiling
	}

	if rnd == nil {
		rnd = rand.Float64
	}
	jittered := time.Duration(float64(core) * (0.5 + rnd()))
	if jittered > ceiling {
		jittered = ceiling
	}
	return jittered
}
