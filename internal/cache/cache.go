// SPDX-License-Identifier: MIT

// Package cache provides the provider response cache with a shared redis
// backend and an in-process fallback.
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store for opaque byte values. A ttl of zero means no
// expiry. Keys are scoped by short namespace prefixes ("search:", "meta:").
type Cache interface {
	// Get retrieves a value. The second result is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores a value under the given ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes a key.
	Delete(ctx context.Context, key string)
	// Exists reports whether a live entry is present.
	Exists(ctx context.Context, key string) bool
	// Clear removes every key matching the prefix. An empty prefix clears
	// all keys visible at the start of the scan.
	Clear(ctx context.Context, prefix string) int
	// Stats returns hit/miss counters and the approximate size.
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Backend     string `json:"backend"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	Sets        int64  `json:"sets"`
	Evictions   int64  `json:"evictions"`
	CurrentSize int    `json:"current_size"`
}
