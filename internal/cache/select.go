// SPDX-License-Identifier: MIT

package cache

import (
	"github.com/rs/zerolog"
)

// Select picks the cache backend at startup: redis when configured and
// reachable, otherwise the in-process fallback with a logged warning. The
// choice is fixed for the process lifetime.
func Select(cfg RedisConfig, logger zerolog.Logger) Cache {
	if cfg.Addr == "" {
		logger.Info().Msg("no redis configured, using in-process response cache")
		return NewMemory()
	}

	c, err := NewRedis(cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).
			Msg("redis unavailable, falling back to in-process response cache")
		return NewMemory()
	}
	return c
}
