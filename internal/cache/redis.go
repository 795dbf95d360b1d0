// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kzmx/subarr/internal/metrics"
)

// scanBatch is the COUNT hint for the incremental Clear scan. Clearing in
// cursor batches keeps concurrent readers unblocked.
const scanBatch = 500

const opTimeout = 2 * time.Second

// redisCache is the shared backend. Every key carries the process-wide
// namespace prefix so several services can share one redis database.
type redisCache struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
	stats  struct {
		hits      atomic.Int64
		misses    atomic.Int64
		sets      atomic.Int64
		evictions atomic.Int64
	}
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedis connects to redis and returns the shared cache backend. The
// connection is verified with a ping; any failure is returned so the caller
// can fall back to the in-process backend.
func NewRedis(cfg RedisConfig, logger zerolog.Logger) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to redis response cache")
	return &redisCache{client: client, prefix: cfg.KeyPrefix, logger: logger}, nil
}

func (c *redisCache) key(k string) string { return c.prefix + k }

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		c.stats.misses.Add(1)
		metrics.RecordCacheOp("redis", "get", "miss")
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		c.stats.misses.Add(1)
		metrics.RecordCacheOp("redis", "get", "error")
		return nil, false
	}
	c.stats.hits.Add(1)
	metrics.RecordCacheOp("redis", "get", "hit")
	return val, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
		metrics.RecordCacheOp("redis", "set", "error")
		return
	}
	c.stats.sets.Add(1)
	metrics.RecordCacheOp("redis", "set", "ok")
}

func (c *redisCache) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis delete failed")
	}
}

func (c *redisCache) Exists(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis exists failed")
		return false
	}
	return n > 0
}

// Clear walks matching keys with an incremental cursor scan and deletes them
// batch by batch. Keys written concurrently may or may not be removed; only
// keys that matched at some point during the scan are promised gone.
func (c *redisCache) Clear(ctx context.Context, prefix string) int {
	match := c.key(prefix) + "*"
	deleted := 0
	var cursor uint64

	for {
		scanCtx, cancel := context.WithTimeout(ctx, opTimeout)
		keys, next, err := c.client.Scan(scanCtx, cursor, match, scanBatch).Result()
		cancel()
		if err != nil {
			c.logger.Warn().Err(err).Str("prefix", prefix).Msg("redis scan failed during clear")
			break
		}
		if len(keys) > 0 {
			delCtx, cancel := context.WithTimeout(ctx, opTimeout)
			n, err := c.client.Del(delCtx, keys...).Result()
			cancel()
			if err != nil {
				c.logger.Warn().Err(err).Msg("redis delete batch failed during clear")
			} else {
				deleted += int(n)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.stats.evictions.Add(int64(deleted))
	return deleted
}

func (c *redisCache) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	size := 0
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			break
		}
		size += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	metrics.SetCacheSize("redis", size)
	return Stats{
		Backend:     "redis",
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Sets:        c.stats.sets.Load(),
		Evictions:   c.stats.evictions.Load(),
		CurrentSize: size,
	}
}

// Close releases the redis connection pool.
func (c *redisCache) Close() error { return c.client.Close() }
