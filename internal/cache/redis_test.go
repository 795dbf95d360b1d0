// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis starts an in-process redis and a cache bound to it.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, Cache) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := NewRedis(RedisConfig{Addr: mr.Addr(), KeyPrefix: "subarr:"}, zerolog.Nop())
	require.NoError(t, err)
	return mr, c
}

func TestRedisSetGet(t *testing.T) {
	_, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "search:q1", []byte(`[{"id":"x"}]`), time.Minute)

	val, ok := c.Get(ctx, "search:q1")
	require.True(t, ok)
	assert.Equal(t, []byte(`[{"id":"x"}]`), val)
	assert.True(t, c.Exists(ctx, "search:q1"))
}

func TestRedisKeysCarryNamespacePrefix(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "search:q1", []byte("v"), time.Minute)

	assert.True(t, mr.Exists("subarr:search:q1"))
}

func TestRedisExpiry(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisClearScansInBatches(t *testing.T) {
	_, c := setupMiniRedis(t)
	ctx := context.Background()

	// More keys than one scan batch so the cursor loop has to iterate.
	for i := 0; i < scanBatch+100; i++ {
		c.Set(ctx, fmt.Sprintf("search:%d", i), []byte("v"), 0)
	}
	c.Set(ctx, "meta:keep", []byte("v"), 0)

	n := c.Clear(ctx, "search:")
	assert.Equal(t, scanBatch+100, n)
	assert.False(t, c.Exists(ctx, "search:1"))
	assert.True(t, c.Exists(ctx, "meta:keep"))
}

func TestRedisClearEmptyPrefixRemovesAll(t *testing.T) {
	_, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), 0)
	c.Set(ctx, "b", []byte("2"), 0)

	n := c.Clear(ctx, "")
	assert.Equal(t, 2, n)
	assert.Zero(t, c.Stats().CurrentSize)
}

func TestRedisUnavailableFallsBackToMemory(t *testing.T) {
	c := Select(RedisConfig{Addr: "127.0.0.1:1", KeyPrefix: "subarr:"}, zerolog.Nop())
	assert.Equal(t, "memory", c.Stats().Backend)
}

func TestSelectWithoutRedisUsesMemory(t *testing.T) {
	c := Select(RedisConfig{}, zerolog.Nop())
	assert.Equal(t, "memory", c.Stats().Backend)
}
