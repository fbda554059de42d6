package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCacheEnv(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mini := miniredis.RunT(t)
	return mini, redis.NewClient(&redis.Options{Addr: mini.Addr()})
}

func TestCacheRoundTrip(t *testing.T) {
	_, rdb := newCacheEnv(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	var out payload
	found, err := GetCache(ctx, rdb, "missing", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetCache(ctx, rdb, "entry", payload{Name: "wallet", Count: 3}, time.Minute))
	found, err = GetCache(ctx, rdb, "entry", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "wallet", out.Name)
	assert.Equal(t, 3, out.Count)

	require.NoError(t, DeleteCache(ctx, rdb, "entry"))
	found, err = GetCache(ctx, rdb, "entry", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheTTLExpiry(t *testing.T) {
	mini, rdb := newCacheEnv(t)
	ctx := context.Background()

	require.NoError(t, SetCache(ctx, rdb, "short", "value", time.Second))
	mini.FastForward(2 * time.Second)

	var out string
	found, err := GetCache(ctx, rdb, "short", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteCachePrefix(t *testing.T) {
	_, rdb := newCacheEnv(t)
	ctx := context.Background()

	for _, key := range []string{"txhistory:user:1:page:1", "txhistory:user:1:page:2", "txhistory:user:2:page:1"} {
		require.NoError(t, SetCache(ctx, rdb, key, "x", time.Minute))
	}

	require.NoError(t, DeleteCachePrefix(ctx, rdb, "txhistory:user:1"))

	var out string
	found, _ := GetCache(ctx, rdb, "txhistory:user:1:page:1", &out)
	assert.False(t, found)
	found, _ = GetCache(ctx, rdb, "txhistory:user:1:page:2", &out)
	assert.False(t, found)
	// Other users' entries are untouched
	found, _ = GetCache(ctx, rdb, "txhistory:user:2:page:1", &out)
	assert.True(t, found)
}
