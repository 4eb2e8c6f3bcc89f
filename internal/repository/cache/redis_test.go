package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Total string `json:"total"`
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, nil), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	var got sample
	hit, err := c.GetJSON(ctx, DashboardKey, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetJSON(ctx, DashboardKey, sample{Name: "all", Total: "12.50"}, time.Minute))
	hit, err = c.GetJSON(ctx, DashboardKey, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, sample{Name: "all", Total: "12.50"}, got)

	mr.FastForward(2 * time.Minute)
	hit, err = c.GetJSON(ctx, DashboardKey, &got)
	require.NoError(t, err)
	assert.False(t, hit, "value expires after ttl")
}

func TestRedisCacheDelete(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.SetJSON(ctx, PrincipalKey(4), sample{Name: "kim"}, 0))
	assert.True(t, mr.Exists("principal:4"))

	require.NoError(t, c.Delete(ctx, PrincipalKey(4), DashboardKey))
	assert.False(t, mr.Exists("principal:4"))
	require.NoError(t, c.Delete(ctx))
}

func TestRedisCacheDropsCorruptValues(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(DashboardKey, "{not json"))

	var got sample
	hit, err := c.GetJSON(ctx, DashboardKey, &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists(DashboardKey))
}

func TestConnectFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Connect(ctx, addr)
	assert.Error(t, err)
}
