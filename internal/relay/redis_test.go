package relay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livehostne/player/internal/platform/logger"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	client.Close()

	_, err = NewRedisClient(context.Background(), RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisRegistry_RegisterResolve(t *testing.T) {
	ctx := context.Background()
	mr, client := setupMiniRedis(t)
	reg := NewRedisRegistry(client, time.Hour, nil)

	tok, err := reg.Register(ctx, "https://origin/a/index.m3u8")
	require.NoError(t, err)
	assert.Equal(t, NewToken("https://origin/a/index.m3u8"), tok)
	assert.True(t, mr.Exists(redisURLPrefix+string(tok)))
	assert.Equal(t, 2*time.Hour, mr.TTL(redisURLPrefix+string(tok)))

	got, err := reg.Resolve(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "https://origin/a/index.m3u8", got)
	assert.Equal(t, 1, reg.Len(ctx))

	_, err = reg.Resolve(ctx, "0000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRegistry_expired_then_not_found(t *testing.T) {
	ctx := context.Background()
	_, client := setupMiniRedis(t)
	clock := newFakeClock()
	reg := NewRedisRegistry(client, time.Hour, clock.Now)

	tok, err := reg.Register(ctx, "https://origin/live.m3u8")
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)
	_, err = reg.Resolve(ctx, tok)
	assert.ErrorIs(t, err, ErrExpired)
	_, err = reg.Resolve(ctx, tok)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRegistry_Sweep(t *testing.T) {
	ctx := context.Background()
	_, client := setupMiniRedis(t)
	clock := newFakeClock()
	reg := NewRedisRegistry(client, time.Hour, clock.Now)

	old, _ := reg.Register(ctx, "https://origin/old.ts")
	clock.Advance(40 * time.Minute)
	fresh, _ := reg.Register(ctx, "https://origin/fresh.ts")
	clock.Advance(21 * time.Minute)

	n, err := reg.Sweep(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = reg.Resolve(ctx, old)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = reg.Resolve(ctx, fresh)
	assert.NoError(t, err)
}

func TestRedisContentCache(t *testing.T) {
	_, client := setupMiniRedis(t)
	clock := newFakeClock()
	contentCacheContract(t, clock, NewRedisContentCache(client, time.Hour, clock.Now, logger.Discard()))
}

func TestRedisContentCache_binary_payload(t *testing.T) {
	ctx := context.Background()
	_, client := setupMiniRedis(t)
	c := NewRedisContentCache(client, time.Hour, nil, logger.Discard())

	payload := []byte{0x47, 0x40, 0x00, 0x10, 0x00, 0x00, 0xb0, 0x0d, 0x00, 0x01}
	c.Put(ctx, SegmentKey("s1"), payload)

	got, ok := c.GetFresh(ctx, SegmentKey("s1"), time.Hour)
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestRedisContentCache_unavailable_is_miss(t *testing.T) {
	ctx := context.Background()
	mr, client := setupMiniRedis(t)
	c := NewRedisContentCache(client, time.Hour, nil, logger.Discard())

	c.Put(ctx, ManifestKey("m1"), []byte("#EXTM3U"))
	mr.Close()

	_, ok := c.GetFresh(ctx, ManifestKey("m1"), time.Hour)
	assert.False(t, ok)
}
