package relay

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRegistry_RegisterResolve(t *testing.T) {
	ctx := context.Background()
	reg := NewInMemoryRegistry(time.Hour, nil)

	tok, err := reg.Register(ctx, "https://origin/a/index.m3u8")
	require.NoError(t, err)
	assert.Equal(t, NewToken("https://origin/a/index.m3u8"), tok)

	again, err := reg.Register(ctx, "https://origin/a/index.m3u8")
	require.NoError(t, err)
	assert.Equal(t, tok, again, "re-registration must be idempotent")
	assert.Equal(t, 1, reg.Len(ctx))

	got, err := reg.Resolve(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "https://origin/a/index.m3u8", got)
}

func TestInMemoryRegistry_Resolve_unknown(t *testing.T) {
	reg := NewInMemoryRegistry(time.Hour, nil)
	_, err := reg.Resolve(context.Background(), "deadbeef00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryRegistry_expired_then_not_found(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	reg := NewInMemoryRegistry(time.Hour, clock.Now)

	tok, err := reg.Register(ctx, "https://origin/live.m3u8")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = reg.Resolve(ctx, tok)
	require.NoError(t, err, "exactly TTL old is still valid")

	clock.Advance(time.Second)
	_, err = reg.Resolve(ctx, tok)
	assert.ErrorIs(t, err, ErrExpired)

	_, err = reg.Resolve(ctx, tok)
	assert.ErrorIs(t, err, ErrNotFound, "the expired entry is evicted by the first lookup")
	assert.Equal(t, 0, reg.Len(ctx))
}

func TestInMemoryRegistry_reregister_refreshes(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	reg := NewInMemoryRegistry(time.Hour, clock.Now)

	tok, _ := reg.Register(ctx, "https://origin/seg1.ts")
	clock.Advance(50 * time.Minute)
	_, _ = reg.Register(ctx, "https://origin/seg1.ts")
	clock.Advance(50 * time.Minute)

	got, err := reg.Resolve(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "https://origin/seg1.ts", got)
}

func TestInMemoryRegistry_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	reg := NewInMemoryRegistry(time.Hour, clock.Now)

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

func TestInMemoryRegistry_concurrent(t *testing.T) {
	ctx := context.Background()
	reg := NewInMemoryRegistry(time.Hour, nil)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				u := "https://origin/seg" + strconv.Itoa(i) + ".ts"
				tok, err := reg.Register(ctx, u)
				if err != nil {
					t.Error(err)
					return
				}
				if got, err := reg.Resolve(ctx, tok); err != nil || got != u {
					t.Errorf("resolve %s: got %q, %v", tok, got, err)
					return
				}
				if g == 0 && i%50 == 0 {
					reg.Sweep(ctx, time.Now())
				}
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 200, reg.Len(ctx))
}
