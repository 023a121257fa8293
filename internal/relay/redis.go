package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisURLPrefix     = "relay:url:"
	redisContentPrefix = "relay:content:"
	redisOpTimeout     = 2 * time.Second
	redisScanCount     = 256
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // host:port
	Password string // optional
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// RedisRegistry is a Registry backed by one Redis hash per token. Keys carry a
// Redis expiry of twice the TTL so that stale entries are still visible as
// "expired" to Resolve until the sweeper or Redis removes them.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
	now    Clock
}

// NewRedisRegistry returns a registry using client. If ttl <= 0, DefaultURLTTL is used.
func NewRedisRegistry(client *redis.Client, ttl time.Duration, clock Clock) *RedisRegistry {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	return &RedisRegistry{client: client, ttl: ttl, now: orNow(clock)}
}

// Register implements Registry.Register.
func (r *RedisRegistry) Register(ctx context.Context, url string) (Token, error) {
	token := NewToken(url)
	key := redisURLPrefix + string(token)

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "url", url, "created_at", r.now().UnixNano())
		pipe.PExpire(ctx, key, 2*r.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("register %s: %w", token, err)
	}
	return token, nil
}

// Resolve implements Registry.Resolve.
func (r *RedisRegistry) Resolve(ctx context.Context, token Token) (string, error) {
	key := redisURLPrefix + string(token)

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", token, err)
	}
	e, ok := decodeEntry(token, fields)
	if !ok {
		return "", ErrNotFound
	}
	if !e.expired(r.now(), r.ttl) {
		return e.URL, nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return "", fmt.Errorf("evict %s: %w", token, err)
	}
	return "", ErrExpired
}

// Sweep implements Registry.Sweep.
func (r *RedisRegistry) Sweep(ctx context.Context, now time.Time) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, redisURLPrefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return n, fmt.Errorf("sweep %s: %w", key, err)
		}
		e, ok := decodeEntry(Token(key[len(redisURLPrefix):]), fields)
		if ok && !e.expired(now, r.ttl) {
			continue
		}
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return n, fmt.Errorf("sweep %s: %w", key, err)
		}
		n++
	}
	return n, iter.Err()
}

// Len implements Registry.Len.
func (r *RedisRegistry) Len(ctx context.Context) int {
	return countKeys(ctx, r.client, redisURLPrefix+"*")
}

func decodeEntry(token Token, fields map[string]string) (Entry, bool) {
	url, ok := fields["url"]
	if !ok {
		return Entry{}, false
	}
	ns, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Token: token, URL: url, CreatedAt: time.Unix(0, ns)}, true
}

// RedisContentCache is a ContentCache backed by Redis hashes. Lookup and store
// failures are logged and treated as misses; the relay then falls back to the
// origin.
type RedisContentCache struct {
	client *redis.Client
	maxAge time.Duration
	now    Clock
	log    *slog.Logger
}

// NewRedisContentCache returns a cache using client. If maxAge <= 0,
// DefaultContentTTL is used.
func NewRedisContentCache(client *redis.Client, maxAge time.Duration, clock Clock, log *slog.Logger) *RedisContentCache {
	if maxAge <= 0 {
		maxAge = DefaultContentTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisContentCache{client: client, maxAge: maxAge, now: orNow(clock), log: log}
}

// GetFresh implements ContentCache.GetFresh.
func (c *RedisContentCache) GetFresh(ctx context.Context, key CacheKey, ttl time.Duration) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	fields, err := c.client.HGetAll(ctx, redisContentPrefix+key.String()).Result()
	if err != nil {
		c.log.Warn("redis content get failed", slog.String("key", key.String()), slog.String("error", err.Error()))
		return nil, false
	}
	e, ok := decodeContent(fields)
	if !ok || !e.fresh(c.now(), ttl) {
		return nil, false
	}
	return e.payload, true
}

// Put implements ContentCache.Put.
func (c *RedisContentCache) Put(ctx context.Context, key CacheKey, payload []byte) {
	rkey := redisContentPrefix + key.String()

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, rkey, "payload", payload, "cached_at", c.now().UnixNano())
		pipe.PExpire(ctx, rkey, 2*c.maxAge)
		return nil
	})
	if err != nil {
		c.log.Warn("redis content put failed", slog.String("key", key.String()), slog.String("error", err.Error()))
	}
}

// Sweep implements ContentCache.Sweep.
func (c *RedisContentCache) Sweep(ctx context.Context, now time.Time) (int, error) {
	n := 0
	iter := c.client.Scan(ctx, 0, redisContentPrefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ns, err := c.client.HGet(ctx, key, "cached_at").Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return n, fmt.Errorf("sweep %s: %w", key, err)
		}
		if err == nil && now.Sub(time.Unix(0, ns)) <= c.maxAge {
			continue
		}
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return n, fmt.Errorf("sweep %s: %w", key, err)
		}
		n++
	}
	return n, iter.Err()
}

// Len implements ContentCache.Len.
func (c *RedisContentCache) Len(ctx context.Context) int {
	return countKeys(ctx, c.client, redisContentPrefix+"*")
}

func decodeContent(fields map[string]string) (contentEntry, bool) {
	payload, ok := fields["payload"]
	if !ok {
		return contentEntry{}, false
	}
	ns, err := strconv.ParseInt(fields["cached_at"], 10, 64)
	if err != nil {
		return contentEntry{}, false
	}
	return contentEntry{payload: []byte(payload), cachedAt: time.Unix(0, ns)}, true
}

func countKeys(ctx context.Context, client *redis.Client, match string) int {
	n := 0
	iter := client.Scan(ctx, 0, match, redisScanCount).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}
