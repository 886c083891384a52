package http

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheExpiration = 30 * time.Second
	cacheGenerationKey     = "elements:query:generation"
)

// ResultCache stores serialized list responses keyed by canonical query.
// A request resolves its key once with Key and uses it for both Get and Set,
// so a result read before an Invalidate is never stored where later
// requests look.
type ResultCache interface {
	Key(ctx context.Context, query string) (string, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Invalidate drops every stored result.
	Invalidate(ctx context.Context) error
}

type NopCache struct{}

func (NopCache) Key(_ context.Context, query string) (string, error) { return query, nil }
func (NopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, string, []byte) error         { return nil }
func (NopCache) Invalidate(context.Context) error                  { return nil }

// RedisCache namespaces entries by a generation counter, so invalidation is a
// single INCR and stale entries simply expire.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheExpiration
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, cacheGenerationKey).Err()
}

// Key namespaces query under the current generation.
func (c *RedisCache) Key(ctx context.Context, query string) (string, error) {
	gen, err := c.client.Get(ctx, cacheGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("elements:query:%d:q=%s", gen, query), nil
}
