package http

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopCache(t *testing.T) {
	ctx := context.Background()
	var c ResultCache = NopCache{}

	key, err := c.Key(ctx, "type=T")
	require.NoError(t, err)
	assert.Equal(t, "type=T", key)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("ELEMENTS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ELEMENTS_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	c := NewRedisCache(client, time.Minute)
	query := "type=T && created>" + time.Now().Format(time.RFC3339Nano)

	key, err := c.Key(ctx, query)
	require.NoError(t, err)
	assert.Contains(t, key, query)

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte(`[]`)))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`[]`), got)

	require.NoError(t, c.Invalidate(ctx))
	key, err = c.Key(ctx, query)
	require.NoError(t, err)
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheSetAfterInvalidate(t *testing.T) {
	addr := os.Getenv("ELEMENTS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ELEMENTS_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	c := NewRedisCache(client, time.Minute)
	query := "name=stale-" + time.Now().Format(time.RFC3339Nano)

	before, err := c.Key(ctx, query)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, before, []byte(`[]`)))

	after, err := c.Key(ctx, query)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	_, ok, err := c.Get(ctx, after)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRequestValidation(t *testing.T) {
	assert.NoError(t, elementRequest{OwnerID: "o", Type: "T", Name: "n"}.validate())

	err := elementRequest{Name: " "}.validate()
	require.Error(t, err)
	assert.Equal(t, "invalid element: ownerId is required; type is required; name is required", err.Error())
}
