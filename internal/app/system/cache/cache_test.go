package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "contacts:a:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "contacts:a:1", []byte("one")))
	require.NoError(t, c.Set(ctx, "contacts:a:2", []byte("two")))
	require.NoError(t, c.Set(ctx, "contacts:b:1", []byte("other")))

	v, ok, err := c.Get(ctx, "contacts:a:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one", string(v))

	require.NoError(t, c.InvalidatePrefix(ctx, "contacts:a:"))

	_, ok, _ = c.Get(ctx, "contacts:a:1")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "contacts:a:2")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "contacts:b:1")
	assert.True(t, ok, "other church's entries must survive")

	g, err := c.Generation(ctx, "contacts:a")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), g)
	require.NoError(t, c.Bump(ctx, "contacts:a"))
	require.NoError(t, c.Bump(ctx, "contacts:a"))
	g, err = c.Generation(ctx, "contacts:a")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), g)

	// Dropping cached entries must not rewind the counter.
	require.NoError(t, c.InvalidatePrefix(ctx, "contacts:"))
	g, _ = c.Generation(ctx, "contacts:a")
	assert.Equal(t, uint64(2), g)
	g, _ = c.Generation(ctx, "contacts:b")
	assert.Equal(t, uint64(0), g)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory(64, time.Minute))
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedis(context.Background(), "redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	defer c.Close()

	exercise(t, c)
}

func TestRedis_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedis(context.Background(), "redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(16, time.Minute)

	type row struct{ Name string }
	require.NoError(t, SetJSON(ctx, c, "k", []row{{Name: "Ada"}}))

	var got []row
	assert.True(t, GetJSON(ctx, c, "k", &got))
	assert.Equal(t, "Ada", got[0].Name)

	assert.False(t, GetJSON(ctx, c, "missing", &got))
	assert.False(t, GetJSON(ctx, Nop{}, "k", &got))
}

func TestOpen(t *testing.T) {
	c, err := Open(context.Background(), Config{Backend: "memory", Size: 10, TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = Open(context.Background(), Config{Backend: "off"})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)

	_, err = Open(context.Background(), Config{Backend: "memcached"})
	assert.Error(t, err)
}
