// internal/app/system/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache stores opaque values under string keys. Implementations must be
// safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	// InvalidatePrefix drops every key beginning with prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error
	// Generation returns the current counter for scope, zero if never bumped.
	Generation(ctx context.Context, scope string) (uint64, error)
	// Bump advances the counter for scope. Readers that captured the old
	// value must not store what they read.
	Bump(ctx context.Context, scope string) error
}

// Config selects and sizes a backend.
type Config struct {
	Backend  string // memory | redis | off
	RedisURL string
	TTL      time.Duration
	Size     int
}

// GetJSON decodes a cached JSON value into dst. A decode failure is
// treated as a miss.
func GetJSON(ctx context.Context, c Cache, key string, dst any) bool {
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, b)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }
func (Nop) InvalidatePrefix(context.Context, string) error    { return nil }
func (Nop) Generation(context.Context, string) (uint64, error) { return 0, nil }
func (Nop) Bump(context.Context, string) error                 { return nil }
