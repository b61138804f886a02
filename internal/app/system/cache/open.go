// internal/app/system/cache/open.go
package cache

import (
	"context"
	"fmt"
)

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.Size, cfg.TTL), nil
	case "redis":
		r, err := NewRedis(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "off":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
