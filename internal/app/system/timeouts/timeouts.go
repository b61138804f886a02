// Package timeouts holds the deadlines applied to storage work started by
// handlers and workers.
//
//   - Ping: health checks
//   - Short: single-document reads and lookups
//   - Medium: listings and single-entity writes
//   - Long: transactions spanning several collections (onboarding, invitations)
//   - Batch: purges and other bulk work
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds timeout values. Zero fields keep the current value.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Batch  time.Duration
}

// Defaults are used until Configure is called.
var Defaults = Config{
	Ping:   2 * time.Second,
	Short:  5 * time.Second,
	Medium: 10 * time.Second,
	Long:   30 * time.Second,
	Batch:  2 * time.Minute,
}

var (
	mu      sync.RWMutex
	current = Defaults
)

func get(f func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return f(current)
}

func Ping() time.Duration   { return get(func(c Config) time.Duration { return c.Ping }) }
func Short() time.Duration  { return get(func(c Config) time.Duration { return c.Short }) }
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }
func Long() time.Duration   { return get(func(c Config) time.Duration { return c.Long }) }
func Batch() time.Duration  { return get(func(c Config) time.Duration { return c.Batch }) }

// Configure overrides the non-zero values in cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	current = merge(current, cfg)
}

// Reset restores Defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = Defaults
}

// Current returns the active configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// ConfigureFromEnv applies SHEPHERD_TIMEOUT_{PING,SHORT,MEDIUM,LONG,BATCH}
// when they parse as positive durations. It returns how many were applied.
func ConfigureFromEnv() int {
	var cfg Config
	n := 0
	for name, dst := range map[string]*time.Duration{
		"SHEPHERD_TIMEOUT_PING":   &cfg.Ping,
		"SHEPHERD_TIMEOUT_SHORT":  &cfg.Short,
		"SHEPHERD_TIMEOUT_MEDIUM": &cfg.Medium,
		"SHEPHERD_TIMEOUT_LONG":   &cfg.Long,
		"SHEPHERD_TIMEOUT_BATCH":  &cfg.Batch,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
			n++
		}
	}
	Configure(cfg)
	return n
}

func merge(base, over Config) Config {
	if over.Ping > 0 {
		base.Ping = over.Ping
	}
	if over.Short > 0 {
		base.Short = over.Short
	}
	if over.Medium > 0 {
		base.Medium = over.Medium
	}
	if over.Long > 0 {
		base.Long = over.Long
	}
	if over.Batch > 0 {
		base.Batch = over.Batch
	}
	return base
}

// WithTimeout wraps context.WithTimeout and logs when the deadline, rather
// than the caller, ended the operation.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout))
		}
		cancel()
	}
}
