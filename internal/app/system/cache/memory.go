// internal/app/system/cache/memory.go
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is an in-process expiring LRU. Generations live outside the LRU
// so eviction never rewinds them.
type Memory struct {
	lru *lru.LRU[string, []byte]

	mu   sync.Mutex
	gens map[string]uint64
}

func NewMemory(size int, ttl time.Duration) *Memory {
	if size < 16 {
		size = 16
	}
	return &Memory{lru: lru.NewLRU[string, []byte](size, nil, ttl), gens: map[string]uint64{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte) error {
	m.lru.Add(key, val)
	return nil
}

func (m *Memory) InvalidatePrefix(_ context.Context, prefix string) error {
	for _, k := range m.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			m.lru.Remove(k)
		}
	}
	return nil
}

func (m *Memory) Generation(_ context.Context, scope string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[scope], nil
}

func (m *Memory) Bump(_ context.Context, scope string) error {
	m.mu.Lock()
	m.gens[scope]++
	m.mu.Unlock()
	return nil
}
