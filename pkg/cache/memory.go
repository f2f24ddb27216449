package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local TTL cache of block sets.
// Expired entries are dropped when read; there is no background sweep.
// It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memItem
	now   func() time.Time
}

type memItem struct {
	value map[string]string
	exp   time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memItem), now: time.Now}
}

// WithClock replaces the time source, for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(ctx context.Context, key string) (map[string]string, bool, error) {
	_ = ctx
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.now().After(it.exp) {
		m.mu.Lock()
		// re-check
		if it2, ok2 := m.items[key]; ok2 && m.now().After(it2.exp) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return copyMap(it.value), true, nil
}

// Set stores value until ttl elapses. A non-positive ttl stores an already expired entry.
func (m *Memory) Set(ctx context.Context, key string, value map[string]string, ttl time.Duration) error {
	_ = ctx
	item := memItem{value: copyMap(value), exp: m.now().Add(ttl)}
	if ttl <= 0 {
		item.exp = m.now().Add(-time.Nanosecond)
	}
	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear() {
	m.mu.Lock()
	clear(m.items)
	m.mu.Unlock()
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
