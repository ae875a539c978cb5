package cache

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.QueryCache = (*Memory)(nil)

// Memory is an in-process QueryCache for deployments without Redis.
// Expired entries are evicted lazily on Get and wholesale once the map
// grows past maxEntries.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	result    *domain.QueryResult
	expiresAt time.Time
}

// maxEntries bounds memory use; when exceeded, the next Set sweeps expired
// entries and, if that is not enough, drops the whole cache.
const maxEntries = 4096

// NewMemory creates an in-process query cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

// Get returns the cached result for the key, or (nil, false) on a miss.
func (m *Memory) Get(ctx context.Context, key string) (*domain.QueryResult, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; another Set may have refreshed it.
		if cur, ok := m.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.result, true
}

// Set stores a result under the key for the given TTL.
func (m *Memory) Set(ctx context.Context, key string, result *domain.QueryResult, ttl time.Duration) {
	if result == nil || ttl <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= maxEntries {
		m.sweepLocked()
		if len(m.entries) >= maxEntries {
			m.entries = make(map[string]entry)
		}
	}

	m.entries[key] = entry{
		result:    result,
		expiresAt: time.Now().Add(ttl),
	}
}

// Len returns the number of live entries. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) sweepLocked() {
	now := time.Now()
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}
