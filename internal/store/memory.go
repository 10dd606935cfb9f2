package store

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds the in-memory store.
const DefaultMemoryEntries = 4096

type entry struct {
	value   string
	expires time.Time
}

// MemoryStore keeps entries in a bounded LRU. Expired entries are dropped
// lazily on access.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, entry]
	clock clock.Clock
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding at most size entries.
func NewMemoryStore(size int, clk clock.Clock) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	if clk == nil {
		clk = clock.New()
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{cache: c, clock: clk}, nil
}

func (m *MemoryStore) live(key string) (entry, bool) {
	e, ok := m.cache.Get(key)
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !m.clock.Now().Before(e.expires) {
		m.cache.Remove(key)
		return entry{}, false
	}
	return e, true
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.clock.Now().Add(ttl)
	}
	m.mu.Lock()
	m.cache.Add(key, e)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Take(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", ErrNotFound
	}
	m.cache.Remove(key)
	return e.value, nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.cache.Remove(k)
	}
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len reports the number of entries, including expired ones not yet evicted.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.cache.Purge()
	m.mu.Unlock()
	return nil
}
