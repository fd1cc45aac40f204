package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time
	tags    []string
}

// MemoryCache keeps entries in process. Expired entries are dropped lazily on read
// and on every Set. Tag versions and the tag index change under one lock, which is
// what SetFresh needs to compare and store atomically.
type MemoryCache struct {
	mu       sync.Mutex
	entries  map[string]entry
	tags     map[string]map[string]struct{} // tag -> keys
	versions map[string]int64
	now      func() time.Time
}

func NewMemory() *MemoryCache {
	return &MemoryCache{
		entries:  make(map[string]entry),
		tags:     make(map[string]map[string]struct{}),
		versions: make(map[string]int64),
		now:      time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		m.remove(key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(key, value, ttl, tags)
	return nil
}

func (m *MemoryCache) Stamp(_ context.Context, tags ...string) (Stamp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stamp := make(Stamp, len(tags))
	for _, tag := range tags {
		stamp[tag] = m.versions[tag]
	}
	return stamp, nil
}

func (m *MemoryCache) SetFresh(_ context.Context, key string, value []byte, ttl time.Duration, stamp Stamp, tags ...string) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for tag, version := range stamp {
		if m.versions[tag] != version {
			return false, nil
		}
	}
	m.store(key, value, ttl, tags)
	return true, nil
}

// store replaces key; caller holds mu.
func (m *MemoryCache) store(key string, value []byte, ttl time.Duration, tags []string) {
	m.expire()
	m.remove(key)

	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = entry{value: stored, expires: m.now().Add(ttl), tags: tags}
	for _, tag := range tags {
		keys, ok := m.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

func (m *MemoryCache) Invalidate(_ context.Context, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tag := range tags {
		m.versions[tag]++
		for key := range m.tags[tag] {
			m.remove(key)
		}
		delete(m.tags, tag)
	}
	return nil
}

func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// remove deletes key and its tag references; caller holds mu.
func (m *MemoryCache) remove(key string) {
	e, ok := m.entries[key]
	if !ok {
		return
	}
	delete(m.entries, key)
	for _, tag := range e.tags {
		keys := m.tags[tag]
		delete(keys, key)
		if len(keys) == 0 {
			delete(m.tags, tag)
		}
	}
}

func (m *MemoryCache) expire() {
	now := m.now()
	for key, e := range m.entries {
		if !now.Before(e.expires) {
			m.remove(key)
		}
	}
}
