// Package cache provides a small read-through store for idempotent API
// responses, so repeated identical calls skip the dispatcher entirely.
package cache

import (
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry is a cached response with expiration.
type entry struct {
	data      json.RawMessage
	expiresAt time.Time
}

// Memory is an in-memory LRU cache with TTL support.
type Memory struct {
	cache *lru.Cache[string, *entry]
	ttl   time.Duration
	mu    sync.RWMutex
	stop  chan struct{}
	once  sync.Once
}

// NewMemory creates a cache holding up to size entries, each valid for ttl.
func NewMemory(size int, ttl time.Duration) (*Memory, error) {
	c, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, err
	}
	m := &Memory{
		cache: c,
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go m.cleanupLoop()
	return m, nil
}

// Get retrieves a value, dropping it if expired.
func (m *Memory) Get(key string) (json.RawMessage, bool) {
	m.mu.RLock()
	e, ok := m.cache.Get(key)
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		m.cache.Remove(key)
		m.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

// Set stores a value with the configured TTL.
func (m *Memory) Set(key string, data json.RawMessage) {
	m.mu.Lock()
	m.cache.Add(key, &entry{data: data, expiresAt: time.Now().Add(m.ttl)})
	m.mu.Unlock()
}

// Len returns the number of entries, expired ones included until cleanup.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache.Len()
}

// Close stops the background cleanup.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
}

// cleanupLoop periodically evicts expired entries so they do not linger
// holding LRU slots.
func (m *Memory) cleanupLoop() {
	interval := m.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *Memory) cleanup() {
	now := time.Now()
	m.mu.Lock()
	for _, key := range m.cache.Keys() {
		if e, ok := m.cache.Peek(key); ok && now.After(e.expiresAt) {
			m.cache.Remove(key)
		}
	}
	m.mu.Unlock()
}
