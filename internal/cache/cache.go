// Package cache stores backend responses keyed by exact request equality.
//
// DESIGN: Entries expire lazily (checked on lookup, never swept). When the
// cache is full, Store evicts the entry with the oldest StoredAt, ties broken
// by the smaller key. This is store-time eviction rather than access-order
// LRU: reuse comes from repeated identical requests, not recency of access.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/compresr/assist-gateway/internal/config"
	"github.com/compresr/assist-gateway/internal/utils"
)

// Entry is a cached backend response.
type Entry struct {
	Key      string
	Response json.RawMessage
	StoredAt time.Time
}

// Stats holds cache performance counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// Manager is the response cache. Safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	enabled    bool
	ttl        time.Duration
	maxEntries int
	entries    map[string]*Entry
	stats      Stats
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a cache from the cache settings.
func New(cfg config.CacheConfig, opts ...Option) *Manager {
	m := &Manager{
		enabled:    cfg.Enabled,
		ttl:        time.Duration(cfg.TTLSeconds) * time.Second,
		maxEntries: cfg.MaxEntries,
		entries:    make(map[string]*Entry),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DeriveKey hashes endpoint and the canonical form of body into a hex key.
func DeriveKey(endpoint string, body any) (string, error) {
	canonical, err := utils.CanonicalJSON(body)
	if err != nil {
		return "", fmt.Errorf("deriving cache key: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(endpoint))
	h.Write([]byte{'\n'})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Lookup returns the live response for (endpoint, body).
func (m *Manager) Lookup(endpoint string, body any) (json.RawMessage, bool) {
	key, err := DeriveKey(endpoint, body)
	if err != nil {
		m.recordMiss()
		return nil, false
	}
	return m.Get(key)
}

// Get returns the live response stored under key.
func (m *Manager) Get(key string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		m.stats.Misses++
		return nil, false
	}

	e, ok := m.entries[key]
	if !ok {
		m.stats.Misses++
		return nil, false
	}
	if m.now().Sub(e.StoredAt) >= m.ttl {
		delete(m.entries, key)
		m.stats.Misses++
		log.Debug().Str("key", shortKey(key)).Msg("cache: entry expired")
		return nil, false
	}

	m.stats.Hits++
	return e.Response, true
}

// Store saves response under (endpoint, body).
func (m *Manager) Store(endpoint string, body any, response json.RawMessage) error {
	if !m.enabled {
		return nil
	}
	key, err := DeriveKey(endpoint, body)
	if err != nil {
		return err
	}
	m.Put(key, response)
	return nil
}

// Put saves response under key, evicting the oldest entry when full.
func (m *Manager) Put(key string, response json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}

	now := m.now()
	if e, ok := m.entries[key]; ok {
		e.Response = response
		e.StoredAt = now
		return
	}

	for len(m.entries) >= m.maxEntries && len(m.entries) > 0 {
		m.evictOldestLocked()
	}

	m.entries[key] = &Entry{Key: key, Response: response, StoredAt: now}
}

// Clear drops every entry and resets hit/miss counters.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*Entry)
	m.stats = Stats{}
}

// Len returns the number of stored entries, expired ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns a snapshot of cache counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Entries = len(m.entries)
	return s
}

func (m *Manager) recordMiss() {
	m.mu.Lock()
	m.stats.Misses++
	m.mu.Unlock()
}

func (m *Manager) evictOldestLocked() {
	var oldest *Entry
	for _, e := range m.entries {
		if oldest == nil ||
			e.StoredAt.Before(oldest.StoredAt) ||
			(e.StoredAt.Equal(oldest.StoredAt) && e.Key < oldest.Key) {
			oldest = e
		}
	}
	if oldest == nil {
		return
	}
	delete(m.entries, oldest.Key)
	m.stats.Evictions++
	log.Debug().Str("key", shortKey(oldest.Key)).Msg("cache: evicted oldest entry")
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
