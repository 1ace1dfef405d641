// Package cache holds the in-memory caches of the data layer: a TTL store
// for subscription results and a bounded LRU memo for derived views.
package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL applies to collections missing from the TTL table.
const DefaultTTL = 5 * time.Minute

type entry struct {
	data      interface{}
	timestamp time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.timestamp) > e.ttl
}

// Store is a key/value map whose entries expire after a per-collection TTL.
// Expired entries are dropped lazily on Get and eagerly by Cleanup.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttls       map[string]time.Duration
	defaultTTL time.Duration
	now        func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// NewStore creates a store using ttls keyed by collection name.
func NewStore(ttls map[string]time.Duration, opts ...Option) *Store {
	s := &Store{
		entries:    make(map[string]entry),
		ttls:       make(map[string]time.Duration, len(ttls)),
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for k, v := range ttls {
		s.ttls[k] = v
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the expiry applied to entries of collection.
func (s *Store) TTL(collection string) time.Duration {
	if ttl, ok := s.ttls[collection]; ok && ttl > 0 {
		return ttl
	}
	return s.defaultTTL
}

func (s *Store) Get(key string) (interface{}, bool) {
	now := s.now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expired(now) {
		return e.data, true
	}

	s.mu.Lock()
	// Re-check: a concurrent Set may have refreshed the key.
	if cur, ok := s.entries[key]; ok && cur.expired(now) {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	return nil, false
}

func (s *Store) Set(key string, value interface{}, collection string) {
	e := entry{data: value, timestamp: s.now(), ttl: s.TTL(collection)}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// InvalidateCollection removes every key of the form "<prefix>:...".
// It returns the number of entries removed.
func (s *Store) InvalidateCollection(prefix string) int {
	p := prefix + ":"
	removed := 0

	s.mu.Lock()
	for k := range s.entries {
		if strings.HasPrefix(k, p) {
			delete(s.entries, k)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

// Cleanup sweeps every expired entry and returns how many were removed.
func (s *Store) Cleanup() int {
	now := s.now()
	removed := 0

	s.mu.Lock()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
