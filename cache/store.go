package cache

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Store is a named, TTL based key/value store. Keys are derived from a
// namespace and positional arguments with [DeriveKey]. Expired entries are
// dropped lazily on read and in bulk by [Store.ClearExpired].
//
// In addition to exact keys and literal prefixes, entries may be registered
// under tags (for example "post:7") and removed together with
// [Store.InvalidateTag].
//
// All methods are safe for concurrent use.
type Store struct {
	name       string
	defaultTTL time.Duration
	metrics    *Metrics
	logger     *slog.Logger
	nowFunc    func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
	tags    map[string]map[string]struct{} // tag -> keys
	gen     uint64                         // bumped by every Delete, Clear and InvalidateTag
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// WithMetrics records store activity on m.
func WithMetrics(m *Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithLogger sets the logger used for bulk removals.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates an empty store. defaultTTL applies to every Set call that
// passes a non-positive TTL; a non-positive defaultTTL falls back to one
// minute.
func NewStore(name string, defaultTTL time.Duration, opts ...StoreOption) *Store {
	if defaultTTL <= 0 {
		defaultTTL = fallbackTTL
	}
	s := &Store{
		name:       name,
		defaultTTL: defaultTTL,
		nowFunc:    time.Now,
		entries:    make(map[string]*Entry),
		tags:       make(map[string]map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Name returns the store's domain name.
func (s *Store) Name() string { return s.name }

// DefaultTTL returns the lifetime applied when Set is given no TTL.
func (s *Store) DefaultTTL() time.Duration { return s.defaultTTL }

// Get returns the live value stored for namespace and args. An expired entry
// is removed and reported as absent.
func (s *Store) Get(namespace string, args ...any) (any, bool) {
	key := DeriveKey(namespace, args...)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.liveLocked(key)
	if !ok {
		s.metrics.miss(s.name)
		return nil, false
	}
	s.metrics.hit(s.name)
	return e.Value, true
}

// Has reports whether a live value exists for namespace and args. It applies
// the same expiry as Get, so a true result is followed by a hit unless
// another goroutine removes the entry in between.
func (s *Store) Has(namespace string, args ...any) bool {
	key := DeriveKey(namespace, args...)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.liveLocked(key)
	return ok
}

// Set stores value under namespace and args, replacing any previous entry. A
// non-positive ttl means the store's default TTL.
func (s *Store) Set(namespace string, value any, ttl time.Duration, args ...any) {
	s.SetTagged(namespace, value, ttl, nil, args...)
}

// SetTagged is Set that additionally registers the entry under every tag.
// Tags of a replaced entry are dropped.
func (s *Store) SetTagged(namespace string, value any, ttl time.Duration, tags []string, args ...any) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	key := DeriveKey(namespace, args...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ttl, tags)
}

// Generation returns a counter that changes on every invalidating call
// (Delete, Clear, InvalidateTag), whether or not it matched an entry. Expiry
// does not change it.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// SetTaggedAt is SetTagged that only stores when the store is still at
// generation gen. It reports whether the value was stored. A value fetched
// before an invalidation is thereby never written back after it.
func (s *Store) SetTaggedAt(gen uint64, namespace string, value any, ttl time.Duration, tags []string, args ...any) bool {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	key := DeriveKey(namespace, args...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		s.logger.Debug("stale value not stored", "store", s.name, "key", key)
		return false
	}
	s.setLocked(key, value, ttl, tags)
	return true
}

func (s *Store) setLocked(key string, value any, ttl time.Duration, tags []string) {
	if old, ok := s.entries[key]; ok {
		s.untagLocked(key, old.Tags)
	}

	now := s.nowFunc()
	e := &Entry{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if len(tags) > 0 {
		e.Tags = append([]string(nil), tags...)
		for _, t := range e.Tags {
			keys, ok := s.tags[t]
			if !ok {
				keys = make(map[string]struct{})
				s.tags[t] = keys
			}
			keys[key] = struct{}{}
		}
	}
	s.entries[key] = e

	s.metrics.set(s.name)
	s.metrics.size(s.name, len(s.entries))
}

// Delete removes the entry for namespace and args and reports whether one
// existed.
func (s *Store) Delete(namespace string, args ...any) bool {
	key := DeriveKey(namespace, args...)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if _, ok := s.entries[key]; !ok {
		return false
	}
	s.removeLocked(key)
	s.metrics.removed(s.name, reasonDelete, 1)
	s.metrics.size(s.name, len(s.entries))
	return true
}

// Clear removes every entry whose key starts with prefix and returns how many
// were removed. The match is a literal string prefix. An empty prefix
// empties the store.
func (s *Store) Clear(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	var n int
	if prefix == "" {
		n = len(s.entries)
		s.entries = make(map[string]*Entry)
		s.tags = make(map[string]map[string]struct{})
	} else {
		for key := range s.entries {
			if strings.HasPrefix(key, prefix) {
				s.removeLocked(key)
				n++
			}
		}
	}

	s.metrics.removed(s.name, reasonClear, n)
	s.metrics.size(s.name, len(s.entries))
	if n > 0 {
		s.logger.Debug("cache cleared", "store", s.name, "prefix", prefix, "removed", n)
	}
	return n
}

// InvalidateTag removes every entry registered under tag and returns how many
// were removed.
func (s *Store) InvalidateTag(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	keys := s.tags[tag]
	if len(keys) == 0 {
		return 0
	}
	victims := make([]string, 0, len(keys))
	for key := range keys {
		victims = append(victims, key)
	}
	for _, key := range victims {
		s.removeLocked(key)
	}

	n := len(victims)
	s.metrics.removed(s.name, reasonTag, n)
	s.metrics.size(s.name, len(s.entries))
	s.logger.Debug("cache tag invalidated", "store", s.name, "tag", tag, "removed", n)
	return n
}

// ClearExpired removes every entry whose lifetime has passed and returns how
// many were removed. Live entries are left untouched.
func (s *Store) ClearExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	n := 0
	for key, e := range s.entries {
		if !e.Live(now) {
			s.removeLocked(key)
			n++
		}
	}

	s.metrics.removed(s.name, reasonSweep, n)
	s.metrics.size(s.name, len(s.entries))
	return n
}

// Size returns the number of stored entries, including expired entries that
// have not been removed yet.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Keys returns the currently stored keys in no particular order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// liveLocked returns the entry for key when it is live and removes it when it
// has expired. Must be called with s.mu held.
func (s *Store) liveLocked(key string) (*Entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !e.Live(s.nowFunc()) {
		s.removeLocked(key)
		s.metrics.removed(s.name, reasonExpired, 1)
		s.metrics.size(s.name, len(s.entries))
		return nil, false
	}
	return e, true
}

// removeLocked deletes key and its tag registrations. Must be called with
// s.mu held.
func (s *Store) removeLocked(key string) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	delete(s.entries, key)
	s.untagLocked(key, e.Tags)
}

func (s *Store) untagLocked(key string, tags []string) {
	for _, t := range tags {
		keys, ok := s.tags[t]
		if !ok {
			continue
		}
		delete(keys, key)
		if len(keys) == 0 {
			delete(s.tags, t)
		}
	}
}
