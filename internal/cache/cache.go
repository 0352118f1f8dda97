// Package cache provides a small keyed store whose entries expire after a
// per-entry number of minutes.
//
// Expiry is lazy: nothing runs in the background. Get drops an expired entry
// it finds and Snapshot sweeps every expired entry as a side effect. A TTL of
// zero means the entry lives until it is replaced or the cache is cleared, and
// such entries never cause the clock to be read.
package cache

import (
	"sort"
	"sync"
	"time"
)

// Entry is a cached value with its insertion time.
type Entry[V any] struct {
	Key        string
	Value      V
	CachedAt   time.Time
	TTLMinutes int
}

// IsExpired reports whether the entry is past its lifetime at now. An entry
// is still live at exactly CachedAt + TTLMinutes.
func (e Entry[V]) IsExpired(now time.Time) bool {
	if e.TTLMinutes <= 0 {
		return false
	}
	return now.Sub(e.CachedAt) > time.Duration(e.TTLMinutes)*time.Minute
}

// Item is one value to insert with PutAll or Replace.
type Item[V any] struct {
	Key        string
	Value      V
	TTLMinutes int
}

// Cache is safe for concurrent use. A single mutex guards the map and is
// only held for the map operation or sweep itself.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]Entry[V]
	clock   func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	clock func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// New creates an empty cache.
func New[V any](opts ...Option) *Cache[V] {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		entries: make(map[string]Entry[V]),
		clock:   o.clock,
	}
}

func (c *Cache[V]) entry(key string, v V, ttlMinutes int) Entry[V] {
	e := Entry[V]{Key: key, Value: v, TTLMinutes: ttlMinutes}
	if ttlMinutes > 0 {
		e.CachedAt = c.clock()
	}
	return e
}

// Put stores v under key, replacing any previous entry.
func (c *Cache[V]) Put(key string, v V, ttlMinutes int) {
	e := c.entry(key, v, ttlMinutes)

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// PutAll stores every item; later items win over earlier ones with the same key.
func (c *Cache[V]) PutAll(items []Item[V]) {
	built := make([]Entry[V], len(items))
	for i, it := range items {
		built[i] = c.entry(it.Key, it.Value, it.TTLMinutes)
	}

	c.mu.Lock()
	for _, e := range built {
		c.entries[e.Key] = e
	}
	c.mu.Unlock()
}

// Replace atomically swaps the whole content of the cache for items.
func (c *Cache[V]) Replace(items []Item[V]) {
	fresh := make(map[string]Entry[V], len(items))
	for _, it := range items {
		fresh[it.Key] = c.entry(it.Key, it.Value, it.TTLMinutes)
	}

	c.mu.Lock()
	c.entries = fresh
	c.mu.Unlock()
}

// Get returns the live value stored under key. An expired entry is removed.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if e.TTLMinutes > 0 && e.IsExpired(c.clock()) {
		delete(c.entries, key)
		return zero, false
	}
	return e.Value, true
}

// Snapshot returns every live entry ordered by key and drops the expired ones.
func (c *Cache[V]) Snapshot() []Entry[V] {
	c.mu.Lock()
	var (
		now     time.Time
		haveNow bool
		out     = make([]Entry[V], 0, len(c.entries))
	)
	for key, e := range c.entries {
		if e.TTLMinutes > 0 {
			if !haveNow {
				now, haveNow = c.clock(), true
			}
			if e.IsExpired(now) {
				delete(c.entries, key)
				continue
			}
		}
		out = append(out, e)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Values is Snapshot without the bookkeeping.
func (c *Cache[V]) Values() []V {
	entries := c.Snapshot()
	out := make([]V, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry[V])
	c.mu.Unlock()
}
