package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestEntryIsExpired(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		ttl     int
		elapsed time.Duration
		want    bool
	}{
		{"zero ttl at start", 0, 0, false},
		{"zero ttl after ten years", 0, 10 * 365 * 24 * time.Hour, false},
		{"one minute at start", 1, 0, false},
		{"one minute at boundary", 1, 60000 * time.Millisecond, false},
		{"one minute past boundary", 1, 60001 * time.Millisecond, true},
		{"five minutes after four", 5, 4 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Entry[string]{Key: "k", Value: "v", CachedAt: start, TTLMinutes: tt.ttl}
			if got := e.IsExpired(start.Add(tt.elapsed)); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCachePutOverwrites(t *testing.T) {
	c := New[string]()
	c.Put("a", "v1", 0)
	c.Put("a", "v2", 0)

	snap := c.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() len = %d, want 1", len(snap))
	}
	if snap[0].Key != "a" || snap[0].Value != "v2" {
		t.Errorf("Snapshot()[0] = %+v, want a=v2", snap[0])
	}
}

func TestCacheLazyExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string](WithClock(clock.Now))

	c.Put("forever", "f", 0)
	c.Put("short", "s", 1)
	c.Put("long", "l", 10)

	clock.Advance(time.Minute)
	if _, ok := c.Get("short"); !ok {
		t.Error("short entry expired at its boundary")
	}

	clock.Advance(time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("short entry still live after its ttl")
	}
	if c.Len() != 2 {
		t.Errorf("Get() did not drop the expired entry, Len() = %d", c.Len())
	}

	clock.Advance(20 * time.Minute)
	snap := c.Snapshot()
	if len(snap) != 1 || snap[0].Key != "forever" {
		t.Errorf("Snapshot() = %+v, want only forever", snap)
	}
	if c.Len() != 1 {
		t.Errorf("Snapshot() did not sweep, Len() = %d", c.Len())
	}
}

func TestCacheZeroTTLNeverReadsClock(t *testing.T) {
	c := New[int](WithClock(func() time.Time {
		t.Fatal("clock read for a never-expiring entry")
		return time.Time{}
	}))

	c.Put("a", 1, 0)
	c.PutAll([]Item[int]{{Key: "b", Value: 2}, {Key: "c", Value: 3}})
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if got := len(c.Snapshot()); got != 3 {
		t.Errorf("Snapshot() len = %d, want 3", got)
	}
}

func TestCacheReplaceAndClear(t *testing.T) {
	c := New[string]()
	c.PutAll([]Item[string]{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}, {Key: "a", Value: "3"}})
	if v, _ := c.Get("a"); v != "3" {
		t.Errorf("PutAll() last write should win, got %q", v)
	}

	c.Replace([]Item[string]{{Key: "z", Value: "26"}})
	if got := c.Values(); len(got) != 1 || got[0] != "26" {
		t.Errorf("Values() after Replace = %v", got)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
	if _, ok := c.Get("z"); ok {
		t.Error("Get() found an entry after Clear")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%10)
			c.Put(key, i, 1)
			c.Get(key)
			c.Snapshot()
		}(i)
	}
	wg.Wait()

	if c.Len() != 10 {
		t.Errorf("Len() = %d, want 10", c.Len())
	}
}
