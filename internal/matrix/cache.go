package matrix

import (
	"sync"
	"time"
)

// Snapshot is one captured routing table: Routing[output] = input.
type Snapshot struct {
	Routing    map[int]int `json:"routing"`
	CapturedAt time.Time   `json:"captured_at"`
}

// clone returns a defensive copy so callers cannot mutate the cache.
func (s Snapshot) clone() Snapshot {
	routing := make(map[int]int, len(s.Routing))
	for out, in := range s.Routing {
		routing[out] = in
	}
	return Snapshot{Routing: routing, CapturedAt: s.CapturedAt}
}

// StatusCache memoises the last routing snapshot for a short TTL so
// status polls do not hammer the device.
type StatusCache struct {
	mu   sync.Mutex
	snap *Snapshot
	ttl  time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewStatusCache creates a cache whose entries stay fresh for ttl.
func NewStatusCache(ttl time.Duration) *StatusCache {
	return &StatusCache{
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the cached snapshot if it is still fresh.
func (c *StatusCache) Get() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap == nil || c.now().Sub(c.snap.CapturedAt) >= c.ttl {
		return Snapshot{}, false
	}
	return c.snap.clone(), true
}

// Put replaces the cached snapshot wholesale.
func (c *StatusCache) Put(routing map[int]int) Snapshot {
	snap := Snapshot{Routing: routing, CapturedAt: c.now()}

	c.mu.Lock()
	c.snap = &snap
	c.mu.Unlock()

	return snap.clone()
}

// Invalidate discards the cached snapshot. Called after every routing
// change so the next query reflects the device, not stale state.
func (c *StatusCache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}
