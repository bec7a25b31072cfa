package matrix

import (
	"testing"
	"time"
)

func TestStatusCacheFreshness(t *testing.T) {
	c := NewStatusCache(5 * time.Second)

	current := time.Now()
	c.now = func() time.Time { return current }

	if _, ok := c.Get(); ok {
		t.Fatal("empty cache reported a hit")
	}

	c.Put(map[int]int{1: 2})

	snap, ok := c.Get()
	if !ok {
		t.Fatal("fresh snapshot missed")
	}
	if snap.Routing[1] != 2 {
		t.Errorf("routing = %v", snap.Routing)
	}

	current = current.Add(5*time.Second - time.Millisecond)
	if _, ok := c.Get(); !ok {
		t.Error("snapshot just inside the window missed")
	}

	// Age equal to the TTL is already stale.
	current = current.Add(time.Millisecond)
	if _, ok := c.Get(); ok {
		t.Error("stale snapshot served")
	}
}

func TestStatusCacheInvalidate(t *testing.T) {
	c := NewStatusCache(time.Hour)

	c.Put(map[int]int{1: 2})
	c.Invalidate()

	if _, ok := c.Get(); ok {
		t.Error("invalidated snapshot served")
	}
}

func TestStatusCacheCopiesRouting(t *testing.T) {
	c := NewStatusCache(time.Hour)

	c.Put(map[int]int{1: 2})

	snap, _ := c.Get()
	snap.Routing[1] = 99

	again, _ := c.Get()
	if again.Routing[1] != 2 {
		t.Error("caller mutation leaked into the cache")
	}
}
