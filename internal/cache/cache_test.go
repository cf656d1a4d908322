package cache

import (
	"fmt"
	"slices"
	"sync"
	"testing"
)

func TestCache_GetSetDelete(t *testing.T) {
	c := NewCache[string, int]()

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected missing key to be absent")
	}

	c.Set("a", 1)
	c.Set("a", 2)
	if got, ok := c.Get("a"); !ok || got != 2 {
		t.Errorf("Expected 2, got %d (present=%v)", got, ok)
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Expected key to be deleted")
	}

	// Deleting an absent key must not panic.
	c.Delete("a")
}

func TestCache_GetOrSet(t *testing.T) {
	c := NewCache[string, string]()

	got, loaded := c.GetOrSet("draft", "first")
	if loaded || got != "first" {
		t.Errorf("Expected to store 'first', got %q (loaded=%v)", got, loaded)
	}

	got, loaded = c.GetOrSet("draft", "second")
	if !loaded || got != "first" {
		t.Errorf("Expected existing 'first', got %q (loaded=%v)", got, loaded)
	}
}

func TestCache_SetToAndClear(t *testing.T) {
	c := NewCache[string, string]()
	c.Set("old", "value")

	c.SetTo(map[string]string{"new1": "v1", "new2": "v2"})
	if _, ok := c.Get("old"); ok {
		t.Error("Expected SetTo to replace existing items")
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 items, got %d", c.Len())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", c.Len())
	}
}

func TestCache_Values(t *testing.T) {
	c := NewCache[int, string]()
	for i := 0; i < 3; i++ {
		c.Set(i, fmt.Sprintf("v%d", i))
	}

	values := c.Values()
	slices.Sort(values)
	if !slices.Equal(values, []string{"v0", "v1", "v2"}) {
		t.Errorf("Unexpected values: %v", values)
	}

	// The snapshot is detached from the cache.
	c.Delete(0)
	if len(values) != 3 {
		t.Error("Expected snapshot to keep its length")
	}
}

func TestCache_Concurrency(t *testing.T) {
	c := NewCache[int, int]()
	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Set(id, j)
				c.Get(id)
				c.GetOrSet(id+workers, j)
				c.Values()
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 2*workers {
		t.Errorf("Expected %d keys, got %d", 2*workers, c.Len())
	}
}

func BenchmarkCache_ConcurrentReadWrite(b *testing.B) {
	c := NewCache[int, string]()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%2 == 0 {
				c.Set(i, fmt.Sprintf("value-%d", i))
			} else {
				c.Get(i)
			}
			i++
		}
	})
}
