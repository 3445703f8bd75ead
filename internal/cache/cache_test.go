package cache

import (
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
		t.Errorf("Expected overwritten value 2, got %d (present: %v)", got, ok)
	}

	c.Delete("a")
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Expected key to be deleted")
	}
}

func TestCache_PointerValues(t *testing.T) {
	type session struct{ touched int }
	c := NewCache[string, *session]()
	c.Set("d1", &session{})

	s, _ := c.Get("d1")
	s.touched++

	again, _ := c.Get("d1")
	if again.touched != 1 {
		t.Error("Expected Get to return the stored pointer")
	}
}

func TestCache_Take(t *testing.T) {
	c := NewCache[string, int]()
	c.Set("a", 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Take("a"); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("Expected exactly one Take to win, got %d", winners)
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d items", c.Len())
	}
}

func TestCache_Snapshot(t *testing.T) {
	c := NewCache[string, int]()
	c.Set("a", 1)
	c.Set("b", 2)

	snap := c.Snapshot()
	c.Delete("a")

	if len(snap) != 2 || snap["a"] != 1 {
		t.Errorf("Expected snapshot to be independent of later changes, got %v", snap)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 item, got %d", c.Len())
	}
}

func TestCache_Concurrency(t *testing.T) {
	c := NewCache[int, string]()
	const workers = 50
	const ops = 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(3)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				c.Set(id*ops+j, "v")
			}
		}(i)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				c.Get(id*ops + j)
				c.Take(id*ops + j)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				_ = c.Snapshot()
				_ = c.Len()
			}
		}()
	}
	wg.Wait()
}
