package cache

import (
	"testing"
	"time"
)

func TestTTLGetSet(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTL[[]string](5 * time.Second)
	c.now = func() time.Time { return now }

	if _, ok := c.Get("all"); ok {
		t.Error("Get on empty cache should miss")
	}

	c.Set("all", []string{"a", "b"})

	got, ok := c.Get("all")
	if !ok {
		t.Fatal("Get after Set should hit")
	}
	if len(got) != 2 || got[0] != "a" {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestTTLStalenessWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTL[int](5 * time.Second)
	c.now = func() time.Time { return now }

	c.Set("count", 10)

	// Within the TTL the cache keeps serving the old value even though the
	// underlying data may have changed.
	now = now.Add(4 * time.Second)
	if got, ok := c.Get("count"); !ok || got != 10 {
		t.Errorf("within TTL: got (%d, %t), want (10, true)", got, ok)
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get("count"); ok {
		t.Error("past TTL: Get should miss")
	}
}

func TestTTLKeysIndependent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTL[int](5 * time.Second)
	c.now = func() time.Time { return now }

	c.Set("all", 1)
	now = now.Add(3 * time.Second)
	c.Set("uploader:alice", 2)

	// The first entry expires on its own clock, not the second's.
	now = now.Add(3 * time.Second)
	if _, ok := c.Get("all"); ok {
		t.Error("older entry should have expired")
	}
	if got, ok := c.Get("uploader:alice"); !ok || got != 2 {
		t.Errorf("newer entry: got (%d, %t), want (2, true)", got, ok)
	}
}
