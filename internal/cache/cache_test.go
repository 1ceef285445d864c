package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTL[string](time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("empty cache should miss")
	}
	c.Set("a", "one")
	got, ok := c.Get("a")
	if !ok || got != "one" {
		t.Errorf("Get = %q, %v", got, ok)
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Errorf("deleted key should miss")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTL[int](time.Millisecond)
	c.Set("n", 7)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("n"); ok {
		t.Errorf("expired entry should miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be dropped on access, len = %d", c.Len())
	}
}
