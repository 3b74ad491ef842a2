package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", 42)

	v, ok := c.Get("k")
	if !ok || v.(int) != 42 {
		t.Fatalf("got %v %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("missing key reported present")
	}
}

func TestExpiry(t *testing.T) {
	now := time.Now()
	c := New(time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatal("fresh entry missing")
	}

	now = now.Add(time.Minute + time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry still present")
	}
	// expired entries are dropped on read
	if c.Len() != 0 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	now := time.Now()
	c := New(0)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	now = now.Add(24 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired with ttl disabled")
	}
}

func TestDelete(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", "v")
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("deleted entry still present")
	}
}
