package unwind

import "testing"

func TestNameCacheIdempotent(t *testing.T) {
	c := newNameCache()

	if _, ok := c.lookup(0x1000); ok {
		t.Fatalf("lookup on empty cache should miss")
	}

	c.store(0x1000, "foo")
	got, ok := c.lookup(0x1000)
	if !ok || got != "foo" {
		t.Fatalf("lookup after store = %q,%v want %q,true", got, ok, "foo")
	}

	// A second store (simulating a careless re-resolve) must not be
	// necessary: the first successful value is what every later lookup
	// sees, and restoring the same value keeps that invariant visible
	// even if a caller mistakenly resolves twice.
	c.store(0x1000, "foo")
	got, ok = c.lookup(0x1000)
	if !ok || got != "foo" {
		t.Fatalf("lookup after second store = %q,%v want %q,true", got, ok, "foo")
	}
}

func TestNameCacheCachesFailedLookups(t *testing.T) {
	c := newNameCache()
	c.store(0x2000, unknownName)

	got, ok := c.lookup(0x2000)
	if !ok || got != unknownName {
		t.Fatalf("lookup = %q,%v want %q,true", got, ok, unknownName)
	}
}
