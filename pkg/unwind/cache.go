package unwind

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// unknownName is cached for any IP whose symbol the resolver could not
// find, so repeated misses don't re-walk the symbol table.
const unknownName = "{unknown}"

// nameCacheCapacity bounds the hashicorp/golang-lru cache backing the
// process-wide procedure-name-by-IP memo. The spec calls for a grow-only
// cache; a strictly unbounded Go map guarded by a mutex would satisfy that
// literally, but this repo prefers wiring the pack's LRU cache library over
// hand-rolling one. A capacity this large (16M distinct instruction
// pointers) means no real sampling session evicts a live entry before the
// profiler exits, which keeps the grow-only / idempotent-forever behavior
// the spec's testable properties require, in practice. See DESIGN.md.
const nameCacheCapacity = 1 << 24

// nameCache is the process-wide procedure-name-by-IP memo described in
// spec.md §4.2. get_proc_name is expensive (a symbol-table walk); IPs are
// overwhelmingly reused across samples, so this is the only globally
// shared mutable state in the profiler. hashicorp/golang-lru/v2's Cache is
// already safe for concurrent use, so no extra lock is needed here.
type nameCache struct {
	cache *lru.Cache[uint64, string]
}

func newNameCache() *nameCache {
	c, err := lru.New[uint64, string](nameCacheCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// nameCacheCapacity never is.
		panic(err)
	}
	return &nameCache{cache: c}
}

// lookup returns the cached name for ip if present. The caller resolves on
// a miss and stores the result (success or unknownName) with store, so a
// failed lookup is cached just as durably as a successful one.
func (c *nameCache) lookup(ip uint64) (string, bool) {
	return c.cache.Get(ip)
}

func (c *nameCache) store(ip uint64, name string) {
	c.cache.Add(ip, name)
}
