// Package metacache implements the per-backend metadata cache: TTL expiry,
// LRU eviction (via hashicorp/golang-lru, the one domain dependency pack
// that already ships an LRU map), and write-invalidation. Its central
// invariant is key discipline: the key used to pre-cache a
// child's stat during iterdir must be byte-identical to the key used when
// that child is later looked up directly via stat.
package metacache

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Key identifies one cache entry. It is a deterministic function of
// (operation, bucket, objectKey, extraParams).
type Key struct {
	Operation string
	Bucket    string
	ObjectKey string
	Params    string // pre-serialized extra params, "" if none
}

type entry struct {
	value      interface{}
	createdAt  time.Time
	lastAccess time.Time
	ttl        time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.After(e.createdAt.Add(e.ttl))
}

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	Total      int
	Expired    int
	MaxEntries int
	DefaultTTL time.Duration
}

// Cache is a thread-safe TTL+LRU metadata cache. All state lives behind one
// mutex; callers never call back into the Cache while holding it, so
// contention stays low even though the lock is coarse.
type Cache struct {
	mu         sync.Mutex
	lru        *lru.Cache
	defaultTTL time.Duration
	maxEntries int
}

// New builds a Cache with the given capacity and default TTL. Per-operation
// TTL overrides are supplied by the caller on each Put.
func New(maxEntries int, defaultTTL time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 60 * time.Second
	}
	l, _ := lru.New(maxEntries)
	return &Cache{lru: l, defaultTTL: defaultTTL, maxEntries: maxEntries}
}

// Get returns the cached value for key if present and not expired. The
// second return is false on miss or expiry; expired entries are purged.
func (c *Cache) Get(key Key) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	e := raw.(*entry)
	if e.expired(time.Now()) {
		c.lru.Remove(key)
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.value, true
}

// Put inserts or replaces the entry for key. ttl <= 0 uses the cache's
// default TTL; the underlying LRU evicts the least-recently-used entry once
// capacity is exceeded.
func (c *Cache) Put(key Key, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, &entry{value: value, createdAt: now, lastAccess: now, ttl: ttl})
}

// InvalidateKey removes the stat entry (and any other single-key entries)
// for one object key in bucket, across all operations.
func (c *Cache) InvalidateKey(bucket, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.lru.Keys() {
		ck := k.(Key)
		if ck.Bucket == bucket && ck.ObjectKey == key {
			c.lru.Remove(k)
		}
	}
}

// InvalidatePrefix removes every entry (of any operation) whose ObjectKey
// falls under prefix, used when a listing becomes stale.
func (c *Cache) InvalidatePrefix(bucket, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.lru.Keys() {
		ck := k.(Key)
		if ck.Bucket == bucket && strings.HasPrefix(ck.ObjectKey, prefix) {
			c.lru.Remove(k)
		}
	}
}

// InvalidateBucket drops every entry for bucket.
func (c *Cache) InvalidateBucket(bucket string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.lru.Keys() {
		ck := k.(Key)
		if ck.Bucket == bucket {
			c.lru.Remove(k)
		}
	}
}

// Clear empties the cache entirely.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Stats reports current size, expired-but-not-yet-evicted count, and config.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	expired := 0
	for _, k := range c.lru.Keys() {
		raw, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		if raw.(*entry).expired(now) {
			expired++
		}
	}
	return Stats{
		Total:      c.lru.Len(),
		Expired:    expired,
		MaxEntries: c.maxEntries,
		DefaultTTL: c.defaultTTL,
	}
}
