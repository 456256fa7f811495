package cache

import (
	"fmt"
	"sync"
)

// record tracks a canonical value and how many cache keys currently point at
// it.
type record[V any] struct {
	value      V
	references int
}

// InternCache is an LRU that de-duplicates values by their string form:
// setting two keys to structurally-equal values (as judged by fmt.Sprint)
// stores one canonical copy and lets both keys point at it. This keeps a
// crawl's repeatedly-rediscovered nameserver sets from multiplying memory
// when thousands of resolved names share the same handful of providers.
//
// InternCache is not safe for concurrent use without external
// synchronization: unlike Cache, its Set updates the intern table and the
// underlying cache in two separate locked steps.
type InternCache[K comparable, V any] struct {
	inner *Cache[K, V]

	mu          sync.Mutex
	byString    map[string]*record[V]
	keyToString map[K]string
}

func NewInterned[K comparable, V any](maxSize int) *InternCache[K, V] {
	return &InternCache[K, V]{
		inner:       New[K, V](maxSize),
		byString:    map[string]*record[V]{},
		keyToString: map[K]string{},
	}
}

func (c *InternCache[K, V]) Get(key K) (V, bool) {
	return c.inner.Get(key)
}

// Set stores value under key, reference-counting its canonical form so that
// repeated identical values across different keys share one copy.
func (c *InternCache[K, V]) Set(key K, value V) {
	str := fmt.Sprint(value)

	c.mu.Lock()
	if oldStr, ok := c.keyToString[key]; ok {
		c.derefLocked(oldStr)
	}

	rec, ok := c.byString[str]
	if !ok {
		rec = &record[V]{value: value}
		c.byString[str] = rec
	}
	rec.references++
	c.keyToString[key] = str
	canonical := rec.value
	c.mu.Unlock()

	c.inner.Set(key, canonical, 0)
}

func (c *InternCache[K, V]) derefLocked(str string) {
	rec, ok := c.byString[str]
	if !ok {
		return
	}
	rec.references--
	if rec.references <= 0 {
		delete(c.byString, str)
	}
}

func (c *InternCache[K, V]) Stats() Stats {
	return c.inner.Stats()
}
