package spatial

import (
	"sync"

	"github.com/paulmach/orb"
)

// CachedProjection wraps proj with an in-memory LRU keyed by input point.
func CachedProjection(proj orb.Projection, maxEntries int) orb.Projection {
	c := newLRUCache(maxEntries)
	return func(p orb.Point) orb.Point {
		if out, ok := c.get(p); ok {
			return out
		}
		out := proj(p)
		c.put(p, out)
		return out
	}
}

// lruCache is a simple thread-safe LRU cache of projected points.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[orb.Point]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   orb.Point
	value orb.Point
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[orb.Point]*entry),
	}
}

func (c *lruCache) get(key orb.Point) (orb.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return orb.Point{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key, value orb.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
