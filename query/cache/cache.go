// Package cache provides a bounded LRU for compiled queries.
package cache

import (
	"sync"

	"github.com/satishbabariya/eloquent-go/query/sqlgen"
)

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
}

// LRU is a mutex-guarded least-recently-used cache of compiled queries.
// Entries are immutable once inserted: Get hands out a copy so a caller
// mutating the returned bindings can never corrupt the cached entry.
type LRU struct {
	mu      sync.Mutex
	data    map[string]*node
	maxSize int
	head    *node
	tail    *node
	stats   Stats
}

// node is a doubly-linked list entry; head is most recently used.
type node struct {
	key   string
	query *sqlgen.Query
	prev  *node
	next  *node
}

// NewLRU creates an LRU bounded to maxSize entries. A non-positive size is
// treated as 1.
func NewLRU(maxSize int) *LRU {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRU{
		data:    make(map[string]*node),
		maxSize: maxSize,
		stats:   Stats{MaxSize: maxSize},
	}
}

// Get returns a copy of the cached query for key, or nil if absent.
func (c *LRU) Get(key string) *sqlgen.Query {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		return nil
	}
	c.moveToFront(n)
	c.stats.Hits++
	return n.query.Clone()
}

// Put stores a copy of the query under key, evicting the least recently
// used entry when over capacity.
func (c *LRU) Put(key string, q *sqlgen.Query) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.data[key]; ok {
		n.query = q.Clone()
		c.moveToFront(n)
		return
	}
	if len(c.data) >= c.maxSize {
		c.evict()
	}
	n := &node{key: key, query: q.Clone()}
	c.addToFront(n)
	c.data[key] = n
}

// Invalidate removes a single key.
func (c *LRU) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.data[key]; ok {
		c.remove(n)
	}
}

// Clear removes all entries and resets the counters.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*node)
	c.head, c.tail = nil, nil
	c.stats = Stats{MaxSize: c.maxSize}
}

// GetStats returns a snapshot of the cache counters.
func (c *LRU) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.data)
	return s
}

func (c *LRU) addToFront(n *node) {
	if c.head == nil {
		c.head, c.tail = n, n
		return
	}
	n.next = c.head
	c.head.prev = n
	c.head = n
}

func (c *LRU) moveToFront(n *node) {
	if n == c.head {
		return
	}
	c.unlink(n)
	n.prev, n.next = nil, nil
	c.addToFront(n)
}

func (c *LRU) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
}

func (c *LRU) remove(n *node) {
	c.unlink(n)
	delete(c.data, n.key)
}

func (c *LRU) evict() {
	if c.tail == nil {
		return
	}
	c.remove(c.tail)
	c.stats.Evictions++
}
