package cache

import (
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 4096

// MemoryCache implements an in-memory measurement cache with LRU eviction.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*memoryEntry
	lruList    *lruList
	stats      Stats
}

type memoryEntry struct {
	score   int64
	element *lruElement
}

// LRU list implementation.
type lruElement struct {
	key  string
	prev *lruElement
	next *lruElement
}

type lruList struct {
	head *lruElement
	tail *lruElement
	size int
}

func newLRUList() *lruList {
	head := &lruElement{}
	tail := &lruElement{}
	head.next = tail
	tail.prev = head
	return &lruList{head: head, tail: tail}
}

func (l *lruList) moveToFront(elem *lruElement) {
	if elem.prev == l.head {
		return // Already at front
	}
	// Remove from current position
	elem.prev.next = elem.next
	elem.next.prev = elem.prev
	// Insert at front
	elem.prev = l.head
	elem.next = l.head.next
	l.head.next.prev = elem
	l.head.next = elem
}

func (l *lruList) pushFront(key string) *lruElement {
	elem := &lruElement{key: key}
	elem.prev = l.head
	elem.next = l.head.next
	l.head.next.prev = elem
	l.head.next = elem
	l.size++
	return elem
}

func (l *lruList) removeElement(elem *lruElement) {
	elem.prev.next = elem.next
	elem.next.prev = elem.prev
	l.size--
}

func (l *lruList) back() *lruElement {
	if l.tail.prev == l.head {
		return nil
	}
	return l.tail.prev
}

// NewMemoryCache creates a new in-memory measurement cache.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*memoryEntry),
		lruList:    newLRUList(),
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.stats.Misses++
		return 0, false, nil
	}

	c.lruList.moveToFront(entry.element)
	c.stats.Hits++
	c.stats.LastAccess = time.Now()
	return entry.score, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, score int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// First-seen score is authoritative; a repeat Set only refreshes recency.
	if entry, exists := c.entries[key]; exists {
		c.lruList.moveToFront(entry.element)
		return nil
	}

	c.entries[key] = &memoryEntry{
		score:   score,
		element: c.lruList.pushFront(key),
	}
	c.stats.Sets++

	// Evict least recently used entries over capacity
	for c.lruList.size > c.maxEntries {
		oldest := c.lruList.back()
		if oldest == nil {
			break
		}
		c.lruList.removeElement(oldest)
		delete(c.entries, oldest.key)
	}

	return nil
}

func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Entries = int64(len(c.entries))
	return stats
}

func (c *MemoryCache) Close() error {
	return nil
}
