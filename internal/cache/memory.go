package cache

import (
	"container/list"
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// entry represents a cached item with expiration
type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a thread-safe LRU cache with per-entry TTL
type MemoryStore struct {
	mu           sync.Mutex
	capacity     int
	items        map[string]*list.Element
	evictionList *list.List
	closed       bool
	now          func() time.Time
}

// NewMemoryStore creates an in-memory store holding at most capacity entries
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryStore{
		capacity:     capacity,
		items:        make(map[string]*list.Element, capacity),
		evictionList: list.New(),
		now:          time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (c *MemoryStore) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// lookup returns a live element, dropping it if expired
func (c *MemoryStore) lookup(key string) (*list.Element, bool) {
	elem, found := c.items[key]
	if !found {
		return nil, false
	}
	if !c.now().Before(elem.Value.(*entry).expiresAt) {
		c.removeElement(elem)
		return nil, false
	}
	return elem, true
}

func (c *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrUnavailable
	}
	elem, ok := c.lookup(key)
	if !ok {
		return nil, ErrMiss
	}

	// Move to front (most recently used)
	c.evictionList.MoveToFront(elem)
	v := elem.Value.(*entry).value
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (c *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNoTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrUnavailable
	}

	data := make([]byte, len(value))
	copy(data, value)
	expiresAt := c.now().Add(ttl)

	// Update existing item
	if elem, found := c.items[key]; found {
		c.evictionList.MoveToFront(elem)
		e := elem.Value.(*entry)
		e.value = data
		e.expiresAt = expiresAt
		return nil
	}

	elem := c.evictionList.PushFront(&entry{key: key, value: data, expiresAt: expiresAt})
	c.items[key] = elem

	// Evict oldest if over capacity
	if c.evictionList.Len() > c.capacity {
		c.removeOldest()
	}
	return nil
}

func (c *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrUnavailable
	}
	for _, key := range keys {
		if elem, found := c.items[key]; found {
			c.removeElement(elem)
		}
	}
	return nil
}

func (c *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrUnavailable
	}
	elem, ok := c.lookup(key)
	if !ok {
		return 0, ErrMiss
	}
	return elem.Value.(*entry).expiresAt.Sub(c.now()), nil
}

func (c *MemoryStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrUnavailable
	}
	var keys []string
	for key := range c.items {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, ok := c.lookup(key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *MemoryStore) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrUnavailable
	}
	return nil
}

// Close drops all entries. Later calls report ErrUnavailable.
func (c *MemoryStore) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.items = make(map[string]*list.Element)
	c.evictionList.Init()
	return nil
}

// Len returns the current number of items in the cache
func (c *MemoryStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictionList.Len()
}

// removeOldest removes the least recently used item
func (c *MemoryStore) removeOldest() {
	if elem := c.evictionList.Back(); elem != nil {
		c.removeElement(elem)
	}
}

func (c *MemoryStore) removeElement(elem *list.Element) {
	c.evictionList.Remove(elem)
	delete(c.items, elem.Value.(*entry).key)
}

// CleanupExpired removes all expired items and returns how many were dropped
func (c *MemoryStore) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	// Iterate from back (oldest) to front
	var next *list.Element
	for elem := c.evictionList.Back(); elem != nil; elem = next {
		next = elem.Prev()
		if !now.Before(elem.Value.(*entry).expiresAt) {
			c.removeElement(elem)
			removed++
		}
	}
	return removed
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
