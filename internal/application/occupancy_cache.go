package application

import (
	"fmt"
	"sync"
	"time"
)

// occupancyCache stores recently computed room occupancy results so repeated
// dashboard queries for the same room and day do not re-scan reservations.
// Entries expire on a short TTL; mutations do not invalidate the cache, so
// the TTL bounds staleness.
type occupancyCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]occupancyCacheEntry
}

type occupancyCacheEntry struct {
	occupancy RoomOccupancy
	expiresAt time.Time
}

func newOccupancyCache(ttl time.Duration, maxEntries int, now func() time.Time) *occupancyCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &occupancyCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]occupancyCacheEntry),
	}
}

func (c *occupancyCache) Get(key string) (RoomOccupancy, bool) {
	if c == nil {
		return RoomOccupancy{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return RoomOccupancy{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return RoomOccupancy{}, false
	}
	return entry.occupancy, true
}

func (c *occupancyCache) Store(key string, occupancy RoomOccupancy) {
	if c == nil {
		return
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = occupancyCacheEntry{occupancy: occupancy, expiresAt: expiry}
}

func (c *occupancyCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]occupancyCacheEntry)
	c.mu.Unlock()
}

func (c *occupancyCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *occupancyCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func occupancyCacheKey(roomID string, day time.Time) string {
	return fmt.Sprintf("%s|%s", roomID, day.Format("2006-01-02"))
}
