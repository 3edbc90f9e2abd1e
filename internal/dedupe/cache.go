package dedupe

import (
	"sync"
	"time"

	"github.com/wlwv-tools/school-calendar/backend/internal/models"
)

// Cache remembers recently committed event keys so the worker does not
// re-query the store for a key it just inserted. Keys expire after ttl
// and the oldest keys are dropped once capacity is exceeded.
type Cache struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	order    []timedKey
	capacity int
	ttl      time.Duration
}

type timedKey struct {
	key string
	ts  time.Time
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		seen:     make(map[string]time.Time, capacity),
		order:    make([]timedKey, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// IsSeen reports whether the key was recorded inside the ttl window.
// It does not mark the key; use MarkSeen for that.
func (c *Cache) IsSeen(key string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	ts, ok := c.seen[key]
	return ok && now.Sub(ts) <= c.ttl
}

// MarkSeen records that an event key has been committed.
func (c *Cache) MarkSeen(key string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen[key] = now
	c.order = append(c.order, timedKey{key: key, ts: now})
	c.evict(now)
}

// SeenEvent is IsSeen applied to an event's dedup key.
func (c *Cache) SeenEvent(ev models.Event) bool {
	return c.IsSeen(ev.Key())
}

// MarkEvent is MarkSeen applied to an event's dedup key.
func (c *Cache) MarkEvent(ev models.Event) {
	c.MarkSeen(ev.Key())
}

func (c *Cache) evict(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.seen) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		// Only drop the map entry if it was not refreshed since.
		if ts, ok := c.seen[oldest.key]; ok && ts.Equal(oldest.ts) {
			delete(c.seen, oldest.key)
		}
	}
}
