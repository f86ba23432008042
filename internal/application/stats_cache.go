package application

import (
	"sync"
	"time"

	"github.com/salafacil/salafacil/internal/scheduler"
)

// statsCache keeps the last computed dashboard counters so repeated /stats
// requests within the TTL do not rescan every table.
type statsCache struct {
	mu      sync.RWMutex
	now     func() time.Time
	ttl     time.Duration
	entry   Stats
	expires time.Time
	filled  bool
}

func newStatsCache(ttl time.Duration, now func() time.Time) *statsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &statsCache{now: now, ttl: ttl}
}

func (c *statsCache) Get() (Stats, bool) {
	if c == nil {
		return Stats{}, false
	}
	c.mu.RLock()
	entry, expires, filled := c.entry, c.expires, c.filled
	c.mu.RUnlock()
	if !filled {
		return Stats{}, false
	}
	if c.now().After(expires) {
		c.Invalidate()
		return Stats{}, false
	}
	return cloneStats(entry), true
}

func (c *statsCache) Store(stats Stats) {
	if c == nil {
		return
	}
	cloned := cloneStats(stats)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = cloned
	c.expires = expiry
	c.filled = true
}

func (c *statsCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entry = Stats{}
	c.filled = false
	c.mu.Unlock()
}

func cloneStats(stats Stats) Stats {
	out := stats
	if stats.ReservationsByStatus != nil {
		out.ReservationsByStatus = make(map[scheduler.Status]int, len(stats.ReservationsByStatus))
		for status, n := range stats.ReservationsByStatus {
			out.ReservationsByStatus[status] = n
		}
	}
	return out
}
