// Package cache holds resolved media URLs for a short window so repeat
// playback requests skip the identifier-resolution round trip.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultTTL        = 10 * time.Minute
	DefaultSweepEvery = 5 * time.Minute
	DefaultMaxEntries = 1000
)

type entry struct {
	url        string
	insertedAt time.Time
}

// Cache is an in-memory TTL map from identifier to resolved URL. It is
// best effort: entries vanish on restart and expiry is re-checked on
// every read, so the background sweep and the size-triggered sweep are
// only there to bound memory, not for correctness.
type Cache struct {
	ttl        time.Duration
	sweepEvery time.Duration
	maxEntries int
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]entry

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	started  bool
}

// New builds a cache. Zero or negative arguments fall back to the
// defaults (10m TTL, 5m sweep, 1000 entries).
func New(ttl, sweepEvery time.Duration, maxEntries int, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepEvery
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		ttl:        ttl,
		sweepEvery: sweepEvery,
		maxEntries: maxEntries,
		logger:     logger,
		entries:    make(map[string]entry),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Get returns the cached URL for id if it is still fresh. Expired
// entries are treated as absent but left in place; physical removal is
// the sweeper's job.
func (c *Cache) Get(id string, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return "", false
	}
	if now.Sub(e.insertedAt) >= c.ttl {
		return "", false
	}
	return e.url, true
}

// Put stores a resolved URL. When the map grows past the entry limit it
// sweeps expired entries opportunistically while still holding the lock.
func (c *Cache) Put(id, url string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = entry{url: url, insertedAt: now}
	if len(c.entries) > c.maxEntries {
		c.sweepLocked(now)
	}
}

// Sweep removes every expired entry and reports how many were evicted.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(now)
}

func (c *Cache) sweepLocked(now time.Time) int {
	evicted := 0
	for id, e := range c.entries {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.entries, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the current physical entry count, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Start runs the periodic sweep until ctx is cancelled or Close is
// called. It returns immediately; the sweep runs on its own goroutine.
func (c *Cache) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case now := <-ticker.C:
				if evicted := c.Sweep(now); evicted > 0 {
					c.logger.Debug("cache sweep",
						slog.Int("evicted", evicted),
						slog.Int("remaining", c.Len()),
					)
				}
			}
		}
	}()
}

// Close stops the sweeper and waits for it to exit. Safe to call when
// Start was never invoked.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}
}
