package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process cache with TTL and a size cap. Oldest entries are
// evicted first once maxSize is exceeded.
type Memory struct {
	mu            sync.RWMutex
	entries       map[string]entry
	maxSize       int
	defaultTTL    time.Duration
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	stopOnce      sync.Once
	now           func() time.Time
}

type entry struct {
	value   []byte
	stored  time.Time
	expires time.Time // zero means no expiry
}

// NewMemory starts a cache that sweeps expired entries every cleanupEvery.
func NewMemory(maxSize int, defaultTTL, cleanupEvery time.Duration) *Memory {
	if maxSize <= 0 {
		maxSize = 1000
	}
	c := &Memory{
		entries:    make(map[string]entry),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		stopChan:   make(chan struct{}),
		now:        time.Now,
	}
	if cleanupEvery > 0 {
		c.startCleanup(cleanupEvery)
	}
	return c
}

// startCleanup starts a background goroutine to periodically clean expired entries
func (c *Memory) startCleanup(every time.Duration) {
	c.cleanupTicker = time.NewTicker(every)

	go func() {
		for {
			select {
			case <-c.cleanupTicker.C:
				c.cleanupExpired()
			case <-c.stopChan:
				c.cleanupTicker.Stop()
				return
			}
		}
	}()
}

// cleanupExpired removes expired entries and enforces size limits
func (c *Memory) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
	c.evictLocked()
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// evictLocked drops the oldest entries until the size limit holds.
func (c *Memory) evictLocked() {
	over := len(c.entries) - c.maxSize
	if over <= 0 {
		return
	}
	type aged struct {
		key    string
		stored time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{k, e.stored})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].stored.Before(all[j].stored) })
	for _, a := range all[:over] {
		delete(c.entries, a.key)
	}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value; ttl 0 uses the default TTL, negative stores without expiry.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	now := c.now()
	e := entry{value: append([]byte(nil), value...), stored: now}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
	c.evictLocked()
	return nil
}

func (c *Memory) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *Memory) Ping(context.Context) error { return nil }

func (c *Memory) Name() string { return "memory" }

// Len returns the current number of entries, expired or not.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup routine
func (c *Memory) Close() error {
	c.stopOnce.Do(func() { close(c.stopChan) })
	return nil
}
