package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryConfig sizes a Memory cache.
type MemoryConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// Memory is a fixed-capacity, TTL-based in-process cache.
type Memory struct {
	mu      sync.Mutex
	cfg     MemoryConfig
	entries map[string]*Entry
	now     func() time.Time

	hits   int64
	misses int64
	saved  int64
}

// NewMemory creates a Memory cache. Zero fields take the defaults.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Memory{
		cfg:     cfg,
		entries: make(map[string]*Entry, cfg.Capacity),
		now:     time.Now,
	}
}

// SetClock overrides the clock, for tests.
func (c *Memory) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns a live entry. An expired entry is removed and reported as a
// miss.
func (c *Memory) Get(_ context.Context, query, contextKey string) (Entry, bool) {
	key := Key(query, contextKey)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.now().Sub(e.CreatedAt) > c.cfg.TTL {
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		c.misses++
		return Entry{}, false
	}

	e.HitCount++
	c.hits++
	c.saved += int64(e.TokensSaved)
	return *e, true
}

// Set stores an entry. When the cache is full and the key is new, the
// single oldest entry is evicted first.
func (c *Memory) Set(_ context.Context, query, contextKey, response string, tokensSaved int) error {
	key := Key(query, contextKey)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.Capacity {
		c.evictOldest()
	}
	c.entries[key] = &Entry{
		Key:         key,
		Response:    response,
		TokensSaved: tokensSaved,
		CreatedAt:   c.now(),
	}
	return nil
}

// Stats returns cumulative accounting.
func (c *Memory) Stats(context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		TokensSaved: c.saved,
		Size:        len(c.entries),
	}, nil
}

// PruneExpired removes every entry older than the TTL and returns how many
// were removed.
func (c *Memory) PruneExpired(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.CreatedAt) > c.cfg.TTL {
			delete(c.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, including expired ones not yet
// read.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Memory) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.CreatedAt.Before(oldest) {
			oldestKey, oldest = k, e.CreatedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
