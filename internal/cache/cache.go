package cache

import (
	"context"
	"log"
	"path"
	"sync"
	"time"
)

// TTLClass is a named expiry tier. Each aggregate type picks a tier based
// on recompute cost and staleness tolerance.
type TTLClass string

const (
	TTLShort  TTLClass = "short"  // ~5 min
	TTLMedium TTLClass = "medium" // ~30 min
	TTLLong   TTLClass = "long"   // ~1 hr
	TTLDaily  TTLClass = "daily"  // ~24 hr
)

// Duration returns the expiry duration for the tier
func (t TTLClass) Duration() time.Duration {
	switch t {
	case TTLShort:
		return 5 * time.Minute
	case TTLMedium:
		return 30 * time.Minute
	case TTLLong:
		return 1 * time.Hour
	case TTLDaily:
		return 24 * time.Hour
	default:
		return 30 * time.Minute
	}
}

// Entry is a cached value with its expiry
type Entry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Backend is the interface for cache storage backends
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Close() error
}

// Config defines cache configuration
type Config struct {
	Enabled       bool          `json:"enabled"`
	CleanupPeriod time.Duration `json:"cleanup_period"` // How often to purge expired entries
	Timeout       time.Duration `json:"timeout"`        // Per-operation backend timeout
}

// DefaultConfig returns sensible defaults for caching
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		CleanupPeriod: 5 * time.Minute,
		Timeout:       2 * time.Second,
	}
}

// Stats tracks cache performance
type Stats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Errors       int64   `json:"errors"`
	TotalEntries int64   `json:"total_entries"`
	HitRate      float64 `json:"hit_rate"`
}

// Cache is the best-effort aggregate cache. Every operation swallows
// backend failures: a failed Get is a miss, a failed Set or Delete is a
// no-op. Callers must stay correct with the cache entirely down.
type Cache struct {
	backend  Backend
	config   *Config
	entries  map[string]*Entry
	mu       sync.RWMutex
	stats    Stats
	statsMu  sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates an in-memory cache instance
func New(config *Config) *Cache {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Cache{
		config:  config,
		entries: make(map[string]*Entry),
	}

	if config.Enabled && config.CleanupPeriod > 0 {
		c.stop = make(chan struct{})
		go c.cleanupLoop()
	}

	return c
}

// NewWithBackend creates a cache instance backed by an external store
func NewWithBackend(backend Backend, config *Config) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	return &Cache{
		backend: backend,
		config:  config,
	}
}

// Get retrieves a cached value. Absent, expired, and backend-error cases
// all report a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	if c.backend != nil {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		value, found, err := c.backend.Get(ctx, key)
		if err != nil {
			log.Printf("[Cache] Get %s failed, treating as miss: %v", key, err)
			c.recordError()
			return nil, false
		}
		c.recordLookup(found)
		return value, found
	}

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordLookup(false)
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		c.recordLookup(false)
		return nil, false
	}

	c.recordLookup(true)
	return entry.Value, true
}

// Set stores a value under the tier's TTL
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlClass TTLClass) {
	if !c.config.Enabled {
		return
	}

	ttl := ttlClass.Duration()

	if c.backend != nil {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		if err := c.backend.Set(ctx, key, value, ttl); err != nil {
			log.Printf("[Cache] Set %s failed, skipping: %v", key, err)
			c.recordError()
		}
		return
	}

	now := time.Now()
	c.mu.Lock()
	c.entries[key] = &Entry{
		Key:       key,
		Value:     value,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	c.mu.Unlock()
}

// Delete removes an entry from the cache
func (c *Cache) Delete(ctx context.Context, key string) {
	if !c.config.Enabled {
		return
	}

	if c.backend != nil {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		if err := c.backend.Delete(ctx, key); err != nil {
			log.Printf("[Cache] Delete %s failed, skipping: %v", key, err)
			c.recordError()
		}
		return
	}

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeletePattern removes every entry whose key matches the glob pattern
// (path.Match syntax: user_stats:alice:* etc.). Returns the number of
// entries removed, 0 on backend failure.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) int {
	if !c.config.Enabled {
		return 0
	}

	if c.backend != nil {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		removed, err := c.backend.DeletePattern(ctx, pattern)
		if err != nil {
			log.Printf("[Cache] DeletePattern %s failed, skipping: %v", pattern, err)
			c.recordError()
			return 0
		}
		return removed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if matched, err := path.Match(pattern, key); err == nil && matched {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// GetStats returns current cache statistics
func (c *Cache) GetStats() Stats {
	c.statsMu.Lock()
	stats := c.stats
	c.statsMu.Unlock()

	c.mu.RLock()
	stats.TotalEntries = int64(len(c.entries))
	c.mu.RUnlock()

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	return stats
}

// Close stops the cleanup loop and releases the backend connection if any
func (c *Cache) Close() error {
	if c.stop != nil {
		c.stopOnce.Do(func() { close(c.stop) })
	}
	if c.backend != nil {
		return c.backend.Close()
	}
	return nil
}

func (c *Cache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout > 0 {
		return context.WithTimeout(ctx, c.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// cleanupLoop periodically removes expired entries until Close
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// Cleanup removes expired entries from the in-memory store
func (c *Cache) Cleanup() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) recordLookup(hit bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
}

func (c *Cache) recordError() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats.Errors++
	c.stats.Misses++
}
