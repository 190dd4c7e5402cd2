package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mediatheque/mediatheque/internal/logger"
)

const cacheFileName = "catalog_cache.json"

// CacheConfig holds cache configuration. An empty Dir keeps the cache
// memory-only.
type CacheConfig struct {
	Dir      string
	TTL      time.Duration
	MaxItems int
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:      24 * time.Hour,
		MaxItems: 2000,
	}
}

// Cache stores raw provider responses keyed by request fingerprint,
// in memory and mirrored to a JSON file so repeated runs do not
// re-query the upstreams. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	ttl      time.Duration
	maxItems int
	path     string
	logger   *logger.Logger
}

type cacheEntry struct {
	Body     json.RawMessage `json:"body"`
	StoredAt time.Time       `json:"stored_at"`
}

// NewCache creates a cache and loads any persisted entries that have
// not expired.
func NewCache(cfg CacheConfig, log *logger.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultCacheConfig().MaxItems
	}

	c := &Cache{
		entries:  make(map[string]cacheEntry),
		ttl:      cfg.TTL,
		maxItems: cfg.MaxItems,
		logger:   log,
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", cfg.Dir).Msg("Cache directory unavailable, keeping cache in memory")
		} else {
			c.path = filepath.Join(cfg.Dir, cacheFileName)
			c.load()
		}
	}

	return c
}

// Get returns the cached body for key if present and fresh.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.StoredAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.Body, true
}

// Set stores a body under key and persists the cache.
func (c *Cache) Set(key string, body json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{Body: body, StoredAt: time.Now()}
	for len(c.entries) > c.maxItems {
		c.evictOldest()
	}
	c.persist()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest removes the entry with the oldest StoredAt. Caller
// holds the lock.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.StoredAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.StoredAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn().Err(err).Str("path", c.path).Msg("Failed to read catalog cache")
		}
		return
	}

	var entries map[string]cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("Discarding corrupt catalog cache")
		return
	}

	now := time.Now()
	for key, entry := range entries {
		if now.Sub(entry.StoredAt) < c.ttl {
			c.entries[key] = entry
		}
	}
}

// persist writes the cache file atomically. Caller holds the lock.
func (c *Cache) persist() {
	if c.path == "" {
		return
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to encode catalog cache")
		return
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		c.logger.Warn().Err(err).Str("path", tmp).Msg("Failed to write catalog cache")
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("Failed to replace catalog cache")
	}
}
