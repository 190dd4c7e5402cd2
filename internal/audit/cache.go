package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mediatheque/mediatheque/internal/logger"
)

const (
	scanCacheFileName = "quality_scan_cache.json"
	scanCacheTTL      = 24 * time.Hour
)

// scanCache remembers per-entity scan outcomes so repeated runs within
// the TTL skip the parse and probe work. Entries carry the entity
// fingerprint they were computed from; a row write changes the
// fingerprint and retires the entry without touching its neighbors.
// Clean outcomes are cached too, as entries without a finding.
type scanCache struct {
	mu      sync.Mutex
	entries map[string]scanCacheEntry
	ttl     time.Duration
	path    string
	logger  *logger.Logger
}

type scanCacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Finding     *Finding  `json:"finding,omitempty"`
	StoredAt    time.Time `json:"storedAt"`
}

// newScanCache creates the cache and loads persisted entries that are
// still fresh. An empty dir keeps the cache memory-only.
func newScanCache(dir string, log *logger.Logger) *scanCache {
	c := &scanCache{
		entries: make(map[string]scanCacheEntry),
		ttl:     scanCacheTTL,
		logger:  log,
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Cache directory unavailable, keeping scan cache in memory")
		} else {
			c.path = filepath.Join(dir, scanCacheFileName)
			c.load()
		}
	}
	return c
}

func cacheKey(entityType EntityType, entityID int64) string {
	return fmt.Sprintf("%s:%d", entityType, entityID)
}

// get returns the entry for key when it is fresh and was computed from
// the same fingerprint.
func (c *scanCache) get(key, fingerprint string) (scanCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return scanCacheEntry{}, false
	}
	if time.Since(entry.StoredAt) >= c.ttl || entry.Fingerprint != fingerprint {
		delete(c.entries, key)
		return scanCacheEntry{}, false
	}
	return entry, true
}

// put stores a scan outcome. A nil finding records a clean result.
func (c *scanCache) put(key, fingerprint string, finding *Finding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = scanCacheEntry{
		Fingerprint: fingerprint,
		Finding:     finding,
		StoredAt:    time.Now(),
	}
	c.persist()
}

// invalidate drops the entry for one entity. The rest of the cache
// stays as it is.
func (c *scanCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	c.persist()
}

func (c *scanCache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn().Err(err).Str("path", c.path).Msg("Failed to read scan cache")
		}
		return
	}

	var entries map[string]scanCacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("Discarding corrupt scan cache")
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
func (c *scanCache) persist() {
	if c.path == "" {
		return
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to encode scan cache")
		return
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		c.logger.Warn().Err(err).Str("path", tmp).Msg("Failed to write scan cache")
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("Failed to replace scan cache")
	}
}
