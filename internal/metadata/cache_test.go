package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mediatheque/mediatheque/internal/logger"
)

func TestCache_SetGet(t *testing.T) {
	cache := NewCache(CacheConfig{TTL: time.Hour, MaxItems: 10}, logger.Nop())

	if _, ok := cache.Get("missing"); ok {
		t.Error("Get on empty cache returned a hit")
	}

	cache.Set("key", json.RawMessage(`{"page":1}`))

	body, ok := cache.Get("key")
	if !ok {
		t.Fatal("Get after Set returned no hit")
	}
	if string(body) != `{"page":1}` {
		t.Errorf("body = %s, want {\"page\":1}", body)
	}
}

func TestCache_Expiry(t *testing.T) {
	cache := NewCache(CacheConfig{TTL: 10 * time.Millisecond, MaxItems: 10}, logger.Nop())

	cache.Set("key", json.RawMessage(`1`))
	time.Sleep(20 * time.Millisecond)

	if _, ok := cache.Get("key"); ok {
		t.Error("Get returned an expired entry")
	}
}

func TestCache_EvictionBound(t *testing.T) {
	cache := NewCache(CacheConfig{TTL: time.Hour, MaxItems: 3}, logger.Nop())

	for i := 0; i < 5; i++ {
		cache.Set(fmt.Sprintf("key-%d", i), json.RawMessage(`1`))
	}

	if got := cache.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}

func TestCache_Persistence(t *testing.T) {
	dir := t.TempDir()

	first := NewCache(CacheConfig{Dir: dir, TTL: time.Hour, MaxItems: 10}, logger.Nop())
	first.Set("search/movie?query=alien", json.RawMessage(`{"page":1}`))

	second := NewCache(CacheConfig{Dir: dir, TTL: time.Hour, MaxItems: 10}, logger.Nop())
	body, ok := second.Get("search/movie?query=alien")
	if !ok {
		t.Fatal("entry did not survive reload")
	}
	if string(body) != `{"page":1}` {
		t.Errorf("body = %s, want {\"page\":1}", body)
	}
}

func TestCache_DropsExpiredOnLoad(t *testing.T) {
	dir := t.TempDir()
	entries := map[string]cacheEntry{
		"old":   {Body: json.RawMessage(`1`), StoredAt: time.Now().Add(-48 * time.Hour)},
		"fresh": {Body: json.RawMessage(`2`), StoredAt: time.Now()},
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, cacheFileName), data, 0o644); err != nil {
		t.Fatalf("write cache file: %v", err)
	}

	cache := NewCache(CacheConfig{Dir: dir, TTL: 24 * time.Hour, MaxItems: 10}, logger.Nop())

	if _, ok := cache.Get("old"); ok {
		t.Error("expired entry survived load")
	}
	if _, ok := cache.Get("fresh"); !ok {
		t.Error("fresh entry missing after load")
	}
}

func TestCache_CorruptFileIgnored(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, cacheFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write cache file: %v", err)
	}

	cache := NewCache(CacheConfig{Dir: dir, TTL: time.Hour, MaxItems: 10}, logger.Nop())
	if got := cache.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0 after corrupt load", got)
	}

	cache.Set("key", json.RawMessage(`1`))
	if _, ok := cache.Get("key"); !ok {
		t.Error("Set after corrupt load did not stick")
	}
}
