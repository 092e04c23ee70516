package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fruitsalade/docnav/internal/metrics"
)

// cacheEntry is an archive copied to local disk.
type cacheEntry struct {
	key        string
	localPath  string
	size       int64
	lastAccess time.Time
	pinned     bool
}

// Cache keeps local copies of archives so that entries can be read with
// random access. Least recently used copies are evicted past maxSize.
type Cache struct {
	dir     string
	maxSize int64

	mu      sync.Mutex
	entries map[string]*cacheEntry
	size    int64
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string, maxSize int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{
		dir:     dir,
		maxSize: maxSize,
		entries: make(map[string]*cacheEntry),
	}, nil
}

func fileName(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:16]) + ".zip"
}

// Get returns the local path of a cached archive.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	entry.lastAccess = time.Now()
	return entry.localPath, true
}

// Put stores an archive in the cache.
// Content is written atomically (temp file then rename).
func (c *Cache) Put(key string, r io.Reader, size int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.size+size > c.maxSize {
		if !c.evictOldest() {
			break
		}
	}

	localPath := filepath.Join(c.dir, fileName(key))
	f, err := os.CreateTemp(c.dir, ".archive-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := f.Name()

	written, err := io.Copy(f, r)
	f.Close()
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("write content: %w", err)
	}

	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("rename temp file: %w", err)
	}

	if old, ok := c.entries[key]; ok {
		c.size -= old.size
	}
	c.entries[key] = &cacheEntry{
		key:        key,
		localPath:  localPath,
		size:       written,
		lastAccess: time.Now(),
	}
	c.size += written
	metrics.SetArchiveCacheBytes(c.size)

	return localPath, nil
}

// Pin keeps an archive from being evicted while it is open.
func (c *Cache) Pin(key string, pinned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		entry.pinned = pinned
	}
}

// Evict removes an archive from the cache.
func (c *Cache) Evict(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if entry.pinned {
		return fmt.Errorf("cannot evict pinned archive: %s", key)
	}
	c.remove(entry)
	return nil
}

// evictOldest removes the least recently used unpinned archive.
// Must be called with lock held.
func (c *Cache) evictOldest() bool {
	var oldest *cacheEntry
	for _, entry := range c.entries {
		if entry.pinned {
			continue
		}
		if oldest == nil || entry.lastAccess.Before(oldest.lastAccess) {
			oldest = entry
		}
	}
	if oldest == nil {
		return false
	}
	c.remove(oldest)
	return true
}

func (c *Cache) remove(entry *cacheEntry) {
	os.Remove(entry.localPath)
	c.size -= entry.size
	delete(c.entries, entry.key)
	metrics.SetArchiveCacheBytes(c.size)
}

// Stats returns cache statistics.
func (c *Cache) Stats() (size, maxSize int64, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size, c.maxSize, len(c.entries)
}

// Clear removes every unpinned archive.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if !entry.pinned {
			c.remove(entry)
		}
	}
}
