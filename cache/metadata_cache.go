package cache

import (
	"sync"

	"weradio/logger"
	"weradio/model"
)

// MetadataCache is a bounded in-memory cache of parsed track metadata,
// keyed by track identifier. When the cache grows past its cap, the
// oldest-inserted entries are evicted. The check runs opportunistically
// before each read.
type MetadataCache struct {
	mu      sync.Mutex
	entries map[string]model.TrackMetadata
	order   []string // insertion order, oldest first
	max     int
}

// NewMetadataCache creates a metadata cache holding at most max entries.
func NewMetadataCache(max int) *MetadataCache {
	if max < 1 {
		max = 1
	}
	return &MetadataCache{
		entries: make(map[string]model.TrackMetadata),
		max:     max,
	}
}

// Get returns the cached metadata for a track, cleaning overflow first.
func (c *MetadataCache) Get(id string) (model.TrackMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanLocked()

	meta, ok := c.entries[id]
	return meta, ok
}

// Put stores metadata for a track. Re-inserting an existing key keeps its
// original age.
func (c *MetadataCache) Put(id string, meta model.TrackMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; !exists {
		c.order = append(c.order, id)
	}
	c.entries[id] = meta
}

// Delete removes a single entry.
func (c *MetadataCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; !exists {
		return
	}
	delete(c.entries, id)
	for i, key := range c.order {
		if key == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached entries.
func (c *MetadataCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MetadataCache) cleanLocked() {
	if len(c.entries) <= c.max {
		return
	}

	toRemove := len(c.entries) - c.max
	for _, key := range c.order[:toRemove] {
		delete(c.entries, key)
	}
	c.order = c.order[toRemove:]

	logger.Debug("元数据缓存已清理", logger.Int("removed", toRemove))
}
