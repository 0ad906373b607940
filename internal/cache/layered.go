package cache

import "time"

// LayeredCache reads memory first, then disk, and writes both
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache // nil when no directory is configured
}

// NewLayeredCache creates a layered cache. An empty diskDir keeps everything in memory.
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	c := &LayeredCache{memory: NewMemoryCache(memoryTTL, 10*time.Minute)}
	if diskDir != "" {
		c.disk = NewDiskCache(diskDir, diskTTL)
	}
	return c
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}
	if c.disk == nil {
		return nil, false
	}
	val, found := c.disk.Get(key)
	if found {
		_ = c.memory.Set(key, val, 0)
	}
	return val, found
}

func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	if c.disk != nil {
		return c.disk.Set(key, value, ttl)
	}
	return nil
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	if c.disk != nil {
		return c.disk.Delete(key)
	}
	return nil
}

func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	if c.disk != nil {
		return c.disk.Clear()
	}
	return nil
}

// Prune drops expired disk entries
func (c *LayeredCache) Prune() (int, error) {
	if c.disk == nil {
		return 0, nil
	}
	return c.disk.Prune()
}
