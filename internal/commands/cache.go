package commands

import (
	"strings"
	"sync"
	"time"
)

type CacheItem struct {
	ChartData  []byte
	Caption    string
	Expiration time.Time
}

// chartCache keeps rendered charts per coin id for a few minutes.
type chartCache struct {
	mu    sync.Mutex
	items map[string]*CacheItem
	now   func() time.Time
}

func newChartCache() *chartCache {
	return &chartCache{items: make(map[string]*CacheItem), now: time.Now}
}

func (c *chartCache) get(key string) (*CacheItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[strings.ToLower(key)]; found && c.now().Before(item.Expiration) {
		return item, true
	}
	return nil, false
}

func (c *chartCache) set(key string, chartData []byte, caption string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[strings.ToLower(key)] = &CacheItem{
		ChartData:  chartData,
		Caption:    caption,
		Expiration: c.now().Add(duration),
	}
}
