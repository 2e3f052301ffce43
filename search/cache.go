package search

import (
	"slices"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/poiesic/sift/core"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the default number of query results kept in memory.
const DefaultCacheSize = 1024

// resultCache memoizes query results per store generation. Any committed
// write changes the generation, so stale entries are never served; they age
// out of the LRU instead of being invalidated.
type resultCache struct {
	lru   *lru.Cache[string, []*core.Record]
	group singleflight.Group
}

func newResultCache(size int) (*resultCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, []*core.Record](size)
	if err != nil {
		return nil, err
	}
	return &resultCache{lru: c}, nil
}

func cacheKey(mode Mode, generation uint64, term string) string {
	return string(mode) + "\x00" + strconv.FormatUint(generation, 10) + "\x00" + term
}

// getOrCompute returns the cached result for key, or runs compute once for
// all concurrent callers asking for the same key. cached reports a hit.
func (c *resultCache) getOrCompute(key string, compute func() ([]*core.Record, error)) (results []*core.Record, cached bool, err error) {
	if hit, ok := c.lru.Get(key); ok {
		return slices.Clone(hit), true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if hit, ok := c.lru.Get(key); ok {
			return hit, nil
		}
		computed, err := compute()
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, computed)
		return computed, nil
	})
	if err != nil {
		return nil, false, err
	}
	return slices.Clone(val.([]*core.Record)), false, nil
}

// purge drops every cached result.
func (c *resultCache) purge() {
	c.lru.Purge()
}

func (c *resultCache) len() int {
	return c.lru.Len()
}
