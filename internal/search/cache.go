package search

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/ristretto"

	"github.com/rcliao/geny-memory/internal/index"
	"github.com/rcliao/geny-memory/internal/metrics"
)

// Cache memoizes ranked results per index generation. Callers bump the
// generation on every index change, so a stale entry is never keyed again.
// A nil *Cache is valid and caches nothing.
type Cache struct {
	c       *ristretto.Cache
	metrics *metrics.Metrics
}

// NewCache creates a cache holding roughly maxEntries result sets.
func NewCache(maxEntries int64, m *metrics.Metrics) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxEntries)
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create search cache: %w", err)
	}
	return &Cache{c: c, metrics: m}, nil
}

// Key identifies a (generation, query, k) lookup. Queries that tokenize to
// the same terms share a key.
func Key(gen uint64, query string, k int) string {
	return fmt.Sprintf("%d|%d|%s", gen, k, strings.Join(index.QueryTerms(query), " "))
}

// Get returns a copy of the cached results for the lookup.
func (c *Cache) Get(gen uint64, query string, k int) ([]Result, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.c.Get(Key(gen, query, k))
	c.metrics.RecordCacheLookup(ok)
	if !ok {
		return nil, false
	}
	results, ok := v.([]Result)
	if !ok {
		return nil, false
	}
	return cloneResults(results), true
}

// Put stores a copy of results. Admission is asynchronous and may be refused.
func (c *Cache) Put(gen uint64, query string, k int, results []Result) {
	if c == nil {
		return
	}
	c.c.Set(Key(gen, query, k), cloneResults(results), 1)
}

// Clear drops every cached result.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.c.Clear()
}

func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.c.Close()
}
