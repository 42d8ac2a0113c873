package query

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const tableCacheTTL = 5 * time.Minute

// TableCatalog caches the known table list. Concurrent misses share a single
// lookup.
type TableCatalog struct {
	lister TableLister
	ttl    time.Duration

	mu        sync.RWMutex
	tables    []string
	expiresAt time.Time
	sf        singleflight.Group
}

func NewTableCatalog(lister TableLister) *TableCatalog {
	return &TableCatalog{lister: lister, ttl: tableCacheTTL}
}

// WithTTL overrides the cache lifetime.
func (c *TableCatalog) WithTTL(ttl time.Duration) *TableCatalog {
	c.ttl = ttl
	return c
}

func (c *TableCatalog) ListTables(ctx context.Context) ([]string, error) {
	if tables, ok := c.cached(); ok {
		return tables, nil
	}

	v, err, _ := c.sf.Do("tables", func() (interface{}, error) {
		if tables, ok := c.cached(); ok {
			return tables, nil
		}
		tables, err := c.lister.ListTables(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tables = tables
		c.expiresAt = time.Now().Add(c.ttl)
		c.mu.Unlock()
		return tables, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Invalidate drops the cached list.
func (c *TableCatalog) Invalidate() {
	c.mu.Lock()
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *TableCatalog) cached() ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.expiresAt.IsZero() || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.tables, true
}

// UsedTables returns the known tables whose names occur in sql, in the order
// of known and without duplicates. Matching is a plain case-sensitive
// substring test, so "film" also matches a query on "film_actor".
func UsedTables(sql string, known []string) []string {
	used := make([]string, 0)
	seen := make(map[string]bool, len(known))
	for _, name := range known {
		if name == "" || seen[name] {
			continue
		}
		if strings.Contains(sql, name) {
			used = append(used, name)
			seen[name] = true
		}
	}
	return used
}
