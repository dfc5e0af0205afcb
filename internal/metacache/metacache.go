// Package metacache keeps table metadata per connection so the validator and
// the editor do not re-read the catalog on every request. Concurrent misses
// for the same key share one fetch.
package metacache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"gridedit/internal/core"
)

// Key identifies one table on one connection.
type Key struct {
	ConnectionID string
	Schema       string
	Table        string
}

func (k Key) String() string {
	return k.ConnectionID + "/" + core.QualifiedName(k.Schema, k.Table)
}

// FetchFunc reads the metadata of one table from the database.
type FetchFunc func(ctx context.Context) (*core.TableMeta, error)

// Cache is safe for concurrent use. Entries live until they are invalidated.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*core.TableMeta
	group   singleflight.Group
}

func New() *Cache {
	return &Cache{entries: make(map[Key]*core.TableMeta)}
}

// Get returns the cached metadata for key, calling fetch on a miss. Failed
// fetches are not cached.
func (c *Cache) Get(ctx context.Context, key Key, fetch FetchFunc) (*core.TableMeta, error) {
	c.mu.RLock()
	meta, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return meta, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		meta, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return nil, fmt.Errorf("no metadata returned for %s", key)
		}
		c.mu.Lock()
		c.entries[key] = meta
		c.mu.Unlock()
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.TableMeta), nil
}

// Peek returns the cached entry without fetching.
func (c *Cache) Peek(key Key) (*core.TableMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.entries[key]
	return meta, ok
}

// Invalidate drops one entry; the next Get fetches again.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key.String())
}

// ClearConnection drops every entry of one connection.
func (c *Cache) ClearConnection(connectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.ConnectionID == connectionID {
			delete(c.entries, k)
			c.group.Forget(k.String())
		}
	}
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		c.group.Forget(k.String())
	}
	c.entries = make(map[Key]*core.TableMeta)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
