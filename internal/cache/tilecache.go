// Package cache holds decoded tiles received from the remote renderer.
package cache

import (
	"image"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"fractal-desktop/internal/tiles"
)

// DefaultCapacity bounds the number of cached tiles. A 4k canvas at a
// 128px tile size needs under a thousand tiles for both LOD passes, so the
// default leaves plenty of headroom for off-screen reuse.
const DefaultCapacity = 4096

// Tile is one received tile. Owned exclusively by the cache and never
// mutated after insertion; a re-delivery of the same key replaces the entry
// wholesale. Zoom records the viewport scale the tile was requested at:
// grid indices are zoom-scaled, so the same key names different pixel
// content at a different zoom and entries from another zoom are stale.
type Tile struct {
	Key        tiles.Key
	Image      *image.RGBA
	Zoom       float64
	ReceivedAt time.Time
}

// TileCache is an LRU-bounded store of received tiles keyed by (x, y, lod).
// Panning and zooming never clear it; a parameter change clears everything
// because pixel content is no longer valid.
type TileCache struct {
	mu       sync.RWMutex
	lru      *lru.Cache[tiles.Key, *Tile]
	capacity int
}

// New creates a tile cache holding at most capacity tiles.
func New(capacity int) (*TileCache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l, err := lru.New[tiles.Key, *Tile](capacity)
	if err != nil {
		return nil, err
	}
	return &TileCache{lru: l, capacity: capacity}, nil
}

// Put inserts a tile, replacing any existing entry with the same key.
func (c *TileCache) Put(t *Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(t.Key, t)
}

// Get returns the tile for key, if present.
func (c *TileCache) Get(key tiles.Key) (*Tile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Get(key)
}

// Has reports whether key is present without refreshing its recency.
func (c *TileCache) Has(key tiles.Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Contains(key)
}

// Len returns the number of cached tiles.
func (c *TileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Clear drops every cached tile. Called when fractal parameters change.
func (c *TileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// OrderedByLOD returns all cached tiles sorted for compositing: larger LOD
// numbers (coarser) first, so later draws of finer tiles paint over coarser
// placeholders. Ties are ordered by grid position for determinism.
func (c *TileCache) OrderedByLOD() []*Tile {
	c.mu.RLock()
	out := make([]*Tile, 0, c.lru.Len())
	for _, key := range c.lru.Keys() {
		if t, ok := c.lru.Peek(key); ok {
			out = append(out, t)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.LOD != b.LOD {
			return a.LOD > b.LOD
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return out
}

// Stats returns the entry count and capacity.
func (c *TileCache) Stats() (entries, capacity int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len(), c.capacity
}
