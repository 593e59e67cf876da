package mermaid

import (
	"container/heap"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// SVGCache keeps compiled diagrams keyed by theme and source. Entries
// expire after a TTL and the least recently used ones are evicted when
// the byte budget is exceeded.
type SVGCache struct {
	mu          sync.Mutex
	entries     map[string]*cacheEntry
	heap        *cacheHeap
	heapLookup  map[string]*heapEntry
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	now         func() time.Time
	stats       entities.CacheStats
}

type cacheEntry struct {
	svg       string
	id        string
	size      int64
	expiresAt time.Time
}

// NewSVGCache creates a cache bounded to maxSize bytes
func NewSVGCache(maxSize int64, ttl time.Duration) *SVGCache {
	if maxSize <= 0 {
		maxSize = 32 * 1024 * 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	h := &cacheHeap{}
	heap.Init(h)

	return &SVGCache{
		entries:    make(map[string]*cacheEntry),
		heap:       h,
		heapLookup: make(map[string]*heapEntry),
		maxSize:    maxSize,
		ttl:        ttl,
		now:        time.Now,
		stats:      entities.CacheStats{MaxSize: int(maxSize)},
	}
}

// CacheKey derives the lookup key for a theme and diagram source
func CacheKey(theme entities.Theme, source string) string {
	sum := sha256.Sum256([]byte(theme.String() + "|" + source))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached svg with its element id rewritten to id.
func (c *SVGCache) Get(key, id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return "", false
	}
	if c.now().After(entry.expiresAt) {
		c.remove(key)
		c.stats.Evictions++
		c.stats.Misses++
		return "", false
	}

	c.stats.Hits++
	if he, ok := c.heapLookup[key]; ok {
		he.lastAccess = c.now()
		heap.Fix(c.heap, he.index)
	}
	return rewriteID(entry.svg, entry.id, id), true
}

// Set stores svg compiled under the element id id
func (c *SVGCache) Set(key, id, svg string) {
	if svg == "" {
		return
	}
	size := int64(len(svg) + len(id) + len(key))

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.maxSize {
		return
	}
	if _, exists := c.entries[key]; exists {
		c.remove(key)
	}
	if c.currentSize+size > c.maxSize {
		c.evictLRU(size)
	}

	now := c.now()
	c.entries[key] = &cacheEntry{svg: svg, id: id, size: size, expiresAt: now.Add(c.ttl)}
	he := &heapEntry{key: key, lastAccess: now}
	heap.Push(c.heap, he)
	c.heapLookup[key] = he
	c.currentSize += size
	c.stats.Size = len(c.entries)
}

// Clear drops every entry
func (c *SVGCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.heapLookup = make(map[string]*heapEntry)
	*c.heap = (*c.heap)[:0]
	c.currentSize = 0
	c.stats.Size = 0
}

// Stats returns a snapshot of the hit counters.
func (c *SVGCache) Stats() entities.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Cleanup removes expired entries.
func (c *SVGCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			c.remove(key)
			c.stats.Evictions++
		}
	}
	c.stats.Size = len(c.entries)
}

func (c *SVGCache) evictLRU(needed int64) {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			c.remove(key)
			c.stats.Evictions++
			if c.currentSize+needed <= c.maxSize {
				return
			}
		}
	}

	for c.currentSize+needed > c.maxSize && c.heap.Len() > 0 {
		lru := heap.Pop(c.heap).(*heapEntry)
		if entry, ok := c.entries[lru.key]; ok {
			delete(c.entries, lru.key)
			delete(c.heapLookup, lru.key)
			c.currentSize -= entry.size
			c.stats.Evictions++
		}
	}
	c.stats.Size = len(c.entries)
}

// remove expects c.mu held
func (c *SVGCache) remove(key string) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	if he, ok := c.heapLookup[key]; ok {
		heap.Remove(c.heap, he.index)
		delete(c.heapLookup, key)
	}
	delete(c.entries, key)
	c.currentSize -= entry.size
	c.stats.Size = len(c.entries)
}

// rewriteID swaps the svg root id and every css reference to it.
func rewriteID(svg, from, to string) string {
	if from == "" || from == to {
		return svg
	}
	return strings.ReplaceAll(svg, from, to)
}
