// Package cache keeps recently built mappers keyed by a digest of their input,
// so repeated queries against the same flattened text skip the scan.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/Sumatoshi-tech/linemap/pkg/linemap"
)

// bytesPerKB is the number of bytes in a kilobyte.
const bytesPerKB = 1024.0

// evictionSampleSize is the number of LRU candidates sampled for size-aware eviction.
const evictionSampleSize = 5

// MapperCache is a thread-safe LRU of mappers. It is bounded by entry count
// and by the total size of the source texts the mappers were built from.
// A zero bound disables that limit.
type MapperCache struct {
	mu          sync.Mutex
	entries     map[string]*lruEntry
	head        *lruEntry // Most recently used.
	tail        *lruEntry // Least recently used.
	maxEntries  int
	maxSize     int64
	currentSize int64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type lruEntry struct {
	key         string
	mapper      *linemap.Mapper
	size        int64
	accessCount int64
	prev        *lruEntry
	next        *lruEntry
}

// evictionCost favours evicting large, rarely used entries.
func (e *lruEntry) evictionCost() float64 {
	sizeKB := max(float64(e.size)/bytesPerKB, 1)

	return float64(e.accessCount) / sizeKB
}

// New creates a cache holding at most maxEntries mappers whose sources total
// at most maxSize bytes.
func New(maxEntries int, maxSize int64) *MapperCache {
	return &MapperCache{
		entries:    make(map[string]*lruEntry),
		maxEntries: max(maxEntries, 0),
		maxSize:    max(maxSize, 0),
	}
}

// Digest returns the cache key for a build input.
func Digest(text, topLevel, pattern string) string {
	h := sha256.New()

	for _, part := range []string{pattern, topLevel, text} {
		var n [8]byte

		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write([]byte(part))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached mapper for key, or nil.
func (c *MapperCache) Get(key string) *linemap.Mapper {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)

		return nil
	}

	c.hits.Add(1)

	entry.accessCount++
	c.moveToFront(entry)

	return entry.mapper
}

// Put stores m under key. size is the byte length of the source text.
// Mappers larger than the whole byte bound are not cached.
func (c *MapperCache) Put(key string, m *linemap.Mapper, size int64) {
	if m == nil || (c.maxSize > 0 && size > c.maxSize) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.accessCount++
		c.moveToFront(entry)

		return
	}

	for c.maxEntries > 0 && len(c.entries) >= c.maxEntries && c.tail != nil {
		c.evict(c.tail)
	}

	for c.maxSize > 0 && c.currentSize+size > c.maxSize && c.tail != nil {
		c.evictLowestCost()
	}

	entry := &lruEntry{key: key, mapper: m, size: size, accessCount: 1}

	c.entries[key] = entry
	c.currentSize += size
	c.addToFront(entry)
}

// Len returns the number of cached mappers.
func (c *MapperCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Size returns the total source bytes of cached mappers.
func (c *MapperCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.currentSize
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Entries     int
	CurrentSize int64
	MaxSize     int64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}

	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of the cache counters.
func (c *MapperCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Entries:     len(c.entries),
		CurrentSize: c.currentSize,
		MaxSize:     c.maxSize,
	}
}

// Clear removes all entries. Counters are kept.
func (c *MapperCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*lruEntry)
	c.head = nil
	c.tail = nil
	c.currentSize = 0
}

func (c *MapperCache) moveToFront(entry *lruEntry) {
	if entry == c.head {
		return
	}

	c.removeFromList(entry)
	c.addToFront(entry)
}

func (c *MapperCache) addToFront(entry *lruEntry) {
	entry.prev = nil
	entry.next = c.head

	if c.head != nil {
		c.head.prev = entry
	}

	c.head = entry

	if c.tail == nil {
		c.tail = entry
	}
}

func (c *MapperCache) removeFromList(entry *lruEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		c.head = entry.next
	}

	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		c.tail = entry.prev
	}
}

func (c *MapperCache) evict(entry *lruEntry) {
	c.removeFromList(entry)
	delete(c.entries, entry.key)
	c.currentSize -= entry.size
	c.evictions.Add(1)
}

// evictLowestCost samples the LRU tail and evicts the cheapest candidate.
func (c *MapperCache) evictLowestCost() {
	victim := c.tail
	if victim == nil {
		return
	}

	lowestCost := victim.evictionCost()

	entry := victim.prev
	for range evictionSampleSize - 1 {
		if entry == nil {
			break
		}

		if cost := entry.evictionCost(); cost < lowestCost {
			lowestCost = cost
			victim = entry
		}

		entry = entry.prev
	}

	c.evict(victim)
}
