// Package cache implements the result cache: a bounded, TTL-expiring store
// of search responses keyed by a canonical hash of their query, with a
// resource-type reverse index supporting targeted invalidation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pmbridge/mediation-server/internal/resources"
)

// Entry is one cached response.
type Entry struct {
	QueryHash     string
	Payload       any
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ResourceTypes []resources.Type
	LastAccessed  time.Time
	AccessCount   int
}

func (e *Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Stats summarizes the cache's current contents.
type Stats struct {
	Enabled        bool
	MaxSize        int
	TTL            time.Duration
	TotalEntries   int
	ExpiredEntries int
	PerTypeCounts  map[resources.Type]int
	AvgAgeSeconds  float64
}

// Cache is a mutex-guarded map of query-hash to cached response, with a
// reverse index from resource type to the set of query hashes touching it.
// All mutating operations take the single write lock; there is no
// fine-grained sharding.
type Cache struct {
	mu             sync.Mutex
	enabled        bool
	ttl            time.Duration
	maxSize        int
	minAccessCount int
	evictionSlack  int

	entries map[string]*Entry
	byType  map[resources.Type]map[string]struct{}
}

// New builds a cache from the given configuration values.
func New(enabled bool, ttl time.Duration, maxSize, minAccessCount, evictionSlack int) *Cache {
	return &Cache{
		enabled:        enabled,
		ttl:            ttl,
		maxSize:        maxSize,
		minAccessCount: minAccessCount,
		evictionSlack:  evictionSlack,
		entries:        make(map[string]*Entry),
		byType:         make(map[resources.Type]map[string]struct{}),
	}
}

// HashQuery canonicalizes an arbitrary query representation into a stable
// digest: the value is marshaled to JSON with sorted map keys (Go's
// encoding/json already sorts map[string]any keys), then sha256-hashed.
func HashQuery(q any) string {
	b, err := json.Marshal(q)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached payload for a query hash. A miss is returned both
// when the key is absent and when the entry has expired; in the latter case
// the entry is removed from the index as a side effect.
func (c *Cache) Get(hash string) (any, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[hash]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if entry.expired(now) {
		c.removeLocked(hash)
		return nil, false
	}

	entry.LastAccessed = now
	entry.AccessCount++
	return entry.Payload, true
}

// Set inserts or replaces the cached response for a query hash. ttl, if
// non-zero, overrides the cache's default entry lifetime for this insert.
func (c *Cache) Set(hash string, payload any, types []resources.Type, ttl time.Duration) {
	if !c.enabled {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.removeLocked(hash)

	entry := &Entry{
		QueryHash:     hash,
		Payload:       payload,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		ResourceTypes: types,
		LastAccessed:  now,
		AccessCount:   0,
	}
	c.entries[hash] = entry
	for _, t := range types {
		set, ok := c.byType[t]
		if !ok {
			set = make(map[string]struct{})
			c.byType[t] = set
		}
		set[hash] = struct{}{}
	}

	c.cleanupLocked(now)
}

// Invalidate drops every entry touching resourceType. Called with no
// argument's zero value (resources.Type("")), it clears the whole cache.
func (c *Cache) Invalidate(resourceType resources.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if resourceType == "" {
		c.entries = make(map[string]*Entry)
		c.byType = make(map[resources.Type]map[string]struct{})
		return
	}

	for hash := range c.byType[resourceType] {
		c.removeLocked(hash)
	}
}

// removeLocked deletes an entry from both the entry map and every resource
// type's reverse-index set. Caller must hold mu.
func (c *Cache) removeLocked(hash string) {
	entry, ok := c.entries[hash]
	if !ok {
		return
	}
	delete(c.entries, hash)
	for _, t := range entry.ResourceTypes {
		set := c.byType[t]
		delete(set, hash)
		if len(set) == 0 {
			delete(c.byType, t)
		}
	}
}

// cleanupLocked runs the three-step capacity cleanup once the entry count
// exceeds maxSize: drop expired entries, then entries below the
// minimum access count, then least-recently-used entries down to
// maxSize-evictionSlack. Caller must hold mu.
func (c *Cache) cleanupLocked(now time.Time) {
	if c.maxSize <= 0 || len(c.entries) <= c.maxSize {
		return
	}

	for hash, entry := range c.entries {
		if entry.expired(now) {
			c.removeLocked(hash)
		}
	}
	if len(c.entries) <= c.maxSize {
		return
	}

	for hash, entry := range c.entries {
		if entry.AccessCount < c.minAccessCount {
			c.removeLocked(hash)
		}
	}
	if len(c.entries) <= c.maxSize {
		return
	}

	target := c.maxSize - c.evictionSlack
	if target < 0 {
		target = 0
	}
	if len(c.entries) <= target {
		return
	}

	type candidate struct {
		hash         string
		lastAccessed time.Time
	}
	candidates := make([]candidate, 0, len(c.entries))
	for hash, entry := range c.entries {
		candidates = append(candidates, candidate{hash, entry.LastAccessed})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccessed.Before(candidates[j].lastAccessed)
	})

	for _, cand := range candidates {
		if len(c.entries) <= target {
			break
		}
		c.removeLocked(cand.hash)
	}
}

// Stats reports the cache's current size and composition.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	stats := Stats{
		Enabled:       c.enabled,
		MaxSize:       c.maxSize,
		TTL:           c.ttl,
		TotalEntries:  len(c.entries),
		PerTypeCounts: make(map[resources.Type]int),
	}

	var totalAge time.Duration
	for _, entry := range c.entries {
		if entry.expired(now) {
			stats.ExpiredEntries++
		}
		totalAge += now.Sub(entry.CreatedAt)
		for _, t := range entry.ResourceTypes {
			stats.PerTypeCounts[t]++
		}
	}
	if len(c.entries) > 0 {
		stats.AvgAgeSeconds = totalAge.Seconds() / float64(len(c.entries))
	}
	return stats
}
