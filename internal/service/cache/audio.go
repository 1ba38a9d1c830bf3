package cache

import (
	"strings"
	"sync"
)

// DefaultSize 是音频缓存的默认容量。
const DefaultSize = 50

// Key normalises reply text so identical replies share one cached payload.
func Key(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Stats reports cache effectiveness.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// AudioCache maps normalised reply text to a synthesized audio data URI.
// Eviction is first-in-first-out by insertion; lookups do not refresh an entry.
type AudioCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]string
	order   []string
	hits    int64
	misses  int64
}

// NewAudioCache creates a cache holding at most max entries.
func NewAudioCache(max int) *AudioCache {
	if max < 1 {
		max = DefaultSize
	}
	return &AudioCache{
		max:     max,
		entries: make(map[string]string, max),
		order:   make([]string, 0, max+1),
	}
}

// Lookup returns the cached payload for key.
func (c *AudioCache) Lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return payload, ok
}

// Store inserts payload under key if absent, evicting the earliest inserted entry
// once the cache grows past its bound. Existing keys are left untouched.
func (c *AudioCache) Store(key, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}

	c.entries[key] = payload
	c.order = append(c.order, key)

	if len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Len returns the number of cached entries.
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache counters.
func (c *AudioCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
