package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/gavinwade12/canLogger/protocols/slcan"
)

// CachedMessage is the latest observation of one identifier.
type CachedMessage struct {
	ID       string    `json:"id"`
	Data     string    `json:"data"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"lastSeen"`
	Extended bool      `json:"extended"`
}

// MessageCache keeps one entry per identifier.
type MessageCache struct {
	mu      sync.RWMutex
	entries map[string]*CachedMessage
}

// NewMessageCache returns an empty cache.
func NewMessageCache() *MessageCache {
	return &MessageCache{entries: make(map[string]*CachedMessage)}
}

// Upsert records f. An existing entry has its count incremented and its data,
// timestamp and extended flag overwritten.
func (c *MessageCache) Upsert(f slcan.Frame, at time.Time) CachedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[f.ID]
	if !ok {
		e = &CachedMessage{ID: f.ID}
		c.entries[f.ID] = e
	}
	e.Count++
	e.Data = f.DisplayData()
	e.LastSeen = at
	e.Extended = f.Extended
	return *e
}

// Get returns the entry for id.
func (c *MessageCache) Get(id string) (CachedMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return CachedMessage{}, false
	}
	return *e, true
}

// Snapshot returns a copy of every entry ordered by id.
func (c *MessageCache) Snapshot() []CachedMessage {
	c.mu.RLock()
	out := make([]CachedMessage, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of identifiers seen.
func (c *MessageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every entry.
func (c *MessageCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CachedMessage)
}
