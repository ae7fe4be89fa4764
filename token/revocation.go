package token

import (
	"sync"
	"time"
)

// ReplayCache remembers token ids until they expire so a receiver can refuse
// a second presentation of the same internal token.
type ReplayCache interface {
	// MarkSeen records jti and reports whether it had already been seen
	MarkSeen(jti string, exp time.Time) bool
	Cleanup(now time.Time) // Remove expired entries
}

// InMemoryReplayCache is a simple in-memory implementation
type InMemoryReplayCache struct {
	seen map[string]time.Time
	mu   sync.Mutex
}

func NewInMemoryReplayCache() *InMemoryReplayCache {
	return &InMemoryReplayCache{
		seen: make(map[string]time.Time),
	}
}

func (c *InMemoryReplayCache) MarkSeen(jti string, exp time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.seen[jti]; exists {
		return true
	}
	c.seen[jti] = exp
	return false
}

func (c *InMemoryReplayCache) Cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for jti, exp := range c.seen {
		if now.After(exp) {
			delete(c.seen, jti)
		}
	}
}

// Len is the number of ids currently remembered
func (c *InMemoryReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
