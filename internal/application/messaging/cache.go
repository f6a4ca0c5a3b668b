package messaging

import (
	"sync"

	"motorhub-backend/internal/domain"
)

// conversationCache memoizes DeriveConversations per user. Entries are tagged
// with the log generation they were computed from; any write to the log bumps
// the generation and thereby invalidates every entry at once.
type conversationCache struct {
	mu         sync.Mutex
	generation uint64
	entries    map[string]cacheEntry
}

type cacheEntry struct {
	generation    uint64
	conversations []domain.Conversation
}

func newConversationCache() *conversationCache {
	return &conversationCache{entries: make(map[string]cacheEntry)}
}

// snapshot returns the current generation, to be passed to put once the
// conversations computed from a log read are ready.
func (c *conversationCache) snapshot() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *conversationCache) get(userID string) ([]domain.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok || e.generation != c.generation {
		return nil, false
	}
	return cloneConversations(e.conversations), true
}

// put stores convs unless the log has changed since generation was taken.
func (c *conversationCache) put(userID string, generation uint64, convs []domain.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.entries[userID] = cacheEntry{generation: generation, conversations: cloneConversations(convs)}
}

func (c *conversationCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	clear(c.entries)
}

func cloneConversations(in []domain.Conversation) []domain.Conversation {
	return append(make([]domain.Conversation, 0, len(in)), in...)
}
