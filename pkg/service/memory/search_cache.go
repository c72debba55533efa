package memory

import (
	"sync"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
)

type searchKey struct {
	query string
	limit int
}

// SearchCache caches recall results per user and query. Invalidation is
// coarse: any write for a user drops every cached result for that user.
// Chat traffic is read-after-write within a conversation, so precise
// per-query invalidation would buy little.
type SearchCache struct {
	mu      sync.RWMutex
	entries map[string]map[searchKey][]*model.MemoryRecord
}

// NewSearchCache creates an empty search cache.
func NewSearchCache() *SearchCache {
	return &SearchCache{
		entries: make(map[string]map[searchKey][]*model.MemoryRecord),
	}
}

// Lookup returns the cached result for (userID, query, limit), if any.
func (c *SearchCache) Lookup(userID, query string, limit int) ([]*model.MemoryRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bucket, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	records, ok := bucket[searchKey{query: query, limit: limit}]
	if !ok {
		return nil, false
	}

	return cloneRecords(records), true
}

// Store caches a recall result.
func (c *SearchCache) Store(userID, query string, limit int, records []*model.MemoryRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.entries[userID]
	if !ok {
		bucket = make(map[searchKey][]*model.MemoryRecord)
		c.entries[userID] = bucket
	}
	bucket[searchKey{query: query, limit: limit}] = cloneRecords(records)
}

// Invalidate drops every cached result for the user.
func (c *SearchCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, userID)
}

func cloneRecords(records []*model.MemoryRecord) []*model.MemoryRecord {
	cloned := make([]*model.MemoryRecord, len(records))
	for i, rec := range records {
		cloned[i] = rec.Clone()
	}
	return cloned
}
