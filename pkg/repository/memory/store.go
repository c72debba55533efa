package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/oppuna-lab/oppuna/pkg/domain/model"
)

// Store is the in-process fallback memory store: an append-only sequence of
// records per user, kept for the lifetime of the process. It is the
// replacement used when the vector database is unreachable, so none of its
// operations ever return an unreachable-class error.
//
// Ranking is explicit about degradation: when both the query and a record
// carry embeddings, records rank by cosine similarity; records without an
// embedding rank by keyword containment and then recency. Mixed result sets
// put semantic matches first.
type Store struct {
	mu      sync.RWMutex
	records map[string][]*model.MemoryRecord
}

// New creates an empty fallback store.
func New() *Store {
	return &Store{
		records: make(map[string][]*model.MemoryRecord),
	}
}

// Add appends a record for its user. Records without an embedding are
// accepted; they simply fall out of semantic ranking.
func (s *Store) Add(ctx context.Context, record *model.MemoryRecord) error {
	if record == nil {
		return goerr.New("record is nil")
	}
	if record.UserID == "" {
		return goerr.New("record user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := record.Clone()
	if stored.ID == "" {
		stored.ID = model.NewMemoryRecordID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.records[record.UserID] = append(s.records[record.UserID], stored)
	return nil
}

// Search returns up to limit records for the user, most relevant first.
func (s *Store) Search(ctx context.Context, userID string, query string, embedding []float32, limit int) ([]*model.MemoryRecord, error) {
	if limit <= 0 {
		return []*model.MemoryRecord{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, exists := s.records[userID]
	if !exists || len(bucket) == 0 {
		return []*model.MemoryRecord{}, nil
	}

	type scored struct {
		record   *model.MemoryRecord
		semantic bool
		score    float64
	}

	queryLower := strings.ToLower(query)
	candidates := make([]scored, 0, len(bucket))
	for _, rec := range bucket {
		c := scored{record: rec.Clone()}
		if len(embedding) > 0 && len(rec.Embedding) > 0 {
			c.semantic = true
			c.score = cosineSimilarity(embedding, rec.Embedding)
		} else if queryLower != "" && strings.Contains(strings.ToLower(rec.Text), queryLower) {
			c.score = 1
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].semantic != candidates[j].semantic {
			return candidates[i].semantic
		}
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].record.CreatedAt.After(candidates[j].record.CreatedAt)
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}

	result := make([]*model.MemoryRecord, limit)
	for i := 0; i < limit; i++ {
		result[i] = candidates[i].record
	}

	return result, nil
}

// Forget removes all records for the user.
func (s *Store) Forget(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}

// Close releases resources. The fallback store holds everything in memory,
// so there is nothing to release.
func (s *Store) Close() error {
	return nil
}

// Count returns the number of records stored for the user.
func (s *Store) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records[userID])
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
