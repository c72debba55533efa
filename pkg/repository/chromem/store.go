package chromem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/domain/types"
)

// Store is the persistent vector store variant backed by chromem-go, an
// embedded vector database. Records are written to disk so memory survives
// process restarts. Each user gets their own collection for namespace
// isolation.
//
// Storage failures are wrapped as types.ErrStoreUnavailable so the memory
// manager can apply its retry-then-degrade policy without knowing the
// backend.
type Store struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// New creates a persistent store writing to path. An empty path keeps the
// database in memory only (useful for tests).
func New(path string) (*Store, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, goerr.Wrap(types.ErrStoreUnavailable, "failed to open vector database",
				goerr.V("path", path), goerr.V("cause", err.Error()))
		}
	}

	return &Store{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func collectionName(userID string) string {
	return fmt.Sprintf("user_%s", userID)
}

func (s *Store) getOrCreateCollection(userID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[userID]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[userID]; exists {
		return col, nil
	}

	col, err := s.db.GetOrCreateCollection(collectionName(userID), nil, nil)
	if err != nil {
		return nil, goerr.Wrap(types.ErrStoreUnavailable, "failed to open collection",
			goerr.V("userID", userID), goerr.V("cause", err.Error()))
	}

	s.collections[userID] = col
	return col, nil
}

// Add stores a record with its embedding. Records must carry a non-nil
// embedding before reaching the persistent branch.
func (s *Store) Add(ctx context.Context, record *model.MemoryRecord) error {
	if record == nil {
		return goerr.New("record is nil")
	}
	if len(record.Embedding) == 0 {
		return goerr.New("record embedding is required for the persistent store",
			goerr.V("userID", record.UserID))
	}

	col, err := s.getOrCreateCollection(record.UserID)
	if err != nil {
		return err
	}

	stored := record.Clone()
	if stored.ID == "" {
		stored.ID = model.NewMemoryRecordID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	doc := chromem.Document{
		ID:        string(stored.ID),
		Content:   stored.Text,
		Embedding: stored.Embedding,
		Metadata: map[string]string{
			"user_id":    stored.UserID,
			"role":       stored.Role.String(),
			"created_at": stored.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(types.ErrStoreUnavailable, "failed to add document",
			goerr.V("userID", record.UserID), goerr.V("cause", err.Error()))
	}

	return nil
}

// Search performs similarity search scoped to the user, ordered descending
// by cosine similarity with ties broken by most-recent timestamp. The query
// text is unused here; it exists for the fallback variant's keyword ranking.
func (s *Store) Search(ctx context.Context, userID string, query string, embedding []float32, limit int) ([]*model.MemoryRecord, error) {
	if limit <= 0 {
		return []*model.MemoryRecord{}, nil
	}
	if len(embedding) == 0 {
		return nil, goerr.New("query embedding is required for the persistent store",
			goerr.V("userID", userID))
	}

	col, err := s.getOrCreateCollection(userID)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection size.
	if n := col.Count(); limit > n {
		limit = n
	}
	if limit == 0 {
		return []*model.MemoryRecord{}, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(types.ErrStoreUnavailable, "failed to query collection",
			goerr.V("userID", userID), goerr.V("cause", err.Error()))
	}

	records := make([]*model.MemoryRecord, 0, len(results))
	scores := make(map[model.MemoryRecordID]float32, len(results))
	for _, result := range results {
		rec := resultToRecord(userID, result)
		scores[rec.ID] = result.Similarity
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if scores[records[i].ID] != scores[records[j].ID] {
			return scores[records[i].ID] > scores[records[j].ID]
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// Forget drops the user's collection.
func (s *Store) Forget(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(collectionName(userID)); err != nil {
		return goerr.Wrap(types.ErrStoreUnavailable, "failed to delete collection",
			goerr.V("userID", userID), goerr.V("cause", err.Error()))
	}
	delete(s.collections, userID)
	return nil
}

// Close releases resources. chromem persists on write, so there is nothing
// to flush.
func (s *Store) Close() error {
	return nil
}

func resultToRecord(userID string, result chromem.Result) *model.MemoryRecord {
	createdAt, _ := time.Parse(time.RFC3339Nano, result.Metadata["created_at"])
	role, _ := types.ParseRole(result.Metadata["role"])

	rec := &model.MemoryRecord{
		ID:        model.MemoryRecordID(result.ID),
		UserID:    userID,
		Role:      role,
		Text:      result.Content,
		CreatedAt: createdAt,
	}
	if len(result.Embedding) > 0 {
		rec.Embedding = make([]float32, len(result.Embedding))
		copy(rec.Embedding, result.Embedding)
	}
	return rec
}
