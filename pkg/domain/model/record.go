package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/oppuna-lab/oppuna/pkg/domain/types"
)

// EmbeddingDimension is the dimension of the embedding vector
// generated by the model service's embedding endpoint.
const EmbeddingDimension = 768

// MemoryRecordID is a UUID-based identifier for MemoryRecord
type MemoryRecordID string

// NewMemoryRecordID generates a new UUID v4 MemoryRecordID
func NewMemoryRecordID() MemoryRecordID {
	return MemoryRecordID(uuid.New().String())
}

// MemoryRecord represents one chat turn stored as conversational memory.
// Records are immutable once written: they are only appended and read,
// never mutated. Under the fallback store the embedding may be nil, in
// which case search for that record drops to keyword/recency ranking.
type MemoryRecord struct {
	ID        MemoryRecordID
	UserID    string
	Role      types.Role
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// Clone returns a deep copy of the record.
func (r *MemoryRecord) Clone() *MemoryRecord {
	copied := &MemoryRecord{
		ID:        r.ID,
		UserID:    r.UserID,
		Role:      r.Role,
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
	}
	if r.Embedding != nil {
		copied.Embedding = make([]float32, len(r.Embedding))
		copy(copied.Embedding, r.Embedding)
	}
	return copied
}

// ChatTurnResult is the orchestrator's output for one chat exchange.
// It is constructed per request and never stored.
type ChatTurnResult struct {
	Reply               string
	Crisis              bool
	FollowUpSuggestions []string

	// Degraded is true when the reply came from canned fallback content
	// instead of the model service.
	Degraded bool
}
