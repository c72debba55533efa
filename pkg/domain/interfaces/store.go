package interfaces

import (
	"context"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
)

// VectorStore is the capability contract for conversational memory storage.
// Two implementations exist: the persistent embedded vector database
// (repository/chromem) and the in-process fallback store (repository/memory).
// The memory manager selects between them through OperationMode only; it
// never inspects which variant is active.
type VectorStore interface {
	// Add appends a memory record. The persistent variant requires a
	// non-nil embedding; the fallback variant accepts records without one.
	Add(ctx context.Context, record *model.MemoryRecord) error

	// Search returns up to limit records for the user, most relevant
	// first. The query text travels alongside the embedding so the
	// fallback variant can rank by keyword containment and recency when
	// embeddings are absent. Ties in relevance break toward the most
	// recent record.
	Search(ctx context.Context, userID string, query string, embedding []float32, limit int) ([]*model.MemoryRecord, error)

	// Forget removes all records for the user.
	Forget(ctx context.Context, userID string) error

	// Close releases resources.
	Close() error
}
