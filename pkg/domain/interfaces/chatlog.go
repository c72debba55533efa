package interfaces

import (
	"context"
	"time"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
)

// ChatLogRepository persists the plain chat transcript (no embeddings)
// backing the history surface.
type ChatLogRepository interface {
	// Append stores one chat turn.
	Append(ctx context.Context, record *model.MemoryRecord) error

	// History returns up to limit turns for the user, newest first.
	History(ctx context.Context, userID string, limit int) ([]*model.MemoryRecord, error)

	// Clear removes all turns for the user.
	Clear(ctx context.Context, userID string) error

	// PruneBefore deletes turns older than cutoff and returns the number
	// of rows removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources.
	Close() error
}
