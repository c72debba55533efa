package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
)

// History returns up to limit transcript turns for the user, newest first.
// A non-positive limit applies the default page size.
func (u *UseCases) History(ctx context.Context, userID string, limit int) ([]*model.MemoryRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "user ID is required")
	}
	if limit <= 0 {
		limit = u.historyLimit
	}

	records, err := u.chatlog.History(ctx, userID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load history", goerr.V("userID", userID))
	}

	return records, nil
}

// ClearHistory removes the user's transcript and their conversational
// memory together, so a cleared user starts from a blank slate.
func (u *UseCases) ClearHistory(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return goerr.Wrap(ErrInvalidInput, "user ID is required")
	}

	if err := u.chatlog.Clear(ctx, userID); err != nil {
		return goerr.Wrap(err, "failed to clear history", goerr.V("userID", userID))
	}
	if err := u.memory.Forget(ctx, userID); err != nil {
		return goerr.Wrap(err, "failed to forget memory", goerr.V("userID", userID))
	}

	return nil
}
