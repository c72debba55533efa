package usecase

import (
	"context"

	"github.com/oppuna-lab/oppuna/pkg/utils/errutil"
)

// Suggest completes a partial user input into up to maxN full messages. An
// empty partial yields conversation starters. Generation failures degrade to
// an empty list so the caller still gets a valid payload.
func (u *UseCases) Suggest(ctx context.Context, partial string, maxN int) ([]string, error) {
	if maxN <= 0 {
		maxN = u.maxSuggestions
	}

	suggestions, err := u.llmClient.GenerateSuggestions(ctx, partial, maxN)
	if err != nil {
		_ = errutil.Handle(ctx, err, "suggestion generation failed, returning empty list")
		return []string{}, nil
	}

	return suggestions, nil
}
