package llm

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/domain/types"
)

// FallbackClient serves deterministic canned content without any external
// call. It is used when no model service is configured, and in tests. Every
// reply it produces is marked Degraded.
type FallbackClient struct {
	resources *model.ChatResources
}

// NewFallbackClient creates a canned-content client.
func NewFallbackClient(resources *model.ChatResources) *FallbackClient {
	return &FallbackClient{resources: resources}
}

// GenerateReply returns the fixed fallback reply.
func (c *FallbackClient) GenerateReply(ctx context.Context, prompt string) (*Reply, error) {
	return &Reply{Text: c.resources.FallbackReply, Degraded: true}, nil
}

// GenerateFollowups returns the default follow-up set.
func (c *FallbackClient) GenerateFollowups(ctx context.Context, userInput, reply string, maxN int) ([]string, error) {
	return clampList(c.resources.FollowUpDefaults, maxN), nil
}

// GenerateSuggestions returns the starter suggestions, prefixed with the
// partial input when one is given.
func (c *FallbackClient) GenerateSuggestions(ctx context.Context, partial string, maxN int) ([]string, error) {
	starters := clampList(c.resources.SuggestionStarters, maxN)

	partial = strings.TrimSpace(partial)
	if partial == "" {
		return starters, nil
	}

	suggestions := make([]string, len(starters))
	for i, s := range starters {
		suggestions[i] = partial + " " + s
	}
	return suggestions, nil
}

// Embed always fails. Canned content cannot be embedded, so writes under
// this client land in the fallback store without a vector.
func (c *FallbackClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, goerr.Wrap(types.ErrModelUnavailable, "no model service configured for embeddings")
}
