package llm

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/domain/types"
	"github.com/oppuna-lab/oppuna/pkg/utils/logging"
)

const (
	defaultReplyTimeout = 60 * time.Second
	defaultAuxTimeout   = 30 * time.Second
)

// LiveClient generates content through the model service. Every model call
// carries its own timeout: replies get the long budget, auxiliary content
// (follow-ups, suggestions, embeddings) gets the short one.
//
// When fallback mode is enabled, a failed reply or follow-up call returns
// canned content with Degraded set instead of an error. Embedding failures
// always return an error so the memory manager can route the write to the
// fallback store.
type LiveClient struct {
	client       gollem.LLMClient
	resources    *model.ChatResources
	mode         *model.OperationMode
	replyTimeout time.Duration
	auxTimeout   time.Duration
}

// LiveClientOption configures a LiveClient.
type LiveClientOption func(*LiveClient)

// WithReplyTimeout overrides the reply generation timeout.
func WithReplyTimeout(d time.Duration) LiveClientOption {
	return func(c *LiveClient) {
		c.replyTimeout = d
	}
}

// WithAuxTimeout overrides the timeout for follow-ups, suggestions, and
// embeddings.
func WithAuxTimeout(d time.Duration) LiveClientOption {
	return func(c *LiveClient) {
		c.auxTimeout = d
	}
}

// NewLiveClient creates a client over the given model service connection.
func NewLiveClient(client gollem.LLMClient, resources *model.ChatResources, mode *model.OperationMode, options ...LiveClientOption) *LiveClient {
	c := &LiveClient{
		client:       client,
		resources:    resources,
		mode:         mode,
		replyTimeout: defaultReplyTimeout,
		auxTimeout:   defaultAuxTimeout,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *LiveClient) generate(ctx context.Context, timeout time.Duration, systemPrompt, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ssn, err := c.client.NewSession(ctx, gollem.WithSessionSystemPrompt(systemPrompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create model session")
	}

	resp, err := ssn.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return "", goerr.New("model returned empty response")
	}

	return strings.TrimSpace(strings.Join(resp.Texts, "\n")), nil
}

// noteDegraded records the model service as degraded and logs the first
// transition.
func (c *LiveClient) noteDegraded(ctx context.Context, err error) {
	if c.mode.DegradeModel() {
		logging.From(ctx).Warn("model service unavailable, serving canned content",
			"error", err)
	}
}

// GenerateReply produces the assistant reply for the assembled prompt.
func (c *LiveClient) GenerateReply(ctx context.Context, prompt string) (*Reply, error) {
	text, err := c.generate(ctx, c.replyTimeout, c.resources.SystemPrompt, prompt)
	if err != nil {
		if !c.mode.FallbackEnabled() {
			return nil, goerr.Wrap(types.ErrModelUnavailable, "reply generation failed",
				goerr.V("cause", err.Error()))
		}
		c.noteDegraded(ctx, err)
		return &Reply{Text: c.resources.FallbackReply, Degraded: true}, nil
	}

	return &Reply{Text: text}, nil
}

// GenerateFollowups produces follow-up questions for the exchange. A model
// failure under fallback mode yields the default follow-ups.
func (c *LiveClient) GenerateFollowups(ctx context.Context, userInput, reply string, maxN int) ([]string, error) {
	if maxN <= 0 {
		return []string{}, nil
	}

	prompt := strings.Join([]string{
		"The user said: " + userInput,
		"You replied: " + reply,
		"Suggest follow-up questions the user might naturally ask next.",
		"Return one question per line, nothing else.",
	}, "\n")

	text, err := c.generate(ctx, c.auxTimeout, c.resources.SystemPrompt, prompt)
	if err != nil {
		if !c.mode.FallbackEnabled() {
			return nil, goerr.Wrap(types.ErrModelUnavailable, "follow-up generation failed",
				goerr.V("cause", err.Error()))
		}
		c.noteDegraded(ctx, err)
		return clampList(c.resources.FollowUpDefaults, maxN), nil
	}

	followups := parseList(text, maxN)
	// Pad short model output with defaults so the client always gets a
	// full set.
	for _, def := range c.resources.FollowUpDefaults {
		if len(followups) >= maxN {
			break
		}
		if !containsFold(followups, def) {
			followups = append(followups, def)
		}
	}

	return followups, nil
}

// GenerateSuggestions completes a partial input into full messages. Every
// suggestion keeps the partial text as its prefix so the client can show it
// as an inline completion.
func (c *LiveClient) GenerateSuggestions(ctx context.Context, partial string, maxN int) ([]string, error) {
	if maxN <= 0 {
		return []string{}, nil
	}

	partial = strings.TrimSpace(partial)
	if partial == "" {
		return clampList(c.resources.SuggestionStarters, maxN), nil
	}

	prompt := strings.Join([]string{
		"The user has started typing: " + partial,
		"Complete it into full messages they might want to send.",
		"Return one completion per line, nothing else.",
	}, "\n")

	text, err := c.generate(ctx, c.auxTimeout, c.resources.SystemPrompt, prompt)
	if err != nil {
		if !c.mode.FallbackEnabled() {
			return nil, goerr.Wrap(types.ErrModelUnavailable, "suggestion generation failed",
				goerr.V("cause", err.Error()))
		}
		c.noteDegraded(ctx, err)
		return clampList(c.resources.SuggestionStarters, maxN), nil
	}

	suggestions := parseList(text, maxN)
	for i, sug := range suggestions {
		if !strings.HasPrefix(strings.ToLower(sug), strings.ToLower(partial)) {
			suggestions[i] = partial + " " + sug
		}
	}

	return suggestions, nil
}

// Embed converts text into an embedding vector.
func (c *LiveClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.auxTimeout)
	defer cancel()

	vectors, err := c.client.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, goerr.New("model returned empty embedding")
	}

	embedding := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		embedding[i] = float32(v)
	}

	return embedding, nil
}

// parseList splits model output into up to maxN cleaned lines, stripping
// bullet and numbering prefixes.
func parseList(raw string, maxN int) []string {
	items := make([]string, 0, maxN)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•")
		line = trimNumbering(line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		items = append(items, line)
		if len(items) >= maxN {
			break
		}
	}
	return items
}

// trimNumbering strips a leading "1." or "1)" style prefix.
func trimNumbering(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return line
	}
	if line[i] == '.' || line[i] == ')' {
		return line[i+1:]
	}
	return line
}

func clampList(items []string, maxN int) []string {
	if maxN < 0 {
		maxN = 0
	}
	if maxN > len(items) {
		maxN = len(items)
	}
	out := make([]string, maxN)
	copy(out, items[:maxN])
	return out
}

func containsFold(items []string, target string) bool {
	for _, item := range items {
		if strings.EqualFold(item, target) {
			return true
		}
	}
	return false
}
