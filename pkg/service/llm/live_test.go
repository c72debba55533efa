package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/domain/types"
	"github.com/oppuna-lab/oppuna/pkg/service/llm"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{
		Texts: []string{"I hear you. That sounds really hard."},
	}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn        func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
	generateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	if c.generateEmbeddingFn != nil {
		return c.generateEmbeddingFn(ctx, dimension, input)
	}
	vec := make([]float64, dimension)
	vec[0] = 1
	return [][]float64{vec}, nil
}

func TestLiveClientReply(t *testing.T) {
	ctx := context.Background()
	resources := model.DefaultChatResources()

	t.Run("returns model text", func(t *testing.T) {
		client := llm.NewLiveClient(&mockLLMClient{}, resources, model.NewOperationMode(true))

		reply, err := client.GenerateReply(ctx, "I feel anxious")
		gt.NoError(t, err).Required()
		gt.Value(t, reply.Text).Equal("I hear you. That sounds really hard.")
		gt.Bool(t, reply.Degraded).False()
	})

	t.Run("serves canned reply when model fails and fallback is enabled", func(t *testing.T) {
		mode := model.NewOperationMode(true)
		client := llm.NewLiveClient(&mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return nil, errors.New("connection refused")
			},
		}, resources, mode)

		reply, err := client.GenerateReply(ctx, "I feel anxious")
		gt.NoError(t, err).Required()
		gt.Value(t, reply.Text).Equal(resources.FallbackReply)
		gt.Bool(t, reply.Degraded).True()
		gt.Bool(t, mode.ModelDegraded()).True()
	})

	t.Run("returns error when fallback is disabled", func(t *testing.T) {
		client := llm.NewLiveClient(&mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return nil, errors.New("connection refused")
			},
		}, resources, model.NewOperationMode(false))

		_, err := client.GenerateReply(ctx, "I feel anxious")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrModelUnavailable)).True()
	})

	t.Run("slow model falls back within the timeout bound", func(t *testing.T) {
		client := llm.NewLiveClient(&mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						select {
						case <-ctx.Done():
							return nil, ctx.Err()
						case <-time.After(5 * time.Second):
							return &gollem.Response{Texts: []string{"too late"}}, nil
						}
					},
				}, nil
			},
		}, resources, model.NewOperationMode(true), llm.WithReplyTimeout(50*time.Millisecond))

		start := time.Now()
		reply, err := client.GenerateReply(ctx, "hello")
		gt.NoError(t, err).Required()
		gt.Bool(t, reply.Degraded).True()
		gt.Bool(t, time.Since(start) < time.Second).True()
	})
}

func TestLiveClientFollowups(t *testing.T) {
	ctx := context.Background()
	resources := model.DefaultChatResources()

	t.Run("parses bulleted output", func(t *testing.T) {
		client := llm.NewLiveClient(&mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{Texts: []string{
							"- What helps you relax?\n2. Have you talked to anyone about this?\n\n* When did this start?",
						}}, nil
					},
				}, nil
			},
		}, resources, model.NewOperationMode(true))

		followups, err := client.GenerateFollowups(ctx, "I feel anxious", "That sounds hard", 3)
		gt.NoError(t, err).Required()
		gt.Array(t, followups).Length(3)
		gt.Value(t, followups[0]).Equal("What helps you relax?")
		gt.Value(t, followups[1]).Equal("Have you talked to anyone about this?")
		gt.Value(t, followups[2]).Equal("When did this start?")
	})

	t.Run("pads short output with defaults", func(t *testing.T) {
		client := llm.NewLiveClient(&mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{Texts: []string{"What helps you relax?"}}, nil
					},
				}, nil
			},
		}, resources, model.NewOperationMode(true))

		followups, err := client.GenerateFollowups(ctx, "input", "reply", 3)
		gt.NoError(t, err).Required()
		gt.Array(t, followups).Length(3)
		gt.Value(t, followups[1]).Equal(resources.FollowUpDefaults[0])
	})

	t.Run("serves defaults on model failure", func(t *testing.T) {
		client := llm.NewLiveClient(&mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return nil, errors.New("connection refused")
			},
		}, resources, model.NewOperationMode(true))

		followups, err := client.GenerateFollowups(ctx, "input", "reply", 3)
		gt.NoError(t, err).Required()
		gt.Array(t, followups).Length(3)
		gt.Value(t, followups[0]).Equal(resources.FollowUpDefaults[0])
	})
}

func TestLiveClientSuggestions(t *testing.T) {
	ctx := context.Background()
	resources := model.DefaultChatResources()

	t.Run("empty partial returns starters", func(t *testing.T) {
		client := llm.NewLiveClient(&mockLLMClient{}, resources, model.NewOperationMode(true))

		suggestions, err := client.GenerateSuggestions(ctx, "  ", 2)
		gt.NoError(t, err).Required()
		gt.Array(t, suggestions).Length(2)
		gt.Value(t, suggestions[0]).Equal(resources.SuggestionStarters[0])
	})

	t.Run("keeps the partial as prefix", func(t *testing.T) {
		client := llm.NewLiveClient(&mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{Texts: []string{
							"I feel like nobody understands me\nkeeps me up at night",
						}}, nil
					},
				}, nil
			},
		}, resources, model.NewOperationMode(true))

		suggestions, err := client.GenerateSuggestions(ctx, "I feel", 3)
		gt.NoError(t, err).Required()
		gt.Array(t, suggestions).Length(2)
		gt.Value(t, suggestions[0]).Equal("I feel like nobody understands me")
		gt.Value(t, suggestions[1]).Equal("I feel keeps me up at night")
	})
}

func TestLiveClientEmbed(t *testing.T) {
	ctx := context.Background()
	resources := model.DefaultChatResources()

	t.Run("converts the vector", func(t *testing.T) {
		client := llm.NewLiveClient(&mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				gt.Value(t, dimension).Equal(model.EmbeddingDimension)
				gt.Array(t, input).Length(1)
				return [][]float64{{0.1, 0.2, 0.3}}, nil
			},
		}, resources, model.NewOperationMode(true))

		embedding, err := client.Embed(ctx, "hello")
		gt.NoError(t, err).Required()
		gt.Array(t, embedding).Length(3)
		gt.Value(t, embedding[1]).Equal(float32(0.2))
	})

	t.Run("propagates failure", func(t *testing.T) {
		client := llm.NewLiveClient(&mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				return nil, errors.New("connection refused")
			},
		}, resources, model.NewOperationMode(true))

		_, err := client.Embed(ctx, "hello")
		gt.Error(t, err)
	})
}

func TestFallbackClient(t *testing.T) {
	ctx := context.Background()
	resources := model.DefaultChatResources()
	client := llm.NewFallbackClient(resources)

	reply, err := client.GenerateReply(ctx, "anything")
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal(resources.FallbackReply)
	gt.Bool(t, reply.Degraded).True()

	suggestions, err := client.GenerateSuggestions(ctx, "I feel", 2)
	gt.NoError(t, err).Required()
	gt.Array(t, suggestions).Length(2)
	gt.Value(t, suggestions[0]).Equal("I feel " + resources.SuggestionStarters[0])

	_, err = client.Embed(ctx, "hello")
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrModelUnavailable)).True()

	t.Run("negative limits yield empty lists", func(t *testing.T) {
		followups, err := client.GenerateFollowups(ctx, "input", "reply", -1)
		gt.NoError(t, err).Required()
		gt.Array(t, followups).Length(0)

		suggestions, err := client.GenerateSuggestions(ctx, "", -1)
		gt.NoError(t, err).Required()
		gt.Array(t, suggestions).Length(0)
	})
}
