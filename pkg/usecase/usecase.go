package usecase

import (
	"context"
	"time"

	"github.com/oppuna-lab/oppuna/pkg/domain/interfaces"
	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/domain/types"
	"github.com/oppuna-lab/oppuna/pkg/service/llm"
)

const (
	defaultRecallLimit    = 2
	defaultMaxFollowups   = 3
	defaultMaxSuggestions = 3
	defaultHistoryLimit   = 50
	defaultPersistTimeout = 30 * time.Second
)

// MemoryService is the conversational memory surface the orchestrator
// depends on.
type MemoryService interface {
	Remember(ctx context.Context, userID string, role types.Role, text string) error
	Recall(ctx context.Context, userID, query string, limit int) ([]*model.MemoryRecord, error)
	Forget(ctx context.Context, userID string) error
}

// CrisisDetector flags input indicating self-harm risk.
type CrisisDetector interface {
	Check(text string) bool
}

// UseCases orchestrates the chat pipeline over the memory manager, model
// client, crisis detector, and transcript repository.
type UseCases struct {
	memory    MemoryService
	llmClient llm.Client
	chatlog   interfaces.ChatLogRepository
	crisis    CrisisDetector
	resources *model.ChatResources

	recallLimit    int
	maxFollowups   int
	maxSuggestions int
	historyLimit   int
	persistTimeout time.Duration
}

// Option configures UseCases.
type Option func(*UseCases)

// WithRecallLimit sets how many memory records are recalled per chat turn.
func WithRecallLimit(n int) Option {
	return func(u *UseCases) {
		u.recallLimit = n
	}
}

// WithMaxFollowups sets how many follow-up questions a chat reply carries.
func WithMaxFollowups(n int) Option {
	return func(u *UseCases) {
		u.maxFollowups = n
	}
}

// WithHistoryLimit sets the default page size of the history endpoint.
func WithHistoryLimit(n int) Option {
	return func(u *UseCases) {
		u.historyLimit = n
	}
}

// WithPersistTimeout bounds the post-reply persistence and follow-up stage.
func WithPersistTimeout(d time.Duration) Option {
	return func(u *UseCases) {
		u.persistTimeout = d
	}
}

// New creates the use case layer.
func New(memorySvc MemoryService, llmClient llm.Client, chatlog interfaces.ChatLogRepository, crisis CrisisDetector, resources *model.ChatResources, options ...Option) *UseCases {
	u := &UseCases{
		memory:         memorySvc,
		llmClient:      llmClient,
		chatlog:        chatlog,
		crisis:         crisis,
		resources:      resources,
		recallLimit:    defaultRecallLimit,
		maxFollowups:   defaultMaxFollowups,
		maxSuggestions: defaultMaxSuggestions,
		historyLimit:   defaultHistoryLimit,
		persistTimeout: defaultPersistTimeout,
	}
	for _, opt := range options {
		opt(u)
	}
	return u
}
