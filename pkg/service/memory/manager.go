package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/oppuna-lab/oppuna/pkg/domain/interfaces"
	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/domain/types"
	"github.com/oppuna-lab/oppuna/pkg/utils/logging"
)

// Manager owns conversational memory: it embeds chat turns, stores them,
// and recalls relevant context for new messages. It fronts two stores, the
// persistent vector database and the in-process fallback, and handles the
// switch between them.
//
// Failover policy: an unreachable-class error from the persistent store is
// retried once; a second failure flips the process to the fallback store
// for good. Later requests never probe the persistent store again.
//
// Embedding failures take a different path: the write is preserved in the
// fallback store without a vector, so the persistent store only ever holds
// embedded records.
type Manager struct {
	mode        *model.OperationMode
	primary     interfaces.VectorStore
	fallback    interfaces.VectorStore
	embedCache  *EmbeddingCache
	searchCache *SearchCache
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	embedCacheSize int
}

// WithEmbedCacheSize overrides the embedding cache capacity.
func WithEmbedCacheSize(size int) ManagerOption {
	return func(cfg *managerConfig) {
		cfg.embedCacheSize = size
	}
}

// NewManager creates a memory manager. primary may be nil when no vector
// database is configured; everything then runs on the fallback store.
func NewManager(mode *model.OperationMode, primary, fallback interfaces.VectorStore, embed EmbedFunc, options ...ManagerOption) (*Manager, error) {
	if fallback == nil {
		return nil, goerr.New("fallback store is required")
	}
	if embed == nil {
		return nil, goerr.New("embed function is required")
	}

	cfg := &managerConfig{embedCacheSize: DefaultEmbedCacheSize}
	for _, opt := range options {
		opt(cfg)
	}

	embedCache, err := NewEmbeddingCache(embed, cfg.embedCacheSize)
	if err != nil {
		return nil, err
	}

	return &Manager{
		mode:        mode,
		primary:     primary,
		fallback:    fallback,
		embedCache:  embedCache,
		searchCache: NewSearchCache(),
	}, nil
}

func (m *Manager) primaryActive() bool {
	return m.primary != nil && !m.mode.StoreDegraded()
}

func (m *Manager) degrade(ctx context.Context, err error) {
	if m.mode.DegradeStore() {
		logging.From(ctx).Warn("vector store unreachable, switching to in-process memory",
			"error", err)
	}
}

func (m *Manager) addWithFailover(ctx context.Context, record *model.MemoryRecord) error {
	if !m.primaryActive() {
		return m.fallback.Add(ctx, record)
	}

	err := m.primary.Add(ctx, record)
	if err == nil {
		return nil
	}
	if !errors.Is(err, types.ErrStoreUnavailable) {
		return err
	}

	// One retry covers transient hiccups without holding the request long.
	if err = m.primary.Add(ctx, record); err == nil {
		return nil
	}
	if !errors.Is(err, types.ErrStoreUnavailable) {
		return err
	}

	m.degrade(ctx, err)
	return m.fallback.Add(ctx, record)
}

func (m *Manager) searchWithFailover(ctx context.Context, userID, query string, embedding []float32, limit int) ([]*model.MemoryRecord, error) {
	if !m.primaryActive() {
		return m.fallback.Search(ctx, userID, query, embedding, limit)
	}

	records, err := m.primary.Search(ctx, userID, query, embedding, limit)
	if err == nil {
		return records, nil
	}
	if !errors.Is(err, types.ErrStoreUnavailable) {
		return nil, err
	}

	if records, err = m.primary.Search(ctx, userID, query, embedding, limit); err == nil {
		return records, nil
	}
	if !errors.Is(err, types.ErrStoreUnavailable) {
		return nil, err
	}

	m.degrade(ctx, err)
	return m.fallback.Search(ctx, userID, query, embedding, limit)
}

// Remember stores one chat turn as memory. When embedding fails, the turn is
// preserved in the fallback store without a vector rather than lost.
func (m *Manager) Remember(ctx context.Context, userID string, role types.Role, text string) error {
	if userID == "" {
		return goerr.New("user ID is required")
	}
	if strings.TrimSpace(text) == "" {
		return goerr.New("text is required", goerr.V("userID", userID))
	}

	record := &model.MemoryRecord{
		ID:        model.NewMemoryRecordID(),
		UserID:    userID,
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	embedding, err := m.embedCache.GetOrCompute(ctx, text)
	if err != nil {
		logging.From(ctx).Warn("embedding failed, storing turn without vector",
			"userID", userID, "error", err)
		if err := m.fallback.Add(ctx, record); err != nil {
			return goerr.Wrap(err, "failed to store turn in fallback", goerr.V("userID", userID))
		}
		m.searchCache.Invalidate(userID)
		return nil
	}

	record.Embedding = embedding
	if err := m.addWithFailover(ctx, record); err != nil {
		return goerr.Wrap(err, "failed to store memory", goerr.V("userID", userID))
	}

	m.searchCache.Invalidate(userID)
	return nil
}

// Recall returns up to limit records relevant to the query, most relevant
// first. When embedding the query fails while the persistent store is
// active, Recall returns no context rather than an error; the chat can
// proceed without memory.
func (m *Manager) Recall(ctx context.Context, userID, query string, limit int) ([]*model.MemoryRecord, error) {
	if userID == "" {
		return nil, goerr.New("user ID is required")
	}
	if limit <= 0 {
		return []*model.MemoryRecord{}, nil
	}

	if records, ok := m.searchCache.Lookup(userID, query, limit); ok {
		return records, nil
	}

	embedding, err := m.embedCache.GetOrCompute(ctx, query)
	if err != nil {
		if m.primaryActive() {
			logging.From(ctx).Warn("embedding failed, recalling without context",
				"userID", userID, "error", err)
			return []*model.MemoryRecord{}, nil
		}
		// The fallback store can still rank by keyword and recency.
		embedding = nil
	}

	records, err := m.searchWithFailover(ctx, userID, query, embedding, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to recall memory", goerr.V("userID", userID))
	}

	m.searchCache.Store(userID, query, limit, records)
	return records, nil
}

// Forget removes all memory for the user from both stores.
func (m *Manager) Forget(ctx context.Context, userID string) error {
	if userID == "" {
		return goerr.New("user ID is required")
	}

	m.searchCache.Invalidate(userID)

	var firstErr error
	if m.primary != nil {
		if err := m.primary.Forget(ctx, userID); err != nil {
			firstErr = err
		}
	}
	if err := m.fallback.Forget(ctx, userID); err != nil && firstErr == nil {
		firstErr = err
	}

	if firstErr != nil {
		return goerr.Wrap(firstErr, "failed to forget memory", goerr.V("userID", userID))
	}
	return nil
}

// Close releases both stores.
func (m *Manager) Close() error {
	var firstErr error
	if m.primary != nil {
		if err := m.primary.Close(); err != nil {
			firstErr = err
		}
	}
	if err := m.fallback.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// FormatContext renders recalled records as the context block prepended to
// the model prompt. Empty input yields an empty string.
func FormatContext(records []*model.MemoryRecord) string {
	if len(records) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Relevant past conversation:\n")
	for _, rec := range records {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", rec.Role, rec.Text))
	}
	return sb.String()
}
