package memory_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/domain/types"
	memstore "github.com/oppuna-lab/oppuna/pkg/repository/memory"
	"github.com/oppuna-lab/oppuna/pkg/service/memory"
)

// mockStore is a mock vector store for testing
type mockStore struct {
	addFn    func(ctx context.Context, record *model.MemoryRecord) error
	searchFn func(ctx context.Context, userID, query string, embedding []float32, limit int) ([]*model.MemoryRecord, error)
	forgetFn func(ctx context.Context, userID string) error
}

func (m *mockStore) Add(ctx context.Context, record *model.MemoryRecord) error {
	if m.addFn != nil {
		return m.addFn(ctx, record)
	}
	return nil
}

func (m *mockStore) Search(ctx context.Context, userID, query string, embedding []float32, limit int) ([]*model.MemoryRecord, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, userID, query, embedding, limit)
	}
	return []*model.MemoryRecord{}, nil
}

func (m *mockStore) Forget(ctx context.Context, userID string) error {
	if m.forgetFn != nil {
		return m.forgetFn(ctx, userID)
	}
	return nil
}

func (m *mockStore) Close() error { return nil }

func stubEmbed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 4)
	for i, r := range text {
		vec[i%4] += float32(r)
	}
	return vec, nil
}

func TestManagerRememberRecall(t *testing.T) {
	ctx := context.Background()
	mode := model.NewOperationMode(true)

	mgr, err := memory.NewManager(mode, nil, memstore.New(), stubEmbed)
	gt.NoError(t, err).Required()

	gt.NoError(t, mgr.Remember(ctx, "alice", types.RoleUser, "I have trouble sleeping")).Required()
	gt.NoError(t, mgr.Remember(ctx, "alice", types.RoleAssistant, "A regular bedtime can help")).Required()
	gt.NoError(t, mgr.Remember(ctx, "bob", types.RoleUser, "work stress is wearing me down")).Required()

	records, err := mgr.Recall(ctx, "alice", "I have trouble sleeping", 2)
	gt.NoError(t, err).Required()
	gt.Array(t, records).Length(2)
	gt.Value(t, records[0].Text).Equal("I have trouble sleeping")

	// user isolation
	records, err = mgr.Recall(ctx, "bob", "sleeping", 5)
	gt.NoError(t, err).Required()
	gt.Array(t, records).Length(1)
	gt.Value(t, records[0].Text).Equal("work stress is wearing me down")
}

func TestManagerRecallCacheFreshness(t *testing.T) {
	ctx := context.Background()
	mode := model.NewOperationMode(true)

	var searches atomic.Int64
	backing := memstore.New()
	counting := &mockStore{
		addFn: backing.Add,
		searchFn: func(ctx context.Context, userID, query string, embedding []float32, limit int) ([]*model.MemoryRecord, error) {
			searches.Add(1)
			return backing.Search(ctx, userID, query, embedding, limit)
		},
	}

	mgr, err := memory.NewManager(mode, nil, counting, stubEmbed)
	gt.NoError(t, err).Required()

	gt.NoError(t, mgr.Remember(ctx, "alice", types.RoleUser, "I feel anxious")).Required()

	// second identical recall is served from cache
	_, err = mgr.Recall(ctx, "alice", "anxious", 2)
	gt.NoError(t, err).Required()
	_, err = mgr.Recall(ctx, "alice", "anxious", 2)
	gt.NoError(t, err).Required()
	gt.Value(t, searches.Load()).Equal(int64(1))

	// a write invalidates the cache, so recall sees the new record
	gt.NoError(t, mgr.Remember(ctx, "alice", types.RoleUser, "still anxious today")).Required()

	records, err := mgr.Recall(ctx, "alice", "anxious", 5)
	gt.NoError(t, err).Required()
	gt.Array(t, records).Length(2)
	gt.Value(t, searches.Load()).Equal(int64(2))
}

func TestManagerStickyFailover(t *testing.T) {
	ctx := context.Background()
	mode := model.NewOperationMode(true)

	var attempts atomic.Int64
	broken := &mockStore{
		addFn: func(ctx context.Context, record *model.MemoryRecord) error {
			attempts.Add(1)
			return goerr.Wrap(types.ErrStoreUnavailable, "connection refused")
		},
		searchFn: func(ctx context.Context, userID, query string, embedding []float32, limit int) ([]*model.MemoryRecord, error) {
			attempts.Add(1)
			return nil, goerr.Wrap(types.ErrStoreUnavailable, "connection refused")
		},
	}
	fallback := memstore.New()

	mgr, err := memory.NewManager(mode, broken, fallback, stubEmbed)
	gt.NoError(t, err).Required()

	// first write: initial attempt plus one retry, then failover
	gt.NoError(t, mgr.Remember(ctx, "alice", types.RoleUser, "hello")).Required()
	gt.Value(t, attempts.Load()).Equal(int64(2))
	gt.Bool(t, mode.StoreDegraded()).True()
	gt.Value(t, fallback.Count("alice")).Equal(1)

	// degradation is sticky: no further probing of the broken store
	gt.NoError(t, mgr.Remember(ctx, "alice", types.RoleUser, "hello again")).Required()
	records, err := mgr.Recall(ctx, "alice", "hello", 5)
	gt.NoError(t, err).Required()
	gt.Array(t, records).Length(2)
	gt.Value(t, attempts.Load()).Equal(int64(2))
}

func TestManagerTransientErrorRecovers(t *testing.T) {
	ctx := context.Background()
	mode := model.NewOperationMode(true)

	var attempts atomic.Int64
	backing := memstore.New()
	flaky := &mockStore{
		addFn: func(ctx context.Context, record *model.MemoryRecord) error {
			if attempts.Add(1) == 1 {
				return goerr.Wrap(types.ErrStoreUnavailable, "transient")
			}
			return backing.Add(ctx, record)
		},
		searchFn: backing.Search,
	}

	mgr, err := memory.NewManager(mode, flaky, backing, stubEmbed)
	gt.NoError(t, err).Required()

	// retry succeeds, so the store is not degraded
	gt.NoError(t, mgr.Remember(ctx, "alice", types.RoleUser, "hello")).Required()
	gt.Value(t, attempts.Load()).Equal(int64(2))
	gt.Bool(t, mode.StoreDegraded()).False()
}

func TestManagerEmbedFailure(t *testing.T) {
	ctx := context.Background()

	failingEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("model down")
	}

	t.Run("write lands in fallback without a vector", func(t *testing.T) {
		mode := model.NewOperationMode(true)
		primaryAdds := 0
		primary := &mockStore{
			addFn: func(ctx context.Context, record *model.MemoryRecord) error {
				primaryAdds++
				return nil
			},
		}
		fallback := memstore.New()

		mgr, err := memory.NewManager(mode, primary, fallback, failingEmbed)
		gt.NoError(t, err).Required()

		gt.NoError(t, mgr.Remember(ctx, "alice", types.RoleUser, "hello")).Required()
		gt.Value(t, primaryAdds).Equal(0)
		gt.Value(t, fallback.Count("alice")).Equal(1)
	})

	t.Run("recall returns empty while the primary is active", func(t *testing.T) {
		mode := model.NewOperationMode(true)
		mgr, err := memory.NewManager(mode, &mockStore{}, memstore.New(), failingEmbed)
		gt.NoError(t, err).Required()

		records, err := mgr.Recall(ctx, "alice", "hello", 5)
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(0)
	})

	t.Run("recall falls back to keyword search once degraded", func(t *testing.T) {
		mode := model.NewOperationMode(true)
		fallback := memstore.New()
		mgr, err := memory.NewManager(mode, nil, fallback, failingEmbed)
		gt.NoError(t, err).Required()

		gt.NoError(t, mgr.Remember(ctx, "alice", types.RoleUser, "my sleep is terrible")).Required()
		gt.NoError(t, mgr.Remember(ctx, "alice", types.RoleUser, "lunch was fine")).Required()

		records, err := mgr.Recall(ctx, "alice", "sleep", 1)
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(1)
		gt.Value(t, records[0].Text).Equal("my sleep is terrible")
	})
}

func TestManagerForget(t *testing.T) {
	ctx := context.Background()
	mode := model.NewOperationMode(true)

	var primaryForgot, fallbackHas bool
	primary := &mockStore{
		forgetFn: func(ctx context.Context, userID string) error {
			primaryForgot = true
			return nil
		},
	}
	fallback := memstore.New()

	mgr, err := memory.NewManager(mode, primary, fallback, stubEmbed)
	gt.NoError(t, err).Required()

	gt.NoError(t, mgr.Remember(ctx, "alice", types.RoleUser, "hello")).Required()
	gt.NoError(t, mgr.Forget(ctx, "alice")).Required()

	gt.Bool(t, primaryForgot).True()
	fallbackHas = fallback.Count("alice") > 0
	gt.Bool(t, fallbackHas).False()

	records, err := mgr.Recall(ctx, "alice", "hello", 5)
	gt.NoError(t, err).Required()
	gt.Array(t, records).Length(0)
}
