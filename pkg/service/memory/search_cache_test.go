package memory_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/domain/types"
	"github.com/oppuna-lab/oppuna/pkg/service/memory"
)

func TestSearchCache(t *testing.T) {
	records := []*model.MemoryRecord{
		{ID: "r1", UserID: "alice", Role: types.RoleUser, Text: "I feel anxious"},
	}

	t.Run("store and lookup", func(t *testing.T) {
		cache := memory.NewSearchCache()

		_, ok := cache.Lookup("alice", "anxious", 2)
		gt.Bool(t, ok).False()

		cache.Store("alice", "anxious", 2, records)

		got, ok := cache.Lookup("alice", "anxious", 2)
		gt.Bool(t, ok).True()
		gt.Array(t, got).Length(1)
		gt.Value(t, got[0].Text).Equal("I feel anxious")
	})

	t.Run("key includes query and limit", func(t *testing.T) {
		cache := memory.NewSearchCache()
		cache.Store("alice", "anxious", 2, records)

		_, ok := cache.Lookup("alice", "anxious", 3)
		gt.Bool(t, ok).False()
		_, ok = cache.Lookup("alice", "sleep", 2)
		gt.Bool(t, ok).False()
		_, ok = cache.Lookup("bob", "anxious", 2)
		gt.Bool(t, ok).False()
	})

	t.Run("invalidate drops all entries for the user", func(t *testing.T) {
		cache := memory.NewSearchCache()
		cache.Store("alice", "anxious", 2, records)
		cache.Store("alice", "sleep", 2, records)
		cache.Store("bob", "anxious", 2, records)

		cache.Invalidate("alice")

		_, ok := cache.Lookup("alice", "anxious", 2)
		gt.Bool(t, ok).False()
		_, ok = cache.Lookup("alice", "sleep", 2)
		gt.Bool(t, ok).False()
		_, ok = cache.Lookup("bob", "anxious", 2)
		gt.Bool(t, ok).True()
	})

	t.Run("mutating a result does not leak into the cache", func(t *testing.T) {
		cache := memory.NewSearchCache()
		cache.Store("alice", "anxious", 2, records)

		got, ok := cache.Lookup("alice", "anxious", 2)
		gt.Bool(t, ok).True()
		got[0].Text = "mutated"

		fresh, ok := cache.Lookup("alice", "anxious", 2)
		gt.Bool(t, ok).True()
		gt.Value(t, fresh[0].Text).Equal("I feel anxious")
	})
}
