package memory

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultEmbedCacheSize bounds the embedding cache. Conversation turns
// repeat short phrases often enough that a small LRU takes most of the
// embedding traffic off the model service.
const DefaultEmbedCacheSize = 128

// EmbedFunc converts text into an embedding vector.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// EmbeddingCache memoizes embedding computation behind an LRU keyed by
// normalized text. Concurrent requests for the same text share a single
// in-flight computation. Failed computations are never cached, so a
// transient model outage does not poison later lookups.
type EmbeddingCache struct {
	embed EmbedFunc
	cache *lru.Cache[string, []float32]
	group singleflight.Group
}

// NewEmbeddingCache creates a cache of the given size over the embed
// function.
func NewEmbeddingCache(embed EmbedFunc, size int) (*EmbeddingCache, error) {
	if size <= 0 {
		size = DefaultEmbedCacheSize
	}

	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache", goerr.V("size", size))
	}

	return &EmbeddingCache{
		embed: embed,
		cache: cache,
	}, nil
}

func normalizeKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// GetOrCompute returns the embedding for text, computing it at most once
// per cache residency. Callers must not mutate the returned slice.
func (c *EmbeddingCache) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	key := normalizeKey(text)
	if key == "" {
		return nil, goerr.New("cannot embed empty text")
	}

	if embedding, ok := c.cache.Get(key); ok {
		return embedding, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		if embedding, ok := c.cache.Get(key); ok {
			return embedding, nil
		}

		embedding, err := c.embed(ctx, text)
		if err != nil {
			return nil, err
		}

		c.cache.Add(key, embedding)
		return embedding, nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compute embedding")
	}

	return result.([]float32), nil
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	return c.cache.Len()
}
