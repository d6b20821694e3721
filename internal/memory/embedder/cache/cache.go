// Package cache wraps an Embedder with a ristretto cache keyed by text.
// Every chat request embeds the query and both saved fragments; repeated
// texts (greetings, short follow-ups) skip re-embedding.
package cache

import (
	"context"

	"github.com/dgraph-io/ristretto"

	"github.com/mzaleski/ai-rag-service/internal/memory"
)

// Embedder decorates another Embedder with an in-process cache.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New creates a caching embedder in front of inner. maxEntries bounds the
// cache by entry count; cost per entry is the vector byte size.
func New(inner memory.Embedder, maxEntries int64) (*Embedder, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries * int64(inner.Dimensions()) * 4,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Embedder{inner: inner, cache: c}, nil
}

// Embed returns the cached vector for text, embedding on miss.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v.([]float32), nil
	}

	embedding, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, embedding, int64(len(embedding))*4)
	return embedding, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until buffered cache writes are applied. Test helper.
func (e *Embedder) Wait() {
	e.cache.Wait()
}
