package embed

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedProvider wraps a Provider with an LRU cache keyed by input text.
// Mentions in one receipt frequently repeat the same food name, so the
// cache saves repeated round-trips within and across requests.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

// NewCached wraps p with an LRU cache of the given size.
func NewCached(p Provider, size int) (*CachedProvider, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedProvider{inner: p, cache: c}, nil
}

func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

func (c *CachedProvider) Dim() int { return c.inner.Dim() }
