package predictor

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheSize = 64

// Cache is a Source that memoizes the predictors built by a Factory. It keeps
// at most size predictors and builds each pair once even when many callers
// ask for it at the same time.
type Cache struct {
	factory Factory
	entries *lru.Cache[ModelPair, Predictor]
	group   singleflight.Group
}

func NewCache(size int, factory Factory) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[ModelPair, Predictor](size)
	if err != nil {
		return nil, fmt.Errorf("create predictor cache: %w", err)
	}
	return &Cache{factory: factory, entries: entries}, nil
}

func (c *Cache) Get(ctx context.Context, pair ModelPair) (Predictor, error) {
	if p, ok := c.entries.Get(pair); ok {
		return p, nil
	}
	v, err, _ := c.group.Do(pair.String(), func() (any, error) {
		if p, ok := c.entries.Get(pair); ok {
			return p, nil
		}
		p, err := c.factory(ctx, pair)
		if err != nil {
			return nil, fmt.Errorf("build predictor for %s: %w", pair, err)
		}
		c.entries.Add(pair, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Predictor), nil
}

// Warm builds the predictors of pairs ahead of the first request. A pair that
// fails to build does not stop the others; all failures are returned together.
func (c *Cache) Warm(ctx context.Context, pairs []ModelPair) error {
	var errs error
	for _, pair := range pairs {
		if _, err := c.Get(ctx, pair); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (c *Cache) Len() int { return c.entries.Len() }
