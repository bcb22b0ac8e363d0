package predictor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/metabolic-ninja/api-go/internal/model"
)

func nopPredictor() Predictor {
	return Func(func(context.Context, string, int, func(model.RawPathway) error) error { return nil })
}

func TestCacheBuildsPairOnce(t *testing.T) {
	var builds atomic.Int32
	release := make(chan struct{})
	cache, err := NewCache(4, func(_ context.Context, _ ModelPair) (Predictor, error) {
		builds.Add(1)
		<-release
		return nopPredictor(), nil
	})
	require.NoError(t, err)

	pair := ModelPair{ModelID: "iJO1366", UniversalModelID: "metanetx_universal_model_bigg"}
	var wg sync.WaitGroup
	results := make([]Predictor, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := cache.Get(context.Background(), pair)
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for _, p := range results {
		assert.NotNil(t, p)
	}

	_, err = cache.Get(context.Background(), pair)
	require.NoError(t, err)
	assert.Equal(t, int32(1), builds.Load())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	built := map[ModelPair]int{}
	cache, err := NewCache(2, func(_ context.Context, pair ModelPair) (Predictor, error) {
		built[pair]++
		return nopPredictor(), nil
	})
	require.NoError(t, err)

	a := ModelPair{ModelID: "a", UniversalModelID: "u"}
	b := ModelPair{ModelID: "b", UniversalModelID: "u"}
	c := ModelPair{ModelID: "c", UniversalModelID: "u"}
	ctx := context.Background()
	for _, pair := range []ModelPair{a, b, a, c, a, b} {
		_, err := cache.Get(ctx, pair)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, map[ModelPair]int{a: 1, b: 2, c: 1}, built)
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	calls := 0
	cache, err := NewCache(0, func(context.Context, ModelPair) (Predictor, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("model not loadable")
		}
		return nopPredictor(), nil
	})
	require.NoError(t, err)

	pair := ModelPair{ModelID: "m", UniversalModelID: "u"}
	_, err = cache.Get(context.Background(), pair)
	assert.ErrorContains(t, err, "model not loadable")

	p, err := cache.Get(context.Background(), pair)
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Equal(t, 2, calls)
}

func TestCacheWarm(t *testing.T) {
	built := map[ModelPair]int{}
	cache, err := NewCache(4, func(_ context.Context, pair ModelPair) (Predictor, error) {
		built[pair]++
		if pair.ModelID == "broken" {
			return nil, errors.New("model not loadable")
		}
		return nopPredictor(), nil
	})
	require.NoError(t, err)

	good := ModelPair{ModelID: "iJO1366", UniversalModelID: "metanetx_universal_model_bigg"}
	bad := ModelPair{ModelID: "broken", UniversalModelID: "u"}
	ctx := context.Background()

	err = cache.Warm(ctx, []ModelPair{bad, good})
	assert.ErrorContains(t, err, "broken/u")
	assert.Equal(t, 1, cache.Len())

	_, err = cache.Get(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, 1, built[good], "warmed pair is not rebuilt")

	assert.NoError(t, cache.Warm(ctx, nil))
}
