package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelCacheTTL(t *testing.T) {
	clock := newFakeClock()
	fetches := 0
	cache := NewModelCache(func(ctx context.Context) ([]string, error) {
		fetches++
		return []string{"a", "b"}, nil
	}, 5*time.Minute)
	cache.now = clock.Now

	models, err := cache.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, models)

	clock.Advance(4 * time.Minute)
	_, err = cache.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)

	clock.Advance(2 * time.Minute)
	_, err = cache.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)

	cache.Invalidate()
	_, err = cache.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, fetches)
}

func TestModelCacheRefetchesEmptyList(t *testing.T) {
	fetches := 0
	cache := NewModelCache(func(ctx context.Context) ([]string, error) {
		fetches++
		return nil, nil
	}, time.Hour)

	_, _ = cache.Models(context.Background())
	_, _ = cache.Models(context.Background())
	assert.Equal(t, 2, fetches)
}

func TestModelCacheFetchError(t *testing.T) {
	cache := NewModelCache(func(ctx context.Context) ([]string, error) {
		return nil, errors.New("down")
	}, 0)
	_, err := cache.Models(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}

func TestModelCacheReturnsCopies(t *testing.T) {
	cache := NewModelCache(func(ctx context.Context) ([]string, error) {
		return []string{"a"}, nil
	}, time.Hour)
	models, err := cache.Models(context.Background())
	require.NoError(t, err)
	models[0] = "mutated"

	models, err = cache.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, models)
}

func TestFilterModels(t *testing.T) {
	models := []string{"qwen2.5-7b", "llama-3-8b", "qwen2.5-14b"}

	all, err := FilterModels(models, "")
	require.NoError(t, err)
	assert.Equal(t, models, all)

	qwen, err := FilterModels(models, "qwen*")
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2.5-7b", "qwen2.5-14b"}, qwen)

	none, err := FilterModels(models, "mistral*")
	require.NoError(t, err)
	assert.Empty(t, none)
}
