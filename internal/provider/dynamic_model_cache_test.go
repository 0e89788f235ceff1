package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codefionn/llmbridge/internal/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*DynamicModelRegistry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dynamic_local_models.json")

	cacheActor := newDynamicModelCacheActor("test-dynamic-model-cache", path)
	ref := actor.NewActorRef(cacheActor.ID(), cacheActor, 8)
	require.NoError(t, ref.Start(context.Background()))

	reg := &DynamicModelRegistry{
		cacheRef: ref,
		fetchers: make(map[string]LocalModelFetcher),
	}
	return reg, path
}

func TestDynamicModelRegistryLiveFetchPopulatesCache(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.RegisterFetcher("ollama", func(ctx context.Context, baseURL string) ([]string, error) {
		return []string{"llama3:8b", "qwen2.5:7b"}, nil
	})

	models, warning, err := reg.Resolve(context.Background(), "ollama", "http://localhost:11434")
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Equal(t, []string{"llama3:8b", "qwen2.5:7b"}, models)
}

func TestDynamicModelRegistryServesFreshCacheWithoutRefetching(t *testing.T) {
	reg, _ := newTestRegistry(t)
	calls := 0
	reg.RegisterFetcher("ollama", func(ctx context.Context, baseURL string) ([]string, error) {
		calls++
		return []string{"llama3:8b"}, nil
	})

	ctx := context.Background()
	_, _, err := reg.Resolve(ctx, "ollama", "http://localhost:11434")
	require.NoError(t, err)

	models, warning, err := reg.Resolve(ctx, "ollama", "http://localhost:11434")
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Equal(t, []string{"llama3:8b"}, models)
	assert.Equal(t, 1, calls, "second resolve within TTL should not re-invoke the live fetcher")
}

// TestDynamicModelRegistryStaleFallbackWithWarning exercises S6: a cache
// entry older than the TTL is served with a warning when the live fetch
// fails, and the cache file is left untouched.
func TestDynamicModelRegistryStaleFallbackWithWarning(t *testing.T) {
	reg, path := newTestRegistry(t)

	restore := timeNowUnix
	timeNowUnix = func() int64 { return time.Now().Add(-3600 * time.Second).Unix() }
	reg.RegisterFetcher("ollama", func(ctx context.Context, baseURL string) ([]string, error) {
		return []string{"llama3:8b"}, nil
	})
	_, _, err := reg.Resolve(context.Background(), "ollama", "http://localhost:11434")
	require.NoError(t, err)
	timeNowUnix = restore

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	reg.RegisterFetcher("ollama", func(ctx context.Context, baseURL string) ([]string, error) {
		return nil, errors.New("connection refused")
	})

	models, warning, err := reg.Resolve(context.Background(), "ollama", "http://localhost:11434")
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:8b"}, models)
	assert.NotEmpty(t, warning)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "cache file must not be rewritten on a stale-fallback serve")
}

func TestDynamicModelRegistryErrorsWithoutCacheOrFetcher(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, _, err := reg.Resolve(context.Background(), "ollama", "http://localhost:11434")
	assert.Error(t, err)
}
