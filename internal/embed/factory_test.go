package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder_StaticIsCached(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderStatic})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	_, ok := e.(*CachedEmbedder)
	assert.True(t, ok)
	assert.Equal(t, "static", e.ModelName())
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Options{Provider: "word2vec"})
	assert.Error(t, err)
}

func TestHandle_InitializesOnce(t *testing.T) {
	// Given: a handle whose init counts calls
	inits := 0
	h := NewHandle(func(context.Context) (Embedder, error) {
		inits++
		return NewStaticEmbedder(), nil
	})
	ctx := context.Background()

	// When: embedding several times
	_, err := h.Embed(ctx, "a")
	require.NoError(t, err)
	_, err = h.EmbedBatch(ctx, []string{"b", "c"})
	require.NoError(t, err)

	// Then: init ran once
	assert.Equal(t, 1, inits)
	require.NoError(t, h.Close())
}

func TestHandle_FailedInitIsRetried(t *testing.T) {
	// Given: init fails the first time only
	inits := 0
	h := NewHandle(func(context.Context) (Embedder, error) {
		inits++
		if inits == 1 {
			return nil, errors.New("ollama not running")
		}
		return NewStaticEmbedder(), nil
	})

	// When: calling twice
	_, err1 := h.Get(context.Background())
	e, err2 := h.Get(context.Background())

	// Then: the second call succeeds
	assert.Error(t, err1)
	require.NoError(t, err2)
	assert.NotNil(t, e)
	assert.Equal(t, 2, inits)
}
