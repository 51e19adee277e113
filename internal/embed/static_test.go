package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_IsDeterministicAndNormalized(t *testing.T) {
	// Given: a static embedder
	e := NewStaticEmbedder()
	ctx := context.Background()

	// When: embedding the same text twice
	v1, err := e.Embed(ctx, "Hospitalization cover")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "Hospitalization cover")
	require.NoError(t, err)

	// Then: vectors match and have unit length
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, StaticDimensions)
	assert.InDelta(t, 1.0, Cosine(v1, v1), 1e-6)
}

func TestStaticEmbedder_SimilarSpellingsScoreHigher(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	base, _ := e.Embed(ctx, "hospitalization")
	near, _ := e.Embed(ctx, "hospitalisation")
	far, _ := e.Embed(ctx, "jurisdiction")

	assert.Greater(t, Cosine(base, near), Cosine(base, far))
}

func TestStaticEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()

	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)

	assert.Len(t, v, StaticDimensions)
	assert.Equal(t, 0.0, Cosine(v, v))
}

func TestStaticEmbedder_ClosedRejectsCalls(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestTrigrams_HandlesMultibyteRunes(t *testing.T) {
	assert.Equal(t, []string{"été", "tés"}, trigrams("Étés"))
	assert.Nil(t, trigrams("ab"))
}
