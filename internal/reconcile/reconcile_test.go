package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/claridoc/internal/embed"
	"github.com/Aman-CERP/claridoc/internal/vocab"
)

// tableEmbedder returns fixed vectors per text so similarities are exact.
type tableEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (e *tableEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *tableEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

var _ embed.TextEmbedder = (*tableEmbedder)(nil)

func insuranceVectors() map[string][]float32 {
	return map[string][]float32{
		"life insurance":  {1, 0, 0},
		"life cover":      {0.95, 0.3122, 0}, // cos ≈ 0.95 with life insurance
		"dental coverage": {0.3, 0.9539, 0},  // cos ≈ 0.30 with life insurance
		"life":            {1, 0, 0},
		"dental":          {0, 1, 0},
	}
}

func TestReconcile_DropsParaphrasesKeepsNovelValues(t *testing.T) {
	// Given: a vocabulary with "life insurance"
	e := &tableEmbedder{vectors: insuranceVectors()}
	r := New(e, 0.85)
	v := vocab.FromMap(map[string][]string{"coverage_type": {"life insurance"}})

	// When: reconciling a paraphrase and a new concept
	got, err := r.Reconcile(context.Background(),
		map[string][]string{"coverage_type": {"life cover", "dental coverage"}}, v)
	require.NoError(t, err)

	// Then: only the new concept survives
	assert.Equal(t, map[string][]string{"coverage_type": {"dental coverage"}}, got)
}

func TestReconcile_EmptyAttributeAcceptsAllWithoutEmbedding(t *testing.T) {
	e := &tableEmbedder{vectors: insuranceVectors()}
	r := New(e, 0.85)

	got, err := r.Reconcile(context.Background(),
		map[string][]string{"parties": {"insurer", "insured", "insurer", " "}}, vocab.New())
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{"parties": {"insurer", "insured"}}, got)
	assert.Equal(t, 0, e.calls)
}

func TestReconcile_ThresholdEqualityIsDuplicate(t *testing.T) {
	// Given: a candidate whose vector equals the known one (cosine exactly 1)
	e := &tableEmbedder{vectors: map[string][]float32{
		"known":     {1, 0},
		"candidate": {1, 0},
		"other":     {0.6, 0.8},
	}}
	v := vocab.FromMap(map[string][]string{"a": {"known"}})

	// When: the threshold is 1.0
	got, err := New(e, 1.0).Reconcile(context.Background(), map[string][]string{"a": {"candidate", "other"}}, v)
	require.NoError(t, err)

	// Then: equality counts as duplicate, lower similarity is kept
	assert.Equal(t, []string{"other"}, got["a"])
}

func TestReconcile_KnownValuesYieldNoGrowth(t *testing.T) {
	// Given: a vocabulary
	e := &tableEmbedder{vectors: insuranceVectors()}
	r := New(e, 0.85)
	v := vocab.FromMap(map[string][]string{"coverage_type": {"life", "dental"}})
	before := v.Len()

	// When: reconciling values it already has and merging the result
	got, err := r.Reconcile(context.Background(), v.Snapshot(), v)
	require.NoError(t, err)
	v.Merge(got)

	// Then: nothing changes
	assert.Empty(t, got)
	assert.Equal(t, before, v.Len())
}

func TestReconcile_CandidatesAreNotComparedWithEachOther(t *testing.T) {
	// Given: two near-identical candidates and an unrelated known value
	e := &tableEmbedder{vectors: map[string][]float32{
		"known": {0, 1},
		"x1":    {1, 0},
		"x2":    {0.99, 0.01},
	}}
	v := vocab.FromMap(map[string][]string{"a": {"known"}})

	got, err := New(e, 0.85).Reconcile(context.Background(), map[string][]string{"a": {"x1", "x2"}}, v)
	require.NoError(t, err)

	assert.Equal(t, []string{"x1", "x2"}, got["a"])
}

func TestReconcile_EmbeddingErrorPropagates(t *testing.T) {
	e := &tableEmbedder{err: errors.New("model offline")}
	v := vocab.FromMap(map[string][]string{"a": {"known"}})

	_, err := New(e, 0.85).Reconcile(context.Background(), map[string][]string{"a": {"new"}}, v)

	assert.ErrorContains(t, err, "model offline")
}

func TestNew_InvalidThresholdFallsBack(t *testing.T) {
	assert.Equal(t, DefaultThreshold, New(nil, 0).Threshold())
	assert.Equal(t, DefaultThreshold, New(nil, 1.5).Threshold())
	assert.Equal(t, 0.9, New(nil, 0.9).Threshold())
}
