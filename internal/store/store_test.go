package store

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/claridoc/internal/chunk"
)

func passage(id, text string, meta map[string]any) chunk.Passage {
	return chunk.Passage{ContentID: "doc", ID: id, Text: text, Metadata: meta}
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Passage.ID
	}
	return ids
}

func policyPassages() []chunk.Passage {
	return []chunk.Passage{
		passage("a", "The policy covers accidental death of the insured.", map[string]any{"coverage_type": []string{"life"}}),
		passage("b", "Dental treatment is reimbursed up to the annual limit.", map[string]any{"coverage_type": []string{"dental"}}),
		passage("c", "Claims must be filed within thirty days of death.", map[string]any{"coverage_type": []string{"life", "claims"}}),
	}
}

func TestFilter_Matches(t *testing.T) {
	meta := map[string]any{
		"coverage_type": []string{"life", "dental"},
		"notes":         "free text",
		"parties":       []any{"insurer"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"one overlapping value", Filter{"coverage_type": {"dental", "vision"}}, true},
		{"no overlap", Filter{"coverage_type": {"vision"}}, false},
		{"missing attribute", Filter{"jurisdiction": {"NY"}}, false},
		{"json list", Filter{"parties": {"insurer"}}, true},
		{"all attributes must match", Filter{"coverage_type": {"life"}, "parties": {"broker"}}, false},
		{"empty list is ignored", Filter{"coverage_type": {}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(meta))
		})
	}
}

func TestHNSWIndex_QueryRanksBySimilarity(t *testing.T) {
	// Given: three passages with known vectors
	idx := NewHNSWIndex(HNSWConfig{})
	defer func() { _ = idx.Close() }()
	vecs := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0.9, 0.1, 0, 0}}
	require.NoError(t, idx.Upsert(context.Background(), policyPassages(), vecs))

	// When: querying near "a"
	hits, err := idx.Query(context.Background(), []float32{1, 0, 0, 0}, nil, 2)

	// Then: a then c, with a near-perfect score
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, hitIDs(hits))
	assert.Greater(t, hits[0].Score, 0.99)
}

func TestHNSWIndex_FilterIsApplied(t *testing.T) {
	idx := NewHNSWIndex(HNSWConfig{})
	vecs := [][]float32{{1, 0, 0, 0}, {0.95, 0.05, 0, 0}, {0, 0, 1, 0}}
	require.NoError(t, idx.Upsert(context.Background(), policyPassages(), vecs))

	hits, err := idx.Query(context.Background(), []float32{1, 0, 0, 0}, Filter{"coverage_type": {"life"}}, 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, hitIDs(hits))
}

func TestHNSWIndex_UpsertReplaces(t *testing.T) {
	idx := NewHNSWIndex(HNSWConfig{})
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []chunk.Passage{passage("a", "old", nil)}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Upsert(ctx, []chunk.Passage{passage("a", "new", nil)}, [][]float32{{0, 1}}))

	hits, err := idx.Query(ctx, []float32{0, 1}, nil, 5)

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].Passage.Text)
	assert.Equal(t, 1, idx.Len())
}

func TestHNSWIndex_Errors(t *testing.T) {
	idx := NewHNSWIndex(HNSWConfig{Dimensions: 2})
	ctx := context.Background()

	err := idx.Upsert(ctx, []chunk.Passage{passage("a", "x", nil)}, [][]float32{{1, 0, 0}})
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	err = idx.Upsert(ctx, []chunk.Passage{passage("a", "x", nil)}, nil)
	assert.Error(t, err)

	hits, err := idx.Query(ctx, []float32{1, 0}, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Close())
	_, err = idx.Query(ctx, []float32{1, 0}, nil, 3)
	assert.Error(t, err)
}

func TestHNSWIndex_ManyPassages(t *testing.T) {
	idx := NewHNSWIndex(HNSWConfig{})
	var ps []chunk.Passage
	var vecs [][]float32
	for i := 0; i < 200; i++ {
		ps = append(ps, passage(fmt.Sprint(i), "t", nil))
		vecs = append(vecs, []float32{float32(i + 1), 1})
	}
	require.NoError(t, idx.Upsert(context.Background(), ps, vecs))

	hits, err := idx.Query(context.Background(), []float32{0, 1}, nil, 5)

	require.NoError(t, err)
	require.Len(t, hits, 5)
	assert.Equal(t, "0", hits[0].Passage.ID)
	assert.True(t, sort.SliceIsSorted(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score }))
}

func lexicalBackends(t *testing.T) map[string]LexicalIndex {
	t.Helper()
	bl, err := NewBleveIndex()
	require.NoError(t, err)
	sq, err := NewSQLiteIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = bl.Close()
		_ = sq.Close()
	})
	return map[string]LexicalIndex{BackendBleve: bl, BackendSQLite: sq}
}

func TestLexicalIndex_FindsTermOverlap(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			// Given: indexed passages
			require.NoError(t, idx.Build(context.Background(), policyPassages()))

			// When: searching for a dental term
			hits, err := idx.Query(context.Background(), "Is dental treatment reimbursed?", 3)

			// Then: the dental passage ranks first with a positive score
			require.NoError(t, err)
			require.NotEmpty(t, hits)
			assert.Equal(t, "b", hits[0].Passage.ID)
			assert.Greater(t, hits[0].Score, 0.0)
			assert.Equal(t, []string{"dental"}, hits[0].Passage.Metadata["coverage_type"])
		})
	}
}

func TestLexicalIndex_StemsTerms(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Build(context.Background(), policyPassages()))

			hits, err := idx.Query(context.Background(), "claim filing", 3)

			require.NoError(t, err)
			require.NotEmpty(t, hits)
			assert.Equal(t, "c", hits[0].Passage.ID)
		})
	}
}

func TestLexicalIndex_RespectsTopK(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Build(context.Background(), policyPassages()))

			hits, err := idx.Query(context.Background(), "death dental claims", 1)

			require.NoError(t, err)
			assert.Len(t, hits, 1)
		})
	}
}

func TestLexicalIndex_BuildReplacesContent(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, idx.Build(ctx, policyPassages()))
			require.NoError(t, idx.Build(ctx, []chunk.Passage{passage("z", "Vision care is excluded.", nil)}))

			hits, err := idx.Query(ctx, "dental", 3)
			require.NoError(t, err)
			assert.Empty(t, hits)

			hits, err = idx.Query(ctx, "vision", 3)
			require.NoError(t, err)
			assert.Equal(t, []string{"z"}, hitIDs(hits))
		})
	}
}

func TestLexicalIndex_EmptyAndPunctuationQueries(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Build(context.Background(), policyPassages()))

			for _, q := range []string{"", "   ", `"AND" OR (`} {
				hits, err := idx.Query(context.Background(), q, 3)
				require.NoError(t, err, "query %q", q)
				assert.Empty(t, hits, "query %q", q)
			}
		})
	}
}

func TestFactories(t *testing.T) {
	v, err := NewVectorIndex(context.Background(), VectorOptions{Backend: BackendHNSW})
	require.NoError(t, err)
	assert.IsType(t, &HNSWIndex{}, v)

	_, err = NewVectorIndex(context.Background(), VectorOptions{Backend: "faiss"})
	assert.Error(t, err)

	l, err := NewLexicalIndex(BackendSQLite)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteIndex{}, l)
	_ = l.Close()

	_, err = NewLexicalIndex("lucene")
	assert.Error(t, err)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"what", "is", "covered", "under", "plan", "b2"}, Tokenize("What is covered under plan-B2? A"))
	assert.Equal(t, []string{"covered", "plan"}, FilterStopWords([]string{"what", "covered", "under", "plan"}, BuildStopWordMap(EnglishStopWords)))
}
