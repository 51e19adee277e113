// Package store indexes passages for vector (HNSW, Chroma) and lexical
// (Bleve, SQLite FTS5) retrieval.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/Aman-CERP/claridoc/internal/chunk"
)

// Hit is a passage with a relevance score. Higher is better.
type Hit struct {
	Passage chunk.Passage
	Score   float64
}

// Filter constrains a vector query by metadata. A passage matches when, for
// every attribute, its value set shares at least one value with the
// filter's list. An empty filter matches everything.
type Filter map[string][]string

// VectorIndex is a semantic similarity index.
type VectorIndex interface {
	// Upsert inserts or replaces passages with their vectors.
	Upsert(ctx context.Context, passages []chunk.Passage, vectors [][]float32) error

	// Query returns up to topK passages nearest to vector that match filter.
	Query(ctx context.Context, vector []float32, filter Filter, topK int) ([]Hit, error)

	Close() error
}

// LexicalIndex is a term-overlap index built from a full passage set.
type LexicalIndex interface {
	// Build replaces the index content with passages.
	Build(ctx context.Context, passages []chunk.Passage) error

	// Query returns up to topK passages ranked by term overlap with text.
	Query(ctx context.Context, text string, topK int) ([]Hit, error)

	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Matches reports whether meta satisfies f.
func (f Filter) Matches(meta map[string]any) bool {
	for attr, want := range f {
		if len(want) == 0 {
			continue
		}
		have := MetaValues(meta[attr])
		if !intersects(have, want) {
			return false
		}
	}
	return true
}

// Attributes returns the filter's non-empty attributes, sorted.
func (f Filter) Attributes() []string {
	out := make([]string, 0, len(f))
	for attr, vals := range f {
		if len(vals) > 0 {
			out = append(out, attr)
		}
	}
	sort.Strings(out)
	return out
}

// MetaValues reads a metadata value as a list of strings. Lists come back
// as []string in memory and []any after a JSON round trip.
func MetaValues(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func intersects(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func errClosed(what string) error {
	return fmt.Errorf("%s is closed", what)
}
