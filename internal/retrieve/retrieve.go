// Package retrieve runs the vector and lexical lookups of a hybrid query.
package retrieve

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/claridoc/internal/chunk"
	"github.com/Aman-CERP/claridoc/internal/embed"
	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/store"
)

// Source says which lookup produced a candidate.
type Source string

const (
	SourceVector  Source = "vector"
	SourceLexical Source = "lexical"
)

// Candidate is a retrieved passage.
type Candidate struct {
	Passage chunk.Passage
	Score   float64
	Source  Source
}

// Result holds both lookups, unmerged.
type Result struct {
	Vector  []Candidate
	Lexical []Candidate
}

// All returns vector candidates followed by lexical ones. A passage found
// by both lookups appears twice.
func (r Result) All() []Candidate {
	out := make([]Candidate, 0, len(r.Vector)+len(r.Lexical))
	out = append(out, r.Vector...)
	return append(out, r.Lexical...)
}

// Options configures a Retriever.
type Options struct {
	VectorTopK  int
	LexicalTopK int
	Logger      *slog.Logger
}

// Retriever issues the two lookups against one document's indices.
type Retriever struct {
	embedder embed.TextEmbedder
	vector   store.VectorIndex
	lexical  store.LexicalIndex
	opts     Options
	logger   *slog.Logger
}

// New creates a Retriever.
func New(embedder embed.TextEmbedder, vector store.VectorIndex, lexical store.LexicalIndex, opts Options) *Retriever {
	if opts.VectorTopK <= 0 {
		opts.VectorTopK = 5
	}
	if opts.LexicalTopK <= 0 {
		opts.LexicalTopK = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		vector:   vector,
		lexical:  lexical,
		opts:     opts,
		logger:   logger.With("component", "retrieve"),
	}
}

// Retrieve runs the filtered vector lookup and the unfiltered lexical lookup
// concurrently. Neither lookup writes to its index.
func (r *Retriever) Retrieve(ctx context.Context, query string, filter store.Filter) (Result, error) {
	var res Result
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vec, err := r.embedder.Embed(gctx, query)
		if err != nil {
			return clerrors.New(clerrors.ErrCodeEmbeddingFailed, "failed to embed query", err)
		}
		hits, err := r.vector.Query(gctx, vec, filter, r.opts.VectorTopK)
		if err != nil {
			return clerrors.New(clerrors.ErrCodeSearchFailed, "vector lookup failed", err)
		}
		res.Vector = candidates(hits, SourceVector)
		return nil
	})

	g.Go(func() error {
		hits, err := r.lexical.Query(gctx, query, r.opts.LexicalTopK)
		if err != nil {
			return clerrors.New(clerrors.ErrCodeSearchFailed, "lexical lookup failed", err)
		}
		res.Lexical = candidates(hits, SourceLexical)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	r.logger.Debug("retrieved",
		"vector", len(res.Vector),
		"lexical", len(res.Lexical),
		"filter_attributes", len(filter.Attributes()))
	return res, nil
}

func candidates(hits []store.Hit, src Source) []Candidate {
	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = Candidate{Passage: h.Passage, Score: h.Score, Source: src}
	}
	return out
}
