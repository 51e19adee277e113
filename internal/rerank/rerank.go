// Package rerank orders retrieval candidates with a language model and
// computes the similarity scores shown to users.
package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Aman-CERP/claridoc/internal/embed"
	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/llm"
	"github.com/Aman-CERP/claridoc/internal/retrieve"
	"github.com/Aman-CERP/claridoc/internal/validation"
)

// Reranker reorders candidates by relevance to a query.
type Reranker interface {
	// Rerank returns candidates from most to least relevant. On a
	// MalformedRerankOutput error the returned slice is the input order,
	// so callers can degrade instead of failing.
	Rerank(ctx context.Context, query string, cands []retrieve.Candidate) ([]retrieve.Candidate, error)
}

// NoOpReranker keeps the retrieval order. Used when reranking is disabled.
type NoOpReranker struct{}

// Rerank returns cands unchanged.
func (NoOpReranker) Rerank(_ context.Context, _ string, cands []retrieve.Candidate) ([]retrieve.Candidate, error) {
	return cands, nil
}

// LLMReranker asks a model for a permutation of candidate indices.
type LLMReranker struct {
	client llm.Client
	logger *slog.Logger
}

var (
	_ Reranker = NoOpReranker{}
	_ Reranker = (*LLMReranker)(nil)
)

// NewLLMReranker creates an LLMReranker. A nil logger uses slog.Default().
func NewLLMReranker(client llm.Client, logger *slog.Logger) *LLMReranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMReranker{client: client, logger: logger.With("component", "rerank")}
}

const rerankSystem = `You rank documents by relevance to a question.
Reply with document numbers only.`

// Rerank makes one model call for two or more candidates. The returned
// permutation is trusted as the final order. A failed call is a
// GenerationFailed error.
func (r *LLMReranker) Rerank(ctx context.Context, query string, cands []retrieve.Candidate) ([]retrieve.Candidate, error) {
	if len(cands) < 2 {
		return cands, nil
	}

	resp, err := r.client.Generate(ctx, llm.Request{System: rerankSystem, Prompt: prompt(query, cands)})
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeGenerationFailed, "rerank call failed", err)
	}

	order, err := ParsePermutation(resp, len(cands))
	if err != nil {
		r.logger.Warn("rerank output rejected, keeping retrieval order",
			append([]any{"candidates", len(cands)}, clerrors.LogAttrs(err)...)...)
		return cands, err
	}

	out := make([]retrieve.Candidate, len(order))
	for i, idx := range order {
		out[i] = cands[idx]
	}
	return out, nil
}

func prompt(query string, cands []retrieve.Candidate) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nRank the following documents from most to least relevant to the question.\n\n")
	for i, c := range cands {
		fmt.Fprintf(&sb, "%d. %s\n\n", i+1, c.Passage.Text)
	}
	fmt.Fprintf(&sb, "List every number from 1 to %d exactly once.\n", len(cands))
	sb.WriteString("Output format: comma-separated document numbers, e.g. 2,1,3")
	return sb.String()
}

// ParsePermutation reads a comma-separated list of 1-based indices and
// returns 0-based positions. The list must name each of 1..n exactly once;
// anything else is a MalformedRerankOutput.
func ParsePermutation(resp string, n int) ([]int, error) {
	text := strings.TrimSpace(llm.StripFences(resp))
	text = strings.Trim(text, "[]().")
	if text == "" {
		return nil, malformed("empty response", resp)
	}

	parts := strings.Split(text, ",")
	seen := make([]bool, n)
	order := make([]int, 0, len(parts))
	for _, part := range parts {
		tok := strings.TrimSpace(part)
		idx, err := strconv.Atoi(tok)
		if err != nil {
			return nil, malformed(fmt.Sprintf("token %q is not an integer", tok), resp)
		}
		if idx < 1 || idx > n {
			return nil, malformed(fmt.Sprintf("index %d outside 1..%d", idx, n), resp)
		}
		if seen[idx-1] {
			return nil, malformed(fmt.Sprintf("index %d repeated", idx), resp)
		}
		seen[idx-1] = true
		order = append(order, idx-1)
	}
	if len(order) != n {
		return nil, malformed(fmt.Sprintf("%d of %d indices listed", len(order), n), resp)
	}
	return order, nil
}

func malformed(msg, resp string) error {
	resp = validation.TruncateRunes(resp, 200)
	return clerrors.MalformedRerankOutput(msg, nil).WithDetail("response", resp)
}

// DisplayScores returns the cosine similarity between query and each of
// the first n candidates. The scores are for display only and never change
// the order.
func DisplayScores(ctx context.Context, embedder embed.TextEmbedder, query string, cands []retrieve.Candidate, n int) ([]float64, error) {
	if n > len(cands) {
		n = len(cands)
	}
	if n <= 0 {
		return nil, nil
	}

	qv, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}
	texts := make([]string, n)
	for i := 0; i < n; i++ {
		texts[i] = cands[i].Passage.Text
	}
	vecs, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeEmbeddingFailed, "failed to embed results", err)
	}

	scores := make([]float64, n)
	for i, v := range vecs {
		scores[i] = embed.Cosine(qv, v)
	}
	return scores, nil
}
