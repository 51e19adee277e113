// Package reconcile decides which newly extracted keyword values are new
// concepts and which are paraphrases of values already in a vocabulary.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/claridoc/internal/embed"
	"github.com/Aman-CERP/claridoc/internal/vocab"
)

// DefaultThreshold is the cosine similarity at which a candidate counts as
// a duplicate of a known value.
const DefaultThreshold = 0.85

// Reconciler compares candidate values with a vocabulary by embedding
// similarity.
type Reconciler struct {
	embedder  embed.TextEmbedder
	threshold float64
}

// New creates a Reconciler. A threshold outside (0, 1] falls back to
// DefaultThreshold.
func New(embedder embed.TextEmbedder, threshold float64) *Reconciler {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Reconciler{embedder: embedder, threshold: threshold}
}

// Threshold returns the duplicate threshold in use.
func (r *Reconciler) Threshold() float64 {
	return r.threshold
}

// Reconcile returns, per attribute, the candidates whose best similarity to
// the attribute's known values is strictly below the threshold. Reaching the
// threshold exactly counts as a duplicate. An attribute with no known values
// accepts every candidate without embedding anything. Candidates are
// compared with the vocabulary only, not with each other.
func (r *Reconciler) Reconcile(ctx context.Context, candidates map[string][]string, v *vocab.Vocabulary) (map[string][]string, error) {
	attrs := make([]string, 0, len(candidates))
	for attr := range candidates {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	accepted := make(map[string][]string, len(candidates))
	for _, attr := range attrs {
		values := cleanValues(candidates[attr])
		if len(values) == 0 {
			continue
		}

		known := v.Values(attr)
		if len(known) == 0 {
			accepted[attr] = values
			continue
		}

		novel, err := r.novelValues(ctx, attr, values, known)
		if err != nil {
			return nil, err
		}
		if len(novel) > 0 {
			accepted[attr] = novel
		}
	}
	return accepted, nil
}

func (r *Reconciler) novelValues(ctx context.Context, attr string, values, known []string) ([]string, error) {
	knownVecs, err := r.embedder.EmbedBatch(ctx, known)
	if err != nil {
		return nil, fmt.Errorf("embed known %s values: %w", attr, err)
	}

	var novel []string
	for _, value := range values {
		vec, err := r.embedder.Embed(ctx, value)
		if err != nil {
			return nil, fmt.Errorf("embed candidate %s value %q: %w", attr, value, err)
		}

		best := -1.0
		for _, kv := range knownVecs {
			if sim := embed.Cosine(vec, kv); sim > best {
				best = sim
			}
		}
		if best < r.threshold {
			novel = append(novel, value)
		}
	}
	return novel, nil
}

// cleanValues trims values and drops blanks and exact repeats, keeping order.
func cleanValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
