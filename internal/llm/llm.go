// Package llm wraps the text-generation models claridoc calls for schema
// detection, metadata extraction, reranking and answers.
package llm

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

// Request is one generation call.
type Request struct {
	// System is the system instruction. Optional.
	System string
	// Prompt is the user content.
	Prompt string
	// JSON asks the model for a JSON object.
	JSON bool
}

// Client generates text. Implementations make one remote call per Generate
// and never retry.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

// Options selects and configures a client.
type Options struct {
	Provider          string
	Model             string
	APIKey            string
	OllamaHost        string
	RequestsPerSecond float64
	Burst             int
}

// New creates the configured client, rate limited when RequestsPerSecond > 0.
func New(ctx context.Context, opts Options) (Client, error) {
	var (
		c   Client
		err error
	)
	switch strings.ToLower(opts.Provider) {
	case "gemini", "":
		c, err = NewGeminiClient(ctx, GeminiConfig{APIKey: opts.APIKey, Model: opts.Model})
	case "ollama":
		c = NewOllamaClient(opts.OllamaHost, opts.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	if opts.RequestsPerSecond > 0 {
		c = NewRateLimited(c, opts.RequestsPerSecond, opts.Burst)
	}
	return c, nil
}

// RateLimited spaces out calls to an inner client with a token bucket.
// Calls wait for a token; they are never dropped.
type RateLimited struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a limiter of rps requests per second.
func NewRateLimited(inner Client, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Generate waits for a token, then calls the inner client.
func (r *RateLimited) Generate(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.Generate(ctx, req)
}

// Model returns the inner client's model.
func (r *RateLimited) Model() string {
	return r.inner.Model()
}

// StripFences removes a surrounding Markdown code fence, which some models
// add around JSON even when asked not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
