package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a general-purpose text embedding model.
	DefaultOllamaModel = "nomic-embed-text"

	// DefaultOllamaBatchSize caps the texts sent in one /api/embed call.
	DefaultOllamaBatchSize = 32
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host      string
	Model     string
	BatchSize int
	Timeout   time.Duration

	// Dimensions skips detection when non-zero.
	Dimensions int

	// SkipHealthCheck skips the model listing and dimension probe.
	SkipHealthCheck bool
}

// OllamaEmbedRequest is the /api/embed request body.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string
}

// OllamaEmbedResponse is the /api/embed response body.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaEmbedder calls a local Ollama server's embedding API.
// Failed calls are returned to the caller as-is; nothing is retried here.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder and, unless told otherwise,
// checks that the model is installed and probes its dimension.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultOllamaBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	e := &OllamaEmbedder{
		client: &http.Client{Transport: &http.Transport{IdleConnTimeout: 10 * time.Second}},
		config: cfg,
		dims:   cfg.Dimensions,
	}

	if cfg.SkipHealthCheck {
		return e, nil
	}

	if err := e.checkModel(ctx); err != nil {
		return nil, err
	}
	if e.dims == 0 {
		vecs, err := e.embed(ctx, []string{"dimension probe"})
		if err != nil {
			return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
		}
		e.dims = len(vecs[0])
	}
	return e, nil
}

// checkModel confirms the configured model appears in /api/tags. A bare
// name matches any tag of that model.
func (e *OllamaEmbedder) checkModel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Ollama at %s: %w", e.config.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	want := strings.ToLower(e.config.Model)
	for _, m := range tags.Models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == want {
			return nil
		}
	}
	return fmt.Errorf("embedding model %q is not installed (run: ollama pull %s)", e.config.Model, e.config.Model)
}

// Embed generates embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in chunks of BatchSize. Blank texts get a zero
// vector without a call.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	results := make([][]float32, len(texts))
	var (
		pending []string
		slots   []int
	)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.Dimensions())
			continue
		}
		pending = append(pending, text)
		slots = append(slots, i)
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(pending))
		vecs, err := e.embed(ctx, pending[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}
		for j, vec := range vecs {
			results[slots[start+j]] = vec
		}
	}

	return results, nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(OllamaEmbedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result OllamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		out[i] = normalizeVector(vec)
	}

	e.mu.Lock()
	if e.dims == 0 && len(out) > 0 {
		e.dims = len(out[0])
	}
	e.mu.Unlock()

	return out, nil
}

// Dimensions returns the embedding dimension, or 0 before the first call
// when the health check was skipped.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Available checks that the server answers and has the model.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	return e.checkModel(ctx) == nil
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
