package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings.
	ProviderStatic ProviderType = "static"
)

// Options selects and configures an embedder.
type Options struct {
	Provider   ProviderType
	Model      string
	OllamaHost string
	CacheSize  int
}

// NewEmbedder creates the configured embedder wrapped in an LRU cache.
// An unavailable Ollama server is an error; there is no silent fallback
// to the static embedder, since that would change retrieval quality.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	var inner Embedder

	switch ProviderType(strings.ToLower(string(opts.Provider))) {
	case ProviderStatic:
		inner = NewStaticEmbedder()
	case ProviderOllama, "":
		e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: opts.OllamaHost, Model: opts.Model})
		if err != nil {
			return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or use the offline embedder: CLARIDOC_EMBEDDINGS_PROVIDER=static", err)
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", opts.Provider)
	}

	return NewCachedEmbedder(inner, opts.CacheSize), nil
}

// Handle creates an embedder on first use and shares it afterwards.
// A failed initialization is not remembered, so the next call tries again.
type Handle struct {
	init func(ctx context.Context) (Embedder, error)

	mu       sync.Mutex
	embedder Embedder
}

var _ TextEmbedder = (*Handle)(nil)

// NewHandle returns a Handle that builds its embedder with init.
func NewHandle(init func(ctx context.Context) (Embedder, error)) *Handle {
	return &Handle{init: init}
}

// Get returns the shared embedder, creating it if needed.
func (h *Handle) Get(ctx context.Context) (Embedder, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.embedder != nil {
		return h.embedder, nil
	}
	e, err := h.init(ctx)
	if err != nil {
		return nil, err
	}
	h.embedder = e
	return e, nil
}

// Embed embeds text with the shared embedder.
func (h *Handle) Embed(ctx context.Context, text string) ([]float32, error) {
	e, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return e.Embed(ctx, text)
}

// EmbedBatch embeds texts with the shared embedder.
func (h *Handle) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return e.EmbedBatch(ctx, texts)
}

// Close closes the embedder if one was created.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.embedder == nil {
		return nil
	}
	err := h.embedder.Close()
	h.embedder = nil
	return err
}
