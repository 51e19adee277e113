package store

import (
	"context"
	"fmt"
)

// Backend names.
const (
	BackendHNSW   = "hnsw"
	BackendChroma = "chroma"
	BackendBleve  = "bleve"
	BackendSQLite = "sqlite"
)

// VectorOptions selects and configures a vector backend.
type VectorOptions struct {
	Backend      string
	Dimensions   int
	ChromaURL    string
	ChromaPrefix string
	DocumentKey  string
}

// NewVectorIndex creates the configured vector index.
func NewVectorIndex(ctx context.Context, opts VectorOptions) (VectorIndex, error) {
	switch opts.Backend {
	case BackendHNSW, "":
		return NewHNSWIndex(HNSWConfig{Dimensions: opts.Dimensions}), nil
	case BackendChroma:
		return NewChromaIndex(ctx, ChromaConfig{
			URL:         opts.ChromaURL,
			Prefix:      opts.ChromaPrefix,
			DocumentKey: opts.DocumentKey,
		})
	default:
		return nil, fmt.Errorf("unknown vector backend %q", opts.Backend)
	}
}

// NewLexicalIndex creates the configured lexical index.
func NewLexicalIndex(backend string) (LexicalIndex, error) {
	switch backend {
	case BackendBleve, "":
		return NewBleveIndex()
	case BackendSQLite:
		return NewSQLiteIndex()
	default:
		return nil, fmt.Errorf("unknown lexical backend %q", backend)
	}
}
