package embed

import (
	"context"
	"errors"
	"sync/atomic"
)

// mockEmbedder is a test double that counts calls.
type mockEmbedder struct {
	embedCalls atomic.Int64
	batchCalls atomic.Int64
	batchSizes []int
	fail       bool
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.embedCalls.Add(1)
	if m.fail {
		return nil, errors.New("mock failure")
	}
	return []float32{float32(len(text)), 1}, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.fail {
		return nil, errors.New("mock failure")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int                  { return 2 }
func (m *mockEmbedder) ModelName() string                { return "mock-model" }
func (m *mockEmbedder) Available(_ context.Context) bool { return true }
func (m *mockEmbedder) Close() error                     { return nil }
