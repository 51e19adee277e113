package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/claridoc/internal/chunk"
)

// HNSWConfig configures the in-process vector index.
type HNSWConfig struct {
	Dimensions int
	// M is HNSW max connections per layer (default: 16)
	M int
	// EfSearch is HNSW query-time search width (default: 20)
	EfSearch int
}

// HNSWIndex implements VectorIndex using coder/hnsw.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config HNSWConfig

	// ID mapping (passage ID <-> graph key)
	idMap    map[string]uint64
	passages map[uint64]chunk.Passage
	nextKey  uint64

	closed bool
}

var _ VectorIndex = (*HNSWIndex)(nil)

// NewHNSWIndex creates an empty in-process vector index.
func NewHNSWIndex(cfg HNSWConfig) *HNSWIndex {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWIndex{
		graph:    graph,
		config:   cfg,
		idMap:    make(map[string]uint64),
		passages: make(map[uint64]chunk.Passage),
	}
}

// Upsert adds passages. Dimensions are fixed by the first vector when the
// config leaves them at zero.
func (s *HNSWIndex) Upsert(_ context.Context, passages []chunk.Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("passages and vectors length mismatch: %d vs %d", len(passages), len(vectors))
	}
	if len(passages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed("vector index")
	}

	if s.config.Dimensions == 0 {
		s.config.Dimensions = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, p := range passages {
		// Replaced nodes are orphaned rather than deleted from the graph;
		// coder/hnsw misbehaves when the last node is removed.
		if old, exists := s.idMap[p.ID]; exists {
			delete(s.passages, old)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[p.ID] = key
		s.passages[key] = p
	}
	return nil
}

// Query searches the whole graph, drops passages that fail the filter and
// returns the topK best. Per-document graphs are small enough that an
// exhaustive search is cheap.
func (s *HNSWIndex) Query(_ context.Context, vector []float32, filter Filter, topK int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed("vector index")
	}
	if s.graph.Len() == 0 || topK <= 0 {
		return []Hit{}, nil
	}
	if len(vector) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(vector)}
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeVectorInPlace(query)

	nodes := s.graph.Search(query, s.graph.Len())

	hits := make([]Hit, 0, topK)
	for _, node := range nodes {
		p, ok := s.passages[node.Key]
		if !ok || !filter.Matches(p.Metadata) {
			continue
		}
		distance := s.graph.Distance(query, node.Value)
		hits = append(hits, Hit{Passage: p, Score: float64(1 - distance)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Len returns the number of live passages.
func (s *HNSWIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages)
}

// Close releases the graph.
func (s *HNSWIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.graph = nil
	s.idMap = nil
	s.passages = nil
	return nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}
