package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/claridoc/internal/chunk"
)

// PassageAnalyzerName is the Bleve analyzer used for passage text.
const PassageAnalyzerName = "passage_analyzer"

// BleveIndex implements LexicalIndex with an in-memory Bleve index.
type BleveIndex struct {
	mu       sync.RWMutex
	index    bleve.Index
	passages map[string]chunk.Passage
	closed   bool
}

var _ LexicalIndex = (*BleveIndex)(nil)

type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveIndex creates an empty in-memory index.
func NewBleveIndex() (*BleveIndex, error) {
	idx, err := newMemIndex()
	if err != nil {
		return nil, err
	}
	return &BleveIndex{index: idx, passages: make(map[string]chunk.Passage)}, nil
}

func newMemIndex() (bleve.Index, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}
	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return idx, nil
}

// createIndexMapping uses unicode word splitting, lowercasing, English
// stop words and Porter stemming, so "covers" finds "coverage".
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(PassageAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			en.StopName,
			porter.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = PassageAnalyzerName
	return indexMapping, nil
}

// Build replaces the index with passages.
func (b *BleveIndex) Build(ctx context.Context, passages []chunk.Passage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed("lexical index")
	}

	fresh, err := newMemIndex()
	if err != nil {
		return err
	}

	batch := fresh.NewBatch()
	byID := make(map[string]chunk.Passage, len(passages))
	for _, p := range passages {
		if err := batch.Index(p.ID, bleveDocument{Content: p.Text}); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("failed to index passage %s: %w", p.ID, err)
		}
		byID[p.ID] = p
	}
	if err := fresh.Batch(batch); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	_ = b.index.Close()
	b.index = fresh
	b.passages = byID
	return nil
}

// Query runs a match query against passage content.
func (b *BleveIndex) Query(ctx context.Context, text string, topK int) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed("lexical index")
	}
	if strings.TrimSpace(text) == "" || topK <= 0 {
		return []Hit{}, nil
	}

	matchQuery := bleve.NewMatchQuery(text)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = topK

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		if p, ok := b.passages[h.ID]; ok {
			hits = append(hits, Hit{Passage: p, Score: h.Score})
		}
	}
	return hits, nil
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.passages = nil
	return b.index.Close()
}
