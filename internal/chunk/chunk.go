// Package chunk splits segments into overlapping passages that carry the
// segment's consolidated metadata.
package chunk

import (
	"fmt"
	"maps"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/segment"
)

// Chunk size defaults, in characters.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// Metadata keys every passage carries.
const (
	KeySegment   = "page_no"
	KeyContentID = "doc_id"
	KeyPassageID = "chunk_id"
	KeyType      = "type"
)

// Passage is a retrievable slice of a segment.
type Passage struct {
	// ContentID identifies the document the passage came from.
	ContentID string `json:"doc_id"`
	// ID is unique within the document's passages.
	ID       string         `json:"chunk_id"`
	Segment  int            `json:"page_no"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Options configures a Chunker.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// Chunker splits segment text by character count with overlap. It holds
// no state between calls.
type Chunker struct {
	opts     Options
	splitter textsplitter.TextSplitter
}

// New creates a Chunker. The zero Options take the defaults. An explicit
// chunk size keeps its overlap as given, including zero; an overlap not
// smaller than the chunk size is clamped.
func New(opts Options) *Chunker {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
		if opts.ChunkOverlap == 0 {
			opts.ChunkOverlap = DefaultChunkOverlap
		}
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 4
	}
	return &Chunker{
		opts: opts,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(opts.ChunkSize),
			textsplitter.WithChunkOverlap(opts.ChunkOverlap),
		),
	}
}

// Options returns the effective options.
func (c *Chunker) Options() Options {
	return c.opts
}

// Split cuts seg into passages. Each passage gets the segment's metadata,
// then the record metadata, then its identifiers. Blank segments yield no
// passages.
func (c *Chunker) Split(contentID string, seg segment.Segment, record map[string]any) ([]Passage, error) {
	if strings.TrimSpace(seg.Text) == "" {
		return nil, nil
	}

	texts, err := c.splitter.SplitText(seg.Text)
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeChunkingFailed, fmt.Sprintf("failed to split segment %d", seg.Index), err)
	}

	passages := make([]Passage, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		id := fmt.Sprintf("%s_p%d_%d", contentID, seg.Index, len(passages))

		meta := make(map[string]any, len(seg.Metadata)+len(record)+4)
		maps.Copy(meta, seg.Metadata)
		maps.Copy(meta, record)
		meta[KeySegment] = seg.Index
		meta[KeyContentID] = contentID
		meta[KeyPassageID] = id
		meta[KeyType] = "text"

		passages = append(passages, Passage{
			ContentID: contentID,
			ID:        id,
			Segment:   seg.Index,
			Text:      text,
			Metadata:  meta,
		})
	}
	return passages, nil
}

// SplitAll chunks every segment with its aligned record metadata.
// records[i] belongs to segments[i].
func (c *Chunker) SplitAll(contentID string, segments []segment.Segment, records []map[string]any) ([]Passage, error) {
	if len(records) != len(segments) {
		return nil, clerrors.InternalError(
			fmt.Sprintf("%d records for %d segments", len(records), len(segments)), nil)
	}
	var out []Passage
	for i, seg := range segments {
		ps, err := c.Split(contentID, seg, records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
	}
	return out, nil
}
