// Package pipeline runs document ingestion and question answering end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/claridoc/internal/chunk"
	"github.com/Aman-CERP/claridoc/internal/consolidate"
	"github.com/Aman-CERP/claridoc/internal/embed"
	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/extract"
	"github.com/Aman-CERP/claridoc/internal/llm"
	"github.com/Aman-CERP/claridoc/internal/rerank"
	"github.com/Aman-CERP/claridoc/internal/retrieve"
	"github.com/Aman-CERP/claridoc/internal/schema"
	"github.com/Aman-CERP/claridoc/internal/segment"
	"github.com/Aman-CERP/claridoc/internal/store"
	"github.com/Aman-CERP/claridoc/internal/validation"
	"github.com/Aman-CERP/claridoc/internal/vocab"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// SegmentLoader turns a document source into segments.
type SegmentLoader interface {
	Load(ctx context.Context, src segment.Source) ([]segment.Segment, error)
}

// SchemaDetector picks a schema from a document's opening segments.
type SchemaDetector interface {
	Detect(ctx context.Context, opening []string) (schema.Schema, error)
}

// MetadataExtractor extracts metadata from segments and questions.
type MetadataExtractor interface {
	extract.Extractor
	extract.QueryExtractor
}

// VectorFactory creates the vector index for one document.
type VectorFactory func(ctx context.Context, docKey string) (store.VectorIndex, error)

// LexicalFactory creates the lexical index for one document.
type LexicalFactory func() (store.LexicalIndex, error)

// Deps are the collaborators a Service needs.
type Deps struct {
	Loader     SegmentLoader
	Detector   SchemaDetector
	Extractor  MetadataExtractor
	Reconciler consolidate.Reconciler
	Embedder   embed.TextEmbedder
	Generator  llm.Client
	Reranker   rerank.Reranker
	Vocab      *vocab.Store
	Locker     *vocab.Locker
	Vectors    VectorFactory
	Lexicals   LexicalFactory
}

// Settings are the tunables a Service reads per call.
type Settings struct {
	Mode         consolidate.Mode
	BatchSize    int
	WritePolicy  consolidate.WritePolicy
	ChunkSize    int
	ChunkOverlap int
	VectorTopK   int
	LexicalTopK  int
	DisplayTopN  int
	MaxQueryLen  int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStateHook observes consolidation state changes.
func WithStateHook(fn func(docKey string, st consolidate.State)) Option {
	return func(s *Service) {
		s.onState = fn
	}
}

// Service ingests documents and answers questions about them.
type Service struct {
	deps     Deps
	settings Settings
	chunker  *chunk.Chunker
	logger   *slog.Logger
	onState  func(string, consolidate.State)
}

// New creates a Service. Every dependency except Reranker is required; a
// nil Reranker keeps retrieval order.
func New(deps Deps, settings Settings, opts ...Option) (*Service, error) {
	switch {
	case deps.Loader == nil:
		return nil, fmt.Errorf("%w: segment loader is required", ErrNilDependency)
	case deps.Detector == nil:
		return nil, fmt.Errorf("%w: schema detector is required", ErrNilDependency)
	case deps.Extractor == nil:
		return nil, fmt.Errorf("%w: extractor is required", ErrNilDependency)
	case deps.Reconciler == nil:
		return nil, fmt.Errorf("%w: reconciler is required", ErrNilDependency)
	case deps.Embedder == nil:
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	case deps.Generator == nil:
		return nil, fmt.Errorf("%w: answer model is required", ErrNilDependency)
	case deps.Vocab == nil, deps.Locker == nil:
		return nil, fmt.Errorf("%w: vocabulary store and locker are required", ErrNilDependency)
	case deps.Vectors == nil, deps.Lexicals == nil:
		return nil, fmt.Errorf("%w: index factories are required", ErrNilDependency)
	}
	if deps.Reranker == nil {
		deps.Reranker = rerank.NoOpReranker{}
	}
	if settings.DisplayTopN <= 0 {
		settings.DisplayTopN = 3
	}
	if settings.MaxQueryLen <= 0 {
		settings.MaxQueryLen = validation.DefaultMaxQueryLength
	}

	s := &Service{
		deps:     deps,
		settings: settings,
		chunker:  chunk.New(chunk.Options{ChunkSize: settings.ChunkSize, ChunkOverlap: settings.ChunkOverlap}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "pipeline")
	return s, nil
}

// IngestRequest names a document to ingest.
type IngestRequest struct {
	// DocumentID identifies the document for vocabulary persistence and locking.
	DocumentID string
	Path       string
	URL        string
	Kind       segment.Kind
}

// SessionDocumentID names one ingest of filename within a session. Every
// call returns a new ID, so a replaced document and its successor never
// share a vocabulary key or a vector collection.
func SessionDocumentID(sessionID, filename string) string {
	return sessionID + "/" + uuid.NewString()[:8] + "/" + filename
}

// Document is an ingested, queryable document. Release it when done.
type Document struct {
	ID              string
	Key             string
	ContentID       string
	Schema          schema.Schema
	Segments        int
	Passages        int
	ExtractionCalls int
	IngestedAt      time.Time

	vector  store.VectorIndex
	lexical store.LexicalIndex
}

// Ingest loads, consolidates, chunks and indexes a document. Fatal failures
// abort the whole ingestion; the vocabulary written so far stays on disk.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (doc *Document, err error) {
	start := time.Now()
	if strings.TrimSpace(req.DocumentID) == "" {
		return nil, clerrors.ValidationError("document id is required", nil)
	}
	key := vocab.SanitizeKey(req.DocumentID)

	defer func() {
		if err != nil {
			s.logger.Error("ingestion failed", append([]any{"doc_key", key}, clerrors.LogAttrs(err)...)...)
		}
	}()

	unlock, err := s.deps.Locker.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	segments, err := s.deps.Loader.Load(ctx, segment.Source{Path: req.Path, URL: req.URL, Kind: req.Kind})
	if err != nil {
		return nil, err
	}

	opening := segment.Texts(segments)
	if len(opening) > 2 {
		opening = opening[:2]
	}
	sch, err := s.deps.Detector.Detect(ctx, opening)
	if err != nil {
		return nil, err
	}
	s.logger.Info("schema detected", "doc_key", key, "doc_type", string(sch.Type), "segments", len(segments))

	cons := consolidate.New(s.deps.Extractor, s.deps.Reconciler, s.deps.Vocab, consolidate.Options{
		Mode:        s.settings.Mode,
		BatchSize:   s.settings.BatchSize,
		WritePolicy: s.settings.WritePolicy,
		OnState:     s.onState,
		Logger:      s.logger,
	})
	res, err := cons.Run(ctx, key, sch, segments)
	if err != nil {
		return nil, err
	}

	records := make([]map[string]any, len(res.Records))
	for i, rec := range res.Records {
		records[i] = rec.Metadata(sch)
	}
	contentID := uuid.NewString()
	passages, err := s.chunker.SplitAll(contentID, segments, records)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, "document has no text to index", nil)
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := s.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeEmbeddingFailed, "failed to embed passages", err)
	}

	vector, err := s.deps.Vectors(ctx, key)
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeIndexFailed, "failed to open vector index", err)
	}
	if err := vector.Upsert(ctx, passages, vectors); err != nil {
		_ = vector.Close()
		return nil, clerrors.New(clerrors.ErrCodeIndexFailed, "failed to index passages", err)
	}

	lexical, err := s.deps.Lexicals()
	if err != nil {
		_ = vector.Close()
		return nil, clerrors.New(clerrors.ErrCodeIndexFailed, "failed to open lexical index", err)
	}
	if err := lexical.Build(ctx, passages); err != nil {
		_ = vector.Close()
		_ = lexical.Close()
		return nil, clerrors.New(clerrors.ErrCodeIndexFailed, "failed to build lexical index", err)
	}

	doc = &Document{
		ID:              req.DocumentID,
		Key:             key,
		ContentID:       contentID,
		Schema:          sch,
		Segments:        len(segments),
		Passages:        len(passages),
		ExtractionCalls: res.ExtractionCalls,
		IngestedAt:      time.Now(),
		vector:          vector,
		lexical:         lexical,
	}
	s.logger.Info("document ingested",
		"doc_key", key,
		"passages", doc.Passages,
		"extraction_calls", doc.ExtractionCalls,
		"vocabulary_size", res.Vocabulary.Len(),
		"duration", time.Since(start))
	return doc, nil
}

// Source is one passage cited by an answer.
type Source struct {
	DocID    string         `json:"doc_id"`
	Page     int            `json:"page"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Answer is the result of a query.
type Answer struct {
	Query   string   `json:"query"`
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
	// Degraded is set when reranking output was rejected and retrieval
	// order was used instead.
	Degraded bool `json:"degraded,omitempty"`
}

// Query answers a question about doc.
func (s *Service) Query(ctx context.Context, doc *Document, rawQuery string) (*Answer, error) {
	if doc == nil || doc.vector == nil {
		return nil, clerrors.ValidationError("no document uploaded", nil)
	}
	q, err := validation.CheckQuery(rawQuery, s.settings.MaxQueryLen)
	if err != nil {
		return nil, err
	}

	known, err := s.deps.Vocab.Load(doc.Key)
	if err != nil {
		return nil, err
	}
	raw, err := s.deps.Extractor.ExtractQuery(ctx, q, known.Snapshot(), doc.Schema)
	if err != nil {
		return nil, err
	}
	filter := store.Filter(schema.QueryFilter(schema.FilterQueryMetadata(raw)))
	s.logger.Debug("query filter", "doc_key", doc.Key, "attributes", filter.Attributes())

	retriever := retrieve.New(s.deps.Embedder, doc.vector, doc.lexical, retrieve.Options{
		VectorTopK:  s.settings.VectorTopK,
		LexicalTopK: s.settings.LexicalTopK,
		Logger:      s.logger,
	})
	found, err := retriever.Retrieve(ctx, q, filter)
	if err != nil {
		return nil, err
	}

	ordered, degraded, err := s.rerank(ctx, q, found.All())
	if err != nil {
		return nil, err
	}
	ordered = dedupe(ordered)

	text, err := s.deps.Generator.Generate(ctx, llm.Request{Prompt: answerPrompt(q, ordered)})
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeGenerationFailed, "answer generation failed", err)
	}

	top := ordered
	if len(top) > s.settings.DisplayTopN {
		top = top[:s.settings.DisplayTopN]
	}
	scores, err := rerank.DisplayScores(ctx, s.deps.Embedder, q, top, len(top))
	if err != nil {
		return nil, err
	}

	ans := &Answer{Query: q, Text: strings.TrimSpace(text), Degraded: degraded, Sources: make([]Source, len(top))}
	for i, c := range top {
		ans.Sources[i] = Source{
			DocID:    c.Passage.ContentID,
			Page:     c.Passage.Segment,
			Text:     c.Passage.Text,
			Score:    scores[i],
			Metadata: c.Passage.Metadata,
		}
	}
	s.logger.Info("query answered",
		"doc_key", doc.Key,
		"vector_hits", len(found.Vector),
		"lexical_hits", len(found.Lexical),
		"degraded", degraded)
	return ans, nil
}

func (s *Service) rerank(ctx context.Context, q string, cands []retrieve.Candidate) ([]retrieve.Candidate, bool, error) {
	ordered, err := s.deps.Reranker.Rerank(ctx, q, cands)
	if err == nil {
		return ordered, false, nil
	}
	if clerrors.HasCode(err, clerrors.ErrCodeRerankMalformed) {
		return ordered, true, nil
	}
	return nil, false, err
}

// dedupe keeps the first occurrence of each passage. Vector and lexical
// results can both contain the same passage.
func dedupe(cands []retrieve.Candidate) []retrieve.Candidate {
	seen := make(map[string]bool, len(cands))
	out := make([]retrieve.Candidate, 0, len(cands))
	for _, c := range cands {
		if seen[c.Passage.ID] {
			continue
		}
		seen[c.Passage.ID] = true
		out = append(out, c)
	}
	return out
}

func answerPrompt(q string, cands []retrieve.Candidate) string {
	var sb strings.Builder
	sb.WriteString("You are a legal/insurance domain expert and policy analyst.\n")
	sb.WriteString("Use the following extracted clauses from policy documents to answer the question.\n")
	sb.WriteString("If you can't find the answer, say \"I don't know\".\n\n")
	sb.WriteString("Context clauses:\n")
	for _, c := range cands {
		sb.WriteString(c.Passage.Text)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(q)
	return sb.String()
}

// Release closes the document's indices and deletes its vocabulary.
func (s *Service) Release(doc *Document) error {
	if doc == nil {
		return nil
	}
	return errors.Join(s.Close(doc), s.deps.Vocab.Delete(doc.Key))
}

// Close closes the document's indices and keeps its vocabulary file for
// inspection. A later ingest of the same document ID rebuilds it from
// segment 0.
func (s *Service) Close(doc *Document) error {
	if doc == nil {
		return nil
	}
	var errs []error
	if doc.vector != nil {
		errs = append(errs, doc.vector.Close())
		doc.vector = nil
	}
	if doc.lexical != nil {
		errs = append(errs, doc.lexical.Close())
		doc.lexical = nil
	}
	return errors.Join(errs...)
}

// Vocabulary loads the persisted vocabulary for a document key.
func (s *Service) Vocabulary(key string) (*vocab.Vocabulary, error) {
	return s.deps.Vocab.Load(key)
}

// VocabularyPath returns where a document's vocabulary is stored.
func (s *Service) VocabularyPath(key string) string {
	return s.deps.Vocab.Path(key)
}
