// Package consolidate drives metadata extraction over a document's segments
// while growing the document's vocabulary of known attribute values.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/extract"
	"github.com/Aman-CERP/claridoc/internal/schema"
	"github.com/Aman-CERP/claridoc/internal/segment"
	"github.com/Aman-CERP/claridoc/internal/vocab"
)

// Mode selects the extraction granularity.
type Mode string

const (
	// PerSegment makes one extraction call per segment.
	PerSegment Mode = "per_segment"
	// Batched makes one call per group of BatchSize segments after the first.
	Batched Mode = "batched"
	// ReuseFirst applies segment 0's record to every segment.
	ReuseFirst Mode = "reuse_first"
)

// WritePolicy selects when the vocabulary is persisted.
type WritePolicy string

const (
	// WriteImmediate saves after every vocabulary change.
	WriteImmediate WritePolicy = "immediate"
	// WriteDeferred saves once at the end of the run, and on failure.
	WriteDeferred WritePolicy = "deferred"
)

// State is a consolidation run's position.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateSeeding       State = "seeding"
	StateExtracting    State = "extracting"
	StateDone          State = "done"
)

// Reconciler decides which candidate values are new to a vocabulary.
type Reconciler interface {
	Reconcile(ctx context.Context, candidates map[string][]string, v *vocab.Vocabulary) (map[string][]string, error)
}

// VocabularyStore persists vocabularies by document key.
type VocabularyStore interface {
	Save(key string, v *vocab.Vocabulary) error
}

// Options configures a Consolidator.
type Options struct {
	Mode        Mode
	BatchSize   int
	WritePolicy WritePolicy
	// OnState is called on every state transition. Optional.
	OnState func(docKey string, s State)
	Logger  *slog.Logger
}

// Result is the outcome of a run.
type Result struct {
	// Records holds one record per input segment, in segment order.
	Records []schema.Record
	// Vocabulary is the final in-memory vocabulary.
	Vocabulary *vocab.Vocabulary
	// ExtractionCalls counts calls made to the extractor, seed included.
	ExtractionCalls int
}

// Consolidator runs extraction over segments.
type Consolidator struct {
	extractor  extract.Extractor
	reconciler Reconciler
	store      VocabularyStore
	opts       Options
	logger     *slog.Logger
}

// New creates a Consolidator. Unknown modes and policies fall back to
// per-segment and immediate.
func New(extractor extract.Extractor, reconciler Reconciler, store VocabularyStore, opts Options) *Consolidator {
	switch opts.Mode {
	case PerSegment, Batched, ReuseFirst:
	default:
		opts.Mode = PerSegment
	}
	if opts.WritePolicy != WriteDeferred {
		opts.WritePolicy = WriteImmediate
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Consolidator{
		extractor:  extractor,
		reconciler: reconciler,
		store:      store,
		opts:       opts,
		logger:     logger.With("component", "consolidate"),
	}
}

// run holds the mutable state of one Run call.
type run struct {
	c      *Consolidator
	docKey string
	sch    schema.Schema
	vocab  *vocab.Vocabulary
	dirty  bool
	calls  int
}

// Run extracts metadata for segments under sch. Every run starts from an
// empty vocabulary and overwrites the persisted one for docKey. The first
// extraction failure stops the run; the vocabulary built so far stays on disk.
func (c *Consolidator) Run(ctx context.Context, docKey string, sch schema.Schema, segments []segment.Segment) (res Result, err error) {
	c.transition(docKey, StateUninitialized)
	if len(segments) == 0 {
		c.transition(docKey, StateDone)
		return Result{Vocabulary: vocab.New()}, nil
	}

	r := &run{c: c, docKey: docKey, sch: sch, vocab: vocab.New()}

	if c.opts.WritePolicy == WriteDeferred {
		defer func() {
			if flushErr := r.flush(); flushErr != nil && err == nil {
				err = flushErr
			}
		}()
	}

	c.transition(docKey, StateSeeding)
	seed, err := r.seed(ctx, segments[0])
	if err != nil {
		return Result{}, err
	}

	records := make([]schema.Record, len(segments))
	records[0] = seed

	c.transition(docKey, StateExtracting)
	switch c.opts.Mode {
	case ReuseFirst:
		for i := 1; i < len(segments); i++ {
			records[i] = seed
		}
	case Batched:
		for start := 1; start < len(segments); start += c.opts.BatchSize {
			end := min(start+c.opts.BatchSize, len(segments))
			rec, err := r.extract(ctx, segment.Join(segments[start:end]), fmt.Sprintf("%d-%d", start, end-1))
			if err != nil {
				return Result{}, err
			}
			for i := start; i < end; i++ {
				records[i] = rec
			}
		}
	default:
		for i := 1; i < len(segments); i++ {
			rec, err := r.extract(ctx, segments[i].Text, fmt.Sprint(i))
			if err != nil {
				return Result{}, err
			}
			records[i] = rec
		}
	}

	c.transition(docKey, StateDone)
	c.logger.Info("consolidation complete",
		"doc_key", docKey,
		"mode", string(c.opts.Mode),
		"segments", len(segments),
		"calls", r.calls,
		"vocabulary_size", r.vocab.Len())

	return Result{Records: records, Vocabulary: r.vocab, ExtractionCalls: r.calls}, nil
}

// seed extracts segment 0 against an empty vocabulary and starts a fresh
// vocabulary file from its keywords.
func (r *run) seed(ctx context.Context, seg segment.Segment) (schema.Record, error) {
	rec, err := r.call(ctx, seg.Text, "0")
	if err != nil {
		return schema.Record{}, err
	}
	r.vocab.Merge(rec.Keywords(r.sch))
	if err := r.changed(); err != nil {
		return schema.Record{}, err
	}
	return rec, nil
}

// extract makes one call against the current vocabulary and folds novel
// keywords back into it when the record is flagged.
func (r *run) extract(ctx context.Context, text, where string) (schema.Record, error) {
	rec, err := r.call(ctx, text, where)
	if err != nil {
		return schema.Record{}, err
	}
	if !rec.AddedNewKeyword {
		return rec, nil
	}

	accepted, err := r.c.reconciler.Reconcile(ctx, rec.Keywords(r.sch), r.vocab)
	if err != nil {
		return schema.Record{}, err
	}
	if added := r.vocab.Merge(accepted); added > 0 {
		r.c.logger.Debug("vocabulary grew", "doc_key", r.docKey, "segment", where, "added", added)
		if err := r.changed(); err != nil {
			return schema.Record{}, err
		}
	}
	return rec, nil
}

func (r *run) call(ctx context.Context, text, where string) (schema.Record, error) {
	r.calls++
	rec, err := r.c.extractor.Extract(ctx, text, r.vocab.Snapshot(), r.sch)
	if err != nil {
		if ce, ok := clerrors.As(err); ok {
			ce.WithDetail("segment", where).WithDetail("doc_key", r.docKey)
			return schema.Record{}, ce
		}
		return schema.Record{}, clerrors.ExtractionFailure("extraction failed for segment "+where, err).
			WithDetail("doc_key", r.docKey)
	}
	return rec, nil
}

// changed persists now under WriteImmediate and marks the vocabulary dirty
// otherwise.
func (r *run) changed() error {
	if r.c.opts.WritePolicy == WriteDeferred {
		r.dirty = true
		return nil
	}
	return r.c.store.Save(r.docKey, r.vocab)
}

func (r *run) flush() error {
	if !r.dirty {
		return nil
	}
	if err := r.c.store.Save(r.docKey, r.vocab); err != nil {
		r.c.logger.Error("vocabulary flush failed", append([]any{"doc_key", r.docKey}, clerrors.LogAttrs(err)...)...)
		return err
	}
	r.dirty = false
	return nil
}

func (c *Consolidator) transition(docKey string, s State) {
	if c.opts.OnState != nil {
		c.opts.OnState(docKey, s)
	}
}
