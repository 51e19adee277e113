package pipeline

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/claridoc/internal/config"
	"github.com/Aman-CERP/claridoc/internal/consolidate"
	"github.com/Aman-CERP/claridoc/internal/embed"
	"github.com/Aman-CERP/claridoc/internal/extract"
	"github.com/Aman-CERP/claridoc/internal/llm"
	"github.com/Aman-CERP/claridoc/internal/reconcile"
	"github.com/Aman-CERP/claridoc/internal/rerank"
	"github.com/Aman-CERP/claridoc/internal/schema"
	"github.com/Aman-CERP/claridoc/internal/segment"
	"github.com/Aman-CERP/claridoc/internal/store"
	"github.com/Aman-CERP/claridoc/internal/vocab"
)

// SettingsFromConfig maps configuration onto service settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Mode:         consolidate.Mode(cfg.Ingestion.Mode),
		BatchSize:    cfg.Ingestion.BatchSize,
		WritePolicy:  consolidate.WritePolicy(cfg.Ingestion.WritePolicy),
		ChunkSize:    cfg.Ingestion.ChunkSize,
		ChunkOverlap: cfg.Ingestion.ChunkOverlap,
		VectorTopK:   cfg.Retrieval.VectorTopK,
		LexicalTopK:  cfg.Retrieval.LexicalTopK,
		DisplayTopN:  cfg.Retrieval.DisplayTopN,
		MaxQueryLen:  cfg.Query.MaxLength,
	}
}

// FromConfig builds a Service with the configured models and backends.
// The returned function releases the embedder.
func FromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := llm.New(ctx, llm.Options{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey,
		OllamaHost:        cfg.LLM.OllamaHost,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
	})
	if err != nil {
		return nil, nil, err
	}

	embedder := embed.NewHandle(func(ctx context.Context) (embed.Embedder, error) {
		return embed.NewEmbedder(ctx, embed.Options{
			Provider:   embed.ProviderType(cfg.Embeddings.Provider),
			Model:      cfg.Embeddings.Model,
			OllamaHost: cfg.Embeddings.OllamaHost,
			CacheSize:  cfg.Embeddings.CacheSize,
		})
	})

	vocabStore, err := vocab.NewStore(cfg.VocabularyDir())
	if err != nil {
		return nil, nil, err
	}
	locker, err := vocab.NewLocker(cfg.LockDir(), cfg.Ingestion.LockTimeout)
	if err != nil {
		return nil, nil, err
	}

	var reranker rerank.Reranker = rerank.NoOpReranker{}
	if cfg.Retrieval.Rerank {
		reranker = rerank.NewLLMReranker(client, logger)
	}

	deps := Deps{
		Loader: segment.NewLoader(segment.Options{
			PDFLicenseKey:    cfg.PDF.LicenseKey,
			WordSegmentChars: cfg.Ingestion.WordSegmentChars,
			MaxDownloadBytes: cfg.Server.MaxUploadBytes,
		}),
		Detector:   schema.NewDetector(client, cfg.Ingestion.DocType),
		Extractor:  extract.New(client),
		Reconciler: reconcile.New(embedder, cfg.Ingestion.DedupThreshold),
		Embedder:   embedder,
		Generator:  client,
		Reranker:   reranker,
		Vocab:      vocabStore,
		Locker:     locker,
		Vectors: func(ctx context.Context, docKey string) (store.VectorIndex, error) {
			return store.NewVectorIndex(ctx, store.VectorOptions{
				Backend:      cfg.Retrieval.VectorBackend,
				ChromaURL:    cfg.Chroma.URL,
				ChromaPrefix: cfg.Chroma.CollectionPrefix,
				DocumentKey:  docKey,
			})
		},
		Lexicals: func() (store.LexicalIndex, error) {
			return store.NewLexicalIndex(cfg.Retrieval.LexicalBackend)
		},
	}

	svc, err := New(deps, SettingsFromConfig(cfg), append([]Option{WithLogger(logger)}, opts...)...)
	if err != nil {
		_ = embedder.Close()
		return nil, nil, err
	}
	return svc, embedder.Close, nil
}
