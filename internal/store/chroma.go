package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github.com/Aman-CERP/claridoc/internal/chunk"
)

const (
	// chromaPassageKey holds the serialized passage in Chroma metadata.
	chromaPassageKey = "passage_json"
	// chromaKeywordPrefix prefixes flattened filter keys. Chroma metadata is
	// scalar, so list values become one "kw:<attr>:<value>" flag each.
	chromaKeywordPrefix = "kw:"
)

// ChromaConfig configures the Chroma-backed index.
type ChromaConfig struct {
	URL string
	// Prefix and DocumentKey name the collection.
	Prefix      string
	DocumentKey string
}

// ChromaIndex implements VectorIndex on a Chroma collection, one collection
// per document.
type ChromaIndex struct {
	client     chromago.Client
	collection chromago.Collection
	name       string
}

var _ VectorIndex = (*ChromaIndex)(nil)

// NewChromaIndex connects to Chroma and gets or creates the document's
// collection with cosine distance.
func NewChromaIndex(ctx context.Context, cfg ChromaConfig) (*ChromaIndex, error) {
	opts := []chromago.ClientOption{}
	if cfg.URL != "" {
		opts = append(opts, chromago.WithBaseURL(cfg.URL))
	}
	client, err := chromago.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	name := CollectionName(cfg.Prefix, cfg.DocumentKey)
	collection, err := client.GetOrCreateCollection(ctx, name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("hnsw:space", "cosine"),
				chromago.NewStringAttribute("created_by", "claridoc"),
			),
		),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to get or create collection %s: %w", name, err)
	}

	return &ChromaIndex{client: client, collection: collection, name: name}, nil
}

// CollectionName derives a Chroma-safe collection name (3-63 characters of
// [a-zA-Z0-9._-]) from a prefix and document key.
func CollectionName(prefix, documentKey string) string {
	if prefix == "" {
		prefix = "claridoc"
	}
	sum := sha256.Sum256([]byte(documentKey))
	prefix = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, prefix)
	if len(prefix) > 40 {
		prefix = prefix[:40]
	}
	return prefix + "-" + hex.EncodeToString(sum[:8])
}

// Upsert writes passages with their embeddings.
func (c *ChromaIndex) Upsert(ctx context.Context, passages []chunk.Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("passages and vectors length mismatch: %d vs %d", len(passages), len(vectors))
	}
	if len(passages) == 0 {
		return nil
	}

	ids := make([]chromago.DocumentID, len(passages))
	texts := make([]string, len(passages))
	embs := make([]embeddings.Embedding, len(passages))
	metas := make([]chromago.DocumentMetadata, len(passages))
	for i, p := range passages {
		meta, err := chromaMetadata(p)
		if err != nil {
			return err
		}
		ids[i] = chromago.DocumentID(p.ID)
		texts[i] = p.Text
		embs[i] = embeddings.NewEmbeddingFromFloat32(vectors[i])
		metas[i] = meta
	}

	err := c.collection.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", c.name, err)
	}
	return nil
}

// Query runs a nearest-neighbour query with the filter as a where clause.
func (c *ChromaIndex) Query(ctx context.Context, vector []float32, filter Filter, topK int) ([]Hit, error) {
	if topK <= 0 {
		return []Hit{}, nil
	}
	opts := []chromago.CollectionQueryOption{
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(topK),
	}
	if where := chromaWhere(filter); where != nil {
		opts = append(opts, chromago.WithWhereQuery(where))
	}

	results, err := c.collection.Query(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}

	metaGroups := results.GetMetadatasGroups()
	distGroups := results.GetDistancesGroups()
	if len(metaGroups) == 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, 0, len(metaGroups[0]))
	for i, meta := range metaGroups[0] {
		p, err := passageFromMetadata(meta)
		if err != nil {
			return nil, err
		}
		score := 0.0
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			score = 1 - float64(distGroups[0][i])
		}
		hits = append(hits, Hit{Passage: p, Score: score})
	}
	return hits, nil
}

// Close drops the document's collection and closes the client. Collections
// live as long as the session that created them.
func (c *ChromaIndex) Close() error {
	err := c.client.DeleteCollection(context.Background(), c.name)
	if closeErr := c.client.Close(); err == nil {
		err = closeErr
	}
	return err
}

func chromaMetadata(p chunk.Passage) (chromago.DocumentMetadata, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode passage %s: %w", p.ID, err)
	}
	attrs := []*chromago.MetaAttribute{
		chromago.NewStringAttribute(chromaPassageKey, string(data)),
		chromago.NewStringAttribute(chunk.KeyContentID, p.ContentID),
		chromago.NewIntAttribute(chunk.KeySegment, int64(p.Segment)),
	}
	for _, key := range flattenKeywords(p.Metadata) {
		attrs = append(attrs, chromago.NewStringAttribute(key, "1"))
	}
	return chromago.NewDocumentMetadata(attrs...), nil
}

// flattenKeywords turns list-valued metadata into flag keys.
func flattenKeywords(meta map[string]any) []string {
	var keys []string
	for attr, v := range meta {
		if _, isList := v.([]string); !isList {
			continue
		}
		for _, val := range MetaValues(v) {
			keys = append(keys, keywordKey(attr, val))
		}
	}
	return keys
}

func keywordKey(attr, value string) string {
	return chromaKeywordPrefix + attr + ":" + value
}

// chromaWhere ANDs one OR group per attribute. Single clauses are used
// bare since Chroma rejects one-element $and/$or.
func chromaWhere(f Filter) chromago.WhereClause {
	var groups []chromago.WhereClause
	for _, attr := range f.Attributes() {
		var ors []chromago.WhereClause
		for _, val := range f[attr] {
			ors = append(ors, chromago.EqString(keywordKey(attr, val), "1"))
		}
		if len(ors) == 1 {
			groups = append(groups, ors[0])
		} else {
			groups = append(groups, chromago.Or(ors...))
		}
	}
	switch len(groups) {
	case 0:
		return nil
	case 1:
		return groups[0]
	default:
		return chromago.And(groups...)
	}
}

// passageFromMetadata decodes the stored passage. DocumentMetadata has no
// generic getter, so it is read back through JSON.
func passageFromMetadata(meta chromago.DocumentMetadata) (chunk.Passage, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return chunk.Passage{}, fmt.Errorf("failed to read chroma metadata: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return chunk.Passage{}, fmt.Errorf("failed to read chroma metadata: %w", err)
	}
	encoded, ok := fields[chromaPassageKey].(string)
	if !ok {
		return chunk.Passage{}, fmt.Errorf("chroma metadata has no %s", chromaPassageKey)
	}
	var p chunk.Passage
	if err := json.Unmarshal([]byte(encoded), &p); err != nil {
		return chunk.Passage{}, fmt.Errorf("failed to decode passage: %w", err)
	}
	return p, nil
}
