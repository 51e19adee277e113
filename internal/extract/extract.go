// Package extract asks a language model for structured metadata about a
// passage of text, steering it towards values it has already used.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/llm"
	"github.com/Aman-CERP/claridoc/internal/schema"
)

// Extractor produces a metadata record for text under a schema, given the
// values already known for the document.
type Extractor interface {
	Extract(ctx context.Context, text string, known map[string][]string, sch schema.Schema) (schema.Record, error)
}

// QueryExtractor produces metadata for a user question.
type QueryExtractor interface {
	ExtractQuery(ctx context.Context, query string, known map[string][]string, sch schema.Schema) (map[string]any, error)
}

// LLMExtractor implements Extractor and QueryExtractor with one model call each.
type LLMExtractor struct {
	client llm.Client
}

var (
	_ Extractor      = (*LLMExtractor)(nil)
	_ QueryExtractor = (*LLMExtractor)(nil)
)

// New creates an LLMExtractor.
func New(client llm.Client) *LLMExtractor {
	return &LLMExtractor{client: client}
}

const extractSystem = `You extract structured metadata from documents.
Reply with a single JSON object and nothing else.`

// Extract makes one extraction call. A call error or a reply that is not a
// JSON object fitting the schema is an ExtractionFailure.
func (e *LLMExtractor) Extract(ctx context.Context, text string, known map[string][]string, sch schema.Schema) (schema.Record, error) {
	raw, err := e.call(ctx, documentPrompt(text, known, sch))
	if err != nil {
		return schema.Record{}, err
	}
	return sch.ParseRecord(raw)
}

// ExtractQuery extracts metadata from a question and returns it as raw
// attribute values, ready for FilterQueryMetadata.
func (e *LLMExtractor) ExtractQuery(ctx context.Context, query string, known map[string][]string, sch schema.Schema) (map[string]any, error) {
	raw, err := e.call(ctx, queryPrompt(query, known, sch))
	if err != nil {
		return nil, err
	}
	rec, err := sch.ParseRecord(raw)
	if err != nil {
		return nil, err
	}
	out := rec.Metadata(sch)
	out[schema.NoveltyFlag] = rec.AddedNewKeyword
	return out, nil
}

func (e *LLMExtractor) call(ctx context.Context, prompt string) (map[string]any, error) {
	resp, err := e.client.Generate(ctx, llm.Request{System: extractSystem, Prompt: prompt, JSON: true})
	if err != nil {
		return nil, clerrors.ExtractionFailure("extraction call failed", err)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(llm.StripFences(resp)), &raw); err != nil {
		return nil, clerrors.ExtractionFailure("extraction reply is not a JSON object", err)
	}
	return raw, nil
}

func documentPrompt(text string, known map[string][]string, sch schema.Schema) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Extract metadata from this %s.\n\n", sch.Description)
	writeFields(&sb, sch)
	writeKnown(&sb, known)
	sb.WriteString(`
Rules:
- For list fields, reuse a known value whenever it means the same thing, spelled exactly as listed.
- Add a new value only for a concept none of the known values covers.
- Set "added_new_keyword" to true if you used any value not in the known list, otherwise false.
- Omit fields the text says nothing about.
- The text may contain several pages separated by "--- PAGE BREAK ---"; describe them together.

Text:
`)
	sb.WriteString(text)
	return sb.String()
}

func queryPrompt(query string, known map[string][]string, sch schema.Schema) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A user is asking a question about %s. Extract the metadata the question refers to, so matching passages can be found.\n\n", sch.Description)
	writeFields(&sb, sch)
	writeKnown(&sb, known)
	sb.WriteString(`
Rules:
- Only use known values; pick the closest ones the question refers to.
- Omit fields the question does not mention.
- Set "added_new_keyword" to false.

Question:
`)
	sb.WriteString(query)
	return sb.String()
}

func writeFields(sb *strings.Builder, sch schema.Schema) {
	sb.WriteString("Fields:\n")
	for _, f := range sch.Fields {
		shape := "list of short strings"
		if f.Kind == schema.KindText {
			shape = "string"
		}
		fmt.Fprintf(sb, "- %s (%s): %s\n", f.Name, shape, f.Description)
	}
	fmt.Fprintf(sb, "- %s (boolean)\n", schema.NoveltyFlag)
}

// writeKnown lists the vocabulary as JSON; map keys marshal in sorted order.
func writeKnown(sb *strings.Builder, known map[string][]string) {
	if len(known) == 0 {
		sb.WriteString("\nKnown values: none yet.\n")
		return
	}
	data, _ := json.Marshal(known)
	fmt.Fprintf(sb, "\nKnown values:\n%s\n", data)
}
