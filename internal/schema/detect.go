package schema

import (
	"context"
	"fmt"
	"strings"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/llm"
	"github.com/Aman-CERP/claridoc/internal/validation"
)

// detectSample caps how much of each opening segment is sent for detection.
const detectSample = 4000

// Detector picks a schema for a document from its opening segments.
type Detector struct {
	client   llm.Client
	override string
}

// NewDetector creates a Detector. A non-empty override skips the model call.
func NewDetector(client llm.Client, override string) *Detector {
	return &Detector{client: client, override: override}
}

// Detect classifies the document from up to its first two segment texts.
func (d *Detector) Detect(ctx context.Context, opening []string) (Schema, error) {
	if d.override != "" {
		return Lookup(d.override)
	}
	if d.client == nil {
		return Schema{}, clerrors.SchemaDetectionFailure("no model configured for document type detection", nil)
	}
	if len(opening) > 2 {
		opening = opening[:2]
	}

	resp, err := d.client.Generate(ctx, llm.Request{
		System: "You classify documents. Answer with exactly one tag from the list and nothing else.",
		Prompt: detectPrompt(opening),
	})
	if err != nil {
		return Schema{}, clerrors.SchemaDetectionFailure("document type detection failed", err)
	}

	tag := strings.Trim(strings.TrimSpace(llm.StripFences(resp)), `"'.`)
	return Lookup(tag)
}

func detectPrompt(opening []string) string {
	var sb strings.Builder
	sb.WriteString("Which kind of document is this?\n\nTags:\n")
	for _, s := range All() {
		fmt.Fprintf(&sb, "- %s: %s\n", s.Type, s.Description)
	}
	sb.WriteString("\nDocument start:\n")
	for i, text := range opening {
		text = validation.TruncateRunes(text, detectSample)
		fmt.Fprintf(&sb, "\n[page %d]\n%s\n", i+1, text)
	}
	sb.WriteString("\nTag:")
	return sb.String()
}
