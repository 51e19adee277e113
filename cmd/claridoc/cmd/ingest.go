package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claridoc/internal/pipeline"
)

func newIngestCmd() *cobra.Command {
	var (
		docType    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <file|url>",
		Short: "Ingest a document and build its vocabulary",
		Long: `Ingest a document: detect its schema, consolidate metadata into the
document's vocabulary, and index its passages.

The vocabulary is kept on disk for "claridoc vocab". Ingesting a document
with the same file name again rebuilds it from the first page.`,
		Example: `  claridoc ingest policy.pdf
  claridoc ingest handbook.docx --json
  claridoc ingest https://example.com/terms.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, doc, closeFn, err := ingestSource(cmd.Context(), args[0], docType)
			if err != nil {
				return err
			}
			defer closeFn()
			return printIngest(cmd.OutOrStdout(), doc, svc.VocabularyPath(doc.Key), jsonOutput)
		},
	}

	cmd.Flags().StringVar(&docType, "type", "", "Document type: pdf, word or text (default: from extension)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the summary as JSON")

	return cmd
}

type ingestSummary struct {
	DocumentID      string   `json:"document_id"`
	Schema          string   `json:"schema"`
	Fields          []string `json:"fields"`
	Segments        int      `json:"segments"`
	Passages        int      `json:"passages"`
	ExtractionCalls int      `json:"extraction_calls"`
	VocabularyPath  string   `json:"vocabulary_path"`
}

func printIngest(w io.Writer, doc *pipeline.Document, vocabPath string, jsonOutput bool) error {
	summary := ingestSummary{
		DocumentID:      doc.ID,
		Schema:          string(doc.Schema.Type),
		Segments:        doc.Segments,
		Passages:        doc.Passages,
		ExtractionCalls: doc.ExtractionCalls,
		VocabularyPath:  vocabPath,
	}
	for _, f := range doc.Schema.Fields {
		summary.Fields = append(summary.Fields, f.Name)
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	_, err := fmt.Fprintf(w, `Document:    %s
Schema:      %s (%s)
Segments:    %d
Passages:    %d
LLM calls:   %d
Vocabulary:  %s
`, summary.DocumentID, summary.Schema, strings.Join(summary.Fields, ", "),
		summary.Segments, summary.Passages, summary.ExtractionCalls, summary.VocabularyPath)
	return err
}
