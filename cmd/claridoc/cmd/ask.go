package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claridoc/internal/ui"
)

func newAskCmd() *cobra.Command {
	var docType string

	cmd := &cobra.Command{
		Use:   "ask <file|url> <question>",
		Short: "Ingest a document and answer one question",
		Example: `  claridoc ask policy.pdf "Is dental treatment covered?"
  claridoc ask contract.docx "How much notice is needed to terminate?"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args[1:], " ")
			svc, doc, closeFn, err := ingestSource(cmd.Context(), args[0], docType)
			if err != nil {
				return err
			}
			defer closeFn()

			ans, err := svc.Query(cmd.Context(), doc, question)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write([]byte(ui.FormatReply(ui.NoColorStyles(), toReply(ans), 0)))
			return err
		},
	}

	cmd.Flags().StringVar(&docType, "type", "", "Document type: pdf, word or text (default: from extension)")

	return cmd
}
