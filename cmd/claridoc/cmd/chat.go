package cmd

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claridoc/internal/ui"
)

func newChatCmd() *cobra.Command {
	var (
		docType string
		plain   bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "chat <file|url>",
		Short: "Ingest a document and ask questions interactively",
		Long: `Ingest a document, then open an interactive question loop.

On a terminal this is a full-screen chat; with piped input it reads one
question per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, doc, closeFn, err := ingestSource(cmd.Context(), args[0], docType)
			if err != nil {
				return err
			}
			defer closeFn()

			cfg := ui.NewConfig(cmd.InOrStdin(), cmd.OutOrStdout(),
				ui.WithForcePlain(plain),
				ui.WithNoColor(noColor),
				ui.WithTitle(filepath.Base(args[0])))
			chat := ui.NewChat(cfg, func(ctx context.Context, q string) (ui.Reply, error) {
				ans, err := svc.Query(ctx, doc, q)
				if err != nil {
					return ui.Reply{}, err
				}
				return toReply(ans), nil
			})
			return chat.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&docType, "type", "", "Document type: pdf, word or text (default: from extension)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Use line mode even on a terminal")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	return cmd
}
