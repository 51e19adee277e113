package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claridoc/internal/validation"
	"github.com/Aman-CERP/claridoc/internal/vocab"
)

func newVocabCmd() *cobra.Command {
	var showPath bool

	cmd := &cobra.Command{
		Use:   "vocab <file>",
		Short: "Print a document's persisted vocabulary",
		Long: `Print the vocabulary consolidated for a document as JSON.

The document is identified by its file name, the same way ingest names it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(false)
			if err != nil {
				return err
			}
			store, err := vocab.NewStore(cfg.VocabularyDir())
			if err != nil {
				return err
			}

			key := vocab.SanitizeKey(validation.SanitizeFilename(filepath.Base(args[0])))
			path := store.Path(key)
			if showPath {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no vocabulary for %s (run 'claridoc ingest' first)", filepath.Base(args[0]))
			}

			v, err := store.Load(key)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}

	cmd.Flags().BoolVar(&showPath, "path", false, "Print the vocabulary file path only")

	return cmd
}
