package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claridoc/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		follow    bool
		lines     int
		level     string
		filter    string
		sessionID string
		noColor   bool
		logFile   string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View claridoc logs",
		Long: `Show the last lines of the claridoc log file, optionally following
new entries as they are written.`,
		Example: `  claridoc logs -n 100
  claridoc logs -f --level warn
  claridoc logs --session 3f2b8c4e-9a1d-4c3b-8e7f-1a2b3c4d5e6f`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var pattern *regexp.Regexp
			if filter != "" {
				var err error
				if pattern, err = regexp.Compile(filter); err != nil {
					return fmt.Errorf("invalid filter pattern: %w", err)
				}
			}
			if logFile == "" {
				logFile = logging.DefaultLogPath()
			}

			out := cmd.OutOrStdout()
			viewer := logging.NewViewer(logging.ViewerConfig{
				Level:     level,
				Pattern:   pattern,
				SessionID: sessionID,
				NoColor:   noColor,
			}, out)

			entries, err := viewer.Tail(logFile, lines)
			if err != nil {
				return err
			}
			viewer.Print(entries)
			if !follow {
				return nil
			}

			ctx := cmd.Context()
			ch := make(chan logging.LogEntry, 100)
			errCh := make(chan error, 1)
			go func() { errCh <- viewer.Follow(ctx, logFile, ch) }()
			for {
				select {
				case entry := <-ch:
					_, _ = fmt.Fprintln(out, viewer.FormatEntry(entry))
				case err := <-errCh:
					return err
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&filter, "filter", "", "Only lines matching this regex")
	cmd.Flags().StringVar(&sessionID, "session", "", "Only records for this session ID")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&logFile, "file", "", "Log file (default ~/.claridoc/logs/claridoc.log)")

	return cmd
}
