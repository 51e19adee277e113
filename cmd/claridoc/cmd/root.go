// Package cmd provides the CLI commands for claridoc.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claridoc/internal/config"
	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/logging"
	"github.com/Aman-CERP/claridoc/pkg/version"
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the claridoc CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claridoc",
		Short: "Question answering over policy, contract and HR documents",
		Long: `claridoc ingests a PDF, Word or text document, builds a consistent
metadata vocabulary for it, and answers questions using hybrid retrieval
with LLM reranking.

Serve it over HTTP with 'claridoc serve', to MCP clients with
'claridoc mcp', or ask from the terminal with 'claridoc chat <file>'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("claridoc version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newVocabCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, clerrors.FormatForCLI(err))
	}
	return err
}

// loadConfig loads configuration for the working directory and installs
// the logger. Records go to the log file; mirrorStderr also copies them to
// stderr, which only long-running servers want.
func loadConfig(mirrorStderr bool) (*config.Config, *slog.Logger, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("get working directory: %w", err)
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return nil, nil, clerrors.ConfigError("failed to load configuration", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	logCfg.WriteToStderr = mirrorStderr
	if debugMode {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	logger.Debug("configuration loaded",
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("embeddings_provider", cfg.Embeddings.Provider),
		slog.String("mode", cfg.Ingestion.Mode))
	return cfg, logger, nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}
