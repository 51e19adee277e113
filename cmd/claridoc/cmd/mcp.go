package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claridoc/internal/mcp"
	"github.com/Aman-CERP/claridoc/internal/session"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the document tools to an MCP client over stdio",
		Long: `Start an MCP server on stdin/stdout with the tools ingest_document,
query_document and close_session.

stdout carries only protocol messages; logs go to the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(false)
			if err != nil {
				return err
			}
			svc, closeFn, err := openService(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			mgr, err := session.NewManager(session.ManagerConfig{
				TTL:             cfg.Sessions.TTL,
				CleanupInterval: cfg.Sessions.CleanupInterval,
				MaxSessions:     cfg.Sessions.MaxSessions,
				UploadDir:       cfg.Storage.UploadDir,
				Releaser:        svc,
				Logger:          logger,
			})
			if err != nil {
				return err
			}
			defer mgr.Close()
			go func() { _ = mgr.Run(ctx) }()

			srv, err := mcp.NewServer(svc, mgr, logger)
			if err != nil {
				return err
			}
			return srv.Serve(ctx)
		},
	}
}
