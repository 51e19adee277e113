package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/claridoc/internal/config"
	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/pipeline"
	"github.com/Aman-CERP/claridoc/internal/segment"
	"github.com/Aman-CERP/claridoc/internal/server"
	"github.com/Aman-CERP/claridoc/internal/session"
	"github.com/Aman-CERP/claridoc/internal/validation"
	"github.com/Aman-CERP/claridoc/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		port     int
		watchDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API with in-memory sessions.

Sessions expire after the configured TTL. With --watch, documents dropped
into the directory are ingested into new sessions automatically.`,
		Example: `  claridoc serve
  claridoc serve --port 9000 --watch ./inbox`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(true)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if watchDir != "" {
				cfg.Server.WatchDir = watchDir
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "Ingest documents dropped into this directory")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
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

	srv, err := server.New(svc, mgr, server.Options{
		UploadDir:        cfg.Storage.UploadDir,
		MaxUploadBytes:   cfg.Server.MaxUploadBytes,
		AllowedFileTypes: cfg.Server.AllowedFileTypes,
		Debug:            debugMode,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	var folder *watcher.DropFolder
	if cfg.Server.WatchDir != "" {
		folder, err = watcher.NewDropFolder(cfg.Server.WatchDir, watcher.DefaultOptions(), logger)
		if err != nil {
			return fmt.Errorf("drop folder: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	g.Go(func() error { return srv.Run(gctx, addr) })
	g.Go(func() error { return mgr.Run(gctx) })
	if folder != nil {
		g.Go(func() error { return folder.Run(gctx, dropHandler(svc, mgr, logger)) })
	}

	return g.Wait()
}

// dropHandler ingests each dropped file into a new session.
func dropHandler(svc *pipeline.Service, mgr *session.Manager, logger *slog.Logger) watcher.Handler {
	return func(ctx context.Context, path string) {
		kind, ok := segment.KindFromExtension(path)
		if !ok {
			return
		}
		name := validation.SanitizeFilename(filepath.Base(path))

		sess := mgr.Create()
		doc, err := svc.Ingest(ctx, pipeline.IngestRequest{
			DocumentID: pipeline.SessionDocumentID(sess.ID, name),
			Path:       path,
			Kind:       kind,
		})
		if err != nil {
			logger.Error("failed to ingest dropped document",
				append([]any{"path", path, "session_id", sess.ID}, clerrors.LogAttrs(err)...)...)
			_ = mgr.Delete(sess.ID)
			return
		}
		if err := mgr.Attach(sess, doc, session.UploadInfo{Filename: filepath.Base(path), Type: string(kind)}); err != nil {
			logger.Warn("session closed before dropped document was attached", "session_id", sess.ID)
			return
		}
		logger.Info("dropped document ready",
			slog.String("path", path),
			slog.String("session_id", sess.ID),
			slog.Int("passages", doc.Passages))
	}
}
