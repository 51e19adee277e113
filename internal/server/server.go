// Package server exposes sessions, uploads and queries over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aman-CERP/claridoc/internal/pipeline"
	"github.com/Aman-CERP/claridoc/internal/session"
	"github.com/Aman-CERP/claridoc/pkg/version"
)

// DocumentService ingests and queries documents.
type DocumentService interface {
	Ingest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.Document, error)
	Query(ctx context.Context, doc *pipeline.Document, query string) (*pipeline.Answer, error)
}

// Options configures the HTTP API.
type Options struct {
	UploadDir        string
	MaxUploadBytes   int64
	AllowedFileTypes []string
	Debug            bool
	Logger           *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	service  DocumentService
	sessions *session.Manager
	opts     Options
	logger   *slog.Logger
	router   *gin.Engine
}

// New creates a Server and registers its routes.
func New(service DocumentService, sessions *session.Manager, opts Options) (*Server, error) {
	if service == nil || sessions == nil {
		return nil, errors.New("server: service and session manager are required")
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		service:  service,
		sessions: sessions,
		opts:     opts,
		logger:   logger.With("component", "server"),
		router:   gin.New(),
	}
	s.router.Use(gin.Recovery(), s.requestLogger(), cors())
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/session", s.createSession)
		v1.DELETE("/session/:id", s.deleteSession)
		v1.GET("/session/:id/status", s.sessionStatus)
		v1.POST("/upload/:id", s.upload)
		v1.POST("/query/:id", s.query)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "claridoc",
		"version":  version.Version,
		"sessions": s.sessions.Len(),
	})
}

// requestLogger logs one line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
