package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/pipeline"
	"github.com/Aman-CERP/claridoc/internal/segment"
	"github.com/Aman-CERP/claridoc/internal/session"
	"github.com/Aman-CERP/claridoc/internal/validation"
	"github.com/Aman-CERP/claridoc/pkg/version"
)

// DocumentService ingests and queries documents.
type DocumentService interface {
	Ingest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.Document, error)
	Query(ctx context.Context, doc *pipeline.Document, query string) (*pipeline.Answer, error)
}

// Server is the MCP server for claridoc.
type Server struct {
	mcp      *mcp.Server
	service  DocumentService
	sessions *session.Manager
	logger   *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "ingest_document",
		Description: "Ingest a policy, contract or HR document from a local path or a PDF URL. Returns a session_id for query_document.",
	},
	{
		Name:        "query_document",
		Description: "Answer a question about an ingested document. Returns the answer and the passages it was drawn from.",
	},
	{
		Name:        "close_session",
		Description: "Close a session and delete its index and vocabulary.",
	},
}

// NewServer creates a new MCP server.
func NewServer(service DocumentService, sessions *session.Manager, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("document service is required")
	}
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		service:  service,
		sessions: sessions,
		logger:   logger.With("component", "mcp"),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "claridoc",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.ingestHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.queryHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.closeHandler)
	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

func (s *Server) ingestHandler(ctx context.Context, _ *mcp.CallToolRequest, input IngestInput) (
	*mcp.CallToolResult,
	IngestOutput,
	error,
) {
	req, err := ingestRequest(input)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	sess := s.sessions.Create()
	req.DocumentID = pipeline.SessionDocumentID(sess.ID, req.DocumentID)

	doc, err := s.service.Ingest(ctx, req)
	if err != nil {
		s.logger.Error("ingest_document failed", append([]any{"session_id", sess.ID}, clerrors.LogAttrs(err)...)...)
		_ = s.sessions.Delete(sess.ID)
		return nil, IngestOutput{}, MapError(err)
	}
	source := req.Path
	if source == "" {
		source = req.URL
	}
	if err := s.sessions.Attach(sess, doc, session.UploadInfo{
		Filename: filepath.Base(source),
		Type:     string(req.Kind),
		Chunks:   doc.Passages,
	}); err != nil {
		return nil, IngestOutput{}, MapError(err)
	}

	return nil, IngestOutput{
		SessionID:     sess.ID,
		DocumentType:  string(doc.Schema.Type),
		ChunksCreated: doc.Passages,
	}, nil
}

// ingestRequest validates tool input. DocumentID is set to the source's base name.
func ingestRequest(input IngestInput) (pipeline.IngestRequest, error) {
	p := strings.TrimSpace(input.Path)
	u := strings.TrimSpace(input.URL)
	if (p == "") == (u == "") {
		return pipeline.IngestRequest{}, NewInvalidParamsError("exactly one of path or url is required")
	}

	name := filepath.Base(p)
	if u != "" {
		if err := validation.ValidateURL(u); err != nil {
			return pipeline.IngestRequest{}, NewInvalidParamsError("url must be an http or https URL")
		}
		parsed, _ := url.Parse(u)
		name = path.Base(parsed.Path)
	}

	var (
		kind segment.Kind
		ok   bool
	)
	if input.DocType != "" {
		kind, ok = segment.ParseKind(input.DocType)
	} else {
		kind, ok = segment.KindFromExtension(name)
	}
	if !ok {
		return pipeline.IngestRequest{}, NewInvalidParamsError(
			fmt.Sprintf("cannot tell the document type of %q; set doc_type to pdf, word or text", name))
	}

	return pipeline.IngestRequest{
		DocumentID: validation.SanitizeFilename(name),
		Path:       p,
		URL:        u,
		Kind:       kind,
	}, nil
}

func (s *Server) queryHandler(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (
	*mcp.CallToolResult,
	QueryOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, QueryOutput{}, NewInvalidParamsError("query parameter is required")
	}
	sess, err := s.sessions.Get(input.SessionID)
	if err != nil {
		return nil, QueryOutput{}, MapError(err)
	}

	var ans *pipeline.Answer
	err = sess.WithDocument(func(doc *pipeline.Document) error {
		var err error
		ans, err = s.service.Query(ctx, doc, input.Query)
		return err
	})
	if err != nil {
		s.logger.Error("query_document failed", append([]any{"session_id", sess.ID}, clerrors.LogAttrs(err)...)...)
		return nil, QueryOutput{}, MapError(err)
	}

	out := QueryOutput{Answer: ans.Text, Sources: make([]SourceOutput, len(ans.Sources))}
	for i, src := range ans.Sources {
		out.Sources[i] = SourceOutput{Page: src.Page, Text: src.Text, Score: src.Score}
	}
	return nil, out, nil
}

func (s *Server) closeHandler(_ context.Context, _ *mcp.CallToolRequest, input CloseInput) (
	*mcp.CallToolResult,
	CloseOutput,
	error,
) {
	if err := s.sessions.Delete(input.SessionID); err != nil {
		return nil, CloseOutput{}, MapError(err)
	}
	return nil, CloseOutput{Closed: true}, nil
}

// Serve runs the server on stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}
