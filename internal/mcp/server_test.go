package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/pipeline"
	"github.com/Aman-CERP/claridoc/internal/schema"
	"github.com/Aman-CERP/claridoc/internal/segment"
	"github.com/Aman-CERP/claridoc/internal/session"
)

type fakeService struct {
	requests  []pipeline.IngestRequest
	ingestErr error
	released  int
}

func (f *fakeService) Ingest(_ context.Context, req pipeline.IngestRequest) (*pipeline.Document, error) {
	f.requests = append(f.requests, req)
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	sch, _ := schema.Lookup(string(schema.LegalContract))
	return &pipeline.Document{ID: req.DocumentID, Key: req.DocumentID, Schema: sch, Passages: 9}, nil
}

func (f *fakeService) Query(_ context.Context, _ *pipeline.Document, q string) (*pipeline.Answer, error) {
	return &pipeline.Answer{
		Query:   q,
		Text:    "Either party may terminate with 30 days notice.",
		Sources: []pipeline.Source{{Page: 4, Text: "Termination. Either party may...", Score: 0.71}},
	}, nil
}

func (f *fakeService) Release(*pipeline.Document) error {
	f.released++
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeService, *session.Manager) {
	t.Helper()
	svc := &fakeService{}
	mgr, err := session.NewManager(session.ManagerConfig{Releaser: svc})
	require.NoError(t, err)
	srv, err := NewServer(svc, mgr, nil)
	require.NoError(t, err)
	return srv, svc, mgr
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}

func TestListTools(t *testing.T) {
	srv, _, _ := newTestServer(t)

	names := []string{}
	for _, tool := range srv.ListTools() {
		names = append(names, tool.Name)
	}

	assert.Equal(t, []string{"ingest_document", "query_document", "close_session"}, names)
	assert.NotNil(t, srv.MCPServer())
}

func TestIngestQueryClose(t *testing.T) {
	// Given: a document on disk
	srv, svc, mgr := newTestServer(t)
	file := filepath.Join(t.TempDir(), "Master Services.docx")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	ctx := context.Background()

	// When: ingesting without a doc_type
	_, out, err := srv.ingestHandler(ctx, nil, IngestInput{Path: file})

	// Then: the kind comes from the extension and a session is returned
	require.NoError(t, err)
	assert.Equal(t, "legal_contract", out.DocumentType)
	assert.Equal(t, 9, out.ChunksCreated)
	require.Len(t, svc.requests, 1)
	assert.Equal(t, segment.KindWord, svc.requests[0].Kind)
	assert.True(t, strings.HasPrefix(svc.requests[0].DocumentID, out.SessionID+"/"))
	assert.True(t, strings.HasSuffix(svc.requests[0].DocumentID, "/Master Services.docx"))

	// When: querying
	_, ans, err := srv.queryHandler(ctx, nil, QueryInput{SessionID: out.SessionID, Query: "How can the contract end?"})

	// Then: the answer carries its sources
	require.NoError(t, err)
	assert.Contains(t, ans.Answer, "terminate")
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, 4, ans.Sources[0].Page)

	// When: closing the session
	_, closed, err := srv.closeHandler(ctx, nil, CloseInput{SessionID: out.SessionID})

	// Then: the document is released and the session is gone
	require.NoError(t, err)
	assert.True(t, closed.Closed)
	assert.Equal(t, 1, svc.released)
	assert.Zero(t, mgr.Len())
}

func TestIngest_InvalidInput(t *testing.T) {
	srv, svc, mgr := newTestServer(t)

	tests := []struct {
		name  string
		input IngestInput
	}{
		{"nothing", IngestInput{}},
		{"both", IngestInput{Path: "/a.pdf", URL: "https://example.com/a.pdf"}},
		{"bad url", IngestInput{URL: "ftp://example.com/a.pdf"}},
		{"unknown extension", IngestInput{Path: "/tmp/a.xlsx"}},
		{"unknown doc type", IngestInput{Path: "/tmp/a.pdf", DocType: "spreadsheet"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := srv.ingestHandler(context.Background(), nil, tt.input)

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
		})
	}
	assert.Empty(t, svc.requests)
	assert.Zero(t, mgr.Len())
}

func TestIngest_URLUsesPathBaseName(t *testing.T) {
	req, err := ingestRequest(IngestInput{URL: "https://example.com/docs/policy%20v2.pdf?dl=1"})

	require.NoError(t, err)
	assert.Equal(t, segment.KindPDF, req.Kind)
	assert.Equal(t, "policy v2.pdf", req.DocumentID)
}

func TestIngest_FailureDropsSessionAndHidesDetail(t *testing.T) {
	srv, svc, mgr := newTestServer(t)
	svc.ingestErr = clerrors.VocabularyIOFailure("write /home/u/.claridoc/x.json", errors.New("EACCES"))

	_, _, err := srv.ingestHandler(context.Background(), nil, IngestInput{Path: "/tmp/a.pdf"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInternalError, mcpErr.Code)
	assert.NotContains(t, mcpErr.Message, ".claridoc")
	assert.Zero(t, mgr.Len())
}

func TestQuery_Errors(t *testing.T) {
	srv, _, mgr := newTestServer(t)
	ctx := context.Background()

	_, _, err := srv.queryHandler(ctx, nil, QueryInput{SessionID: "3f2b8c4e-9a1d-4c3b-8e7f-1a2b3c4d5e6f", Query: "x"})
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeSessionNotFound, mcpErr.Code)

	sess := mgr.Create()
	_, _, err = srv.queryHandler(ctx, nil, QueryInput{SessionID: sess.ID, Query: "x"})
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeNoDocument, mcpErr.Code)

	_, _, err = srv.queryHandler(ctx, nil, QueryInput{SessionID: sess.ID, Query: "  "})
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"session not found", session.ErrNotFound, ErrCodeSessionNotFound},
		{"no document", session.ErrNoDocument, ErrCodeNoDocument},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"file not found", clerrors.New(clerrors.ErrCodeFileNotFound, "missing", nil), ErrCodeFileNotFound},
		{"too large", clerrors.New(clerrors.ErrCodeFileTooLarge, "big", nil), ErrCodeFileTooLarge},
		{"validation", clerrors.EmptyQueryFailure(), ErrCodeInvalidParams},
		{"schema detection is generic", clerrors.SchemaDetectionFailure("recipe", nil), ErrCodeInternalError},
		{"network", clerrors.New(clerrors.ErrCodeNetworkUnavailable, "ollama", nil), ErrCodeTimeout},
		{"plain", errors.New("boom"), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}
	assert.Nil(t, MapError(nil))
}
