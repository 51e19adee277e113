package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/pipeline"
	"github.com/Aman-CERP/claridoc/internal/segment"
	"github.com/Aman-CERP/claridoc/internal/session"
)

type fakeService struct {
	mu        sync.Mutex
	ingested  []pipeline.IngestRequest
	content   []string
	ingestErr error
	queryErr  error
	released  []string
}

func (f *fakeService) Ingest(_ context.Context, req pipeline.IngestRequest) (*pipeline.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, req)
	data, _ := os.ReadFile(req.Path)
	f.content = append(f.content, string(data))
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return &pipeline.Document{ID: req.DocumentID, Key: "key-" + req.DocumentID, Passages: 4}, nil
}

func (f *fakeService) Query(_ context.Context, doc *pipeline.Document, q string) (*pipeline.Answer, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, clerrors.EmptyQueryFailure()
	}
	return &pipeline.Answer{
		Query: q,
		Text:  "Dental is covered.",
		Sources: []pipeline.Source{
			{DocID: doc.ID, Page: 2, Text: "Dental treatment is reimbursed", Score: 0.82, Metadata: map[string]any{"page_no": 2}},
		},
	}, nil
}

func (f *fakeService) Release(doc *pipeline.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, doc.Key)
	return nil
}

type testServer struct {
	srv      *Server
	svc      *fakeService
	sessions *session.Manager
	uploads  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc := &fakeService{}
	uploads := t.TempDir()
	mgr, err := session.NewManager(session.ManagerConfig{Releaser: svc, UploadDir: uploads})
	require.NoError(t, err)
	srv, err := New(svc, mgr, Options{
		UploadDir:        uploads,
		MaxUploadBytes:   64,
		AllowedFileTypes: []string{".pdf", ".docx", ".txt"},
	})
	require.NoError(t, err)
	return &testServer{srv: srv, svc: svc, sessions: mgr, uploads: uploads}
}

func (ts *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func (ts *testServer) createSession(t *testing.T) string {
	t.Helper()
	rec, body := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return body["session_id"].(string)
}

func uploadRequest(t *testing.T, id, filename, docType, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("doc_type", docType))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload/"+id, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func queryRequestFor(id, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query/"+id, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestSessionLifecycle(t *testing.T) {
	// Given: a new session
	ts := newTestServer(t)
	id := ts.createSession(t)

	// When: reading its status
	rec, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/session/"+id+"/status", nil))

	// Then: nothing is uploaded yet
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, body["session_id"])
	assert.Equal(t, false, body["document_uploaded"])
	assert.Nil(t, body["document_info"])

	// When: deleting it
	rec, _ = ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/session/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// Then: it is gone
	rec, body = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/session/"+id+"/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Session not found or expired", body["detail"])
}

func TestSessionID_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"status with bad id", httptest.NewRequest(http.MethodGet, "/api/v1/session/abc/status", nil), http.StatusBadRequest},
		{"delete with bad id", httptest.NewRequest(http.MethodDelete, "/api/v1/session/abc", nil), http.StatusBadRequest},
		{"query unknown id", queryRequestFor("3f2b8c4e-9a1d-4c3b-8e7f-1a2b3c4d5e6f", `{"query":"x"}`), http.StatusNotFound},
		{"upload bad id", uploadRequest(t, "abc", "a.pdf", "pdf", "x"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := ts.do(t, tt.req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestUploadThenQuery(t *testing.T) {
	// Given: a session
	ts := newTestServer(t)
	id := ts.createSession(t)

	// When: uploading a document with an unsafe name
	rec, body := ts.do(t, uploadRequest(t, id, "../my policy<1>.txt", "text", "Dental treatment"))

	// Then: it is ingested under the sanitized name and the upload is cleaned up
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.EqualValues(t, 4, body["chunks_created"])
	assert.Equal(t, "text", body["document_type"])
	require.Len(t, ts.svc.ingested, 1)
	req := ts.svc.ingested[0]
	assert.Equal(t, segment.KindText, req.Kind)
	assert.True(t, strings.HasPrefix(req.DocumentID, id+"/"), req.DocumentID)
	assert.True(t, strings.HasSuffix(req.DocumentID, "/my policy1.txt"), req.DocumentID)
	assert.Equal(t, "Dental treatment", ts.svc.content[0])
	assert.NoFileExists(t, req.Path)

	// When: querying
	rec, body = ts.do(t, queryRequestFor(id, `{"query":"  is dental covered?  "}`))

	// Then: the answer and sources come back
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, "Dental is covered.", body["answer"])
	assert.Equal(t, "is dental covered?", body["query"])
	sources := body["sources"].([]any)
	require.Len(t, sources, 1)
	src := sources[0].(map[string]any)
	assert.EqualValues(t, 2, src["page"])
	assert.InDelta(t, 0.82, src["score"], 1e-9)

	// Then: status reports the document
	_, body = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/session/"+id+"/status", nil))
	assert.Equal(t, true, body["document_uploaded"])
	assert.Equal(t, true, body["vector_store_created"])
	info := body["document_info"].(map[string]any)
	assert.EqualValues(t, 4, info["chunks_count"])
}

func TestUpload_Rejections(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	tests := []struct {
		name     string
		filename string
		docType  string
		content  string
	}{
		{"disallowed extension", "run.exe", "pdf", "MZ"},
		{"unknown doc type", "a.pdf", "spreadsheet", "x"},
		{"too large", "big.txt", "text", strings.Repeat("x", 65)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := ts.do(t, uploadRequest(t, id, tt.filename, tt.docType, tt.content))
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		})
	}
	assert.Empty(t, ts.svc.ingested)
}

func TestUpload_IngestFailureIsGeneric(t *testing.T) {
	// Given: ingestion fails with an internal detail
	ts := newTestServer(t)
	ts.svc.ingestErr = clerrors.VocabularyIOFailure("write /secret/path", errors.New("EACCES"))
	id := ts.createSession(t)

	// When: uploading
	rec, body := ts.do(t, uploadRequest(t, id, "a.pdf", "pdf", "%PDF"))

	// Then: the caller sees only the generic message
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error processing document", body["detail"])
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestQuery_Errors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	// No document yet.
	rec, body := ts.do(t, queryRequestFor(id, `{"query":"x"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["detail"], "No document uploaded")

	rec, _ = ts.do(t, uploadRequest(t, id, "a.txt", "text", "hello"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Empty query.
	rec, body = ts.do(t, queryRequestFor(id, `{"query":"   "}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Query cannot be empty", body["detail"])

	// Malformed body.
	rec, _ = ts.do(t, queryRequestFor(id, `{"query":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Pipeline failure.
	ts.svc.queryErr = clerrors.New(clerrors.ErrCodeGenerationFailed, "quota", nil)
	rec, body = ts.do(t, queryRequestFor(id, `{"query":"x"}`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error processing query", body["detail"])
}

func TestUpload_ReplacesPreviousDocument(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	for _, name := range []string{"a.txt", "b.txt"} {
		rec, _ := ts.do(t, uploadRequest(t, id, name, "text", "x"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	require.Len(t, ts.svc.ingested, 2)
	assert.Equal(t, []string{"key-" + ts.svc.ingested[0].DocumentID}, ts.svc.released)
}

func TestUpload_SameFilenameReleasesOnlyTheReplacedDocument(t *testing.T) {
	// Given: a session with policy.txt uploaded
	ts := newTestServer(t)
	id := ts.createSession(t)
	rec, _ := ts.do(t, uploadRequest(t, id, "policy.txt", "text", "v1"))
	require.Equal(t, http.StatusOK, rec.Code)

	// When: uploading a new version under the same name
	rec, _ = ts.do(t, uploadRequest(t, id, "policy.txt", "text", "v2"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Then: the two ingests have distinct IDs and only the first is released
	require.Len(t, ts.svc.ingested, 2)
	first, second := ts.svc.ingested[0].DocumentID, ts.svc.ingested[1].DocumentID
	assert.NotEqual(t, first, second)
	assert.Equal(t, []string{"key-" + first}, ts.svc.released)

	sess, err := ts.sessions.Get(id)
	require.NoError(t, err)
	require.NoError(t, sess.WithDocument(func(doc *pipeline.Document) error {
		assert.Equal(t, second, doc.ID)
		return nil
	}))
}
