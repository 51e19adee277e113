package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/pipeline"
	"github.com/Aman-CERP/claridoc/internal/segment"
	"github.com/Aman-CERP/claridoc/internal/session"
	"github.com/Aman-CERP/claridoc/internal/validation"
)

// Response bodies.
type (
	sessionResponse struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}

	uploadResponse struct {
		SessionID     string `json:"session_id"`
		Filename      string `json:"filename"`
		DocumentType  string `json:"document_type"`
		ChunksCreated int    `json:"chunks_created"`
		Message       string `json:"message"`
	}

	queryRequest struct {
		Query string `json:"query"`
	}

	queryResponse struct {
		SessionID string            `json:"session_id"`
		Query     string            `json:"query"`
		Answer    string            `json:"answer"`
		Message   string            `json:"message"`
		Sources   []pipeline.Source `json:"sources"`
	}
)

const (
	msgProcessDocument = "Error processing document"
	msgProcessQuery    = "Error processing query"
)

func fail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// session resolves the :id parameter, writing the error response itself
// when it cannot.
func (s *Server) session(c *gin.Context) (*session.Session, bool) {
	sess, err := s.sessions.Get(c.Param("id"))
	switch {
	case err == nil:
		return sess, true
	case clerrors.HasCode(err, clerrors.ErrCodeInvalidSession):
		fail(c, http.StatusBadRequest, "Invalid session ID format")
	case errors.Is(err, session.ErrNotFound):
		fail(c, http.StatusNotFound, "Session not found or expired")
	default:
		fail(c, http.StatusInternalServerError, clerrors.GenericUserMessage)
	}
	return nil, false
}

func (s *Server) createSession(c *gin.Context) {
	sess := s.sessions.Create()
	c.JSON(http.StatusOK, sessionResponse{SessionID: sess.ID, Message: "Session created successfully"})
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.sessions.Delete(c.Param("id")); err != nil {
		fail(c, http.StatusBadRequest, "Invalid session ID format")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

func (s *Server) sessionStatus(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.sessions.Status(sess))
}

func (s *Server) upload(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "A file is required")
		return
	}
	docType := strings.ToLower(strings.TrimSpace(c.PostForm("doc_type")))
	kind, ok := segment.ParseKind(docType)
	if !ok {
		fail(c, http.StatusBadRequest, "doc_type must be pdf, word or text")
		return
	}

	filename := validation.SanitizeFilename(header.Filename)
	if err := validation.ValidateExtension(filename, s.opts.AllowedFileTypes); err != nil {
		fail(c, http.StatusBadRequest, "File type "+strings.ToLower(filepath.Ext(filename))+" is not allowed")
		return
	}
	if s.opts.MaxUploadBytes > 0 && header.Size > s.opts.MaxUploadBytes {
		fail(c, http.StatusBadRequest, "File size too large")
		return
	}

	src, err := header.Open()
	if err != nil {
		s.logger.Error("failed to open upload", "session_id", sess.ID, "error", err)
		fail(c, http.StatusInternalServerError, msgProcessDocument)
		return
	}
	defer src.Close()

	path, size, err := session.SaveUpload(s.opts.UploadDir, sess.ID, filename, src, s.opts.MaxUploadBytes)
	if errors.Is(err, session.ErrUploadTooLarge) {
		fail(c, http.StatusBadRequest, "File size too large")
		return
	}
	if err != nil {
		s.logger.Error("failed to store upload", append([]any{"session_id", sess.ID}, clerrors.LogAttrs(err)...)...)
		fail(c, http.StatusInternalServerError, msgProcessDocument)
		return
	}
	defer func() { _ = os.Remove(path) }()

	doc, err := s.service.Ingest(c.Request.Context(), pipeline.IngestRequest{
		DocumentID: pipeline.SessionDocumentID(sess.ID, filename),
		Path:       path,
		Kind:       kind,
	})
	if err != nil {
		s.logger.Error("error processing document upload",
			append([]any{"session_id", sess.ID}, clerrors.LogAttrs(err)...)...)
		fail(c, http.StatusInternalServerError, msgProcessDocument)
		return
	}

	err = s.sessions.Attach(sess, doc, session.UploadInfo{
		Filename: header.Filename,
		Type:     docType,
		Size:     size,
		Chunks:   doc.Passages,
	})
	if err != nil {
		// The session went away mid-upload; the document is already released.
		fail(c, http.StatusNotFound, "Session not found or expired")
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		SessionID:     sess.ID,
		Filename:      header.Filename,
		DocumentType:  docType,
		ChunksCreated: doc.Passages,
		Message:       "Document uploaded and processed successfully",
	})
}

func (s *Server) query(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	var ans *pipeline.Answer
	err := sess.WithDocument(func(doc *pipeline.Document) error {
		var err error
		ans, err = s.service.Query(c.Request.Context(), doc, req.Query)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNoDocument):
		fail(c, http.StatusBadRequest, "No document uploaded or processed for this session")
		return
	case errors.Is(err, session.ErrNotFound):
		fail(c, http.StatusNotFound, "Session not found or expired")
		return
	case clerrors.HasCode(err, clerrors.ErrCodeQueryEmpty):
		fail(c, http.StatusBadRequest, "Query cannot be empty")
		return
	default:
		s.logger.Error("error processing query",
			append([]any{"session_id", sess.ID}, clerrors.LogAttrs(err)...)...)
		fail(c, http.StatusInternalServerError, msgProcessQuery)
		return
	}

	if ans.Degraded {
		s.logger.Warn("query answered without reranking", "session_id", sess.ID)
	}
	c.JSON(http.StatusOK, queryResponse{
		SessionID: sess.ID,
		Query:     ans.Query,
		Answer:    ans.Text,
		Message:   "Query processed successfully",
		Sources:   ans.Sources,
	})
}
