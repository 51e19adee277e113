// Package session keeps short-lived, in-memory document sessions.
// Each session holds at most one ingested document and expires after a
// period of inactivity.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/Aman-CERP/claridoc/internal/pipeline"
)

var (
	// ErrNotFound is returned for unknown or expired sessions.
	ErrNotFound = errors.New("session not found or expired")

	// ErrNoDocument is returned when a session has no ingested document yet.
	ErrNoDocument = errors.New("no document uploaded or processed for this session")
)

// UploadInfo describes the document attached to a session.
type UploadInfo struct {
	Filename   string    `json:"filename"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	Chunks     int       `json:"chunks_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Session is one client's workspace.
type Session struct {
	// ID is a UUIDv4.
	ID        string
	CreatedAt time.Time

	// mu guards the document. Queries hold it shared; attach and close
	// hold it exclusively, so a document is never released mid-query.
	mu     sync.RWMutex
	doc    *pipeline.Document
	upload *UploadInfo
	closed bool

	// lastActivity is guarded by the manager's lock.
	lastActivity time.Time
}

// Status is a point-in-time view of a session.
type Status struct {
	SessionID          string      `json:"session_id"`
	CreatedAt          time.Time   `json:"created_at"`
	LastActivity       time.Time   `json:"last_activity"`
	DocumentUploaded   bool        `json:"document_uploaded"`
	VectorStoreCreated bool        `json:"vector_store_created"`
	DocumentInfo       *UploadInfo `json:"document_info"`
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, lastActivity: now}
}

// WithDocument runs fn with the session's document. The document stays
// valid until fn returns.
func (s *Session) WithDocument(fn func(doc *pipeline.Document) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrNotFound
	}
	if s.doc == nil {
		return ErrNoDocument
	}
	return fn(s.doc)
}

// HasDocument reports whether a document is attached.
func (s *Session) HasDocument() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc != nil
}

// attach replaces the session document and returns the previous one.
func (s *Session) attach(doc *pipeline.Document, info UploadInfo) (*pipeline.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return doc, ErrNotFound
	}
	old := s.doc
	s.doc = doc
	s.upload = &info
	return old, nil
}

// close marks the session closed and returns its document for release.
func (s *Session) close() *pipeline.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	doc := s.doc
	s.doc = nil
	return doc
}

func (s *Session) status(lastActivity time.Time) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		SessionID:          s.ID,
		CreatedAt:          s.CreatedAt,
		LastActivity:       lastActivity,
		DocumentUploaded:   s.upload != nil,
		VectorStoreCreated: s.doc != nil,
	}
	if s.upload != nil {
		info := *s.upload
		st.DocumentInfo = &info
	}
	return st
}
