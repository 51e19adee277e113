package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/pipeline"
	"github.com/Aman-CERP/claridoc/internal/validation"
)

// Defaults.
const (
	DefaultMaxSessions     = 100
	DefaultTTL             = time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

// Releaser frees a document's indices and vocabulary.
type Releaser interface {
	Release(doc *pipeline.Document) error
}

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// TTL is how long a session lives without activity.
	TTL time.Duration

	// CleanupInterval is how often Run sweeps expired sessions.
	CleanupInterval time.Duration

	// MaxSessions caps live sessions. Creating one more evicts the oldest.
	MaxSessions int

	// UploadDir holds per-session upload directories. Optional.
	UploadDir string

	// Releaser is called for every document a session drops.
	Releaser Releaser

	Logger *slog.Logger
}

// Manager handles session lifecycle operations.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Releaser == nil {
		return nil, fmt.Errorf("releaser is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger.With("component", "session"),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}, nil
}

// Create starts a new session, evicting the oldest when at capacity.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	var evicted []*Session
	for len(m.sessions) >= m.cfg.MaxSessions {
		oldest := m.oldestLocked()
		delete(m.sessions, oldest.ID)
		evicted = append(evicted, oldest)
	}
	sess := newSession(uuid.NewString(), m.now())
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	for _, old := range evicted {
		m.logger.Info("session evicted", "session_id", old.ID, "reason", "capacity")
		m.drop(old)
	}
	m.logger.Info("session created", "session_id", sess.ID)
	return sess
}

func (m *Manager) oldestLocked() *Session {
	var oldest *Session
	for _, s := range m.sessions {
		if oldest == nil || s.CreatedAt.Before(oldest.CreatedAt) {
			oldest = s
		}
	}
	return oldest
}

// Get returns a live session and extends its expiry. A malformed ID is an
// InvalidSession error; an unknown or expired one is ErrNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	if err := validation.ValidateSessionID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	now := m.now()
	if now.Sub(sess.lastActivity) > m.cfg.TTL {
		delete(m.sessions, id)
		m.mu.Unlock()
		m.logger.Info("session expired", "session_id", id)
		m.drop(sess)
		return nil, ErrNotFound
	}
	sess.lastActivity = now
	m.mu.Unlock()
	return sess, nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (m *Manager) Delete(id string) error {
	if err := validation.ValidateSessionID(id); err != nil {
		return err
	}
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.logger.Info("session deleted", "session_id", id)
		m.drop(sess)
	}
	return nil
}

// Attach stores doc on the session, releasing any document it replaces.
func (m *Manager) Attach(sess *Session, doc *pipeline.Document, info UploadInfo) error {
	if info.UploadedAt.IsZero() {
		info.UploadedAt = m.now()
	}
	if info.Chunks == 0 && doc != nil {
		info.Chunks = doc.Passages
	}
	old, err := sess.attach(doc, info)
	if old != nil {
		m.release(sess.ID, old)
	}
	return err
}

// Status returns a snapshot of the session.
func (m *Manager) Status(sess *Session) Status {
	m.mu.Lock()
	last := sess.lastActivity
	m.mu.Unlock()
	return sess.status(last)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// IDs returns live session IDs, oldest first.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	return ids
}

// Sweep removes expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.lastActivity) > m.cfg.TTL {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.drop(s)
	}
	if len(expired) > 0 {
		m.logger.Info("expired sessions removed", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps expired sessions every CleanupInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close drops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		m.drop(s)
	}
}

// drop closes a session that is no longer in the map.
func (m *Manager) drop(sess *Session) {
	if doc := sess.close(); doc != nil {
		m.release(sess.ID, doc)
	}
	if m.cfg.UploadDir != "" {
		if err := RemoveUploads(m.cfg.UploadDir, sess.ID); err != nil {
			m.logger.Warn("failed to remove uploads", "session_id", sess.ID, "error", err)
		}
	}
}

func (m *Manager) release(id string, doc *pipeline.Document) {
	if err := m.cfg.Releaser.Release(doc); err != nil {
		m.logger.Warn("failed to release document",
			append([]any{"session_id", id, "doc_key", doc.Key}, clerrors.LogAttrs(err)...)...)
	}
}
