package vocab

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeKey turns a document identifier into a file-safe key. The hash
// suffix keeps identifiers that sanitize to the same text apart.
func SanitizeKey(documentID string) string {
	sum := sha256.Sum256([]byte(documentID))
	base := unsafeKeyChars.ReplaceAllString(documentID, "_")
	if len(base) > 64 {
		base = base[:64]
	}
	return base + "_" + hex.EncodeToString(sum[:4])
}

// Store keeps one JSON vocabulary file per document key in a directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating the directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, clerrors.VocabularyIOFailure("create vocabulary directory", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the file path for key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load reads the vocabulary for key. A missing file yields an empty vocabulary.
func (s *Store) Load(key string) (*Vocabulary, error) {
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, clerrors.VocabularyIOFailure("read vocabulary", err).WithDetail("key", key)
	}

	v := New()
	if err := json.Unmarshal(data, v); err != nil {
		return nil, clerrors.VocabularyIOFailure("decode vocabulary", err).WithDetail("key", key)
	}
	return v, nil
}

// Save replaces the vocabulary for key. The file is written to a temporary
// name and renamed, so readers never see a partial file.
func (s *Store) Save(key string, v *Vocabulary) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return clerrors.VocabularyIOFailure("encode vocabulary", err).WithDetail("key", key)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return clerrors.VocabularyIOFailure("write vocabulary", err).WithDetail("key", key)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return clerrors.VocabularyIOFailure("write vocabulary", err).WithDetail("key", key)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return clerrors.VocabularyIOFailure("sync vocabulary", err).WithDetail("key", key)
	}
	if err := tmp.Close(); err != nil {
		return clerrors.VocabularyIOFailure("close vocabulary", err).WithDetail("key", key)
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		return clerrors.VocabularyIOFailure("replace vocabulary", err).WithDetail("key", key)
	}
	return nil
}

// Delete removes the vocabulary for key. Deleting a missing file is not an error.
func (s *Store) Delete(key string) error {
	err := os.Remove(s.Path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return clerrors.VocabularyIOFailure("delete vocabulary", err).WithDetail("key", key)
	}
	return nil
}

// Locker hands out per-document exclusive file locks, so two processes
// cannot ingest the same document at once.
type Locker struct {
	dir        string
	timeout    time.Duration
	retryDelay time.Duration
}

// NewLocker creates a locker keeping lock files in dir.
func NewLocker(dir string, timeout time.Duration) (*Locker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &Locker{dir: dir, timeout: timeout, retryDelay: 100 * time.Millisecond}, nil
}

// Lock acquires the lock for key, waiting up to the configured timeout.
// The returned function releases it.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	fl := flock.New(filepath.Join(l.dir, key+".lock"))

	lockCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	locked, err := fl.TryLockContext(lockCtx, l.retryDelay)
	if err != nil || !locked {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, clerrors.New(clerrors.ErrCodeDocumentLocked,
			"document is being ingested by another process", err).WithDetail("key", key)
	}
	return func() { _ = fl.Unlock() }, nil
}
