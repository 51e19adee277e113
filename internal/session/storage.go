package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
)

// ErrUploadTooLarge is returned when an upload exceeds its size limit.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// UploadDir returns the directory holding a session's uploads.
func UploadDir(root, sessionID string) string {
	return filepath.Join(root, sessionID)
}

// SaveUpload copies r into the session's upload directory under filename
// and returns the stored path and size. filename must already be
// sanitized. Reading more than maxBytes aborts with ErrUploadTooLarge and
// leaves nothing behind.
// Uses atomic write (temp file + rename) so a partial upload is never
// visible under its final name.
func SaveUpload(root, sessionID, filename string, r io.Reader, maxBytes int64) (string, int64, error) {
	dir := UploadDir(root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, clerrors.New(clerrors.ErrCodeDocumentLoad, "failed to create upload directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", 0, clerrors.New(clerrors.ErrCodeDocumentLoad, "failed to create upload file", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", 0, clerrors.New(clerrors.ErrCodeDocumentLoad, "failed to store upload", err)
	}
	if maxBytes > 0 && n > maxBytes {
		cleanup()
		return "", 0, fmt.Errorf("%w: more than %d bytes", ErrUploadTooLarge, maxBytes)
	}

	path := filepath.Join(dir, filename)
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return "", 0, clerrors.New(clerrors.ErrCodeDocumentLoad, "failed to store upload", err)
	}
	return path, n, nil
}

// RemoveUploads deletes a session's upload directory.
func RemoveUploads(root, sessionID string) error {
	if err := os.RemoveAll(UploadDir(root, sessionID)); err != nil {
		return fmt.Errorf("failed to remove uploads: %w", err)
	}
	return nil
}

// UploadsSize returns the total size of a session's uploads.
// Returns 0 for a session with no upload directory.
func UploadsSize(root, sessionID string) (int64, error) {
	var size int64

	err := filepath.WalkDir(UploadDir(root, sessionID), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			size += info.Size()
		}
		return nil
	})

	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return size, nil
}
