package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveUpload_StoresFile(t *testing.T) {
	// Given: an upload root
	root := t.TempDir()
	id := uuid.NewString()

	// When: saving an upload
	path, n, err := SaveUpload(root, id, "policy.pdf", strings.NewReader("%PDF-1.7 body"), 1024)

	// Then: the file is stored under the session directory
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, id, "policy.pdf"), path)
	assert.Equal(t, int64(13), n)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(data))

	size, err := UploadsSize(root, id)
	require.NoError(t, err)
	assert.Equal(t, int64(13), size)
}

func TestSaveUpload_TooLargeLeavesNothing(t *testing.T) {
	root := t.TempDir()
	id := uuid.NewString()

	_, _, err := SaveUpload(root, id, "big.txt", strings.NewReader(strings.Repeat("x", 11)), 10)

	assert.ErrorIs(t, err, ErrUploadTooLarge)
	entries, readErr := os.ReadDir(UploadDir(root, id))
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestSaveUpload_ExactLimitIsAccepted(t *testing.T) {
	root := t.TempDir()

	_, n, err := SaveUpload(root, uuid.NewString(), "ok.txt", strings.NewReader(strings.Repeat("x", 10)), 10)

	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestRemoveUploads(t *testing.T) {
	root := t.TempDir()
	id := uuid.NewString()
	_, _, err := SaveUpload(root, id, "a.txt", strings.NewReader("a"), 0)
	require.NoError(t, err)

	require.NoError(t, RemoveUploads(root, id))

	assert.NoDirExists(t, UploadDir(root, id))
	size, err := UploadsSize(root, id)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestManager_DropRemovesUploads(t *testing.T) {
	root := t.TempDir()
	mgr, _, _ := newTestManager(t, ManagerConfig{UploadDir: root})
	sess := mgr.Create()
	_, _, err := SaveUpload(root, sess.ID, "a.txt", strings.NewReader("a"), 0)
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(sess.ID))

	assert.NoDirExists(t, UploadDir(root, sess.ID))
}
