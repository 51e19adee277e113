package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{DebounceWindow: time.Second}.WithDefaults()

	assert.Equal(t, time.Second, opts.DebounceWindow)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 100, opts.EventBufferSize)
}

func TestAccepts(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/drop/policy.pdf", true},
		{"/drop/Contract.DOCX", true},
		{"/drop/handbook.txt", true},
		{"/drop/.policy.pdf", false},
		{"/drop/~$contract.docx", false},
		{"/drop/policy.pdf.crdownload", false},
		{"/drop/sheet.xlsx", false},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.want, Accepts(tt.path))
		})
	}
}

func TestNewDropFolder_RequiresDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewDropFolder(filepath.Join(dir, "missing"), Options{}, nil)
	assert.Error(t, err)

	_, err = NewDropFolder(file, Options{}, nil)
	assert.Error(t, err)
}

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func runFolder(t *testing.T, opts Options) (string, *recorder, context.CancelFunc, <-chan error) {
	t.Helper()
	dir := t.TempDir()
	f, err := NewDropFolder(dir, opts, nil)
	require.NoError(t, err)

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, rec.handle) }()
	// Let the watch be established before files appear.
	time.Sleep(100 * time.Millisecond)
	return f.Dir(), rec, cancel, done
}

func TestDropFolder_HandsOffSupportedFiles(t *testing.T) {
	for _, polling := range []bool{false, true} {
		name := "fsnotify"
		if polling {
			name = "polling"
		}
		t.Run(name, func(t *testing.T) {
			// Given: a running drop folder
			dir, rec, cancel, done := runFolder(t, Options{
				DebounceWindow: 50 * time.Millisecond,
				PollInterval:   30 * time.Millisecond,
				ForcePolling:   polling,
			})

			// When: a document and an unsupported file are dropped in
			require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.txt"), []byte("Coverage applies."), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.xlsx"), []byte("x"), 0o644))

			// Then: only the document is handed off, once
			require.Eventually(t, func() bool { return len(rec.seen()) == 1 }, 2*time.Second, 20*time.Millisecond)
			time.Sleep(200 * time.Millisecond)
			assert.Equal(t, []string{filepath.Join(dir, "policy.txt")}, rec.seen())

			// When: cancelled
			cancel()

			// Then: Run returns cleanly
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(time.Second):
				t.Fatal("Run did not return after cancel")
			}
		})
	}
}

func TestPoller_DetectsChanges(t *testing.T) {
	// Given: a folder with one file
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("1"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	p := newPoller(dir, time.Hour)
	var events []FileEvent
	emit := func(ev FileEvent) { events = append(events, ev) }

	// When: scanned the first time
	require.NoError(t, p.detectChanges(emit))

	// Then: existing files are creates and directories are skipped
	require.Len(t, events, 1)
	assert.Equal(t, FileEvent{Path: existing, Operation: OpCreate}, FileEvent{Path: events[0].Path, Operation: events[0].Operation})

	// When: the file grows and another is removed
	events = nil
	require.NoError(t, os.WriteFile(existing, []byte("12"), 0o644))
	require.NoError(t, p.detectChanges(emit))
	require.Len(t, events, 1)
	assert.Equal(t, OpModify, events[0].Operation)

	events = nil
	require.NoError(t, os.Remove(existing))
	require.NoError(t, p.detectChanges(emit))
	require.Len(t, events, 1)
	assert.Equal(t, OpDelete, events[0].Operation)
}

func TestPoller_MissingDirectory(t *testing.T) {
	p := newPoller(filepath.Join(t.TempDir(), "gone"), time.Hour)

	err := p.detectChanges(func(FileEvent) {})

	assert.Error(t, err)
}
