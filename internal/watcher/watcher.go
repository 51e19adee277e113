package watcher

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/claridoc/internal/segment"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file appeared in the folder.
	OpCreate Operation = iota
	// OpModify indicates an existing file was written to.
	OpModify
	// OpDelete indicates a file was removed or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a file system event.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path string

	// Operation is the type of file system operation.
	Operation Operation

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Options configures a DropFolder.
type Options struct {
	// DebounceWindow is how long a path must stay quiet before it is
	// handed off. Default: 500ms.
	DebounceWindow time.Duration

	// PollInterval is the scan interval when fsnotify is unavailable.
	// Default: 5s.
	PollInterval time.Duration

	// EventBufferSize is the size of the debounced event channel.
	// Default: 100.
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 100,
	}
}

// WithDefaults returns a copy of opts with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// Accepts reports whether a file name is a document the loader can read.
// Hidden files and editor or download temporaries are skipped.
func Accepts(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	_, ok := segment.KindFromExtension(name)
	return ok
}
