package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// poller detects changes by rescanning the folder. It is the fallback for
// mounts where fsnotify reports nothing, such as network shares.
type poller struct {
	dir      string
	interval time.Duration
	state    map[string]fileSnapshot
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

func newPoller(dir string, interval time.Duration) *poller {
	return &poller{dir: dir, interval: interval, state: make(map[string]fileSnapshot)}
}

// run scans until ctx is done, passing each change to emit. Files present
// at start are reported as creates so a restart picks them up.
func (p *poller) run(ctx context.Context, emit func(FileEvent)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.detectChanges(emit); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *poller) detectChanges(emit func(FileEvent)) error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("scan drop folder: %w", err)
	}

	now := time.Now()
	current := make(map[string]fileSnapshot, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(p.dir, entry.Name())
		snap := fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		current[path] = snap

		prev, seen := p.state[path]
		switch {
		case !seen:
			emit(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		case prev != snap:
			emit(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}

	for path := range p.state {
		if _, ok := current[path]; !ok {
			emit(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}
	p.state = current
	return nil
}
