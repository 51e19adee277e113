package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler receives each settled document path. Calls are sequential.
type Handler func(ctx context.Context, path string)

// DropFolder watches one directory, non-recursively.
type DropFolder struct {
	dir    string
	opts   Options
	logger *slog.Logger
}

// NewDropFolder validates dir and returns a watcher for it.
func NewDropFolder(dir string, opts Options, logger *slog.Logger) (*DropFolder, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve drop folder: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat drop folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("drop folder %s is not a directory", abs)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DropFolder{
		dir:    abs,
		opts:   opts.WithDefaults(),
		logger: logger.With("component", "watcher", "dir", abs),
	}, nil
}

// Dir returns the absolute path being watched.
func (f *DropFolder) Dir() string {
	return f.dir
}

// Run watches until ctx is cancelled and calls handle for every supported
// file once it has been quiet for the debounce window. It returns nil on
// cancellation.
func (f *DropFolder) Run(ctx context.Context, handle Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d := NewDebouncer(f.opts.DebounceWindow, f.opts.EventBufferSize)
	defer d.Stop()

	add := func(ev FileEvent) {
		if Accepts(ev.Path) {
			d.Add(ev)
		}
	}

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- f.watch(ctx, add)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case ev := <-d.Output():
			f.logger.Info("document settled", slog.String("path", ev.Path), slog.String("op", ev.Operation.String()))
			handle(ctx, ev.Path)
		}
	}
}

// watch feeds raw events to add, preferring fsnotify and polling when it
// cannot be set up.
func (f *DropFolder) watch(ctx context.Context, add func(FileEvent)) error {
	if f.opts.ForcePolling {
		return newPoller(f.dir, f.opts.PollInterval).run(ctx, add)
	}

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		if err = fsw.Add(f.dir); err != nil {
			_ = fsw.Close()
		}
	}
	if err != nil {
		f.logger.Warn("fsnotify unavailable, falling back to polling",
			slog.String("error", err.Error()),
			slog.Duration("interval", f.opts.PollInterval))
		return newPoller(f.dir, f.opts.PollInterval).run(ctx, add)
	}
	defer fsw.Close()

	f.logger.Info("watching drop folder", slog.String("mode", "fsnotify"))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev, ok := convertEvent(event); ok {
				add(ev)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("fsnotify error", slog.String("error", err.Error()))
		}
	}
}

func convertEvent(event fsnotify.Event) (FileEvent, bool) {
	ev := FileEvent{Path: event.Name, Timestamp: time.Now()}
	switch {
	case event.Op&fsnotify.Create != 0:
		ev.Operation = OpCreate
	case event.Op&fsnotify.Write != 0:
		ev.Operation = OpModify
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		ev.Operation = OpDelete
	default:
		return FileEvent{}, false
	}
	if ev.Operation != OpDelete {
		if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
			return FileEvent{}, false
		}
	}
	return ev, true
}
