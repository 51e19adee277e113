// Package watcher turns a directory into a drop folder: documents copied
// into it are ingested once they stop changing.
//
// fsnotify is used when the platform supports it. Otherwise the directory
// is polled. Events for each path are debounced separately, so a large
// PDF that is still being written is picked up only after its last write.
//
// Usage:
//
//	f, err := watcher.NewDropFolder(dir, watcher.DefaultOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	err = f.Run(ctx, func(ctx context.Context, path string) {
//	    // ingest path
//	})
package watcher
