package watcher

import (
	"sync"
	"time"
)

// Debouncer delays each path's events until that path has been quiet for
// the window. Paths are timed independently.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	output  chan FileEvent
	stopped bool
}

type pendingEvent struct {
	event FileEvent
	timer *time.Timer
}

// NewDebouncer creates a debouncer with the given window and output buffer.
func NewDebouncer(window time.Duration, buffer int) *Debouncer {
	if buffer <= 0 {
		buffer = DefaultOptions().EventBufferSize
	}
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan FileEvent, buffer),
	}
}

// Add records an event. A delete cancels whatever is pending for the path;
// a modify after a create is still reported as a create.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	p, ok := d.pending[event.Path]
	if event.Operation == OpDelete {
		if ok {
			p.timer.Stop()
			delete(d.pending, event.Path)
		}
		return
	}

	if ok {
		p.timer.Stop()
		if p.event.Operation == OpCreate {
			event.Operation = OpCreate
		}
	}
	path := event.Path
	d.pending[path] = &pendingEvent{
		event: event,
		timer: time.AfterFunc(d.window, func() { d.fire(path) }),
	}
}

func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pending[path]
	if !ok || d.stopped {
		return
	}
	delete(d.pending, path)

	select {
	case d.output <- p.event:
	default:
		// Consumer is behind; retry after another window.
		d.pending[path] = &pendingEvent{
			event: p.event,
			timer: time.AfterFunc(d.window, func() { d.fire(path) }),
		}
	}
}

// Output returns the channel of settled events.
func (d *Debouncer) Output() <-chan FileEvent {
	return d.output
}

// Pending returns the number of paths waiting for their window to close.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels pending events and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
	close(d.output)
}
