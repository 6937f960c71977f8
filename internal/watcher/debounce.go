package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of events per path. Editors often write a file
// several times on save; only the last event of a burst fires the callback.
type Debouncer struct {
	delay    time.Duration
	pending  map[string]*time.Timer
	callback func(path string)
	mu       sync.Mutex
}

// NewDebouncer creates a Debouncer that calls callback for a path once no new
// event for that path has arrived for delay.
func NewDebouncer(delay time.Duration, callback func(path string)) *Debouncer {
	return &Debouncer{
		delay:    delay,
		pending:  make(map[string]*time.Timer),
		callback: callback,
	}
}

// Add records an event for path, restarting its quiet period.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, exists := d.pending[path]; exists {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// A later Add may have replaced this timer after it fired.
		if d.pending[path] != timer {
			d.mu.Unlock()
			return
		}
		delete(d.pending, path)
		d.mu.Unlock()

		if d.callback != nil {
			d.callback(path)
		}
	})
	d.pending[path] = timer
}

// Cancel drops a pending path. It is a no-op if the path is not pending.
func (d *Debouncer) Cancel(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, exists := d.pending[path]; exists {
		timer.Stop()
		delete(d.pending, path)
	}
}

// CancelAll drops every pending path and returns how many were dropped.
func (d *Debouncer) CancelAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.pending)
	for path, timer := range d.pending {
		timer.Stop()
		delete(d.pending, path)
	}
	return n
}

// PendingCount returns the number of paths waiting for their quiet period.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
