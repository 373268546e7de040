// Package debounce collapses bursts of calls into one delayed call per key.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs the most recently triggered function for a key once the key
// has been quiet for the configured delay. Keys are independent: a trigger on
// one key never delays another.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*call
	stopped bool
}

type call struct {
	timer *time.Timer
	fn    func()
}

// New returns a Debouncer with the given quiet period.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay, pending: make(map[string]*call)}
}

// Trigger schedules fn for key, replacing (and cancelling) any function still
// waiting on that key. Triggers after Stop are ignored.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if c, ok := d.pending[key]; ok {
		c.timer.Stop()
	}
	c := &call{fn: fn}
	c.timer = time.AfterFunc(d.delay, func() { d.fire(key, c) })
	d.pending[key] = c
}

func (d *Debouncer) fire(key string, c *call) {
	d.mu.Lock()
	if d.pending[key] != c {
		// Superseded or flushed after the timer had already fired.
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()
	c.fn()
}

// Flush runs every waiting function now, in the caller's goroutine.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	calls := make([]*call, 0, len(d.pending))
	for key, c := range d.pending {
		c.timer.Stop()
		calls = append(calls, c)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, c := range calls {
		c.fn()
	}
}

// Stop cancels every waiting function and rejects further triggers.
// It returns the keys whose functions were cancelled.
func (d *Debouncer) Stop() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	keys := make([]string, 0, len(d.pending))
	for key, c := range d.pending {
		c.timer.Stop()
		keys = append(keys, key)
		delete(d.pending, key)
	}
	return keys
}

// Pending returns the number of keys waiting to fire.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
