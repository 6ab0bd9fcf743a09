// Package debounce coalesces bursts of calls into a single delayed invocation.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs only the most recent function passed to Call, once no
// further call has arrived for the quiet period.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Call cancels any pending invocation and schedules fn after the quiet period.
func (d *Debouncer) Call(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels the pending invocation, if any. It reports whether one was cancelled.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}
