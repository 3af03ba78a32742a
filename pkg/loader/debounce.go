package loader

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period a Watcher waits before reloading.
const DefaultDebounce = 250 * time.Millisecond

// debouncer coalesces bursts of Trigger calls into one callback run after
// the burst has been quiet for the configured duration.
type debouncer struct {
	duration time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	seq      uint64
}

func newDebouncer(d time.Duration) *debouncer {
	if d <= 0 {
		d = DefaultDebounce
	}
	return &debouncer{duration: d}
}

func (d *debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		// A timer that fired while being replaced must not run.
		latest := seq == d.seq
		if latest {
			d.timer = nil
		}
		d.mu.Unlock()
		if latest {
			fn()
		}
	})
}

func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
