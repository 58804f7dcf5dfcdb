// internal/core/services/detector.go
package services

import (
	"sync"
	"time"

	"github.com/cyclosproject/searchd/internal/core/domain"
)

// ShouldFetch implements the form-value change decision:
//
//  1. first load, or leaving categories, always fetches
//  2. entering categories never fetches
//  3. otherwise fetch only when the form value materially changed
func ShouldFetch(prevType, nextType domain.ResultType, prev, next domain.FormValue) bool {
	if nextType == domain.ResultTypeCategories {
		return false
	}
	if prevType == domain.ResultTypeNone || prevType == domain.ResultTypeCategories {
		return true
	}
	return !prev.Equal(next)
}

// Debouncer coalesces rapid value-change events over a quiet interval
// so a burst of keystrokes results in a single evaluation. The last
// triggered function wins.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	stopped  bool
}

// NewDebouncer creates a debouncer with the shared quiet interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules fn after the quiet interval, replacing any
// previously scheduled call that has not fired yet.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
}

// Stop cancels any pending call and rejects further triggers. Called
// on screen teardown so no callback fires into a disposed session.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
