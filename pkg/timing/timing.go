// Package timing provides the debounce and throttle primitives used for feed
// reloads and scroll tracking.
package timing

import (
	"sync"
	"time"
)

// Debouncer runs fn once, wait after the last Trigger call.
type Debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	fn      func()
	timer   *time.Timer
	stopped bool
}

func NewDebouncer(wait time.Duration, fn func()) *Debouncer {
	return &Debouncer{wait: wait, fn: fn}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, d.fn)
}

// Stop cancels a pending call. Later Trigger calls are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Throttle admits at most one call per key within limit. The first call in a
// window passes; the rest are dropped, not delayed.
type Throttle struct {
	mu    sync.Mutex
	limit time.Duration
	last  map[string]time.Time
	now   func() time.Time
}

func NewThrottle(limit time.Duration) *Throttle {
	return &Throttle{
		limit: limit,
		last:  make(map[string]time.Time),
		now:   time.Now,
	}
}

// WithClock replaces the time source.
func (t *Throttle) WithClock(now func() time.Time) *Throttle {
	t.now = now
	return t
}

func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.last[key]; ok && now.Sub(last) < t.limit {
		return false
	}
	t.last[key] = now
	return true
}

// Forget drops the window state for key.
func (t *Throttle) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, key)
}

// Prune removes windows that ended before cutoff.
func (t *Throttle) Prune(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, last := range t.last {
		if last.Add(t.limit).Before(cutoff) {
			delete(t.last, key)
		}
	}
}
