package device

import (
	"sync"
	"time"
)

// Debouncer delays fn until wait has passed without another Call. Only the
// argument of the last Call is delivered. Each Debouncer owns its timer.
type Debouncer[T any] struct {
	mu    sync.Mutex
	fn    func(T)
	wait  time.Duration
	timer *time.Timer
}

func NewDebouncer[T any](fn func(T), wait time.Duration) *Debouncer[T] {
	return &Debouncer[T]{fn: fn, wait: wait}
}

// Call cancels any pending invocation and schedules fn(arg).
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		if d.timer != timer {
			// superseded between firing and acquiring the lock
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.fn(arg)
	})
	d.timer = timer
}

// Stop drops a pending invocation. It reports whether one was pending.
func (d *Debouncer[T]) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Debounce wraps fn in a fresh Debouncer and returns its Call method.
func Debounce[T any](fn func(T), wait time.Duration) func(T) {
	return NewDebouncer(fn, wait).Call
}
