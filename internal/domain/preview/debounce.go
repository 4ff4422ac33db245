package preview

import (
	"sync"
	"time"
)

// Debouncer delivers the most recent pushed value once no new value has
// arrived for the configured delay.
//
// Thread-safety: all methods are safe for concurrent use. A callback that
// lost a race with a newer Push, Flush or Cancel is dropped via the sequence
// number.
type Debouncer[T any] struct {
	mu       sync.Mutex
	delay    time.Duration
	timer    *time.Timer
	pending  bool
	value    T
	seq      uint64 // sequence number to detect stale callbacks
	callback func(T)
}

// NewDebouncer creates a debouncer with the given quiescence window.
func NewDebouncer[T any](delay time.Duration, callback func(T)) *Debouncer[T] {
	return &Debouncer[T]{
		delay:    delay,
		callback: callback,
	}
}

// Push records v and restarts the window. Only the last value pushed
// before the window closes is delivered.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = true
	d.value = v
	d.seq++
	currentSeq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.pending && d.seq == currentSeq && d.callback != nil {
			d.pending = false
			v := d.value
			d.mu.Unlock()
			d.callback(v)
			return
		}
		d.mu.Unlock()
	})
}

// Flush delivers a pending value immediately and cancels the timer.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++

	if d.pending && d.callback != nil {
		d.pending = false
		v := d.value
		d.mu.Unlock()
		d.callback(v)
		return
	}
	d.mu.Unlock()
}

// Cancel drops any pending value.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
	var zero T
	d.value = zero
}

// IsPending returns true while a value waits for the window to close.
func (d *Debouncer[T]) IsPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Delay returns the quiescence window.
func (d *Debouncer[T]) Delay() time.Duration {
	return d.delay
}
