package session

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of triggers into a single call of fn, executed
// once no trigger has arrived for the full delay (trailing edge).
type debouncer struct {
	mu      sync.Mutex
	clock   Clock
	delay   time.Duration
	fn      func()
	timer   Timer
	gen     uint64
	stopped bool
	running sync.WaitGroup
}

func newDebouncer(clock Clock, delay time.Duration, fn func()) *debouncer {
	return &debouncer{
		clock: clock,
		delay: delay,
		fn:    fn,
	}
}

// trigger cancels the pending timer, if any, and restarts the window.
func (d *debouncer) trigger() {
	d.triggerAfter(d.delay)
}

// triggerAfter is trigger with a one-off window of delay.
func (d *debouncer) triggerAfter(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(delay, func() { d.fire(gen) })
}

func (d *debouncer) fire(gen uint64) {
	d.mu.Lock()
	// A timer whose Stop lost the race with its own expiry carries an old generation.
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	d.fn()
}

// pending reports whether a trailing call is scheduled.
func (d *debouncer) pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// cancel drops the scheduled call without running it.
func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// stopAndWait stops accepting triggers and waits for a running call to return.
// It reports false if the call did not finish within timeout.
func (d *debouncer) stopAndWait(timeout time.Duration) bool {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
