package watch

import (
	"sync"
	"time"
)

// firing is delivered on debouncer.C when a path has been quiet for the
// debounce interval.
type firing struct {
	path string
	gen  uint64
}

type pendingTimer struct {
	timer *time.Timer
	gen   uint64
}

// debouncer delays per-path work until events stop arriving. It is owned by
// one goroutine; only the timer callbacks run elsewhere.
//
// A timer that fired while its path was being rescheduled still delivers,
// carrying an old generation; accept rejects it so each quiet period
// yields exactly one firing.
type debouncer struct {
	delay  time.Duration
	C      chan firing
	done   chan struct{}
	timers map[string]pendingTimer
	gen    uint64
	wg     sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		C:      make(chan firing),
		done:   make(chan struct{}),
		timers: make(map[string]pendingTimer),
	}
}

// schedule (re)starts the quiet period for path.
func (d *debouncer) schedule(path string) {
	d.cancel(path)
	d.gen++
	f := firing{path: path, gen: d.gen}
	d.wg.Add(1)
	t := time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		select {
		case d.C <- f:
		case <-d.done:
		}
	})
	d.timers[path] = pendingTimer{timer: t, gen: f.gen}
}

// cancel drops the pending firing for path. It reports whether one existed.
func (d *debouncer) cancel(path string) bool {
	p, ok := d.timers[path]
	if !ok {
		return false
	}
	if p.timer.Stop() {
		d.wg.Done()
	}
	delete(d.timers, path)
	return true
}

// accept reports whether f is the current firing for its path and, if so,
// forgets the path.
func (d *debouncer) accept(f firing) bool {
	p, ok := d.timers[f.path]
	if !ok || p.gen != f.gen {
		return false
	}
	delete(d.timers, f.path)
	return true
}

// close stops every timer, releases callbacks blocked on C and waits for
// them to return.
func (d *debouncer) close() {
	for path := range d.timers {
		d.cancel(path)
	}
	close(d.done)
	d.wg.Wait()
}
