// Package loop provides the single-threaded cooperative event loop that all
// lifecycle state is confined to.
//
// Every queue, map and per-item field owned by the orchestrator and the
// runtime handlers is touched only from the loop goroutine. Multi-step
// operations suspend by returning to the loop and resume via a posted
// callback; timers fire back onto the loop and carry a cancellation flag so
// a late fire against a destroyed record is a safe no-op.
package loop

import (
	"sync"
	"time"
)

// Loop is a serialized task executor backed by one goroutine.
type Loop struct {
	tasks   chan func()
	quit    chan struct{}
	done    chan struct{}
	stopped sync.Once
}

// New creates a loop with the given task buffer size.
func New(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start runs the loop goroutine.
func (l *Loop) Start() {
	go l.run()
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.quit:
			// Drain tasks already queued before shutdown.
			for {
				select {
				case fn := <-l.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post schedules fn to run on the loop goroutine. It reports false if the
// loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Call runs fn on the loop goroutine and waits for it to complete.
// Must not be invoked from the loop goroutine itself.
func (l *Loop) Call(fn func()) bool {
	ch := make(chan struct{})
	ok := l.Post(func() {
		fn()
		close(ch)
	})
	if !ok {
		return false
	}
	<-ch
	return true
}

// Stop shuts the loop down after draining queued tasks.
func (l *Loop) Stop() {
	l.stopped.Do(func() { close(l.quit) })
	<-l.done
}

// Timer is a loop-scheduled timer. Cancel must be called from the loop
// goroutine; once cancelled a pending fire becomes a no-op.
type Timer struct {
	t         *time.Timer
	cancelled bool
}

// AfterFunc schedules fn to run on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	timer := &Timer{}
	timer.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if timer.cancelled {
				return
			}
			fn()
		})
	})
	return timer
}

// Cancel stops the timer. Safe to call more than once.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}
	t.cancelled = true
	t.t.Stop()
}
