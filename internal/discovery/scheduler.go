package discovery

import "time"

// Scheduler arranges for fn to run after d on the session goroutine. The
// returned function cancels the call if it has not run yet.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
}

// loopScheduler fires timers by posting onto a Loop.
type loopScheduler struct {
	loop *Loop
}

// NewLoopScheduler returns a Scheduler backed by time.AfterFunc whose
// callbacks run on loop.
func NewLoopScheduler(loop *Loop) Scheduler {
	return loopScheduler{loop: loop}
}

func (s loopScheduler) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() { s.loop.Post(fn) })
	return func() { t.Stop() }
}

// deadline is a single re-armable timer. An expiry that was already queued
// when the timer was stopped or re-armed is ignored.
type deadline struct {
	sched  Scheduler
	gen    uint64
	cancel func()
}

func (d *deadline) arm(after time.Duration, fire func()) {
	d.stop()
	gen := d.gen
	d.cancel = d.sched.After(after, func() {
		if gen != d.gen || d.cancel == nil {
			return
		}
		d.cancel = nil
		fire()
	})
}

func (d *deadline) stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.gen++
}

func (d *deadline) armed() bool {
	return d.cancel != nil
}
