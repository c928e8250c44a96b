package discovery

import (
	"context"
	"testing"
	"time"
)

func TestDeadlineIgnoresStaleExpiry(t *testing.T) {
	sched := &manualScheduler{}
	d := deadline{sched: sched}
	fired := 0

	d.arm(time.Second, func() { fired++ })
	stale := sched.timers[0].fn
	d.stop()

	// An expiry already queued on the loop runs after stop.
	stale()
	if fired != 0 {
		t.Fatal("expiry after stop should be ignored")
	}

	d.arm(time.Second, func() { fired++ })
	d.arm(time.Second, func() { fired += 10 })
	sched.timers[1].fn()
	if fired != 0 {
		t.Fatal("expiry of a re-armed timer should be ignored")
	}
	sched.timers[2].fn()
	if fired != 10 {
		t.Fatalf("fired = %d, want 10", fired)
	}
	if d.armed() {
		t.Error("deadline should be disarmed after firing")
	}
	sched.timers[2].fn()
	if fired != 10 {
		t.Error("a timer fires at most once")
	}
}

func TestLoopSchedulerRunsOnLoop(t *testing.T) {
	loop := NewLoop(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	sched := NewLoopScheduler(loop)
	done := make(chan struct{})
	sched.After(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}

	canceled := make(chan struct{})
	stop := sched.After(50*time.Millisecond, func() { close(canceled) })
	stop()
	select {
	case <-canceled:
		t.Fatal("canceled timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}
