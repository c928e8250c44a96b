package discovery

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopStopped is returned by Call once the loop has exited.
var ErrLoopStopped = errors.New("discovery loop stopped")

// Loop runs posted functions one at a time on the goroutine that calls Run.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop returns a loop whose queue holds buffer pending functions.
func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run executes posted functions until ctx is canceled. Functions still
// queued when Run returns are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn. It blocks while the queue is full and reports false if the
// loop has exited. Post must not be called from the loop goroutine when the
// queue may be full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
