package discovery

// pendingOp is the deferred work of a session waiting for a native stop to
// be acknowledged.
type pendingOp int

const (
	pendingIdle pendingOp = iota
	pendingCancel
	pendingCancelThenRestart
)

func (p pendingOp) String() string {
	switch p {
	case pendingCancel:
		return "cancel"
	case pendingCancelThenRestart:
		return "cancel_then_restart"
	default:
		return "idle"
	}
}

// resolution says what a session does when its outstanding native operation
// ends.
type resolution int

const (
	resolveNormal resolution = iota
	resolveCanceled
	resolveRestart
)

// coordinator tracks a pending stop and, optionally, the start parameters to
// replay once the stop lands. T is the start request of the owning session.
type coordinator[T any] struct {
	op      pendingOp
	restart T
}

// requestStop records a stop. It reports whether the caller must issue the
// native stop; a second stop while one is in flight only drops a queued
// restart.
func (c *coordinator[T]) requestStop() bool {
	switch c.op {
	case pendingIdle:
		c.op = pendingCancel
		return true
	case pendingCancelThenRestart:
		var zero T
		c.op = pendingCancel
		c.restart = zero
	}
	return false
}

// requestStart defers params if a stop is in flight and reports whether it
// did. The latest deferred start wins.
func (c *coordinator[T]) requestStart(params T) bool {
	if c.op == pendingIdle {
		return false
	}
	c.op = pendingCancelThenRestart
	c.restart = params
	return true
}

func (c *coordinator[T]) busy() bool {
	return c.op != pendingIdle
}

// complete clears the pending state and returns what to do with it.
func (c *coordinator[T]) complete() (resolution, T) {
	op, params := c.op, c.restart
	c.reset()
	switch op {
	case pendingCancel:
		return resolveCanceled, params
	case pendingCancelThenRestart:
		return resolveRestart, params
	default:
		return resolveNormal, params
	}
}

func (c *coordinator[T]) reset() {
	var zero T
	c.op = pendingIdle
	c.restart = zero
}
