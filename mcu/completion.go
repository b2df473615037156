package mcu

import (
	"sync"
	"time"

	"github.com/arloliu/mcusync/errs"
)

// Completion is a single-slot rendezvous between a command sender and the
// asynchronous response handler that observes the reply.
//
// The usage sequence on the issuing goroutine is Begin, send the command,
// Wait. The response registry handler calls Complete from the dispatch
// goroutine. At most one query may be outstanding per sensor instance;
// callers needing parallel queries must use separate sensor instances or
// serialize. Waiting blocks only the issuing goroutine.
type Completion struct {
	clock Clock

	mu      sync.Mutex
	pending bool
	ch      chan Params
}

// NewCompletion creates a completion using the given clock for deadlines.
func NewCompletion(clock Clock) *Completion {
	return &Completion{clock: clock}
}

// Begin opens a fresh pending slot. It fails with errs.ErrAlreadyPending
// when a previous slot exists and has not been consumed by Wait.
func (c *Completion) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending {
		return errs.ErrAlreadyPending
	}
	c.pending = true
	c.ch = make(chan Params, 1)

	return nil
}

// Complete stores params into the currently pending slot and wakes the
// waiter. When no slot is pending (including after a Wait already timed
// out) the response is late or unsolicited and is dropped, not queued.
// A second Complete against the same slot is likewise dropped.
func (c *Completion) Complete(params Params) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pending || c.ch == nil {
		return
	}
	select {
	case c.ch <- params:
	default:
	}
}

// Wait blocks the issuing goroutine until Complete is invoked or the host
// monotonic deadline passes, whichever comes first.
//
// On timeout the pending slot is cleared, so a stale late Complete cannot
// be misattributed to the next Begin, and errs.ErrTimeout is returned.
// Calling Wait without a matching Begin fails with errs.ErrNoPending.
func (c *Completion) Wait(deadline float64) (Params, error) {
	c.mu.Lock()
	pending, ch := c.pending, c.ch
	c.mu.Unlock()

	if !pending || ch == nil {
		return nil, errs.ErrNoPending
	}

	timeout := max(deadline-c.clock.Monotonic(), 0)
	timer := time.NewTimer(time.Duration(timeout * float64(time.Second)))
	defer timer.Stop()

	select {
	case params := <-ch:
		c.clear()
		return params, nil
	case <-timer.C:
	}

	// Deadline elapsed. Complete may still have raced the timer; prefer
	// the delivered result in that case.
	select {
	case params := <-ch:
		c.clear()
		return params, nil
	default:
	}

	c.clear()

	return nil, errs.ErrTimeout
}

// Cancel abandons the pending slot without waiting, e.g. when sending the
// command it was opened for failed. A late response for the cancelled
// query is dropped.
func (c *Completion) Cancel() {
	c.clear()
}

func (c *Completion) clear() {
	c.mu.Lock()
	c.pending = false
	c.ch = nil
	c.mu.Unlock()
}
