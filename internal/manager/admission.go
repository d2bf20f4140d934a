package manager

import (
	"context"
	"time"
)

// admission bounds concurrent access to a non-reentrant model: one in-flight
// call, a fixed queue of waiters, and a maximum wait before rejecting.
type admission struct {
	op      string
	genCh   chan struct{} // size 1: single in-flight call
	queueCh chan struct{} // buffered: queue slots
	maxWait time.Duration
}

func newAdmission(op string, depth int, maxWait time.Duration) *admission {
	return &admission{
		op:      op,
		genCh:   make(chan struct{}, 1),
		queueCh: make(chan struct{}, depth),
		maxWait: maxWait,
	}
}

// acquire reserves a queue slot and then the single in-flight slot.
// Returns a release func to be deferred.
func (a *admission) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(a.maxWait)
	defer timer.Stop()
	select {
	case a.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{op: a.op}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-a.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(a.maxWait)
	defer timer2.Stop()
	select {
	case a.genCh <- struct{}{}:
		acquired = true
		return func() { <-a.genCh; <-a.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		return func() {}, tooBusyError{op: a.op}
	}
}
