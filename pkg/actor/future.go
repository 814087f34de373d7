package actor

import (
	"context"
	"sync"

	"github.com/AHINK/mesos/internal/errors"
)

// Future is a one-shot result cell settled at most once by the target of a
// Dispatch call (spec §4.1). Get blocks the calling goroutine; it must
// only be called from a non-actor thread (an HTTP handler, a test, main)
// or awaited cooperatively from within an actor via Context.Await, per
// spec: calling Get from inside the actor that is meant to settle the
// future would deadlock, since that actor's single worker goroutine can
// never reach the Settle call while blocked in Get.
type Future struct {
	mu       sync.Mutex
	done     chan struct{}
	settled  bool
	value    interface{}
	err      error
}

// NewFuture creates an unsettled Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Settle stores the result and wakes every waiter. A second call is a
// no-op error, since a future may be settled at most once.
func (f *Future) Settle(value interface{}, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return errors.ErrFutureAlreadySettled.GenWithStackByArgs()
	}
	f.value, f.err, f.settled = value, err, true
	close(f.done)
	return nil
}

// Get blocks until the future is settled or ctx is done.
func (f *Future) Get(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryGet returns immediately: (value, err, true) if settled, else
// (nil, nil, false).
func (f *Future) TryGet() (interface{}, error, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		return nil, nil, false
	}
	return f.value, f.err, true
}

// DispatchRequest is the payload of a message posted by Runtime.Dispatch:
// the target actor's Receive method is expected to recognize req.Method,
// perform it, and call req.Settle exactly once.
type DispatchRequest struct {
	Method string
	Args   interface{}
	future *Future
}

// Settle fulfils the caller's Future. It is the receiving actor's
// responsibility to call this exactly once while handling the request.
func (r *DispatchRequest) Settle(value interface{}, err error) error {
	return r.future.Settle(value, err)
}
