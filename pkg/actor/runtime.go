// Package actor implements the message-driven actor runtime described in
// spec §4.1: typed addresses, reliable local dispatch, linking, timers and
// single-threaded-per-actor execution over a shared worker pool.
//
// Grounded on the teacher's per-task Runner (engine/framework/internal/
// eventloop/runner.go: Init/Poll/graceful-exit/NotifyExit lifecycle) and
// its topic-based handler registration (engine/pkg/p2p/
// message_handler_manager.go), generalized from "one goroutine per task"
// to "N worker goroutines fairly scheduling many actors".
package actor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AHINK/mesos/internal/errors"
)

// Actor is a single-threaded handler: the runtime guarantees that Receive
// is never called concurrently with itself for the same actor, and that
// at most one call is in flight across the whole actor (spec §4.1, §5).
type Actor interface {
	Receive(ctx *Context, msg Message) error
}

// HTTPHandler answers one request dispatched through an actor's mailbox
// (spec §4.1 "HTTP handlers").
type HTTPHandler func(ctx *Context, req interface{}) (interface{}, error)

type cell struct {
	addr      Address
	actor     Actor
	mbox      *mailbox
	scheduled atomic.Bool
	exited    atomic.Bool

	httpMu       sync.RWMutex
	httpHandlers map[string]HTTPHandler
}

// Runtime is the process-wide actor scheduler: a registry of live actors,
// a bounded pool of worker goroutines, a shared ready queue, a Clock and
// the link/watch table. One Runtime is the "global state" spec §9
// describes (registry + transport singleton); tests construct a fresh one
// instead of relying on package-level globals, so they can reset cleanly.
type Runtime struct {
	workers int
	clock   *Clock

	mu      sync.RWMutex
	actors  map[Address]*cell
	watch   map[Address]map[Address]struct{} // watched addr -> watchers

	ready chan *cell

	group  *errgroup.Group
	cancel context.CancelFunc
}

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithWorkers overrides the worker-pool size (default: runtime.NumCPU()).
func WithWorkers(n int) Option {
	return func(r *Runtime) { r.workers = n }
}

// WithClock installs a caller-supplied Clock, typically a paused one for
// deterministic tests.
func WithClock(c *Clock) Option {
	return func(r *Runtime) { r.clock = c }
}

// NewRuntime starts a Runtime and its worker pool. Call Stop to drain it.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{
		workers: runtime.NumCPU(),
		clock:   NewClock(),
		actors:  make(map[Address]*cell),
		watch:   make(map[Address]map[Address]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	r.ready = make(chan *cell, 4096)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	r.group = g
	for i := 0; i < r.workers; i++ {
		g.Go(func() error { return r.work(gctx) })
	}
	return r
}

// Clock returns the runtime's shared Clock.
func (r *Runtime) Clock() *Clock { return r.clock }

// Stop cancels every worker and waits for them to drain their current
// message. It does not flush remaining mailboxes.
func (r *Runtime) Stop() {
	r.cancel()
	_ = r.group.Wait()
}

func (r *Runtime) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-r.ready:
			if !ok {
				return nil
			}
			r.runOne(c)
		}
	}
}

// runOne processes exactly one message for c, the non-preemptive
// "suspension point to suspension point" unit of work spec §4.1 mandates,
// then reschedules c if its mailbox still has work. c stays marked as
// scheduled until that message has been handled, so no other worker can
// pick c up in the meantime.
func (r *Runtime) runOne(c *cell) {
	defer func() {
		c.scheduled.Store(false)
		if c.mbox.len() > 0 {
			r.schedule(c)
		}
	}()
	msg, ok := c.mbox.pop()
	if !ok {
		return
	}

	if msg.Name == TerminateMsg {
		r.terminate(c)
		return
	}

	actorCtx := &Context{rt: r, self: c}

	if req, ok := msg.Body.(*DispatchRequest); ok {
		if _, isHTTP := req.Args.(httpInvocation); isHTTP {
			if err := handleHTTPInvocation(actorCtx, req); err != nil {
				log.Warn("http handler invocation failed",
					zap.String("address", string(c.addr)), zap.Error(err))
			}
			return
		}
	}

	if err := c.actor.Receive(actorCtx, msg); err != nil {
		log.Error("actor handler failed, terminating actor",
			zap.String("address", string(c.addr)), zap.String("message", msg.Name), zap.Error(err))
		r.terminate(c)
		return
	}
}

func (r *Runtime) schedule(c *cell) {
	if c.exited.Load() {
		return
	}
	if c.scheduled.CompareAndSwap(false, true) {
		select {
		case r.ready <- c:
		default:
			// Ready queue saturated: hand the enqueue to a new goroutine
			// rather than block the caller's goroutine; this only happens
			// under pathological backlog and keeps delivery from stalling.
			go func() { r.ready <- c }()
		}
	}
}

// Spawn registers actor under addr and makes it eligible for message
// delivery. It is an error to spawn twice at the same address.
func (r *Runtime) Spawn(addr Address, a Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actors[addr]; ok {
		return errors.ErrActorAlreadyExists.GenWithStackByArgs(string(addr))
	}
	r.actors[addr] = &cell{
		addr:         addr,
		actor:        a,
		mbox:         newMailbox(),
		httpHandlers: make(map[string]HTTPHandler),
	}
	return nil
}

func (r *Runtime) lookup(addr Address) (*cell, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.actors[addr]
	return c, ok
}

// Send enqueues a message in to's mailbox and schedules it. Sending to
// None is a silent no-op (spec §6); sending to an unknown or exited actor
// is reported but otherwise harmless, matching "late messages are safely
// ignorable" (spec §5).
func (r *Runtime) Send(to, from Address, name string, body interface{}) error {
	if to == None {
		return nil
	}
	c, ok := r.lookup(to)
	if !ok || c.exited.Load() {
		return errors.ErrActorNotFound.GenWithStackByArgs(string(to))
	}
	c.mbox.push(Message{Name: name, From: from, Body: body})
	r.schedule(c)
	return nil
}

// Terminate injects TERMINATE at the front of addr's mailbox (spec §4.1).
func (r *Runtime) Terminate(addr Address) {
	c, ok := r.lookup(addr)
	if !ok {
		return
	}
	c.mbox.pushFront(Message{Name: TerminateMsg, From: addr})
	r.schedule(c)
}

func (r *Runtime) terminate(c *cell) {
	if !c.exited.CompareAndSwap(false, true) {
		return
	}
	r.mu.Lock()
	delete(r.actors, c.addr)
	watchers := r.watch[c.addr]
	delete(r.watch, c.addr)
	r.mu.Unlock()

	for w := range watchers {
		_ = r.Send(w, c.addr, ExitedMsg, c.addr)
	}
}

// Link subscribes watcher to addr's death: when addr exits, watcher
// receives an EXITED message carrying addr (spec §4.1). Link is
// idempotent.
func (r *Runtime) Link(watcher, addr Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actors[addr]; !ok {
		// addr already gone: notify immediately rather than silently
		// dropping the subscription, since the caller expects exactly
		// one EXITED for every successfully linked address.
		r.mu.Unlock()
		_ = r.Send(watcher, addr, ExitedMsg, addr)
		r.mu.Lock()
		return
	}
	set, ok := r.watch[addr]
	if !ok {
		set = make(map[Address]struct{})
		r.watch[addr] = set
	}
	set[watcher] = struct{}{}
}

// NotifyPeerLost is called by the transport layer when it detects a peer
// host died (spec §2 transport responsibility: "notifies the actor
// runtime on peer death"). It terminates every local actor cell that
// transport identifies as hosted at that address — used for remote
// addresses the runtime does not itself own, by synthesising an EXITED
// delivery to every local watcher without requiring a local cell to exist.
func (r *Runtime) NotifyPeerLost(addr Address) {
	r.mu.Lock()
	watchers := r.watch[addr]
	delete(r.watch, addr)
	delete(r.actors, addr)
	r.mu.Unlock()
	for w := range watchers {
		_ = r.Send(w, addr, ExitedMsg, addr)
	}
}

// After schedules msg to be delivered to self's mailbox once d elapses on
// the runtime's Clock (spec §4.1 timers). It returns a cancel function.
func (r *Runtime) After(self Address, d time.Duration, name string, body interface{}) (cancelFn func()) {
	return r.clock.After(d, func() {
		_ = r.Send(self, self, name, body)
	})
}

// Dispatch posts a DispatchRequest named method to addr and returns a
// Future the target settles while handling it (spec §4.1 futures). Safe
// to call from any goroutine, actor or not.
func (r *Runtime) Dispatch(from, to Address, method string, args interface{}) *Future {
	f := NewFuture()
	req := &DispatchRequest{Method: method, Args: args, future: f}
	if err := r.Send(to, from, method, req); err != nil {
		_ = f.Settle(nil, err)
	}
	return f
}

// RegisterHTTPHandler attaches an HTTP handler named `name` to addr's
// actor, reachable at /<actor-name>/<name> (spec §4.1, §6).
func (r *Runtime) RegisterHTTPHandler(addr Address, name string, h HTTPHandler) error {
	c, ok := r.lookup(addr)
	if !ok {
		return errors.ErrActorNotFound.GenWithStackByArgs(string(addr))
	}
	c.httpMu.Lock()
	defer c.httpMu.Unlock()
	c.httpHandlers[name] = h
	return nil
}

// CallHTTPHandler dispatches req to the named HTTP handler of addr's
// actor, running it on the actor's own worker turn via Dispatch+Future so
// it never races the actor's mailbox processing, and blocks for the
// result (this is always called from an HTTP goroutine, never from inside
// an actor).
func (r *Runtime) CallHTTPHandler(ctx context.Context, addr Address, name string, req interface{}) (interface{}, error) {
	c, ok := r.lookup(addr)
	if !ok {
		return nil, errors.ErrActorNotFound.GenWithStackByArgs(string(addr))
	}
	c.httpMu.RLock()
	h, ok := c.httpHandlers[name]
	c.httpMu.RUnlock()
	if !ok {
		return nil, errors.ErrActorNotFound.GenWithStackByArgs("http handler " + name + " on " + string(addr))
	}
	f := r.Dispatch(addr, addr, "__http__:"+name, httpInvocation{handler: h, req: req})
	return f.Get(ctx)
}

type httpInvocation struct {
	handler HTTPHandler
	req     interface{}
}

// Context is the per-message handle an Actor.Receive uses to act: send,
// link, set timers, dispatch to other actors, and settle an inbound
// DispatchRequest (spec §4.1).
type Context struct {
	rt   *Runtime
	self *cell
}

// Self returns the address of the actor this Context belongs to.
func (c *Context) Self() Address { return c.self.addr }

// Send is Runtime.Send with the sender implicitly set to Self().
func (c *Context) Send(to Address, name string, body interface{}) error {
	return c.rt.Send(to, c.self.addr, name, body)
}

// Link subscribes this actor to addr's death.
func (c *Context) Link(addr Address) { c.rt.Link(c.self.addr, addr) }

// After schedules a message back to this actor after d.
func (c *Context) After(d time.Duration, name string, body interface{}) (cancelFn func()) {
	return c.rt.After(c.self.addr, d, name, body)
}

// Dispatch calls into another actor and returns a Future for its result.
func (c *Context) Dispatch(to Address, method string, args interface{}) *Future {
	return c.rt.Dispatch(c.self.addr, to, method, args)
}

// Await blocks this actor's current worker goroutine until f settles or
// ctx is done. Per spec §4.1 this is the actor-side suspension primitive;
// it costs one pool worker for the wait, so handlers that await should
// bound it with a deadline context, and Runtime should be sized with more
// workers than the deepest expected await chain.
func (c *Context) Await(ctx context.Context, f *Future) (interface{}, error) {
	return f.Get(ctx)
}

// Now returns the runtime clock's current time.
func (c *Context) Now() time.Time { return c.rt.clock.Now() }

// Terminate stops this actor after the current handler returns.
func (c *Context) Terminate() {
	c.rt.Terminate(c.self.addr)
}

// handleHTTPInvocation is called from runOne when the dispatched message
// is a __http__ invocation routed back to the owning actor; it runs the
// handler on the actor's own turn and settles the caller's Future.
func handleHTTPInvocation(ctx *Context, req *DispatchRequest) error {
	inv := req.Args.(httpInvocation)
	result, err := inv.handler(ctx, inv.req)
	return req.Settle(result, err)
}
