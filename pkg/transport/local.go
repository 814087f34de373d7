package transport

import (
	"sync"

	"github.com/AHINK/mesos/pkg/actor"
	"github.com/AHINK/mesos/pkg/codec"
)

// LocalRouter wires several Runtimes together in a single process without
// touching the network, for fast and deterministic tests of the
// master/slave/framework protocol (spec §8's scenarios are driven this
// way). It honours the same ordering contract as the TCP Transport: sends
// from a given peer arrive in the order they were issued.
type LocalRouter struct {
	mu       sync.Mutex
	runtimes map[actor.Address]*actor.Runtime
}

// NewLocalRouter creates an empty router.
func NewLocalRouter() *LocalRouter {
	return &LocalRouter{runtimes: make(map[actor.Address]*actor.Runtime)}
}

// Register associates addr with rt so that frames sent to addr are
// delivered synchronously into rt's mailbox.
func (r *LocalRouter) Register(addr actor.Address, rt *actor.Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtimes[addr] = rt
}

// Unregister simulates peer loss: future sends to addr are silently
// dropped, and the watchers linked to addr in the runtime addr was
// registered with are notified via EXITED. Other runtimes are not told.
func (r *LocalRouter) Unregister(addr actor.Address) {
	r.mu.Lock()
	rt, ok := r.runtimes[addr]
	delete(r.runtimes, addr)
	r.mu.Unlock()
	if ok {
		rt.NotifyPeerLost(addr)
	}
}

// Send delivers body (already a concrete struct, not wire bytes, since
// this router never touches the codec) from `from` to the actor
// registered at `to`.
func (r *LocalRouter) Send(to, from actor.Address, name string, body interface{}) error {
	r.mu.Lock()
	rt, ok := r.runtimes[to]
	r.mu.Unlock()
	if !ok {
		return nil // peer not reachable: matches a dropped/unrouted frame
	}
	return rt.Send(to, from, name, body)
}

// EncodeThenSend encodes body with the wire codec and delivers the encoded
// bytes, for tests that want to exercise serialization without a real
// socket; the receiver gets []byte and must decode it itself.
func (r *LocalRouter) EncodeThenSend(to, from actor.Address, name string, body interface{}) error {
	data, err := codec.EncodeBody(body)
	if err != nil {
		return err
	}
	return r.Send(to, from, name, data)
}
