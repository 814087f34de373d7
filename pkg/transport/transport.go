// Package transport provides the point-to-point, order-preserving link
// between actor addresses that spec §2 assumes as an external
// collaborator ("the wire transport... provide[s] reliable,
// order-preserving point-to-point delivery"). The actor runtime is the
// consumer: Listen feeds inbound frames into a Runtime's mailbox delivery,
// and peer disconnection is surfaced as Runtime.NotifyPeerLost.
//
// Each local address gets exactly one listener, and a frame's destination
// is therefore simply "the actor this listener was bound for" — master and
// slave each expose one network-facing actor per process, so no further
// demultiplexing is required at this layer (HTTP handler fan-out per actor
// is a separate, already-connected concern in pkg/actor).
package transport

import (
	"bufio"
	"net"
	"sync"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/AHINK/mesos/internal/errors"
	"github.com/AHINK/mesos/pkg/actor"
	"github.com/AHINK/mesos/pkg/codec"
)

// Conn is a single outbound, ordered link to one remote peer.
type Conn interface {
	Send(frame codec.Frame) error
	Close() error
}

// Transport dials and listens for actor-to-actor frames over TCP, feeding
// decoded frames into a Runtime and notifying it when a peer connection is
// lost.
type Transport struct {
	rt   *actor.Runtime
	self actor.Address

	mu    sync.Mutex
	conns map[string]*tcpConn // remote hostport -> connection
}

// New creates a Transport that delivers inbound frames to rt, addressed
// to self (the local actor that owns this process's listening port).
func New(rt *actor.Runtime, self actor.Address) *Transport {
	return &Transport{rt: rt, self: self, conns: make(map[string]*tcpConn)}
}

// Listen starts accepting connections on self's host:port. It returns a
// Close()-able handle; Close stops accepting but leaves already-accepted
// connections running until their next read error.
func (t *Transport) Listen() (*Listener, error) {
	hostport, err := t.self.HostPort()
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", hostport)
	if err != nil {
		return nil, err
	}
	l := &Listener{ln: ln, t: t}
	go l.acceptLoop()
	return l, nil
}

// Listener is the accept-loop handle returned by Transport.Listen.
type Listener struct {
	ln net.Listener
	t  *Transport
}

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Addr returns the bound listen address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return // listener closed
		}
		go l.t.serve(conn)
	}
}

func (t *Transport) serve(nc net.Conn) {
	defer nc.Close()
	r := bufio.NewReader(nc)
	var peer actor.Address
	for {
		frame, err := codec.ReadFrame(r)
		if err != nil {
			if peer != "" {
				log.Warn("peer connection lost", zap.String("peer", string(peer)), zap.Error(err))
				t.rt.NotifyPeerLost(peer)
			}
			return
		}
		peer = actor.Address(frame.From)
		if err := t.rt.Send(t.self, peer, frame.Name, frame.Body); err != nil {
			log.Warn("failed to deliver inbound frame",
				zap.String("name", frame.Name), zap.String("from", frame.From), zap.Error(err))
		}
	}
}

// Dial returns a Conn to remote, creating and caching a persistent TCP
// connection on first use; subsequent Sends over the same Conn preserve
// send order, matching the point-to-point ordering guarantee spec §2 and
// §5 rely on.
func (t *Transport) Dial(remote actor.Address) (Conn, error) {
	hostport, err := remote.HostPort()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if c, ok := t.conns[hostport]; ok && !c.closed {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	nc, err := net.Dial("tcp", hostport)
	if err != nil {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("dial " + hostport + ": " + err.Error())
	}
	c := &tcpConn{nc: nc}

	t.mu.Lock()
	t.conns[hostport] = c
	t.mu.Unlock()

	return c, nil
}

type tcpConn struct {
	mu     sync.Mutex
	nc     net.Conn
	closed bool
}

func (c *tcpConn) Send(frame codec.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrMailboxClosed.GenWithStackByArgs("connection")
	}
	return codec.WriteFrame(c.nc, frame)
}

func (c *tcpConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.nc.Close()
}
