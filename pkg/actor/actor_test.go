package actor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AHINK/mesos/pkg/actor"
)

type echoActor struct {
	received chan actor.Message
}

func (e *echoActor) Receive(ctx *actor.Context, msg actor.Message) error {
	e.received <- msg
	if req, ok := msg.Body.(*actor.DispatchRequest); ok {
		return req.Settle("pong", nil)
	}
	return nil
}

func TestSendAndReceive(t *testing.T) {
	rt := actor.NewRuntime(actor.WithWorkers(2))
	defer rt.Stop()

	addr := actor.NewAddress("echo", "127.0.0.1:1")
	a := &echoActor{received: make(chan actor.Message, 1)}
	require.NoError(t, rt.Spawn(addr, a))

	require.NoError(t, rt.Send(addr, actor.None, "PING", "hello"))

	select {
	case msg := <-a.received:
		require.Equal(t, "PING", msg.Name)
		require.Equal(t, "hello", msg.Body)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestDispatchSettlesFuture(t *testing.T) {
	rt := actor.NewRuntime(actor.WithWorkers(2))
	defer rt.Stop()

	addr := actor.NewAddress("echo", "127.0.0.1:2")
	a := &echoActor{received: make(chan actor.Message, 1)}
	require.NoError(t, rt.Spawn(addr, a))

	f := rt.Dispatch(actor.None, addr, "ping", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := f.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "pong", result)
}

type linkedActor struct {
	exited chan actor.Address
}

func (l *linkedActor) Receive(ctx *actor.Context, msg actor.Message) error {
	if msg.Name == actor.ExitedMsg {
		l.exited <- msg.Body.(actor.Address)
	}
	return nil
}

type dyingActor struct{}

func (d *dyingActor) Receive(ctx *actor.Context, msg actor.Message) error {
	return nil
}

func TestLinkDeliversExited(t *testing.T) {
	rt := actor.NewRuntime(actor.WithWorkers(2))
	defer rt.Stop()

	watcherAddr := actor.NewAddress("watcher", "127.0.0.1:3")
	watched := actor.NewAddress("watched", "127.0.0.1:4")

	watcher := &linkedActor{exited: make(chan actor.Address, 1)}
	require.NoError(t, rt.Spawn(watcherAddr, watcher))
	require.NoError(t, rt.Spawn(watched, &dyingActor{}))

	rt.Link(watcherAddr, watched)
	rt.Terminate(watched)

	select {
	case addr := <-watcher.exited:
		require.Equal(t, watched, addr)
	case <-time.After(time.Second):
		t.Fatal("EXITED never delivered")
	}
}

func TestSendToNoneIsNoop(t *testing.T) {
	rt := actor.NewRuntime(actor.WithWorkers(1))
	defer rt.Stop()
	require.NoError(t, rt.Send(actor.None, actor.None, "X", nil))
}

func TestSendToUnknownReturnsError(t *testing.T) {
	rt := actor.NewRuntime(actor.WithWorkers(1))
	defer rt.Stop()
	addr := actor.NewAddress("ghost", "127.0.0.1:5")
	err := rt.Send(addr, actor.None, "X", nil)
	require.Error(t, err)
}
