package actor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AHINK/mesos/pkg/actor"
)

func TestClockAdvanceFiresDueTimers(t *testing.T) {
	c := actor.NewClock()
	c.Pause()

	var fired []string
	c.After(5*time.Second, func() { fired = append(fired, "five") })
	c.After(10*time.Second, func() { fired = append(fired, "ten") })
	c.After(20*time.Second, func() { fired = append(fired, "twenty") })

	c.Advance(12 * time.Second)
	require.Equal(t, []string{"five", "ten"}, fired)

	c.Advance(10 * time.Second)
	require.Equal(t, []string{"five", "ten", "twenty"}, fired)
}

func TestClockTimerDoesNotFireBeforeDeadline(t *testing.T) {
	c := actor.NewClock()
	c.Pause()

	fired := false
	c.After(10*time.Second, func() { fired = true })
	c.Advance(9 * time.Second)
	require.False(t, fired)
	c.Advance(1 * time.Second)
	require.True(t, fired)
}

func TestRuntimeTimerDeliversMessage(t *testing.T) {
	clk := actor.NewClock()
	clk.Pause()
	rt := actor.NewRuntime(actor.WithWorkers(1), actor.WithClock(clk))
	defer rt.Stop()

	addr := actor.NewAddress("timed", "127.0.0.1:6")
	received := make(chan actor.Message, 1)
	a := &recordingActor{received: received}
	require.NoError(t, rt.Spawn(addr, a))

	cancel := rt.After(addr, 1*time.Second, actor.TimeoutMsg, nil)
	defer cancel()

	clk.Advance(1 * time.Second)

	select {
	case msg := <-received:
		require.Equal(t, actor.TimeoutMsg, msg.Name)
	case <-time.After(time.Second):
		t.Fatal("timer never delivered TIMEOUT")
	}
}

type recordingActor struct {
	received chan actor.Message
}

func (r *recordingActor) Receive(ctx *actor.Context, msg actor.Message) error {
	r.received <- msg
	return nil
}
