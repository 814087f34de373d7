package master_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AHINK/mesos/allocator"
	"github.com/AHINK/mesos/master"
	"github.com/AHINK/mesos/pkg/actor"
	"github.com/AHINK/mesos/pkg/ids"
	"github.com/AHINK/mesos/pkg/messages"
	"github.com/AHINK/mesos/pkg/resources"
)

// recorder is a minimal actor that stashes every message it receives on a
// channel, standing in for a framework scheduler or a slave process in
// these tests (spec §8's scenarios are driven exactly this way: a real
// Master actor talking to simple peers over the in-process runtime).
type recorder struct {
	msgs chan actor.Message
}

func newRecorder() *recorder { return &recorder{msgs: make(chan actor.Message, 16)} }

func (r *recorder) Receive(_ *actor.Context, msg actor.Message) error {
	r.msgs <- msg
	return nil
}

func (r *recorder) await(t *testing.T, name string) actor.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-r.msgs:
			if msg.Name == name {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", name)
		}
	}
}

func newTestMaster(t *testing.T) (*actor.Runtime, actor.Address, *master.Master) {
	t.Helper()
	rt := actor.NewRuntime(actor.WithWorkers(4))
	gen := ids.NewGeneratorWithEpoch("test")
	alloc := allocator.NewDominantShareAllocator(nil)
	m := master.New(gen, alloc)
	addr := actor.NewAddress("master", "127.0.0.1:5050")
	require.NoError(t, rt.Spawn(addr, m))
	return rt, addr, m
}

func TestRegisterFrameworkAndSlaveThenOffer(t *testing.T) {
	rt, masterAddr, _ := newTestMaster(t)
	defer rt.Stop()

	fwAddr := actor.NewAddress("fw", "127.0.0.1:6000")
	fw := newRecorder()
	require.NoError(t, rt.Spawn(fwAddr, fw))

	slAddr := actor.NewAddress("slave", "127.0.0.1:6001")
	sl := newRecorder()
	require.NoError(t, rt.Spawn(slAddr, sl))

	require.NoError(t, rt.Send(masterAddr, fwAddr, messages.F2M_REGISTER_FRAMEWORK,
		&messages.RegisterFramework{Info: messages.FrameworkInfo{Name: "test-fw"}}))
	fw.await(t, messages.M2F_FRAMEWORK_REGISTERED)

	cpus, err := resources.Parse("cpus:4;mem:1024")
	require.NoError(t, err)
	require.NoError(t, rt.Send(masterAddr, slAddr, messages.S2M_REGISTER_SLAVE,
		&messages.RegisterSlave{Info: messages.SlaveInfo{Hostname: "h1", Resources: cpus}}))
	sl.await(t, messages.M2S_REGISTERED)

	// Drive one allocation round directly instead of waiting on the
	// periodic timer, keeping the test deterministic.
	require.NoError(t, rt.Send(masterAddr, masterAddr, actor.TimeoutMsg, master.MakeOffersTag))

	offerMsg := fw.await(t, messages.M2F_RESOURCE_OFFER)
	offer := offerMsg.Body.(*messages.ResourceOffer)
	require.True(t, offer.Resources.Contains(cpus))
}

func TestReplyToOfferLaunchesTaskAndStatusUpdateRecovers(t *testing.T) {
	rt, masterAddr, _ := newTestMaster(t)
	defer rt.Stop()

	fwAddr := actor.NewAddress("fw", "127.0.0.1:6100")
	fw := newRecorder()
	require.NoError(t, rt.Spawn(fwAddr, fw))
	slAddr := actor.NewAddress("slave", "127.0.0.1:6101")
	sl := newRecorder()
	require.NoError(t, rt.Spawn(slAddr, sl))

	require.NoError(t, rt.Send(masterAddr, fwAddr, messages.F2M_REGISTER_FRAMEWORK,
		&messages.RegisterFramework{Info: messages.FrameworkInfo{Name: "fw"}}))
	regMsg := fw.await(t, messages.M2F_FRAMEWORK_REGISTERED)
	fwID := regMsg.Body.(ids.FrameworkID)

	cpus, _ := resources.Parse("cpus:4;mem:1024")
	require.NoError(t, rt.Send(masterAddr, slAddr, messages.S2M_REGISTER_SLAVE,
		&messages.RegisterSlave{Info: messages.SlaveInfo{Hostname: "h1", Resources: cpus}}))
	sl.await(t, messages.M2S_REGISTERED)

	require.NoError(t, rt.Send(masterAddr, masterAddr, actor.TimeoutMsg, master.MakeOffersTag))
	offerMsg := fw.await(t, messages.M2F_RESOURCE_OFFER)
	offerBody := offerMsg.Body.(*messages.ResourceOffer)

	taskRes, _ := resources.Parse("cpus:1;mem:128")
	require.NoError(t, rt.Send(masterAddr, fwAddr, messages.F2M_REPLY_TO_OFFER, &messages.ReplyToOffer{
		OfferID: offerBody.OfferID,
		Tasks: []messages.TaskInfo{{
			TaskID: "task-1", Name: "t1", SlaveID: offerBody.SlaveID, Resources: taskRes, Command: "/bin/true",
		}},
	}))
	runMsg := sl.await(t, messages.M2S_RUN_TASK)
	run := runMsg.Body.(*messages.RunTask)
	require.Equal(t, ids.TaskID("task-1"), run.Task.TaskID)
	require.Equal(t, fwID, run.FrameworkID)

	require.NoError(t, rt.Send(masterAddr, slAddr, messages.S2M_STATUS_UPDATE, &messages.TaskStatus{
		TaskID: "task-1", FrameworkID: fwID, SlaveID: offerBody.SlaveID, State: messages.TaskFinished,
	}))
	statusMsg := fw.await(t, messages.M2F_STATUS_UPDATE)
	status := statusMsg.Body.(*messages.TaskStatus)
	require.Equal(t, messages.TaskFinished, status.State)
	sl.await(t, messages.M2S_STATUS_UPDATE_ACK)
}

func TestKillTaskForwardsToSlave(t *testing.T) {
	rt, masterAddr, _ := newTestMaster(t)
	defer rt.Stop()

	fwAddr := actor.NewAddress("fw", "127.0.0.1:6200")
	fw := newRecorder()
	require.NoError(t, rt.Spawn(fwAddr, fw))
	slAddr := actor.NewAddress("slave", "127.0.0.1:6201")
	sl := newRecorder()
	require.NoError(t, rt.Spawn(slAddr, sl))

	require.NoError(t, rt.Send(masterAddr, fwAddr, messages.F2M_REGISTER_FRAMEWORK,
		&messages.RegisterFramework{Info: messages.FrameworkInfo{Name: "fw"}}))
	regMsg := fw.await(t, messages.M2F_FRAMEWORK_REGISTERED)
	fwID := regMsg.Body.(ids.FrameworkID)

	cpus, _ := resources.Parse("cpus:4;mem:1024")
	require.NoError(t, rt.Send(masterAddr, slAddr, messages.S2M_REGISTER_SLAVE,
		&messages.RegisterSlave{Info: messages.SlaveInfo{Hostname: "h1", Resources: cpus}}))
	slMsg := sl.await(t, messages.M2S_REGISTERED)
	slID := slMsg.Body.(ids.SlaveID)

	require.NoError(t, rt.Send(masterAddr, masterAddr, actor.TimeoutMsg, master.MakeOffersTag))
	offerMsg := fw.await(t, messages.M2F_RESOURCE_OFFER)
	offerBody := offerMsg.Body.(*messages.ResourceOffer)

	taskRes, _ := resources.Parse("cpus:1;mem:128")
	require.NoError(t, rt.Send(masterAddr, fwAddr, messages.F2M_REPLY_TO_OFFER, &messages.ReplyToOffer{
		OfferID: offerBody.OfferID,
		Tasks: []messages.TaskInfo{{
			TaskID: "task-1", Name: "t1", SlaveID: slID, Resources: taskRes,
		}},
	}))
	sl.await(t, messages.M2S_RUN_TASK)

	require.NoError(t, rt.Send(masterAddr, fwAddr, messages.F2M_KILL_TASK, &messages.KillTask{
		FrameworkID: fwID, TaskID: "task-1",
	}))
	killMsg := sl.await(t, messages.M2S_KILL_TASK)
	kill := killMsg.Body.(*messages.KillTask)
	require.Equal(t, ids.TaskID("task-1"), kill.TaskID)
}

func TestSlaveExitMarksTasksLost(t *testing.T) {
	rt, masterAddr, _ := newTestMaster(t)
	defer rt.Stop()

	fwAddr := actor.NewAddress("fw", "127.0.0.1:6300")
	fw := newRecorder()
	require.NoError(t, rt.Spawn(fwAddr, fw))
	slAddr := actor.NewAddress("slave", "127.0.0.1:6301")
	sl := newRecorder()
	require.NoError(t, rt.Spawn(slAddr, sl))

	require.NoError(t, rt.Send(masterAddr, fwAddr, messages.F2M_REGISTER_FRAMEWORK,
		&messages.RegisterFramework{Info: messages.FrameworkInfo{Name: "fw"}}))
	regMsg := fw.await(t, messages.M2F_FRAMEWORK_REGISTERED)
	fwID := regMsg.Body.(ids.FrameworkID)

	cpus, _ := resources.Parse("cpus:4;mem:1024")
	require.NoError(t, rt.Send(masterAddr, slAddr, messages.S2M_REGISTER_SLAVE,
		&messages.RegisterSlave{Info: messages.SlaveInfo{Hostname: "h1", Resources: cpus}}))
	slMsg := sl.await(t, messages.M2S_REGISTERED)
	slID := slMsg.Body.(ids.SlaveID)

	require.NoError(t, rt.Send(masterAddr, masterAddr, actor.TimeoutMsg, master.MakeOffersTag))
	offerMsg := fw.await(t, messages.M2F_RESOURCE_OFFER)
	offerBody := offerMsg.Body.(*messages.ResourceOffer)

	taskRes, _ := resources.Parse("cpus:1;mem:128")
	require.NoError(t, rt.Send(masterAddr, fwAddr, messages.F2M_REPLY_TO_OFFER, &messages.ReplyToOffer{
		OfferID: offerBody.OfferID,
		Tasks: []messages.TaskInfo{{
			TaskID: "task-1", Name: "t1", SlaveID: slID, Resources: taskRes,
		}},
	}))
	sl.await(t, messages.M2S_RUN_TASK)

	rt.Terminate(slAddr)

	statusMsg := fw.await(t, messages.M2F_STATUS_UPDATE)
	status := statusMsg.Body.(*messages.TaskStatus)
	require.Equal(t, messages.TaskLost, status.State)
	require.Equal(t, fwID, status.FrameworkID)
}
