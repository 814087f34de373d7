package slave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AHINK/mesos/pkg/actor"
	"github.com/AHINK/mesos/pkg/ids"
	"github.com/AHINK/mesos/pkg/messages"
	"github.com/AHINK/mesos/pkg/resources"
	"github.com/AHINK/mesos/slave"
)

// recorder stashes every message it receives on a channel, standing in for
// a master or an executor process in these tests.
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

// fakeProcess is a controllable Process for tests: Wait blocks until done
// is closed, letting a test decide exactly when the executor "exits".
type fakeProcess struct {
	done   chan struct{}
	status slave.ExitStatus
}

func newFakeProcess() *fakeProcess { return &fakeProcess{done: make(chan struct{})} }

func (p *fakeProcess) Wait() (slave.ExitStatus, error) {
	<-p.done
	return p.status, nil
}

func (p *fakeProcess) Kill() error {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	return nil
}

// fakeIsolation never actually execs anything: Launch just hands back a
// fakeProcess the test controls directly.
type fakeIsolation struct {
	launched chan *fakeProcess
}

func newFakeIsolation() *fakeIsolation { return &fakeIsolation{launched: make(chan *fakeProcess, 16)} }

func (f *fakeIsolation) Launch(_ context.Context, _ string, _ map[string]string, _ string) (slave.Process, error) {
	p := newFakeProcess()
	f.launched <- p
	return p, nil
}

func (f *fakeIsolation) ResourcesChanged(_ context.Context, _ ids.FrameworkID, _ ids.ExecutorID, _ resources.Resources) error {
	return nil
}

func newTestSlave(t *testing.T, total resources.Resources) (*actor.Runtime, actor.Address, *fakeIsolation) {
	t.Helper()
	rt := actor.NewRuntime(actor.WithWorkers(4))
	iso := newFakeIsolation()
	sl := slave.New(rt, iso, messages.SlaveInfo{Hostname: "h1", Resources: total}, t.TempDir(), false)
	addr := actor.NewAddress("slave", "127.0.0.1:7000")
	require.NoError(t, rt.Spawn(addr, sl))
	return rt, addr, iso
}

func TestRunTaskLaunchesExecutorAndFlushesOnRegister(t *testing.T) {
	total, _ := resources.Parse("cpus:4;mem:1024")
	rt, slAddr, iso := newTestSlave(t, total)
	defer rt.Stop()

	masterAddr := actor.NewAddress("master", "127.0.0.1:7001")
	master := newRecorder()
	require.NoError(t, rt.Spawn(masterAddr, master))
	require.NoError(t, rt.Send(slAddr, slAddr, slave.NewMasterDetectedTag, masterAddr))

	exAddr := actor.NewAddress("executor", "127.0.0.1:7002")
	executor := newRecorder()
	require.NoError(t, rt.Spawn(exAddr, executor))

	taskRes, _ := resources.Parse("cpus:1;mem:128")
	require.NoError(t, rt.Send(slAddr, masterAddr, messages.M2S_RUN_TASK, &messages.RunTask{
		FrameworkID: "fw-1",
		FrameworkInfo: messages.FrameworkInfo{
			Name:         "fw",
			ExecutorInfo: messages.ExecutorInfo{ExecutorID: "ex-1", Command: "noop"},
		},
		Task: messages.TaskInfo{TaskID: "task-1", Name: "t1", Resources: taskRes},
	}))

	select {
	case <-iso.launched:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for executor launch")
	}

	require.NoError(t, rt.Send(slAddr, exAddr, messages.E2S_REGISTER_EXECUTOR, &messages.RegisterExecutor{
		FrameworkID: "fw-1", ExecutorID: "ex-1",
	}))

	runMsg := executor.await(t, messages.S2E_RUN_TASK)
	run := runMsg.Body.(*messages.RunTask)
	require.Equal(t, ids.TaskID("task-1"), run.Task.TaskID)
}

func TestKillTaskBeforeRegistrationSynthesizesLost(t *testing.T) {
	total, _ := resources.Parse("cpus:4;mem:1024")
	rt, slAddr, _ := newTestSlave(t, total)
	defer rt.Stop()

	masterAddr := actor.NewAddress("master", "127.0.0.1:7011")
	master := newRecorder()
	require.NoError(t, rt.Spawn(masterAddr, master))
	require.NoError(t, rt.Send(slAddr, slAddr, slave.NewMasterDetectedTag, masterAddr))
	master.await(t, messages.S2M_REGISTER_SLAVE)

	taskRes, _ := resources.Parse("cpus:1;mem:128")
	require.NoError(t, rt.Send(slAddr, masterAddr, messages.M2S_RUN_TASK, &messages.RunTask{
		FrameworkID: "fw-1",
		FrameworkInfo: messages.FrameworkInfo{
			Name:         "fw",
			ExecutorInfo: messages.ExecutorInfo{ExecutorID: "ex-1", Command: "noop"},
		},
		Task: messages.TaskInfo{TaskID: "task-1", Name: "t1", Resources: taskRes},
	}))

	require.NoError(t, rt.Send(slAddr, masterAddr, messages.M2S_KILL_TASK, &messages.KillTask{
		FrameworkID: "fw-1", TaskID: "task-1",
	}))

	statusMsg := master.await(t, messages.S2M_STATUS_UPDATE)
	status := statusMsg.Body.(*messages.TaskStatus)
	require.Equal(t, messages.TaskLost, status.State)
}

func TestStatusUpdateForwardedToMaster(t *testing.T) {
	total, _ := resources.Parse("cpus:4;mem:1024")
	rt, slAddr, iso := newTestSlave(t, total)
	defer rt.Stop()

	masterAddr := actor.NewAddress("master", "127.0.0.1:7021")
	master := newRecorder()
	require.NoError(t, rt.Spawn(masterAddr, master))
	require.NoError(t, rt.Send(slAddr, slAddr, slave.NewMasterDetectedTag, masterAddr))
	master.await(t, messages.S2M_REGISTER_SLAVE)

	exAddr := actor.NewAddress("executor", "127.0.0.1:7022")
	executor := newRecorder()
	require.NoError(t, rt.Spawn(exAddr, executor))

	taskRes, _ := resources.Parse("cpus:1;mem:128")
	require.NoError(t, rt.Send(slAddr, masterAddr, messages.M2S_RUN_TASK, &messages.RunTask{
		FrameworkID: "fw-1",
		FrameworkInfo: messages.FrameworkInfo{
			Name:         "fw",
			ExecutorInfo: messages.ExecutorInfo{ExecutorID: "ex-1", Command: "noop"},
		},
		Task: messages.TaskInfo{TaskID: "task-1", Name: "t1", Resources: taskRes},
	}))
	<-iso.launched
	require.NoError(t, rt.Send(slAddr, exAddr, messages.E2S_REGISTER_EXECUTOR, &messages.RegisterExecutor{
		FrameworkID: "fw-1", ExecutorID: "ex-1",
	}))
	executor.await(t, messages.S2E_RUN_TASK)

	require.NoError(t, rt.Send(slAddr, exAddr, messages.E2S_STATUS_UPDATE, &messages.TaskStatus{
		TaskID: "task-1", FrameworkID: "fw-1", State: messages.TaskRunning,
	}))
	master.await(t, messages.S2M_STATUS_UPDATE)

	// Drive a retry sweep directly: since the deadline hasn't passed, the
	// pending entry won't resend yet.
	require.NoError(t, rt.Send(slAddr, slAddr, actor.TimeoutMsg, slave.TickTag))

	require.NoError(t, rt.Send(slAddr, masterAddr, messages.M2S_STATUS_UPDATE_ACK, &messages.StatusUpdateAck{
		FrameworkID: "fw-1", TaskID: "task-1",
	}))
}

func TestExecutorProcessExitMarksRunningTasksLost(t *testing.T) {
	total, _ := resources.Parse("cpus:4;mem:1024")
	rt, slAddr, iso := newTestSlave(t, total)
	defer rt.Stop()

	masterAddr := actor.NewAddress("master", "127.0.0.1:7031")
	master := newRecorder()
	require.NoError(t, rt.Spawn(masterAddr, master))
	require.NoError(t, rt.Send(slAddr, slAddr, slave.NewMasterDetectedTag, masterAddr))
	master.await(t, messages.S2M_REGISTER_SLAVE)

	exAddr := actor.NewAddress("executor", "127.0.0.1:7032")
	executor := newRecorder()
	require.NoError(t, rt.Spawn(exAddr, executor))

	taskRes, _ := resources.Parse("cpus:1;mem:128")
	require.NoError(t, rt.Send(slAddr, masterAddr, messages.M2S_RUN_TASK, &messages.RunTask{
		FrameworkID: "fw-1",
		FrameworkInfo: messages.FrameworkInfo{
			Name:         "fw",
			ExecutorInfo: messages.ExecutorInfo{ExecutorID: "ex-1", Command: "noop"},
		},
		Task: messages.TaskInfo{TaskID: "task-1", Name: "t1", Resources: taskRes},
	}))
	proc := <-iso.launched
	require.NoError(t, rt.Send(slAddr, exAddr, messages.E2S_REGISTER_EXECUTOR, &messages.RegisterExecutor{
		FrameworkID: "fw-1", ExecutorID: "ex-1",
	}))
	executor.await(t, messages.S2E_RUN_TASK)

	proc.status = slave.ExitStatus{Success: false, ExitCode: 1}
	proc.Kill() // closes proc.done, unblocking the reaper goroutine's Wait()

	statusMsg := master.await(t, messages.S2M_STATUS_UPDATE)
	status := statusMsg.Body.(*messages.TaskStatus)
	require.Equal(t, messages.TaskLost, status.State)
}
