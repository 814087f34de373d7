// Package slave implements the per-host executor supervisor (spec §4.4):
// the actor a master registers and sends tasks to, which in turn launches
// and monitors executor processes through a pluggable Isolation.
//
// Grounded on the teacher's executor/worker.TaskRunner (goroutine-per-task
// launch, sync.Map-style registry, panic-safe completion notification) and
// servermaster/server.go's single-actor-owns-all-state shape, reused here
// for the slave side of the protocol.
package slave

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/AHINK/mesos/internal/errors"
	"github.com/AHINK/mesos/pkg/actor"
	"github.com/AHINK/mesos/pkg/ids"
	"github.com/AHINK/mesos/pkg/messages"
	"github.com/AHINK/mesos/pkg/resources"
)

// tickInterval is the slave's 1Hz TIMEOUT (spec §4.4 "Periodic TIMEOUT (1
// Hz)").
const tickInterval = time.Second

// TickTag is the self-addressed TIMEOUT payload driving the retry sweep;
// exported so tests can trigger a sweep deterministically.
const TickTag = "slave_tick"

// statusRetryInterval is how long the slave waits before resending an
// unacknowledged status update (spec §4.4, §5: "status-update retry (10s
// default)").
const statusRetryInterval = 10 * time.Second

// NewMasterDetectedTag and NoMasterDetectedTag drive the slave's
// master-connectivity bootstrap (spec §4.4); a host process sends these to
// its own slave actor as master connectivity changes.
const (
	NewMasterDetectedTag = "new_master_detected"
	NoMasterDetectedTag  = "no_master_detected"
)

// taskExitedTag is the message a reaper goroutine sends back to the slave
// once a launched executor process exits (spec §5: "blocking OS calls must
// be performed inside helper subactors"); grounded on the teacher's
// TaskRunner launching a goroutine per task and notifying completion back
// through a channel rather than blocking the caller.
const taskExitedTag = "task_exited"

type taskExited struct {
	frameworkID ids.FrameworkID
	executorID  ids.ExecutorID
	status      ExitStatus
	err         error
}

// Slave is the spec §4.4 actor.
type Slave struct {
	rt         *actor.Runtime
	iso        Isolation
	workDir    string
	switchUser bool
	metrics    *Metrics
	st         *state

	cancelTmr func()
}

// New creates a Slave actor advertising info.Resources as its full
// resource pool. Spawn it under an address, then send it
// NewMasterDetectedTag to begin registration once a master address is
// known. switchUser mirrors the --switch_user CLI flag (spec §6) into
// every executor's MESOS_SWITCH_USER environment variable.
func New(rt *actor.Runtime, iso Isolation, info messages.SlaveInfo, workDir string, switchUser bool) *Slave {
	return &Slave{
		rt:         rt,
		iso:        iso,
		workDir:    workDir,
		switchUser: switchUser,
		metrics:    NewMetrics(),
		st:         newState("", info),
	}
}

var _ actor.Actor = (*Slave)(nil)

// Metrics returns the Slave's metric set, for wiring into Mount.
func (s *Slave) Metrics() *Metrics { return s.metrics }

func (s *Slave) Receive(ctx *actor.Context, msg actor.Message) error {
	switch msg.Name {
	case NewMasterDetectedTag:
		return s.newMasterDetected(ctx, msg.Body.(actor.Address))
	case NoMasterDetectedTag:
		s.st.connected = false
		return nil
	case actor.TimeoutMsg:
		if tag, ok := msg.Body.(string); ok && tag == TickTag {
			s.tick(ctx)
		}
		return nil
	case actor.ExitedMsg:
		return s.exited(ctx, msg.Body.(actor.Address))
	case taskExitedTag:
		return s.taskExited(ctx, msg.Body.(*taskExited))

	case messages.M2S_REGISTERED:
		return s.registered(ctx, msg.Body.(ids.SlaveID))
	case messages.M2S_RUN_TASK:
		return s.runTask(ctx, msg)
	case messages.M2S_KILL_TASK:
		return s.killTask(ctx, msg)
	case messages.M2S_STATUS_UPDATE_ACK:
		return s.statusUpdateAck(msg)

	case messages.E2S_REGISTER_EXECUTOR:
		return s.registerExecutor(ctx, msg)
	case messages.E2S_STATUS_UPDATE:
		return s.executorStatusUpdate(ctx, msg)
	case messages.E2S_EXECUTOR_MESSAGE:
		return s.executorMessage(ctx, msg)
	case messages.S2E_EXECUTOR_MESSAGE:
		return s.forwardToExecutor(ctx, msg)

	default:
		log.Warn("slave received unknown message", zap.String("name", msg.Name), zap.String("from", string(msg.From)))
		return nil
	}
}

// newMasterDetected links to addr and (re)registers (spec §4.4).
func (s *Slave) newMasterDetected(ctx *actor.Context, addr actor.Address) error {
	s.st.masterAddr = addr
	s.st.connected = true
	ctx.Link(addr)

	if s.cancelTmr == nil {
		s.cancelTmr = ctx.After(tickInterval, actor.TimeoutMsg, TickTag)
	}

	if s.st.id == "" {
		return ctx.Send(addr, messages.S2M_REGISTER_SLAVE, &messages.RegisterSlave{Info: s.st.info})
	}
	var running []messages.TaskInfo
	for _, fw := range s.st.frameworks {
		for _, ex := range fw.executors {
			for _, t := range ex.tasks {
				if !t.state.IsTerminal() {
					running = append(running, t.info)
				}
			}
		}
	}
	return ctx.Send(addr, messages.S2M_REREGISTER_SLAVE, &messages.ReregisterSlave{
		SlaveID: s.st.id, Info: s.st.info, RunningTasks: running,
	})
}

func (s *Slave) registered(_ *actor.Context, id ids.SlaveID) error {
	s.st.id = id
	return nil
}

// runTask selects the task's executor, launching it if it has never run on
// this slave, queueing the task until the executor registers, or forwarding
// directly if it is already live (spec §4.4 run_task).
func (s *Slave) runTask(ctx *actor.Context, msg actor.Message) error {
	req, ok := msg.Body.(*messages.RunTask)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("run_task body")
	}
	fw := s.st.framework(req.FrameworkID)
	fw.info = req.FrameworkInfo
	ex, ok := executorFor(fw, req.FrameworkInfo, req.Task)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("task has no resolvable executor")
	}

	ex.tasks[req.Task.TaskID] = &task{info: req.Task, state: messages.TaskStaging}
	ex.resources = resources.Add(ex.resources, req.Task.Resources)
	s.st.used = resources.Add(s.st.used, req.Task.Resources)
	s.metrics.TasksRunning.Inc()
	if err := s.iso.ResourcesChanged(context.Background(), fw.id, ex.id, ex.resources); err != nil {
		log.Warn("isolation failed to apply resource change", zap.String("executor", string(ex.id)), zap.Error(err))
	}

	if ex.registered {
		return ctx.Send(ex.addr, messages.S2E_RUN_TASK, req)
	}
	ex.queuedTasks = append(ex.queuedTasks, req.Task)
	if ex.proc != nil {
		// Executor already launched, just not yet registered: queued above.
		return nil
	}
	return s.launchExecutor(ctx, fw, ex)
}

// launchExecutor asks the isolation module to start ex's process, in a
// fresh work directory "<workDir>/slave-<sid>/fw-<fid>-<eid>/<n>" with n the
// smallest non-existing integer suffix (spec §4.4 run_task).
func (s *Slave) launchExecutor(ctx *actor.Context, fw *framework, ex *executor) error {
	base := fmt.Sprintf("%s/slave-%s/fw-%s-%s", s.workDir, s.st.id, fw.id, ex.id)
	n := 0
	for {
		if _, err := os.Stat(fmt.Sprintf("%s/%d", base, n)); err != nil {
			break
		}
		n++
	}
	ex.directory = fmt.Sprintf("%s/%d", base, n)
	ex.launches++
	if err := os.MkdirAll(ex.directory, 0o755); err != nil {
		log.Error("failed to create executor work directory", zap.String("executor", string(ex.id)), zap.Error(err))
		return s.executorExited(ctx, fw.id, ex.id, ExitStatus{Success: false}, err)
	}
	env := executorEnv(ex.info, fw.id, ex.directory, executorConfig{
		slaveID:        s.st.id,
		slaveAddr:      string(ctx.Self()),
		publicHostname: s.st.info.PublicHostname,
		workDir:        s.workDir,
		switchUser:     s.switchUser,
		user:           fw.info.User,
	})
	proc, err := s.iso.Launch(context.Background(), ex.info.Command, env, ex.directory)
	if err != nil {
		log.Error("failed to launch executor", zap.String("executor", string(ex.id)), zap.Error(err))
		return s.executorExited(ctx, fw.id, ex.id, ExitStatus{Success: false}, err)
	}
	ex.proc = proc
	s.metrics.ExecutorsRunning.Inc()
	self := ctx.Self()
	go func() {
		status, waitErr := proc.Wait()
		_ = s.rt.Send(self, self, taskExitedTag, &taskExited{frameworkID: fw.id, executorID: ex.id, status: status, err: waitErr})
	}()
	return nil
}

// registerExecutor adopts the executor's actor address as its mailbox on
// first registration, flushing any tasks queued while it was launching
// (spec §4.4 register_executor). A second registration for an
// already-registered executor is rejected with kill_executor.
func (s *Slave) registerExecutor(ctx *actor.Context, msg actor.Message) error {
	req, ok := msg.Body.(*messages.RegisterExecutor)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("register_executor body")
	}
	fw, ok := s.st.frameworks[req.FrameworkID]
	if !ok {
		return ctx.Send(msg.From, messages.S2E_KILL_EXECUTOR, &messages.KillExecutor{
			FrameworkID: req.FrameworkID, ExecutorID: req.ExecutorID, Reason: "framework unknown to this slave",
		})
	}
	ex, ok := fw.executors[req.ExecutorID]
	if !ok || ex.registered {
		return ctx.Send(msg.From, messages.S2E_KILL_EXECUTOR, &messages.KillExecutor{
			FrameworkID: req.FrameworkID, ExecutorID: req.ExecutorID, Reason: "executor not expected or already registered",
		})
	}
	ex.addr = msg.From
	ex.registered = true
	ctx.Link(msg.From)

	for _, ti := range ex.queuedTasks {
		if err := ctx.Send(ex.addr, messages.S2E_RUN_TASK, &messages.RunTask{
			FrameworkID: fw.id, FrameworkInfo: fw.info, Task: ti,
		}); err != nil {
			log.Warn("failed to flush queued task to executor", zap.Error(err))
		}
	}
	ex.queuedTasks = nil
	return nil
}

// killTask forwards to a live executor, or synthesises TASK_LOST
// immediately if the executor has not yet registered (spec §4.4 kill_task).
func (s *Slave) killTask(ctx *actor.Context, msg actor.Message) error {
	req, ok := msg.Body.(*messages.KillTask)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("kill_task body")
	}
	ex, t, ok := s.st.findTask(req.FrameworkID, req.TaskID)
	if !ok {
		return nil
	}
	if ex.registered {
		return ctx.Send(ex.addr, messages.S2E_KILL_TASK, req)
	}
	t.state = messages.TaskLost
	s.reportStatus(ctx, req.FrameworkID, messages.TaskStatus{
		TaskID: req.TaskID, FrameworkID: req.FrameworkID, SlaveID: s.st.id,
		State: messages.TaskLost, Message: "executor not yet registered", Timestamp: ctx.Now(),
	})
	return nil
}

// executorStatusUpdate records a task's new state reported by its
// executor, releases resources on terminal transition and enqueues the
// update for retried delivery to the master (spec §4.4 status_update).
func (s *Slave) executorStatusUpdate(ctx *actor.Context, msg actor.Message) error {
	su, ok := msg.Body.(*messages.TaskStatus)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("status_update body")
	}
	ex, t, ok := s.st.findTask(su.FrameworkID, su.TaskID)
	if !ok {
		s.st.invalidStatusUpdates++
		s.metrics.InvalidStatusUpdates.Inc()
		return errors.ErrTaskUnknown.GenWithStackByArgs(su.TaskID)
	}
	wasTerminal := t.state.IsTerminal()
	t.state = su.State
	if !wasTerminal && su.State.IsTerminal() {
		ex.resources, _ = resources.Subtract(ex.resources, t.info.Resources)
		s.st.used, _ = resources.Subtract(s.st.used, t.info.Resources)
		s.metrics.TasksRunning.Dec()
		if err := s.iso.ResourcesChanged(context.Background(), ex.frameworkID, ex.id, ex.resources); err != nil {
			log.Warn("isolation failed to apply resource change", zap.String("executor", string(ex.id)), zap.Error(err))
		}
	}
	s.metrics.ValidStatusUpdates.Inc()
	s.reportStatus(ctx, su.FrameworkID, *su)
	return nil
}

// reportStatus enqueues status for retried delivery and sends it once now.
func (s *Slave) reportStatus(ctx *actor.Context, frameworkID ids.FrameworkID, status messages.TaskStatus) {
	key := pendingKey{frameworkID: frameworkID, taskID: status.TaskID}
	s.st.pending[key] = &pendingStatus{status: status, deadline: ctx.Now().Add(statusRetryInterval)}
	if s.st.connected && s.st.masterAddr != "" {
		_ = ctx.Send(s.st.masterAddr, messages.S2M_STATUS_UPDATE, &status)
	}
}

// statusUpdateAck clears every pending retry entry for the acknowledged
// task (spec §4.4 status_update_ack).
func (s *Slave) statusUpdateAck(msg actor.Message) error {
	ack, ok := msg.Body.(*messages.StatusUpdateAck)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("status_update_ack body")
	}
	delete(s.st.pending, pendingKey{frameworkID: ack.FrameworkID, taskID: ack.TaskID})
	return nil
}

// tick is the 1Hz TIMEOUT: resend every status update past its deadline
// and reset it (spec §4.4).
func (s *Slave) tick(ctx *actor.Context) {
	now := ctx.Now()
	for key, p := range s.st.pending {
		if p.deadline.After(now) {
			continue
		}
		if s.st.connected && s.st.masterAddr != "" {
			_ = ctx.Send(s.st.masterAddr, messages.S2M_STATUS_UPDATE, &p.status)
		}
		p.deadline = now.Add(statusRetryInterval)
		s.st.pending[key] = p
	}
	s.cancelTmr = ctx.After(tickInterval, actor.TimeoutMsg, TickTag)
}

// executorMessage forwards an opaque executor->framework payload up to the
// master (spec §4.4 executor_message), counting it valid only if the
// executor is one this slave actually knows about.
func (s *Slave) executorMessage(ctx *actor.Context, msg actor.Message) error {
	op, ok := msg.Body.(*messages.OpaqueMessage)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("executor_message body")
	}
	fw, ok := s.st.frameworks[op.FrameworkID]
	if !ok {
		s.st.invalidFrameworkMessages++
		s.metrics.InvalidFrameworkMessages.Inc()
		return nil
	}
	if _, ok := fw.executors[op.ExecutorID]; !ok {
		s.st.invalidFrameworkMessages++
		s.metrics.InvalidFrameworkMessages.Inc()
		return nil
	}
	s.metrics.ValidFrameworkMessages.Inc()
	if !s.st.connected || s.st.masterAddr == "" {
		return nil
	}
	return ctx.Send(s.st.masterAddr, messages.S2M_FRAMEWORK_MESSAGE, op)
}

// forwardToExecutor relays a scheduler->executor payload the master routed
// here on to the live executor (spec §4.4 scheduler_message: forward).
func (s *Slave) forwardToExecutor(ctx *actor.Context, msg actor.Message) error {
	op, ok := msg.Body.(*messages.OpaqueMessage)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("scheduler_message body")
	}
	fw, ok := s.st.frameworks[op.FrameworkID]
	if !ok {
		s.st.invalidFrameworkMessages++
		s.metrics.InvalidFrameworkMessages.Inc()
		return nil
	}
	ex, ok := fw.executors[op.ExecutorID]
	if !ok || !ex.registered {
		s.st.invalidFrameworkMessages++
		s.metrics.InvalidFrameworkMessages.Inc()
		return nil
	}
	s.metrics.ValidFrameworkMessages.Inc()
	return ctx.Send(ex.addr, messages.S2E_EXECUTOR_MESSAGE, op)
}

// taskExited handles a reaper goroutine's report that an executor process
// exited (spec §4.4 exited(addr) for an executor: "the executor reaper
// subactor... dispatches executor_exited"): marks every non-terminal task
// of that executor TASK_LOST and reports it, releases the executor's
// resources, and removes the executor entity (and the framework entry once
// it has no executors left). The isolation module is not called.
func (s *Slave) taskExited(ctx *actor.Context, te *taskExited) error {
	return s.executorExited(ctx, te.frameworkID, te.executorID, te.status, te.err)
}

func (s *Slave) executorExited(ctx *actor.Context, frameworkID ids.FrameworkID, executorID ids.ExecutorID, status ExitStatus, waitErr error) error {
	fw, ok := s.st.frameworks[frameworkID]
	if !ok {
		return nil
	}
	ex, ok := fw.executors[executorID]
	if !ok {
		return nil
	}

	reason := "executor exited"
	if waitErr != nil {
		reason = waitErr.Error()
	} else if !status.Success {
		reason = fmt.Sprintf("executor exited with code %d", status.ExitCode)
	}
	for _, t := range ex.tasks {
		if t.state.IsTerminal() {
			continue
		}
		t.state = messages.TaskLost
		s.metrics.TasksRunning.Dec()
		s.reportStatus(ctx, frameworkID, messages.TaskStatus{
			TaskID: t.info.TaskID, FrameworkID: frameworkID, SlaveID: s.st.id,
			State: messages.TaskLost, Message: reason, Timestamp: ctx.Now(),
		})
	}
	s.st.used, _ = resources.Subtract(s.st.used, ex.resources)
	s.metrics.ExecutorsRunning.Dec()
	delete(fw.executors, executorID)
	if len(fw.executors) == 0 {
		delete(s.st.frameworks, frameworkID)
	}
	return nil
}

// exited handles EXITED for either the master (lost connectivity: enter
// disconnected state, keep monitoring executors, buffer updates) or a
// registered executor actor (treated the same as its process exiting, in
// case the transport severed before the reaper's process.Wait() returned).
func (s *Slave) exited(ctx *actor.Context, addr actor.Address) error {
	if addr == s.st.masterAddr {
		s.st.connected = false
		return nil
	}
	for fid, fw := range s.st.frameworks {
		for eid, ex := range fw.executors {
			if ex.addr == addr {
				return s.executorExited(ctx, fid, eid, ExitStatus{}, errors.ErrActorNotFound.GenWithStackByArgs(string(addr)))
			}
		}
	}
	return nil
}
