// Package master implements the resource accountant and offer dispatcher
// (spec §4.2): the single actor a framework scheduler registers with and a
// slave reports to, owning the authoritative Framework/Slave/Task/Offer
// state and driving a pluggable Allocator.
//
// Grounded on the teacher's servermaster/server.go (one long-lived actor
// holding cluster state, driven by typed RPC-ish handlers) and
// servermaster/resource/manager.go (resource accounting around a
// reservation lifecycle), generalized from "job scheduling" to the spec's
// offer/accept/reject protocol.
package master

import (
	"fmt"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/AHINK/mesos/allocator"
	"github.com/AHINK/mesos/internal/errors"
	"github.com/AHINK/mesos/pkg/actor"
	"github.com/AHINK/mesos/pkg/ids"
	"github.com/AHINK/mesos/pkg/messages"
	"github.com/AHINK/mesos/pkg/resources"
)

// offerInterval is how often Master asks its Allocator for a fresh batch
// of offers (spec §4.2 "allocation round"); the default allocator's
// filters and the slave's own free-resource bookkeeping are what actually
// bound how aggressively this can run.
const offerInterval = time.Second

// MakeOffersTag is the self-addressed TIMEOUT payload that drives the
// periodic allocation round; exported so tests can trigger an allocation
// round deterministically instead of waiting on the real timer.
const MakeOffersTag = "make_offers"

// StartTag is sent by a host process to its own Master actor once, right
// after Spawn, to arm the periodic allocation round (spec §4.2). Kept as
// an explicit message rather than starting the timer in New so that tests
// spawning a Master can opt out of the real clock entirely.
const StartTag = "start"

// Error codes carried on the one-way M2F_ERROR channel (spec §7).
const (
	errCodeUnknownFramework = 1
	errCodeTaskRejected     = 2
)

// Master is the spec §4.2 actor. It owns every Framework/Slave/Task/Offer
// entity and is the only thing allowed to mutate them; everyone else only
// holds IDs and sends it messages.
type Master struct {
	gen       *ids.Generator
	alloc     allocator.Allocator
	st        *state
	metrics   *Metrics
	cancelTmr func()
}

// New creates a Master actor around the given id Generator and Allocator.
// Spawn it under an address before it can receive anything.
func New(gen *ids.Generator, alloc allocator.Allocator) *Master {
	return &Master{
		gen:     gen,
		alloc:   alloc,
		st:      newState(),
		metrics: NewMetrics(),
	}
}

var _ actor.Actor = (*Master)(nil)

// Metrics returns the Master's metric set, for wiring into Mount.
func (m *Master) Metrics() *Metrics { return m.metrics }

// Receive dispatches one inbound message per spec §4.2's numbered
// operation list. It never blocks: every handler below runs to completion
// synchronously on the actor's single turn (spec §5).
func (m *Master) Receive(ctx *actor.Context, msg actor.Message) error {
	switch msg.Name {
	case StartTag:
		m.StartOfferTimer(ctx)
		return nil
	case actor.TimeoutMsg:
		if tag, ok := msg.Body.(string); ok {
			if tag == MakeOffersTag {
				m.makeOffers(ctx)
				return nil
			}
			if id, isFailover := parseFailoverTimeoutTag(tag); isFailover {
				m.failoverExpired(ctx, id)
				return nil
			}
		}
		return nil
	case actor.ExitedMsg:
		return m.exited(ctx, msg)

	case messages.F2M_REGISTER_FRAMEWORK:
		return m.registerFramework(ctx, msg)
	case messages.F2M_REREGISTER_FRAMEWORK:
		return m.reregisterFramework(ctx, msg)
	case messages.F2M_UNREGISTER_FRAMEWORK:
		return m.unregisterFramework(ctx, msg)
	case messages.F2M_RESOURCE_REQUEST:
		return m.resourceRequest(ctx, msg)
	case messages.F2M_REPLY_TO_OFFER:
		return m.replyToOffer(ctx, msg)
	case messages.F2M_KILL_TASK:
		return m.killTask(ctx, msg)
	case messages.F2M_FRAMEWORK_MESSAGE:
		return m.frameworkMessage(ctx, msg)

	case messages.S2M_REGISTER_SLAVE:
		return m.registerSlave(ctx, msg)
	case messages.S2M_REREGISTER_SLAVE:
		return m.reregisterSlave(ctx, msg)
	case messages.S2M_STATUS_UPDATE:
		return m.statusUpdate(ctx, msg)
	case messages.S2M_FRAMEWORK_MESSAGE:
		return m.slaveFrameworkMessage(ctx, msg)

	default:
		log.Warn("master received unknown message", zap.String("name", msg.Name), zap.String("from", string(msg.From)))
		return nil
	}
}

// StartOfferTimer arms the periodic allocation round. Called once after
// Spawn, kept out of Receive's first turn so tests can spawn a Master and
// drive it without an offer round firing underneath them unless they ask.
func (m *Master) StartOfferTimer(ctx *actor.Context) {
	m.cancelTmr = ctx.After(offerInterval, actor.TimeoutMsg, MakeOffersTag)
}

func (m *Master) registerFramework(ctx *actor.Context, msg actor.Message) error {
	req, ok := msg.Body.(*messages.RegisterFramework)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("register_framework body")
	}
	id := m.gen.NextFrameworkID()
	fw := &framework{
		id:           id,
		info:         req.Info,
		addr:         msg.From,
		registeredAt: ctx.Now(),
		active:       true,
	}
	m.st.frameworks[id] = fw
	m.st.frameworkByAddr[msg.From] = id
	ctx.Link(msg.From)

	m.alloc.FrameworkAdded(allocator.FrameworkSummary{
		ID: id, Active: true, RegisteredAt: fw.registeredAt, Allocated: resources.New(),
	})
	m.metrics.FrameworksRegistered.Inc()

	log.Info("framework registered", zap.String("framework_id", string(id)), zap.String("name", req.Info.Name))
	return ctx.Send(msg.From, messages.M2F_FRAMEWORK_REGISTERED, id)
}

func (m *Master) reregisterFramework(ctx *actor.Context, msg actor.Message) error {
	req, ok := msg.Body.(*messages.ReregisterFramework)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("reregister_framework body")
	}
	fw, ok := m.st.frameworks[req.FrameworkID]
	if !ok {
		if !req.Failover {
			// spec §4.2 step 2: re-registering with an unknown id and
			// failover=false is a fatal protocol error, not an implicit
			// fresh registration.
			log.Warn("reregister_framework for unknown framework without failover, rejecting",
				zap.String("framework_id", string(req.FrameworkID)))
			return ctx.Send(msg.From, messages.M2F_ERROR, &messages.ErrorMessage{
				Code:    errCodeUnknownFramework,
				Message: fmt.Sprintf("unknown framework %s", req.FrameworkID),
			})
		}
		// Unknown framework re-registering with failover=true is treated
		// like a fresh registration (spec §4.2 step 2): failover may
		// outlive the grace period on the master's side.
		return m.registerFramework(ctx, actor.Message{
			Name: messages.F2M_REGISTER_FRAMEWORK, From: msg.From,
			Body: &messages.RegisterFramework{Info: req.Info},
		})
	}
	if fw.cancelFailover != nil {
		fw.cancelFailover()
		fw.cancelFailover = nil
	}
	delete(m.st.frameworkByAddr, fw.addr)
	fw.addr = msg.From
	fw.info = req.Info
	fw.active = true
	m.st.frameworkByAddr[msg.From] = fw.id
	ctx.Link(msg.From)

	m.alloc.FrameworkAdded(allocator.FrameworkSummary{
		ID: fw.id, Active: true, RegisteredAt: fw.registeredAt,
		Allocated: m.st.allocatedByFramework(fw.id),
	})
	log.Info("framework re-registered", zap.String("framework_id", string(fw.id)))
	return ctx.Send(msg.From, messages.M2F_FRAMEWORK_REGISTERED, fw.id)
}

// unregisterFramework deactivates fw and arms the same deferred-removal
// grace period a disconnect does (spec §3: "running tasks continue" while
// a framework is inactive; §4.2 step 3 "marks inactive... schedules
// deletion after the configured failover-timeout"). The entity and its
// tasks are only torn down for good once the timer fires in
// failoverExpired, never synchronously here.
func (m *Master) unregisterFramework(ctx *actor.Context, msg actor.Message) error {
	id, ok := msg.Body.(ids.FrameworkID)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("unregister_framework body")
	}
	fw, ok := m.st.frameworks[id]
	if !ok {
		return nil
	}
	m.deactivateFramework(ctx, fw)
	return nil
}

// deactivateFramework marks fw inactive, rescinds its outstanding offers,
// and arms the failover-grace-period timer that tears everything down for
// good (removeFramework, via failoverExpired) if it elapses before the
// framework re-registers. Shared by the voluntary unregister path and the
// involuntary disconnect path in exited, which give unregister and
// disconnect the same deferred-removal shape (spec §3, §4.2 steps 3, 11).
func (m *Master) deactivateFramework(ctx *actor.Context, fw *framework) {
	if !fw.active {
		return
	}
	fw.active = false
	for offerID, o := range m.st.offers {
		if o.frameworkID == fw.id {
			m.recoverOffer(offerID, ctx)
		}
	}
	m.alloc.FrameworkResourcesChanged(fw.id, m.st.allocatedByFramework(fw.id))
	timeout := fw.info.FailoverTimeout
	if timeout <= 0 {
		timeout = defaultFailoverTimeout
	}
	id := fw.id
	fw.cancelFailover = ctx.After(timeout, actor.TimeoutMsg, failoverTimeoutTag(id))
	log.Info("framework deactivated, starting failover grace period",
		zap.String("framework_id", string(id)), zap.Duration("timeout", timeout))
}

// removeFramework tears down everything a framework owned: its outstanding
// offers are rescinded, its active tasks are killed at the slave, and the
// allocator forgets it (spec §4.2 step 3, step 11). Called only once the
// failover grace period elapses (failoverExpired) — never directly from
// unregister or disconnect, which only deactivate.
func (m *Master) removeFramework(ctx *actor.Context, id ids.FrameworkID) {
	fw, ok := m.st.frameworks[id]
	if !ok {
		return
	}
	for offerID, o := range m.st.offers {
		if o.frameworkID == id {
			m.recoverOffer(offerID, nil)
		}
	}
	for _, t := range m.st.tasks {
		if t.frameworkID == id && !t.state.IsTerminal() {
			if sl, ok := m.st.slaves[t.slaveID]; ok {
				_ = ctx.Send(sl.addr, messages.M2S_KILL_TASK, &messages.KillTask{FrameworkID: id, TaskID: t.id})
			}
		}
	}
	delete(m.st.frameworkByAddr, fw.addr)
	delete(m.st.frameworks, id)
	m.alloc.FrameworkRemoved(id)
	m.metrics.FrameworksRegistered.Dec()
	log.Info("framework removed", zap.String("framework_id", string(id)))
}

func (m *Master) registerSlave(ctx *actor.Context, msg actor.Message) error {
	req, ok := msg.Body.(*messages.RegisterSlave)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("register_slave body")
	}
	id := m.gen.NextSlaveID()
	sl := &slave{
		id:             id,
		hostname:       req.Info.Hostname,
		publicHostname: req.Info.PublicHostname,
		addr:           msg.From,
		total:          req.Info.Resources,
		offered:        resources.New(),
		used:           resources.New(),
		connected:      true,
		registeredAt:   ctx.Now(),
	}
	m.st.slaves[id] = sl
	m.st.slaveByAddr[msg.From] = id
	ctx.Link(msg.From)

	m.alloc.SlaveAdded(toAllocatorSlaveSummary(sl))
	m.metrics.SlavesConnected.Inc()

	log.Info("slave registered", zap.String("slave_id", string(id)), zap.String("hostname", sl.hostname))
	return ctx.Send(msg.From, messages.M2S_REGISTERED, id)
}

func (m *Master) reregisterSlave(ctx *actor.Context, msg actor.Message) error {
	req, ok := msg.Body.(*messages.ReregisterSlave)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("reregister_slave body")
	}
	sl, ok := m.st.slaves[req.SlaveID]
	if !ok {
		return m.registerSlave(ctx, actor.Message{
			Name: messages.S2M_REGISTER_SLAVE, From: msg.From,
			Body: &messages.RegisterSlave{Info: req.Info},
		})
	}
	delete(m.st.slaveByAddr, sl.addr)
	sl.addr = msg.From
	sl.total = req.Info.Resources
	sl.connected = true
	m.st.slaveByAddr[msg.From] = sl.id
	ctx.Link(msg.From)

	// Reconcile the master's task table against what the slave reports is
	// actually running, so a slave that restarted mid-crash never leaves a
	// stale RUNNING task on the master's books (spec §4.2 step 5).
	reported := make(map[ids.TaskID]messages.TaskInfo, len(req.RunningTasks))
	for _, ti := range req.RunningTasks {
		reported[ti.TaskID] = ti
	}
	used := resources.New()
	for _, t := range m.st.tasks {
		if t.slaveID != sl.id {
			continue
		}
		if _, stillRunning := reported[t.id]; stillRunning && !t.state.IsTerminal() {
			used = resources.Add(used, t.resources)
			continue
		}
		if !t.state.IsTerminal() {
			m.transitionTask(ctx, t, messages.TaskLost, "slave re-registered without this task")
		}
	}
	for id, ti := range reported {
		if _, known := m.st.tasks[id]; !known {
			m.st.tasks[id] = &task{
				id: id, slaveID: sl.id, frameworkID: m.st.slaveOwnerGuess(ti), resources: ti.Resources,
				state: messages.TaskRunning, name: ti.Name,
			}
			used = resources.Add(used, ti.Resources)
		}
	}
	sl.used = used
	sl.offered = resources.New()
	m.alloc.SlaveAdded(toAllocatorSlaveSummary(sl))

	log.Info("slave re-registered", zap.String("slave_id", string(sl.id)))
	return ctx.Send(msg.From, messages.M2S_REGISTERED, sl.id)
}

// slaveOwnerGuess exists only because ReregisterSlave's TaskInfo does not
// itself carry a FrameworkID in the wire struct declared in messages; a
// task reported as running with no other record is attributed to no
// framework until its next status update resolves it. This mirrors the
// "master reconciles from incomplete information" edge case spec §4.2
// step 5 calls out explicitly.
func (st *state) slaveOwnerGuess(messages.TaskInfo) ids.FrameworkID { return "" }

func (m *Master) resourceRequest(_ *actor.Context, msg actor.Message) error {
	fwID, ok := m.st.frameworkByAddr[msg.From]
	if !ok {
		return nil
	}
	r, ok := msg.Body.(resources.Resources)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("resource_request body")
	}
	m.alloc.ResourceRequest(fwID, r)
	return nil
}

func (m *Master) replyToOffer(ctx *actor.Context, msg actor.Message) error {
	req, ok := msg.Body.(*messages.ReplyToOffer)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("reply_to_offer body")
	}
	o, ok := m.st.offers[req.OfferID]
	if !ok {
		// A decided-upon offer can legitimately race a rescind; spec §4.3
		// treats a reply to an unknown offer as a no-op, not an error.
		return nil
	}
	delete(m.st.offers, req.OfferID)

	var filters *allocator.Filters
	if req.Filters.RefuseSeconds > 0 {
		until := ctx.Now().Add(time.Duration(req.Filters.RefuseSeconds * float64(time.Second)))
		filters = &allocator.Filters{RefuseUntil: until}
	} else {
		until := ctx.Now().Add(allocator.DefaultRefuseSeconds)
		filters = &allocator.Filters{RefuseUntil: until}
	}

	used := resources.New()
	remaining := o.resources
	for _, ti := range req.Tasks {
		if err := m.launchTask(ctx, o, remaining, ti); err != nil {
			log.Warn("rejecting task launch", zap.Error(err), zap.String("task_id", string(ti.TaskID)))
			// spec §7, §8 scenario 2: a rejected launch (e.g. over-committed
			// resources) is reported back on the one-way error channel, not
			// just logged locally.
			if fw, ok := m.st.frameworks[o.frameworkID]; ok {
				_ = ctx.Send(fw.addr, messages.M2F_ERROR, &messages.ErrorMessage{
					Code: errCodeTaskRejected, Message: err.Error(),
				})
			}
			continue
		}
		used = resources.Add(used, ti.Resources)
		remaining, _ = resources.Subtract(remaining, ti.Resources)
	}

	unused, err := resources.Subtract(o.resources, used)
	if err != nil {
		unused = resources.New()
	}
	if sl, ok := m.st.slaves[o.slaveID]; ok {
		sl.offered, _ = resources.Subtract(sl.offered, o.resources)
		sl.used = resources.Add(sl.used, used)
		if !unused.IsEmpty() {
			m.alloc.ResourcesRecovered(sl.id, unused, filters)
		}
	}
	return nil
}

// launchTask validates a single task against what is left of its offer
// after the earlier tasks of the same reply (remaining) and, if it fits,
// creates it and forwards RUN_TASK to the owning slave (spec §4.3).
func (m *Master) launchTask(ctx *actor.Context, o *offer, remaining resources.Resources, ti messages.TaskInfo) error {
	if existing, exists := m.st.tasks[ti.TaskID]; exists {
		return errors.ErrTaskIDReused.GenWithStackByArgs(string(ti.TaskID), string(existing.frameworkID))
	}
	if !remaining.Contains(ti.Resources) {
		return errors.ErrTaskResourcesExceedOffer.GenWithStackByArgs(
			string(ti.TaskID), ti.Resources.String(), remaining.String(), string(o.id))
	}
	sl, ok := m.st.slaves[o.slaveID]
	if !ok {
		return errors.ErrSlaveUnknown.GenWithStackByArgs(string(o.slaveID))
	}
	fw, ok := m.st.frameworks[o.frameworkID]
	if !ok {
		return errors.ErrFrameworkUnknown.GenWithStackByArgs(string(o.frameworkID))
	}

	t := &task{
		id: ti.TaskID, slaveID: o.slaveID, frameworkID: o.frameworkID,
		executorID: ti.ExecutorID, resources: ti.Resources, state: messages.TaskStaging, name: ti.Name,
	}
	m.st.tasks[ti.TaskID] = t
	m.alloc.FrameworkResourcesChanged(o.frameworkID, m.st.allocatedByFramework(o.frameworkID))
	m.metrics.TasksLaunched.Inc()

	return ctx.Send(sl.addr, messages.M2S_RUN_TASK, &messages.RunTask{
		FrameworkID: o.frameworkID, FrameworkInfo: fw.info, Task: ti,
	})
}

func (m *Master) killTask(ctx *actor.Context, msg actor.Message) error {
	req, ok := msg.Body.(*messages.KillTask)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("kill_task body")
	}
	t, ok := m.st.tasks[req.TaskID]
	if !ok || t.state.IsTerminal() {
		// Killing an already-gone or unknown task is a no-op (spec §4.2
		// step 8): the framework may race a terminal status update.
		return nil
	}
	sl, ok := m.st.slaves[t.slaveID]
	if !ok {
		m.transitionTask(ctx, t, messages.TaskLost, "slave unknown at kill time")
		return nil
	}
	return ctx.Send(sl.addr, messages.M2S_KILL_TASK, req)
}

// frameworkMessage forwards an opaque framework->executor payload to the
// owning slave (spec §4.2 step 9); the master never inspects Data.
func (m *Master) frameworkMessage(ctx *actor.Context, msg actor.Message) error {
	op, ok := msg.Body.(*messages.OpaqueMessage)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("framework_message body")
	}
	for _, t := range m.st.tasks {
		if t.frameworkID == op.FrameworkID && t.executorID == op.ExecutorID {
			if sl, ok := m.st.slaves[t.slaveID]; ok {
				return ctx.Send(sl.addr, messages.S2E_EXECUTOR_MESSAGE, op)
			}
		}
	}
	return nil
}

// slaveFrameworkMessage forwards an opaque executor->framework payload
// reported by a slave on to the owning framework, the reverse hop of
// frameworkMessage (spec §4.4 "executor_message: forward"); the master
// never inspects Data here either.
func (m *Master) slaveFrameworkMessage(ctx *actor.Context, msg actor.Message) error {
	op, ok := msg.Body.(*messages.OpaqueMessage)
	if !ok {
		return errors.ErrInvalidArgument.GenWithStackByArgs("framework_message body")
	}
	fw, ok := m.st.frameworks[op.FrameworkID]
	if !ok {
		return nil
	}
	return ctx.Send(fw.addr, messages.M2F_FRAMEWORK_MESSAGE, op)
}

// statusUpdate records a slave-reported task state transition, forwards
// it to the owning framework, acknowledges it back to the slave (closing
// the at-least-once retry loop spec §4.4 describes) and, if terminal,
// recovers the task's resources to the slave's free pool.
//
// spec §4.2 step 10: the framework and slave named in the update must
// both still be known before anything else happens; an update naming
// either one that's gone is counted and dropped with no ack, so a slave
// retrying against a master that has since forgotten it keeps retrying
// (rather than the master fabricating a task record for an owner that no
// longer exists).
func (m *Master) statusUpdate(ctx *actor.Context, msg actor.Message) error {
	su, ok := msg.Body.(*messages.TaskStatus)
	if !ok {
		m.st.invalidStatusUpdates++
		return errors.ErrInvalidArgument.GenWithStackByArgs("status_update body")
	}
	fw, ok := m.st.frameworks[su.FrameworkID]
	if !ok {
		m.st.invalidStatusUpdates++
		log.Warn("status update for unknown framework, dropping",
			zap.String("framework_id", string(su.FrameworkID)), zap.String("task_id", string(su.TaskID)))
		return nil
	}
	sl, ok := m.st.slaves[su.SlaveID]
	if !ok {
		m.st.invalidStatusUpdates++
		log.Warn("status update for unknown slave, dropping",
			zap.String("slave_id", string(su.SlaveID)), zap.String("task_id", string(su.TaskID)))
		return nil
	}

	t, ok := m.st.tasks[su.TaskID]
	if !ok {
		t = &task{id: su.TaskID, slaveID: su.SlaveID, frameworkID: su.FrameworkID}
		m.st.tasks[su.TaskID] = t
	}
	m.transitionTask(ctx, t, su.State, su.Message)

	_ = ctx.Send(fw.addr, messages.M2F_STATUS_UPDATE, su)
	_ = ctx.Send(sl.addr, messages.M2S_STATUS_UPDATE_ACK, &messages.StatusUpdateAck{
		FrameworkID: su.FrameworkID, SlaveID: su.SlaveID, TaskID: su.TaskID,
	})
	return nil
}

// transitionTask moves t forward in the state lattice (spec §3) and, the
// moment it becomes terminal, credits its resources back to the slave and
// the allocator exactly once. A next state earlier than the current one is
// ignored.
func (m *Master) transitionTask(_ *actor.Context, t *task, next messages.TaskState, reason string) {
	if t.state.IsTerminal() || next < t.state {
		return
	}
	t.state = next
	if !next.IsTerminal() {
		return
	}
	if sl, ok := m.st.slaves[t.slaveID]; ok {
		sl.used, _ = resources.Subtract(sl.used, t.resources)
		m.alloc.ResourcesRecovered(sl.id, t.resources, nil)
	}
	m.alloc.FrameworkResourcesChanged(t.frameworkID, m.st.allocatedByFramework(t.frameworkID))
	m.metrics.TasksTerminated.Inc()
	log.Debug("task reached terminal state",
		zap.String("task_id", string(t.id)), zap.String("state", next.String()), zap.String("reason", reason))
}

// recoverOffer rescinds an outstanding offer and credits its resources
// back to the slave's free pool. ctx is nil when the owning framework is
// already gone (removeFramework), in which case no M2F_RESCIND_OFFER is
// sent since there is nobody left to receive it.
func (m *Master) recoverOffer(offerID ids.OfferID, ctx *actor.Context) {
	o, ok := m.st.offers[offerID]
	if !ok {
		return
	}
	delete(m.st.offers, offerID)
	if sl, ok := m.st.slaves[o.slaveID]; ok {
		sl.offered, _ = resources.Subtract(sl.offered, o.resources)
		m.alloc.ResourcesRecovered(sl.id, o.resources, nil)
	}
	if ctx == nil {
		return
	}
	if fw, ok := m.st.frameworks[o.frameworkID]; ok {
		_ = ctx.Send(fw.addr, messages.M2F_RESCIND_OFFER, &messages.RescindOffer{OfferID: offerID})
	}
}

// offerExpiry bounds how long an offer may remain outstanding before the
// master reclaims it unilaterally (spec §4.3 "offers are not held
// forever"): a framework that never replies must not starve the cluster.
const offerExpiry = 10 * offerInterval

// makeOffers drives one allocation round: first reclaim any offer that
// has sat unanswered past offerExpiry, then ask the Allocator for its
// current decisions, materialize each as an Offer entity debited from the
// owning slave's free pool, and send it to the framework (spec §4.2, §4.3).
func (m *Master) makeOffers(ctx *actor.Context) {
	now := ctx.Now()
	for id, o := range m.st.offers {
		if now.Sub(o.createdAt) > offerExpiry {
			m.recoverOffer(id, ctx)
		}
	}

	decisions := m.alloc.MakeOffers()
	for _, d := range decisions {
		fw, ok := m.st.frameworks[d.FrameworkID]
		if !ok || !fw.active {
			continue
		}
		sl, ok := m.st.slaves[d.SlaveID]
		if !ok {
			continue
		}
		id := m.gen.NextOfferID()
		o := &offer{id: id, frameworkID: d.FrameworkID, slaveID: d.SlaveID, resources: d.Resources, createdAt: ctx.Now()}
		m.st.offers[id] = o
		sl.offered = resources.Add(sl.offered, d.Resources)
		m.metrics.OffersSent.Inc()

		_ = ctx.Send(fw.addr, messages.M2F_RESOURCE_OFFER, &messages.ResourceOffer{
			OfferID: id, SlaveID: d.SlaveID, Resources: d.Resources,
		})
	}
	if m.cancelTmr != nil {
		m.cancelTmr = ctx.After(offerInterval, actor.TimeoutMsg, MakeOffersTag)
	}
}

// exited handles the death of a linked peer (spec §4.2 step 11): a
// framework's disconnection starts its failover grace period instead of
// removing it outright, a slave's disconnection marks every one of its
// non-terminal tasks LOST and removes it from the allocator.
func (m *Master) exited(ctx *actor.Context, msg actor.Message) error {
	addr, _ := msg.Body.(actor.Address)

	if fwID, ok := m.st.frameworkByAddr[addr]; ok {
		m.deactivateFramework(ctx, m.st.frameworks[fwID])
		return nil
	}

	if slID, ok := m.st.slaveByAddr[addr]; ok {
		sl := m.st.slaves[slID]
		sl.connected = false
		for _, t := range m.st.tasks {
			if t.slaveID == slID && !t.state.IsTerminal() {
				m.transitionTask(ctx, t, messages.TaskLost, "slave lost")
				if fw, ok := m.st.frameworks[t.frameworkID]; ok {
					_ = ctx.Send(fw.addr, messages.M2F_STATUS_UPDATE, &messages.TaskStatus{
						TaskID: t.id, FrameworkID: t.frameworkID, SlaveID: slID,
						State: messages.TaskLost, Message: "slave lost", Timestamp: ctx.Now(),
					})
				}
			}
		}
		delete(m.st.slaveByAddr, addr)
		delete(m.st.slaves, slID)
		m.alloc.SlaveRemoved(slID)
		m.metrics.SlavesConnected.Dec()
		log.Info("slave lost", zap.String("slave_id", string(slID)))
		return nil
	}

	return nil
}

// failoverExpired is called when a framework's failover grace period
// (started in exited, above) elapses without a re-registration: the
// framework and everything it owned is removed for good (spec §4.2 step
// 11, §3 framework failover).
func (m *Master) failoverExpired(ctx *actor.Context, id ids.FrameworkID) {
	fw, ok := m.st.frameworks[id]
	if !ok || fw.active {
		// Already re-registered (cancelFailover should have stopped this
		// timer, but a race between Advance and a concurrent Send is
		// still possible) or already removed.
		return
	}
	log.Info("framework failover timeout expired, removing", zap.String("framework_id", string(id)))
	m.removeFramework(ctx, id)
}

const defaultFailoverTimeout = 5 * time.Minute

func failoverTimeoutTag(id ids.FrameworkID) string {
	return fmt.Sprintf("failover:%s", id)
}

func parseFailoverTimeoutTag(tag string) (ids.FrameworkID, bool) {
	const prefix = "failover:"
	if len(tag) <= len(prefix) || tag[:len(prefix)] != prefix {
		return "", false
	}
	return ids.FrameworkID(tag[len(prefix):]), true
}
