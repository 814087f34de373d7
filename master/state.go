package master

import (
	"time"

	"github.com/AHINK/mesos/allocator"
	"github.com/AHINK/mesos/pkg/actor"
	"github.com/AHINK/mesos/pkg/ids"
	"github.com/AHINK/mesos/pkg/messages"
	"github.com/AHINK/mesos/pkg/resources"
)

// framework is the master's authoritative record of one scheduler (spec
// §3). The master exclusively owns this collection; frameworks and
// executors hold only the FrameworkID and the master's address.
type framework struct {
	id           ids.FrameworkID
	info         messages.FrameworkInfo
	addr         actor.Address
	registeredAt time.Time
	active       bool

	// cancelFailover stops the pending deletion timer started when the
	// framework is deactivated; re-registering before it fires cancels it.
	cancelFailover func()
}

// slave is the master's authoritative record of one worker machine (spec
// §3). Invariant: total = free + offered + used, where free is implicit
// (total - offered - used).
type slave struct {
	id             ids.SlaveID
	hostname       string
	publicHostname string
	addr           actor.Address
	total          resources.Resources
	offered        resources.Resources
	used           resources.Resources
	connected      bool
	registeredAt   time.Time
}

// free returns the slave's currently unoffered, unused resources. It is
// never stored: the invariant total = free + offered + used is enforced
// by always deriving free instead of keeping three independently mutable
// quantities that could drift.
func (s *slave) free() resources.Resources {
	committed := resources.Add(s.offered, s.used)
	free, err := resources.Subtract(s.total, committed)
	if err != nil {
		// total < offered+used would mean the bookkeeping above this
		// point already violated the invariant spec §8 requires; that
		// is an internal invariant violation, not a recoverable error.
		panic(err)
	}
	return free
}

// task is the master's authoritative record of one unit of work (spec
// §3). Its state only ever moves forward through the lattice STAGING ->
// STARTING -> RUNNING -> {FINISHED, FAILED, KILLED, LOST}.
type task struct {
	id          ids.TaskID
	slaveID     ids.SlaveID
	frameworkID ids.FrameworkID
	executorID  ids.ExecutorID
	resources   resources.Resources
	state       messages.TaskState
	name        string
}

// offer is the master's authoritative record of one outstanding resource
// offer (spec §3, §4.3). While outstanding, its resources are already
// subtracted from the owning slave's free pool.
type offer struct {
	id          ids.OfferID
	frameworkID ids.FrameworkID
	slaveID     ids.SlaveID
	resources   resources.Resources
	createdAt   time.Time
}

// state is the master's full authoritative collection, guarded implicitly
// by the actor's single-threaded execution (spec §5): every access to it
// happens from inside Master.Receive, so no lock is needed.
type state struct {
	frameworks map[ids.FrameworkID]*framework
	slaves     map[ids.SlaveID]*slave
	tasks      map[ids.TaskID]*task
	offers     map[ids.OfferID]*offer

	// frameworkByAddr and slaveByAddr let exited(addr) (spec §4.2 step
	// 11) classify which collection an exiting peer belonged to without
	// a linear scan.
	frameworkByAddr map[actor.Address]ids.FrameworkID
	slaveByAddr     map[actor.Address]ids.SlaveID

	invalidStatusUpdates uint64
}

func newState() *state {
	return &state{
		frameworks:      make(map[ids.FrameworkID]*framework),
		slaves:          make(map[ids.SlaveID]*slave),
		tasks:           make(map[ids.TaskID]*task),
		offers:          make(map[ids.OfferID]*offer),
		frameworkByAddr: make(map[actor.Address]ids.FrameworkID),
		slaveByAddr:     make(map[actor.Address]ids.SlaveID),
	}
}

// allocatedByFramework sums the resources of every non-terminal task
// belonging to frameworkID, across all slaves — the quantity the
// allocator uses as a framework's dominant-share numerator (spec §4.2,
// §8 invariant "sum of task.resources over non-terminal tasks equals used
// attributed to that framework").
func (st *state) allocatedByFramework(frameworkID ids.FrameworkID) resources.Resources {
	total := resources.New()
	for _, t := range st.tasks {
		if t.frameworkID == frameworkID && !t.state.IsTerminal() {
			total = resources.Add(total, t.resources)
		}
	}
	return total
}

func toAllocatorSlaveSummary(s *slave) allocator.SlaveSummary {
	return allocator.SlaveSummary{ID: s.id, Free: s.free()}
}
