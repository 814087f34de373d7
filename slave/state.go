package slave

import (
	"time"

	"github.com/AHINK/mesos/pkg/actor"
	"github.com/AHINK/mesos/pkg/ids"
	"github.com/AHINK/mesos/pkg/messages"
	"github.com/AHINK/mesos/pkg/resources"
)

// framework is the slave's bookkeeping for one framework currently running
// tasks here, keyed by FrameworkID (spec §4.4).
type framework struct {
	id        ids.FrameworkID
	info      messages.FrameworkInfo
	addr      actor.Address // the scheduler's address, for forwarding status updates directly if ever needed
	executors map[ids.ExecutorID]*executor
}

// executor is the slave's record of one executor: "{info, addr?,
// directory, tasks, queued_tasks}" (spec §4.4). addr is unset until the
// executor process registers back over E2S_REGISTER_EXECUTOR; until then
// run_task requests for it sit in queuedTasks.
type executor struct {
	frameworkID ids.FrameworkID
	id          ids.ExecutorID
	info        messages.ExecutorInfo
	directory   string

	addr       actor.Address
	registered bool
	proc       Process
	launches   int // count of launch attempts

	tasks       map[ids.TaskID]*task
	queuedTasks []messages.TaskInfo

	resources resources.Resources // running sum of resources its tasks hold
}

// task is one task assigned to an executor.
type task struct {
	info  messages.TaskInfo
	state messages.TaskState
}

// pendingKey identifies one outstanding status update awaiting ack.
type pendingKey struct {
	frameworkID ids.FrameworkID
	taskID      ids.TaskID
}

// pendingStatus is a status update the slave has forwarded to the master
// but not yet had acknowledged: the TIMEOUT sweep resends it each time its
// deadline (statusRetryInterval after the last send) has passed, until the
// master acknowledges it (spec §4.4 "at-least-once delivery... until acknowledged").
type pendingStatus struct {
	status   messages.TaskStatus
	deadline time.Time
}

// state is the slave actor's whole authoritative collection, touched only
// from inside Slave.Receive (spec §5: single-threaded actor).
type state struct {
	id         ids.SlaveID
	info       messages.SlaveInfo
	masterAddr actor.Address
	connected  bool

	frameworks map[ids.FrameworkID]*framework
	pending    map[pendingKey]*pendingStatus

	total resources.Resources
	used  resources.Resources

	invalidStatusUpdates    uint64
	invalidFrameworkMessages uint64
}

func newState(id ids.SlaveID, info messages.SlaveInfo) *state {
	return &state{
		id:         id,
		info:       info,
		frameworks: make(map[ids.FrameworkID]*framework),
		pending:    make(map[pendingKey]*pendingStatus),
		total:      info.Resources,
		used:       resources.New(),
	}
}

func (s *state) free() resources.Resources {
	free, err := resources.Subtract(s.total, s.used)
	if err != nil {
		panic(err)
	}
	return free
}

func (s *state) framework(id ids.FrameworkID) *framework {
	fw, ok := s.frameworks[id]
	if !ok {
		fw = &framework{id: id, executors: make(map[ids.ExecutorID]*executor)}
		s.frameworks[id] = fw
	}
	return fw
}

// findTask locates a task by id across every framework this slave knows
// about, since executor status updates and kill_task requests only carry
// the task id and its owning framework id, not the executor id.
func (s *state) findTask(frameworkID ids.FrameworkID, taskID ids.TaskID) (*executor, *task, bool) {
	fw, ok := s.frameworks[frameworkID]
	if !ok {
		return nil, nil, false
	}
	for _, ex := range fw.executors {
		if t, ok := ex.tasks[taskID]; ok {
			return ex, t, true
		}
	}
	return nil, nil, false
}

// executorFor resolves the executor a task should run under: the task's
// own executor id if set, else the framework's default (spec §4.4
// run_task: "task.executor if set, else the framework default").
func executorFor(fw *framework, fi messages.FrameworkInfo, ti messages.TaskInfo) (*executor, bool) {
	id := ti.ExecutorID
	info := fi.ExecutorInfo
	if id == "" {
		id = info.ExecutorID
	}
	if id == "" {
		return nil, false
	}
	ex, ok := fw.executors[id]
	if !ok {
		if info.ExecutorID != id {
			info = messages.ExecutorInfo{ExecutorID: id}
		}
		ex = &executor{
			frameworkID: fw.id,
			id:          id,
			info:        info,
			tasks:       make(map[ids.TaskID]*task),
			resources:   resources.New(),
		}
		fw.executors[id] = ex
	}
	return ex, true
}
