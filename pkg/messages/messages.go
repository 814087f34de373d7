// Package messages declares the named, structured records exchanged
// between actors (spec §6): frame names follow the MODULE_EVENT
// convention, e.g. S2M_REGISTER_SLAVE, M2F_RESOURCE_OFFER.
package messages

import (
	"time"

	"github.com/AHINK/mesos/pkg/ids"
	"github.com/AHINK/mesos/pkg/resources"
)

// Frame names, grouped by the sender/receiver pair they flow between.
// F = framework scheduler, M = master, S = slave, E = executor.
const (
	F2M_REGISTER_FRAMEWORK    = "F2M_REGISTER_FRAMEWORK"
	F2M_REREGISTER_FRAMEWORK  = "F2M_REREGISTER_FRAMEWORK"
	F2M_UNREGISTER_FRAMEWORK  = "F2M_UNREGISTER_FRAMEWORK"
	F2M_RESOURCE_REQUEST      = "F2M_RESOURCE_REQUEST"
	F2M_REPLY_TO_OFFER        = "F2M_REPLY_TO_OFFER"
	F2M_KILL_TASK            = "F2M_KILL_TASK"
	F2M_FRAMEWORK_MESSAGE    = "F2M_FRAMEWORK_MESSAGE"
	M2F_FRAMEWORK_REGISTERED = "M2F_FRAMEWORK_REGISTERED"
	M2F_RESOURCE_OFFER       = "M2F_RESOURCE_OFFER"
	M2F_RESCIND_OFFER        = "M2F_RESCIND_OFFER"
	M2F_STATUS_UPDATE        = "M2F_STATUS_UPDATE"
	M2F_ERROR                = "M2F_ERROR"
	// M2F_FRAMEWORK_MESSAGE also carries slave->framework message
	// forwards, a naming inconsistency preserved for wire compatibility
	// (spec §9).
	M2F_FRAMEWORK_MESSAGE = "M2F_FRAMEWORK_MESSAGE"

	S2M_REGISTER_SLAVE    = "S2M_REGISTER_SLAVE"
	S2M_REREGISTER_SLAVE  = "S2M_REREGISTER_SLAVE"
	S2M_STATUS_UPDATE     = "S2M_STATUS_UPDATE"
	S2M_FRAMEWORK_MESSAGE = "S2M_FRAMEWORK_MESSAGE"
	M2S_REGISTERED        = "M2S_REGISTERED"
	M2S_RUN_TASK          = "M2S_RUN_TASK"
	M2S_KILL_TASK         = "M2S_KILL_TASK"
	M2S_STATUS_UPDATE_ACK = "M2S_STATUS_UPDATE_ACK"

	E2S_REGISTER_EXECUTOR = "E2S_REGISTER_EXECUTOR"
	E2S_STATUS_UPDATE     = "E2S_STATUS_UPDATE"
	E2S_EXECUTOR_MESSAGE  = "E2S_EXECUTOR_MESSAGE"
	S2E_RUN_TASK          = "S2E_RUN_TASK"
	S2E_KILL_TASK         = "S2E_KILL_TASK"
	S2E_KILL_EXECUTOR     = "S2E_KILL_EXECUTOR"
	S2E_EXECUTOR_MESSAGE  = "S2E_EXECUTOR_MESSAGE"

	ERROR = "error"
)

// TaskState is the monotonic lattice spec §3 describes:
// STAGING -> STARTING -> RUNNING -> {FINISHED, FAILED, KILLED, LOST}.
type TaskState int

const (
	TaskStaging TaskState = iota
	TaskStarting
	TaskRunning
	TaskFinished
	TaskFailed
	TaskKilled
	TaskLost
)

func (s TaskState) String() string {
	switch s {
	case TaskStaging:
		return "STAGING"
	case TaskStarting:
		return "STARTING"
	case TaskRunning:
		return "RUNNING"
	case TaskFinished:
		return "FINISHED"
	case TaskFailed:
		return "FAILED"
	case TaskKilled:
		return "KILLED"
	case TaskLost:
		return "LOST"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s is a sink state of the lattice.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskFinished, TaskFailed, TaskKilled, TaskLost:
		return true
	default:
		return false
	}
}

// ExecutorInfo describes the executor a framework wants run, supplied at
// framework registration and echoed back when the slave launches it.
type ExecutorInfo struct {
	ExecutorID ids.ExecutorID
	Name       string
	Command    string
	// URI locates the executor binary/archive to fetch before running
	// Command, mirrored into the launched process as MESOS_EXECUTOR_URI
	// (spec §6 "Environment"); empty when Command is already self-contained.
	URI string
	Env map[string]string
}

// FrameworkInfo is the registration payload a scheduler sends the master.
type FrameworkInfo struct {
	Name         string
	User         string
	Principal    string
	ExecutorInfo ExecutorInfo
	FailoverTimeout time.Duration
}

// SlaveInfo is the registration payload a slave sends the master.
type SlaveInfo struct {
	Hostname       string
	PublicHostname string
	Resources      resources.Resources
}

// TaskInfo is one task description inside a reply to an offer.
type TaskInfo struct {
	TaskID     ids.TaskID
	Name       string
	SlaveID    ids.SlaveID
	ExecutorID ids.ExecutorID // empty: use framework's default executor
	Resources  resources.Resources
	Command    string
}

// TaskStatus reports a task's current state, sent by an executor to its
// slave and forwarded (with retry, see spec §4.4) to the master and on to
// the framework.
type TaskStatus struct {
	TaskID     ids.TaskID
	FrameworkID ids.FrameworkID
	SlaveID    ids.SlaveID
	State      TaskState
	Message    string
	Timestamp  time.Time
}

// Filters suppress reoffering of a declined offer's resource shape on the
// same slave for a bounded duration (spec §4.2, §8 scenario 6).
type Filters struct {
	RefuseSeconds float64
}

// RegisterFramework is the F2M_REGISTER_FRAMEWORK body.
type RegisterFramework struct {
	Info FrameworkInfo
}

// ReregisterFramework is the F2M_REREGISTER_FRAMEWORK body.
type ReregisterFramework struct {
	FrameworkID ids.FrameworkID
	Info        FrameworkInfo
	Failover    bool
}

// RegisterSlave is the S2M_REGISTER_SLAVE body.
type RegisterSlave struct {
	Info SlaveInfo
}

// ReregisterSlave is the S2M_REREGISTER_SLAVE body.
type ReregisterSlave struct {
	SlaveID      ids.SlaveID
	Info         SlaveInfo
	RunningTasks []TaskInfo
}

// ReplyToOffer is the F2M_REPLY_TO_OFFER body.
type ReplyToOffer struct {
	OfferID ids.OfferID
	Tasks   []TaskInfo
	Filters Filters
}

// ResourceOffer is the M2F_RESOURCE_OFFER body.
type ResourceOffer struct {
	OfferID   ids.OfferID
	SlaveID   ids.SlaveID
	Resources resources.Resources
}

// RescindOffer is the M2F_RESCIND_OFFER body.
type RescindOffer struct {
	OfferID ids.OfferID
}

// RunTask is the M2S_RUN_TASK / S2E_RUN_TASK body.
type RunTask struct {
	FrameworkID   ids.FrameworkID
	FrameworkInfo FrameworkInfo
	Task          TaskInfo
}

// KillTask is the F2M_KILL_TASK / M2S_KILL_TASK / S2E_KILL_TASK body.
type KillTask struct {
	FrameworkID ids.FrameworkID
	TaskID      ids.TaskID
}

// StatusUpdateAck is the M2S_STATUS_UPDATE_ACK body.
type StatusUpdateAck struct {
	FrameworkID ids.FrameworkID
	SlaveID     ids.SlaveID
	TaskID      ids.TaskID
}

// RegisterExecutor is the E2S_REGISTER_EXECUTOR body.
type RegisterExecutor struct {
	FrameworkID ids.FrameworkID
	ExecutorID  ids.ExecutorID
}

// KillExecutor is the S2E_KILL_EXECUTOR body.
type KillExecutor struct {
	FrameworkID ids.FrameworkID
	ExecutorID  ids.ExecutorID
	Reason      string
}

// ErrorMessage is the one-way error(code, message) frame (spec §7).
type ErrorMessage struct {
	Code    int
	Message string
}

// OpaqueMessage wraps an unexamined framework<->executor payload forwarded
// through the master/slave without inspection (spec §4.2 step 9, §4.4).
type OpaqueMessage struct {
	FrameworkID ids.FrameworkID
	ExecutorID  ids.ExecutorID
	Data        []byte
}
