package slave

import (
	"context"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/AHINK/mesos/pkg/ids"
	"github.com/AHINK/mesos/pkg/messages"
	"github.com/AHINK/mesos/pkg/resources"
)

// Process is a running executor or task command, however Isolation chose
// to contain it.
type Process interface {
	// Wait blocks until the process exits and returns its result. It must
	// be safe to call from a dedicated goroutine (spec §5: "blocking OS
	// calls must be performed inside helper subactors").
	Wait() (ExitStatus, error)
	// Kill asks the process to terminate. It does not wait for exit.
	Kill() error
}

// ExitStatus reports how a Process ended.
type ExitStatus struct {
	Success  bool
	ExitCode int
}

// Isolation launches executor and task processes. It is the slave's
// pluggable containment boundary (spec §4.4 "slave delegates process
// lifecycle to a pluggable isolation module"); the default is a bare OS
// process, but a cgroup- or container-backed implementation satisfies the
// same interface.
type Isolation interface {
	// Launch starts command with env set in its environment and working
	// directory workDir, returning a handle to it.
	Launch(ctx context.Context, command string, env map[string]string, workDir string) (Process, error)
	// ResourcesChanged notifies the isolation module of an executor's new
	// resource sum, called every time a task is added to or removed from
	// it (spec §4.4 run_task: "update the executor's current resource sum
	// and call isolation.resources_changed"), so a cgroup- or
	// container-backed Isolation can adjust limits in place instead of
	// only ever setting them once at launch.
	ResourcesChanged(ctx context.Context, frameworkID ids.FrameworkID, executorID ids.ExecutorID, r resources.Resources) error
}

// ProcessIsolation runs executors and tasks as plain OS processes via
// os/exec, with no additional containment. Grounded on the teacher's
// executor/worker.TaskRunner goroutine-per-task model, adapted from
// in-process Runnables to exec.Cmd child processes.
type ProcessIsolation struct {
	// SwitchUser holds the slave's --switch_user setting (spec §6), as
	// passed to NewIsolation. Launch does not read it: the child always
	// runs as the slave's own OS user.
	SwitchUser bool
}

var _ Isolation = (*ProcessIsolation)(nil)

func (p *ProcessIsolation) Launch(ctx context.Context, command string, env map[string]string, workDir string) (Process, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = workDir
	cmd.Env = flattenEnv(env)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd}, nil
}

// ResourcesChanged is a no-op under plain OS processes: a bare exec.Cmd has
// no resource limits to adjust. A cgroup-backed Isolation would rewrite
// the executor's cgroup's cpu/memory controllers here.
func (p *ProcessIsolation) ResourcesChanged(_ context.Context, _ ids.FrameworkID, _ ids.ExecutorID, _ resources.Resources) error {
	return nil
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p *osProcess) Wait() (ExitStatus, error) {
	err := p.cmd.Wait()
	if err == nil {
		return ExitStatus{Success: true}, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return ExitStatus{Success: false, ExitCode: exitErr.ExitCode()}, nil
	}
	return ExitStatus{}, err
}

func (p *osProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(syscall.SIGKILL)
}

// executorConfig carries the slave-level settings executorEnv needs beyond
// what's already on the ExecutorInfo itself (spec §6 "Environment"). User
// comes from the owning framework's FrameworkInfo.User, since ExecutorInfo
// itself carries no user of its own.
type executorConfig struct {
	slaveID        ids.SlaveID
	slaveAddr      string
	publicHostname string
	workDir        string
	switchUser     bool
	user           string
}

// executorEnv builds the environment variables a launched executor
// process observes, following Mesos's MESOS_*-prefixed convention (spec
// §6 "Environment": the full set the slave/launcher communicate to
// executors via).
func executorEnv(info messages.ExecutorInfo, frameworkID ids.FrameworkID, directory string, cfg executorConfig) map[string]string {
	env := make(map[string]string, len(info.Env)+12)
	for k, v := range info.Env {
		env[k] = v
	}
	env["MESOS_FRAMEWORK_ID"] = string(frameworkID)
	env["MESOS_EXECUTOR_ID"] = string(info.ExecutorID)
	env["MESOS_EXECUTOR_URI"] = info.URI
	env["MESOS_USER"] = cfg.user
	env["MESOS_WORK_DIRECTORY"] = directory
	env["MESOS_SLAVE_ID"] = string(cfg.slaveID)
	env["MESOS_SLAVE_PID"] = cfg.slaveAddr
	env["MESOS_HOME"] = cfg.workDir
	env["MESOS_FRAMEWORKS_HOME"] = cfg.workDir
	env["MESOS_HADOOP_HOME"] = env["HADOOP_HOME"]
	env["MESOS_REDIRECT_IO"] = "1"
	env["MESOS_SWITCH_USER"] = strconv.FormatBool(cfg.switchUser)
	env["MESOS_PUBLIC_DNS"] = cfg.publicHostname
	return env
}
