package slave

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AHINK/mesos/pkg/actor"
	"github.com/AHINK/mesos/pkg/messages"
)

// HTTP handler names, mounted under /<slave-actor-name>/<name> by
// RegisterHTTP (spec §6 slave endpoints: info.json, frameworks.json,
// tasks.json, stats.json, vars; executors.json is an addition beyond the
// spec's list, mirroring the master's frameworks/slaves granularity).
const (
	httpInfo       = "info"
	httpFrameworks = "frameworks"
	httpExecutors  = "executors"
	httpTasks      = "tasks"
	httpStats      = "stats"
	httpVars       = "vars"
)

// RegisterHTTP attaches every read-only introspection endpoint to addr,
// which must already be spawned as this Slave. Call once after Spawn,
// then Mount the same addr on a gin router (pkg/actor/http.go).
func (s *Slave) RegisterHTTP(rt *actor.Runtime, addr actor.Address) error {
	handlers := map[string]actor.HTTPHandler{
		httpInfo:       s.handleInfo,
		httpFrameworks: s.handleFrameworks,
		httpExecutors:  s.handleExecutors,
		httpTasks:      s.handleTasks,
		httpStats:      s.handleStats,
		httpVars:       s.handleVars,
	}
	for name, h := range handlers {
		if err := rt.RegisterHTTPHandler(addr, name, h); err != nil {
			return err
		}
	}
	return nil
}

type slaveInfo struct {
	ID        string `json:"id"`
	Hostname  string `json:"hostname"`
	Total     string `json:"resources"`
	Free      string `json:"unreserved_resources"`
	Connected bool   `json:"connected"`
}

func (s *Slave) handleInfo(_ *actor.Context, _ interface{}) (interface{}, error) {
	return slaveInfo{
		ID: string(s.st.id), Hostname: s.st.info.Hostname,
		Total: s.st.total.String(), Free: s.st.free().String(), Connected: s.st.connected,
	}, nil
}

type frameworkView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Executors int    `json:"executors"`
}

func (s *Slave) handleFrameworks(_ *actor.Context, _ interface{}) (interface{}, error) {
	out := make([]frameworkView, 0, len(s.st.frameworks))
	for _, fw := range s.st.frameworks {
		out = append(out, frameworkView{ID: string(fw.id), Name: fw.info.Name, Executors: len(fw.executors)})
	}
	return out, nil
}

type executorView struct {
	FrameworkID string `json:"framework_id"`
	ExecutorID  string `json:"executor_id"`
	Directory   string `json:"directory"`
	Registered  bool   `json:"registered"`
	Resources   string `json:"resources"`
	Tasks       int    `json:"tasks"`
}

func (s *Slave) handleExecutors(_ *actor.Context, _ interface{}) (interface{}, error) {
	var out []executorView
	for _, fw := range s.st.frameworks {
		for _, ex := range fw.executors {
			out = append(out, executorView{
				FrameworkID: string(fw.id), ExecutorID: string(ex.id), Directory: ex.directory,
				Registered: ex.registered, Resources: ex.resources.String(), Tasks: len(ex.tasks),
			})
		}
	}
	return out, nil
}

type taskView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FrameworkID string `json:"framework_id"`
	ExecutorID  string `json:"executor_id"`
	State       string `json:"state"`
}

func (s *Slave) handleTasks(_ *actor.Context, _ interface{}) (interface{}, error) {
	var out []taskView
	for _, fw := range s.st.frameworks {
		for _, ex := range fw.executors {
			for _, t := range ex.tasks {
				out = append(out, taskView{
					ID: string(t.info.TaskID), Name: t.info.Name, FrameworkID: string(fw.id),
					ExecutorID: string(ex.id), State: t.state.String(),
				})
			}
		}
	}
	return out, nil
}

type stats struct {
	FrameworksActive         int    `json:"frameworks_active"`
	ExecutorsRunning         int    `json:"executors_running"`
	TasksStaging             int    `json:"tasks_staging"`
	InvalidStatusUpdates     uint64 `json:"invalid_status_updates"`
	InvalidFrameworkMessages uint64 `json:"invalid_framework_messages"`
}

func (s *Slave) handleStats(_ *actor.Context, _ interface{}) (interface{}, error) {
	st := stats{
		FrameworksActive:         len(s.st.frameworks),
		InvalidStatusUpdates:    s.st.invalidStatusUpdates,
		InvalidFrameworkMessages: s.st.invalidFrameworkMessages,
	}
	for _, fw := range s.st.frameworks {
		for _, ex := range fw.executors {
			st.ExecutorsRunning++
			for _, t := range ex.tasks {
				if t.state == messages.TaskStaging {
					st.TasksStaging++
				}
			}
		}
	}
	return st, nil
}

// handleVars answers the "vars" endpoint with a flat map of counters,
// alongside the Prometheus /metrics endpoint the slave also exposes.
// Mount serves it, like every other handler, as a JSON object; it is not
// a plain-text key/value dump.
func (s *Slave) handleVars(_ *actor.Context, _ interface{}) (interface{}, error) {
	return map[string]interface{}{
		"frameworks_active": len(s.st.frameworks),
		"connected":         s.st.connected,
	}, nil
}

// Mount wires addr's HTTP handlers onto router, and additionally exposes
// the Prometheus registry at /metrics (spec §6, §A.1 ambient metrics).
func Mount(rt *actor.Runtime, router *gin.Engine, addr actor.Address, metrics *Metrics) error {
	if err := rt.Mount(router, addr, httpInfo, httpFrameworks, httpExecutors, httpTasks, httpStats, httpVars); err != nil {
		return err
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	return nil
}
