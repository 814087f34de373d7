package master

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AHINK/mesos/pkg/actor"
)

// HTTP handler names, mounted under /<master-actor-name>/<name> by
// RegisterHTTP (spec §6 master endpoints: info.json, frameworks.json,
// slaves.json, tasks.json, stats.json, vars).
const (
	httpInfo       = "info"
	httpFrameworks = "frameworks"
	httpSlaves     = "slaves"
	httpTasks      = "tasks"
	httpStats      = "stats"
	httpVars       = "vars"
)

// RegisterHTTP attaches every read-only introspection endpoint to addr,
// which must already be spawned as this Master. Call once after Spawn,
// then Mount the same addr on a gin router (pkg/actor/http.go).
func (m *Master) RegisterHTTP(rt *actor.Runtime, addr actor.Address) error {
	handlers := map[string]actor.HTTPHandler{
		httpInfo:       m.handleInfo,
		httpFrameworks: m.handleFrameworks,
		httpSlaves:     m.handleSlaves,
		httpTasks:      m.handleTasks,
		httpStats:      m.handleStats,
		httpVars:       m.handleVars,
	}
	for name, h := range handlers {
		if err := rt.RegisterHTTPHandler(addr, name, h); err != nil {
			return err
		}
	}
	return nil
}

// masterInfo mirrors Mesos's info.json: static identity of the cluster.
type masterInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Frameworks int  `json:"frameworks"`
	Slaves   int    `json:"slaves"`
}

func (m *Master) handleInfo(_ *actor.Context, _ interface{}) (interface{}, error) {
	return masterInfo{
		ID:         "master",
		Version:    "1.0",
		Frameworks: len(m.st.frameworks),
		Slaves:     len(m.st.slaves),
	}, nil
}

type frameworkView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func (m *Master) handleFrameworks(_ *actor.Context, _ interface{}) (interface{}, error) {
	out := make([]frameworkView, 0, len(m.st.frameworks))
	for _, fw := range m.st.frameworks {
		out = append(out, frameworkView{ID: string(fw.id), Name: fw.info.Name, Active: fw.active})
	}
	return out, nil
}

type slaveView struct {
	ID        string `json:"id"`
	Hostname  string `json:"hostname"`
	Total     string `json:"resources"`
	Free      string `json:"unreserved_resources"`
	Connected bool   `json:"connected"`
}

func (m *Master) handleSlaves(_ *actor.Context, _ interface{}) (interface{}, error) {
	out := make([]slaveView, 0, len(m.st.slaves))
	for _, sl := range m.st.slaves {
		out = append(out, slaveView{
			ID: string(sl.id), Hostname: sl.hostname,
			Total: sl.total.String(), Free: sl.free().String(), Connected: sl.connected,
		})
	}
	return out, nil
}

type taskView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FrameworkID string `json:"framework_id"`
	SlaveID     string `json:"slave_id"`
	State       string `json:"state"`
}

func (m *Master) handleTasks(_ *actor.Context, _ interface{}) (interface{}, error) {
	out := make([]taskView, 0, len(m.st.tasks))
	for _, t := range m.st.tasks {
		out = append(out, taskView{
			ID: string(t.id), Name: t.name, FrameworkID: string(t.frameworkID),
			SlaveID: string(t.slaveID), State: t.state.String(),
		})
	}
	return out, nil
}

type stats struct {
	ActivatedSlaves        int     `json:"activated_slaves"`
	ActivatedFrameworks    int     `json:"activated_frameworks"`
	OutstandingOffers      int     `json:"outstanding_offers"`
	StagedTasks            int     `json:"staged_tasks"`
	InvalidStatusUpdates   uint64  `json:"invalid_status_updates"`
}

func (m *Master) handleStats(_ *actor.Context, _ interface{}) (interface{}, error) {
	s := stats{OutstandingOffers: len(m.st.offers), InvalidStatusUpdates: m.st.invalidStatusUpdates}
	for _, fw := range m.st.frameworks {
		if fw.active {
			s.ActivatedFrameworks++
		}
	}
	for _, sl := range m.st.slaves {
		if sl.connected {
			s.ActivatedSlaves++
		}
	}
	for _, t := range m.st.tasks {
		if t.state.String() == "STAGING" {
			s.StagedTasks++
		}
	}
	return s, nil
}

// handleVars answers the "vars" endpoint with a flat map of counters,
// alongside the Prometheus /metrics endpoint the master also exposes.
// Mount serves it, like every other handler, as a JSON object; it is not
// a plain-text key/value dump.
func (m *Master) handleVars(_ *actor.Context, _ interface{}) (interface{}, error) {
	return map[string]interface{}{
		"frameworks_registered": len(m.st.frameworks),
		"slaves_connected":      len(m.st.slaves),
		"tasks_total":           len(m.st.tasks),
		"offers_outstanding":    len(m.st.offers),
	}, nil
}

// Mount wires addr's HTTP handlers onto router, and additionally exposes
// the Prometheus registry at /metrics (spec §6, §A.1 ambient metrics).
func Mount(rt *actor.Runtime, router *gin.Engine, addr actor.Address, metrics *Metrics) error {
	if err := rt.Mount(router, addr, httpInfo, httpFrameworks, httpSlaves, httpTasks, httpStats, httpVars); err != nil {
		return err
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	return nil
}
