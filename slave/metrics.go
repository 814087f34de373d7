package slave

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the slave's exported counters and gauges (spec §6
// "vars"/"stats.json"), one registry per Slave so tests can construct
// several without colliding on prometheus's default global registry.
type Metrics struct {
	Registry *prometheus.Registry

	TasksRunning          prometheus.Gauge
	ExecutorsRunning      prometheus.Gauge
	ValidStatusUpdates    prometheus.Counter
	InvalidStatusUpdates  prometheus.Counter
	ValidFrameworkMessages   prometheus.Counter
	InvalidFrameworkMessages prometheus.Counter
}

// NewMetrics constructs and registers a fresh metric set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		TasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mesos", Subsystem: "slave", Name: "tasks_running",
			Help: "Number of tasks currently running on this slave.",
		}),
		ExecutorsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mesos", Subsystem: "slave", Name: "executors_running",
			Help: "Number of executors currently running on this slave.",
		}),
		ValidStatusUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesos", Subsystem: "slave", Name: "valid_status_updates_total",
			Help: "Total number of status updates forwarded for a known task.",
		}),
		InvalidStatusUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesos", Subsystem: "slave", Name: "invalid_status_updates_total",
			Help: "Total number of status updates received for an unknown task.",
		}),
		ValidFrameworkMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesos", Subsystem: "slave", Name: "valid_framework_messages_total",
			Help: "Total number of opaque messages forwarded to a live target.",
		}),
		InvalidFrameworkMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesos", Subsystem: "slave", Name: "invalid_framework_messages_total",
			Help: "Total number of opaque messages dropped for an unknown target.",
		}),
	}
	reg.MustRegister(m.TasksRunning, m.ExecutorsRunning, m.ValidStatusUpdates, m.InvalidStatusUpdates,
		m.ValidFrameworkMessages, m.InvalidFrameworkMessages)
	return m
}
