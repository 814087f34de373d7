package master

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the master's exported counters and gauges (spec §6
// "vars"/"stats.json" endpoints expose these). Each Master owns its own
// registry so that tests can construct several Masters without colliding
// on prometheus's default global registry.
type Metrics struct {
	Registry *prometheus.Registry

	FrameworksRegistered prometheus.Gauge
	SlavesConnected      prometheus.Gauge
	TasksLaunched        prometheus.Counter
	TasksTerminated      prometheus.Counter
	OffersSent           prometheus.Counter
}

// NewMetrics constructs and registers a fresh metric set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		FrameworksRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mesos", Subsystem: "master", Name: "frameworks_registered",
			Help: "Number of frameworks currently registered with the master.",
		}),
		SlavesConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mesos", Subsystem: "master", Name: "slaves_connected",
			Help: "Number of slaves currently connected to the master.",
		}),
		TasksLaunched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesos", Subsystem: "master", Name: "tasks_launched_total",
			Help: "Total number of tasks the master has forwarded to a slave to run.",
		}),
		TasksTerminated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesos", Subsystem: "master", Name: "tasks_terminated_total",
			Help: "Total number of tasks that reached a terminal state.",
		}),
		OffersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesos", Subsystem: "master", Name: "offers_sent_total",
			Help: "Total number of resource offers sent to frameworks.",
		}),
	}
	reg.MustRegister(m.FrameworksRegistered, m.SlavesConnected, m.TasksLaunched, m.TasksTerminated, m.OffersSent)
	return m
}
