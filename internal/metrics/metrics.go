// Package metrics defines the prometheus collectors of the supervisor
// and the restart controller.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "respawn"

// Start results
const (
	StartOK            = "ok"
	StartImmediateExit = "immediate_exit"
	StartLaunchFailed  = "launch_failed"
)

// Change event decisions
const (
	DecisionRestart  = "restart"
	DecisionIgnore   = "ignore"
	DecisionCoalesce = "coalesce"
)

type Metrics struct {
	WorkerStarts        *prometheus.CounterVec
	Restarts            prometheus.Counter
	ChangeEvents        *prometheus.CounterVec
	DescendantsKilled   prometheus.Counter
	CleanupErrors       prometheus.Counter
	SignalForwardErrors prometheus.Counter
	WorkerUp            prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		WorkerStarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_starts_total",
			Help:      "Number of worker start attempts, by result.",
		}, []string{"result"}),
		Restarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_total",
			Help:      "Number of restarts triggered by file changes.",
		}),
		ChangeEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_total",
			Help:      "Number of observed change events, by decision.",
		}, []string{"decision"}),
		DescendantsKilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "descendants_killed_total",
			Help:      "Number of worker child processes killed before a stop.",
		}),
		CleanupErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_errors_total",
			Help:      "Number of failures to list or kill worker child processes.",
		}),
		SignalForwardErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_forward_errors_total",
			Help:      "Number of failures to deliver a signal to the worker.",
		}),
		WorkerUp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_up",
			Help:      "Whether a worker process is running.",
		}),
	}
}

// NewNop returns collectors registered with a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
