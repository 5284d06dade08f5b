// Package metrics records execution and node outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics captures executor-level counters and latencies.
type Metrics interface {
	IncExecutionStarted(workflowID string)
	IncExecutionFinished(workflowID, status string)
	ObserveExecutionDuration(workflowID string, durationSeconds float64)
	ObserveNode(nodeType, status string, durationSeconds float64)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncExecutionStarted(string)               {}
func (Noop) IncExecutionFinished(string, string)      {}
func (Noop) ObserveExecutionDuration(string, float64) {}
func (Noop) ObserveNode(string, string, float64)      {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	executionsStarted  *prometheus.CounterVec
	executionsFinished *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec
	nodesExecuted      *prometheus.CounterVec
	nodeDuration       *prometheus.HistogramVec
}

// NewProm creates the collectors under namespace and registers them with
// registerer, or with the default registerer when nil.
func NewProm(namespace string, registerer prometheus.Registerer) *Prom {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	p := &Prom{
		executionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_started_total",
			Help:      "Executions started by workflow",
		}, []string{"workflow"}),
		executionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_finished_total",
			Help:      "Executions finished by workflow and terminal status",
		}, []string{"workflow", "status"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Execution wall-clock duration by workflow",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow"}),
		nodesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_executed_total",
			Help:      "Node executions by type and status",
		}, []string{"node_type", "status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Node handler duration by type",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_type"}),
	}

	registerer.MustRegister(p.executionsStarted, p.executionsFinished, p.executionDuration, p.nodesExecuted, p.nodeDuration)

	return p
}

func (p *Prom) IncExecutionStarted(workflowID string) {
	p.executionsStarted.WithLabelValues(workflowID).Inc()
}

func (p *Prom) IncExecutionFinished(workflowID, status string) {
	p.executionsFinished.WithLabelValues(workflowID, status).Inc()
}

func (p *Prom) ObserveExecutionDuration(workflowID string, durationSeconds float64) {
	p.executionDuration.WithLabelValues(workflowID).Observe(durationSeconds)
}

func (p *Prom) ObserveNode(nodeType, status string, durationSeconds float64) {
	p.nodesExecuted.WithLabelValues(nodeType, status).Inc()
	p.nodeDuration.WithLabelValues(nodeType).Observe(durationSeconds)
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
