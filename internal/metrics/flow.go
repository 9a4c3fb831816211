package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline Prometheus metrics, labeled by flow name.
var (
	flowDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowdex",
			Name:      "documents_total",
			Help:      "Documents resolved, by terminal outcome",
		},
		[]string{"flow", "result"}, // result: "success" / "failure"
	)

	flowBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowdex",
			Name:      "batches_total",
			Help:      "Batches formed by the accumulator",
		},
		[]string{"flow"},
	)

	flowRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowdex",
			Name:      "retries_total",
			Help:      "Re-dispatches of batch remnants after transient failures",
		},
		[]string{"flow"},
	)

	flowBulkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowdex",
			Name:      "bulk_duration_seconds",
			Help:      "Bulk request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"flow"},
	)

	flowInflightBatches = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "flowdex",
			Name:      "inflight_batches",
			Help:      "Batches between formation and full resolution",
		},
		[]string{"flow"},
	)
)

var flowMetricsRegistered bool

// RegisterFlowMetrics registers pipeline metrics with reg. Only the first
// call registers; later calls are no-ops.
func RegisterFlowMetrics(reg prometheus.Registerer) {
	if flowMetricsRegistered {
		return
	}
	reg.MustRegister(flowDocumentsTotal)
	reg.MustRegister(flowBatchesTotal)
	reg.MustRegister(flowRetriesTotal)
	reg.MustRegister(flowBulkDuration)
	reg.MustRegister(flowInflightBatches)
	flowMetricsRegistered = true
}

// Flow records pipeline events under one flow label. A nil *Flow is a
// valid no-op recorder.
type Flow struct {
	name string
}

// NewFlow returns a recorder publishing under the given flow name.
func NewFlow(name string) *Flow {
	return &Flow{name: name}
}

// BatchStarted marks a freshly formed batch entering dispatch.
func (m *Flow) BatchStarted() {
	if m == nil {
		return
	}
	flowBatchesTotal.WithLabelValues(m.name).Inc()
	flowInflightBatches.WithLabelValues(m.name).Inc()
}

// BatchResolved marks a batch whose items have all reached a terminal state.
func (m *Flow) BatchResolved() {
	if m == nil {
		return
	}
	flowInflightBatches.WithLabelValues(m.name).Dec()
}

// ObserveBulk records the duration of one bulk request.
func (m *Flow) ObserveBulk(d time.Duration) {
	if m == nil {
		return
	}
	flowBulkDuration.WithLabelValues(m.name).Observe(d.Seconds())
}

// Retry counts one re-dispatch of a batch remnant.
func (m *Flow) Retry() {
	if m == nil {
		return
	}
	flowRetriesTotal.WithLabelValues(m.name).Inc()
}

// Resolve counts one document reaching a terminal outcome.
func (m *Flow) Resolve(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	flowDocumentsTotal.WithLabelValues(m.name, result).Inc()
}
