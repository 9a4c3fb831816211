package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFlowRecorder_CountsEvents(t *testing.T) {
	RegisterFlowMetrics(prometheus.NewRegistry())

	m := NewFlow("test-counts")
	m.BatchStarted()
	m.Retry()
	m.ObserveBulk(25 * time.Millisecond)
	m.Resolve(true)
	m.Resolve(true)
	m.Resolve(false)
	m.BatchResolved()

	if v := testutil.ToFloat64(flowBatchesTotal.WithLabelValues("test-counts")); v != 1 {
		t.Errorf("batches_total = %f, want 1", v)
	}
	if v := testutil.ToFloat64(flowRetriesTotal.WithLabelValues("test-counts")); v != 1 {
		t.Errorf("retries_total = %f, want 1", v)
	}
	if v := testutil.ToFloat64(flowDocumentsTotal.WithLabelValues("test-counts", "success")); v != 2 {
		t.Errorf("documents_total success = %f, want 2", v)
	}
	if v := testutil.ToFloat64(flowDocumentsTotal.WithLabelValues("test-counts", "failure")); v != 1 {
		t.Errorf("documents_total failure = %f, want 1", v)
	}
	if v := testutil.ToFloat64(flowInflightBatches.WithLabelValues("test-counts")); v != 0 {
		t.Errorf("inflight_batches = %f, want 0", v)
	}
	if c := testutil.CollectAndCount(flowBulkDuration); c == 0 {
		t.Error("expected bulk_duration_seconds to have observations")
	}
}

func TestFlowRecorder_TracksInflight(t *testing.T) {
	m := NewFlow("test-inflight")

	m.BatchStarted()
	if v := testutil.ToFloat64(flowInflightBatches.WithLabelValues("test-inflight")); v != 1 {
		t.Errorf("inflight_batches = %f, want 1", v)
	}
	m.BatchResolved()
	if v := testutil.ToFloat64(flowInflightBatches.WithLabelValues("test-inflight")); v != 0 {
		t.Errorf("inflight_batches = %f, want 0", v)
	}
}

func TestFlowRecorder_NilSafe(t *testing.T) {
	var m *Flow
	m.BatchStarted()
	m.BatchResolved()
	m.ObserveBulk(time.Second)
	m.Retry()
	m.Resolve(true)
}

func TestRegisterFlowMetrics_Idempotent(t *testing.T) {
	RegisterFlowMetrics(prometheus.NewRegistry())
	RegisterFlowMetrics(prometheus.NewRegistry())
}
