package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestQueueMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newQueueMetrics(registry, Config{
		ServiceName: "trinet",
		Environment: "test",
	})

	m.IncEnqueued()
	m.IncEnqueued()
	m.IncDone(QueueResultSuccess)
	m.IncDone(QueueResultFailed)
	m.IncRetry(errors.New("boom"))
	m.SetDepth(4)
	m.ObserveJobDuration(50 * time.Millisecond)

	if got := testutil.ToFloat64(m.jobsEnqueued); got != 2 {
		t.Fatalf("expected 2 enqueued, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobsDone.WithLabelValues(QueueResultSuccess)); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobRetries.WithLabelValues(JobReasonUnknown)); got != 1 {
		t.Fatalf("expected 1 retry with unknown reason, got %v", got)
	}
	if got := testutil.ToFloat64(m.depth); got != 4 {
		t.Fatalf("expected depth 4, got %v", got)
	}
}

func TestQueueMetricsConstLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newQueueMetrics(registry, Config{
		ServiceName: "trinet",
		Environment: "test",
	})
	m.IncEnqueued()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var enqueued *dto.MetricFamily
	for _, family := range families {
		if family.GetName() == "trinet_queue_jobs_enqueued_total" {
			enqueued = family
			break
		}
	}
	if enqueued == nil {
		t.Fatal("expected trinet_queue_jobs_enqueued_total to be registered")
	}

	labels := map[string]string{}
	for _, pair := range enqueued.GetMetric()[0].GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	if labels["service"] != "trinet" {
		t.Fatalf("expected service label trinet, got %q", labels["service"])
	}
	if labels["env"] != "test" {
		t.Fatalf("expected env label test, got %q", labels["env"])
	}
}
