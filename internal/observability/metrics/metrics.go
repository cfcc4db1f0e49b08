package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the const labels stamped on every metric.
type Config struct {
	ServiceName string
	Environment string
}

const (
	QueueResultSuccess = "success"
	QueueResultFailed  = "failed"
	QueueResultDropped = "dropped"
)

// QueueMetrics captures placement queue health signals.
type QueueMetrics struct {
	jobsEnqueued prometheus.Counter
	jobsDone     *prometheus.CounterVec
	jobRetries   *prometheus.CounterVec
	jobDuration  prometheus.Observer
	depth        prometheus.Gauge
}

var (
	queueMetricsOnce sync.Once
	queueMetrics     *QueueMetrics
)

// Queue returns the singleton queue metrics registry.
func Queue() *QueueMetrics {
	return QueueWithConfig(Config{})
}

// QueueWithConfig returns the singleton queue metrics registry using config labels.
func QueueWithConfig(cfg Config) *QueueMetrics {
	queueMetricsOnce.Do(func() {
		queueMetrics = newQueueMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return queueMetrics
}

// ResetQueueMetricsForTest resets the queue metrics singleton for tests.
func ResetQueueMetricsForTest() {
	queueMetricsOnce = sync.Once{}
	queueMetrics = nil
}

func newQueueMetrics(registerer prometheus.Registerer, cfg Config) *QueueMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := metricConstLabels(cfg)

	jobsEnqueued := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "trinet_queue_jobs_enqueued_total",
		Help:        "Placement jobs accepted into the queue.",
		ConstLabels: constLabels,
	})
	jobsDone := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "trinet_queue_jobs_done_total",
		Help:        "Placement jobs finished by terminal result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	jobRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "trinet_queue_job_retries_total",
		Help:        "Placement job retries by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	jobDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "trinet_queue_job_duration_seconds",
		Help:        "Placement job latency including tree search and propagation.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})
	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "trinet_queue_depth",
		Help:        "Jobs waiting in the placement queue.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		jobsEnqueued,
		jobsDone,
		jobRetries,
		jobDuration,
		depth,
	)

	return &QueueMetrics{
		jobsEnqueued: jobsEnqueued,
		jobsDone:     jobsDone,
		jobRetries:   jobRetries,
		jobDuration:  jobDuration,
		depth:        depth,
	}
}

// IncEnqueued increments the accepted job counter.
func (m *QueueMetrics) IncEnqueued() {
	if m == nil || m.jobsEnqueued == nil {
		return
	}
	m.jobsEnqueued.Inc()
}

// IncDone increments the terminal result counter.
func (m *QueueMetrics) IncDone(result string) {
	if m == nil || m.jobsDone == nil {
		return
	}
	m.jobsDone.WithLabelValues(result).Inc()
}

// IncRetry increments the retry counter with an error classification.
func (m *QueueMetrics) IncRetry(err error) {
	if m == nil || m.jobRetries == nil {
		return
	}
	m.jobRetries.WithLabelValues(ClassifyJobReason(err)).Inc()
}

// ObserveJobDuration records end-to-end job latency in seconds.
func (m *QueueMetrics) ObserveJobDuration(duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.Observe(duration.Seconds())
}

// SetDepth records the number of jobs waiting in the queue.
func (m *QueueMetrics) SetDepth(depth int) {
	if m == nil || m.depth == nil {
		return
	}
	m.depth.Set(float64(depth))
}

func metricConstLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "trinet"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}
