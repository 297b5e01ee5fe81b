package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "alertflow"
	metricsSubsystem = "pipeline"
)

// Metrics exports pipeline counters to Prometheus.
type Metrics struct {
	mu sync.Mutex

	batchesTotal   *prometheus.CounterVec
	recordsTotal   *prometheus.CounterVec
	failuresTotal  *prometheus.CounterVec
	recordDuration *prometheus.HistogramVec
	batchSize      prometheus.Histogram

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewMetrics creates the collectors. A nil registerer selects the Prometheus
// default registerer. Call Register before exposing them.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		registerer:     registerer,
		batchesTotal:   newCounterVec("batches_total", "Invocations handled, by outcome", []string{"outcome"}),
		recordsTotal:   newCounterVec("records_total", "Records saved and notified, by validity", []string{"validity"}),
		failuresTotal:  newCounterVec("failures_total", "Records that aborted their batch, by failing stage", []string{"stage"}),
		recordDuration: newHistogramVec("record_duration_seconds", "Time spent on one record", prometheus.DefBuckets, []string{"outcome"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "batch_size",
			Help:      "Records delivered per invocation",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}
	collectors := []prometheus.Collector{
		m.batchesTotal,
		m.recordsTotal,
		m.failuresTotal,
		m.recordDuration,
		m.batchSize,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	m.registered = true
	return nil
}

// ObserveRecord counts one record outcome.
func (m *Metrics) ObserveRecord(valid bool, err error, duration time.Duration) {
	if err != nil {
		m.failuresTotal.WithLabelValues(string(StageOf(err))).Inc()
		m.recordDuration.WithLabelValues("failed").Observe(duration.Seconds())
		return
	}
	validity := "valid"
	if !valid {
		validity = "invalid"
	}
	m.recordsTotal.WithLabelValues(validity).Inc()
	m.recordDuration.WithLabelValues("processed").Observe(duration.Seconds())
}

// ObserveBatch counts one invocation.
func (m *Metrics) ObserveBatch(size int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.batchesTotal.WithLabelValues(outcome).Inc()
	m.batchSize.Observe(float64(size))
}
