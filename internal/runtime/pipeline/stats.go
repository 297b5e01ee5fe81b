package pipeline

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
)

const (
	latencySampleSize    = 256
	throughputWindowSize = time.Minute
)

// Stats aggregates in-process counters across invocations. It backs the
// /api/stats endpoint and is safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	batchesProcessed uint64
	batchesFailed    uint64
	recordsProcessed uint64
	recordsInvalid   uint64
	recordsFailed    uint64
	totalRecordTime  int64
	lastBatchAt      time.Time
	lastBatchSize    int

	errors ErrorBreakdown

	latency    *latencyWindow
	throughput *throughputWindow
	cost       *batchCost
	now        func() time.Time
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	BatchesProcessed uint64            `json:"batches_processed"`
	BatchesFailed    uint64            `json:"batches_failed"`
	RecordsProcessed uint64            `json:"records_processed"`
	RecordsInvalid   uint64            `json:"records_invalid"`
	RecordsFailed    uint64            `json:"records_failed"`
	LastBatchAt      time.Time         `json:"last_batch_at"`
	LastBatchSize    int               `json:"last_batch_size"`
	Latency          LatencyMetrics    `json:"latency"`
	Throughput       ThroughputMetrics `json:"throughput"`
	Errors           ErrorBreakdown    `json:"errors"`
	Resource         ResourceUsage     `json:"resource"`
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

type ThroughputMetrics struct {
	CurrentRPS      float64 `json:"current_rps"`
	WindowSeconds   float64 `json:"window_seconds"`
	RecordsInWindow uint64  `json:"records_in_window"`
}

type ErrorBreakdown struct {
	Storage      uint64 `json:"storage"`
	Notification uint64 `json:"notification"`
	Internal     uint64 `json:"internal"`
	LastError    string `json:"last_error,omitempty"`
}

func NewStats() *Stats {
	return &Stats{
		latency:    newLatencyWindow(latencySampleSize),
		throughput: newThroughputWindow(throughputWindowSize),
		cost:       newBatchCost(),
		now:        time.Now,
	}
}

func (s *Stats) recordFinished(valid bool, duration time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.recordsFailed++
		s.errors.Record(Classify(err), err)
		return
	}
	s.recordsProcessed++
	if !valid {
		s.recordsInvalid++
	}
	s.totalRecordTime += int64(duration)
	s.latency.Add(duration)
	s.throughput.Add(s.now())
}

// batchStarted returns the mark batchFinished charges allocations against.
func (s *Stats) batchStarted() uint64 {
	return s.cost.mark()
}

func (s *Stats) batchFinished(size, processed int, mark uint64, err error) {
	s.cost.charge(mark, processed)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastBatchAt = s.now().UTC()
	s.lastBatchSize = size
	if err != nil {
		s.batchesFailed++
		return
	}
	s.batchesProcessed++
}

// Snapshot copies the current counters and samples heap usage.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		BatchesProcessed: s.batchesProcessed,
		BatchesFailed:    s.batchesFailed,
		RecordsProcessed: s.recordsProcessed,
		RecordsInvalid:   s.recordsInvalid,
		RecordsFailed:    s.recordsFailed,
		LastBatchAt:      s.lastBatchAt,
		LastBatchSize:    s.lastBatchSize,
		Errors:           s.errors,
		Latency:          s.latency.Snapshot(),
	}
	if s.recordsProcessed > 0 {
		snap.Latency.AverageNs = s.totalRecordTime / int64(s.recordsProcessed)
	}
	tp := s.throughput.Snapshot(s.now())
	snap.Throughput = ThroughputMetrics{
		CurrentRPS:      tp.CurrentRPS,
		WindowSeconds:   tp.WindowSeconds,
		RecordsInWindow: uint64(tp.Count),
	}
	snap.Resource = s.cost.Snapshot()
	return snap
}

func (s *Stats) MarshalJSON() ([]byte, error) {
	return jsoncodec.Marshal(s.Snapshot())
}

// Record counts err under category, keeping the latest message.
func (e *ErrorBreakdown) Record(category ErrorCategory, err error) {
	switch category {
	case ErrorCategoryNone:
		if err == nil {
			return
		}
		e.Internal++
	case ErrorCategoryStorage:
		e.Storage++
	case ErrorCategoryNotification:
		e.Notification++
	default:
		e.Internal++
	}
	if err != nil {
		e.LastError = err.Error()
	}
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	if lw == nil || len(lw.samples) == 0 {
		return
	}
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	var metrics LatencyMetrics
	if lw == nil {
		return metrics
	}
	metrics.LastNs = lw.last
	if lw.filled == 0 {
		return metrics
	}
	samples := make([]int64, lw.filled)
	for i := 0; i < lw.filled; i++ {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	metrics.SampleSize = lw.filled
	metrics.P50Ns = percentile(samples, 0.50)
	metrics.P95Ns = percentile(samples, 0.95)
	metrics.P99Ns = percentile(samples, 0.99)
	var sum int64
	for _, v := range samples {
		sum += v
	}
	metrics.AverageNs = sum / int64(len(samples))
	return metrics
}

func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}

type throughputWindow struct {
	horizon time.Duration
	samples []time.Time
}

type throughputSnapshot struct {
	Count         int
	WindowSeconds float64
	CurrentRPS    float64
}

func newThroughputWindow(horizon time.Duration) *throughputWindow {
	return &throughputWindow{
		horizon: horizon,
		samples: make([]time.Time, 0, 64),
	}
}

func (tw *throughputWindow) Add(now time.Time) {
	if tw == nil {
		return
	}
	tw.samples = append(tw.samples, now)
	tw.cleanup(now)
}

func (tw *throughputWindow) cleanup(now time.Time) {
	if len(tw.samples) == 0 {
		return
	}
	cutoff := now.Add(-tw.horizon)
	idx := 0
	for idx < len(tw.samples) && tw.samples[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		copy(tw.samples, tw.samples[idx:])
		tw.samples = tw.samples[:len(tw.samples)-idx]
	}
}

func (tw *throughputWindow) Snapshot(now time.Time) throughputSnapshot {
	if tw == nil {
		return throughputSnapshot{}
	}
	tw.cleanup(now)
	if len(tw.samples) == 0 {
		return throughputSnapshot{}
	}
	span := now.Sub(tw.samples[0])
	if span <= 0 {
		span = time.Nanosecond
	}
	count := len(tw.samples)
	return throughputSnapshot{
		Count:         count,
		WindowSeconds: span.Seconds(),
		CurrentRPS:    float64(count) / span.Seconds(),
	}
}
