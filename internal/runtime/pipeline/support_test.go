package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchErrorFormatting(t *testing.T) {
	cause := errors.New("boom")
	err := &BatchError{Index: 2, MessageID: "m-3", Stage: StageSave, Err: cause}
	assert.Equal(t, "record 2 (message m-3): save: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	anonymous := &BatchError{Index: 0, Stage: StagePublish, Err: cause}
	assert.Equal(t, "record 0: publish: boom", anonymous.Error())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorCategoryNone, Classify(nil))
	assert.Equal(t, ErrorCategoryInternal, Classify(errors.New("plain")))
	assert.Equal(t, ErrorCategoryStorage, Classify(&BatchError{Stage: StageSave, Err: errors.New("x")}))
	assert.Equal(t, ErrorCategoryNotification, Classify(&BatchError{Stage: StagePublish, Err: errors.New("x")}))
	assert.Equal(t, ErrorCategoryInternal, Classify(&BatchError{Stage: StageEncode, Err: errors.New("x")}))
	assert.Equal(t, ErrorCategoryInternal, Classify(&BatchError{Stage: StageSave, Err: ErrPanic}))

	assert.Equal(t, StageSave, StageOf(&BatchError{Stage: StageSave}))
	assert.Equal(t, StageInternal, StageOf(errors.New("plain")))
}

func TestRecordHooksMerge(t *testing.T) {
	var calls []string
	first := RecordHooks{
		OnRecordStart: func(RecordContext) { calls = append(calls, "first-start") },
		OnRecordDone:  func(RecordContext) { calls = append(calls, "first-done") },
	}
	second := RecordHooks{
		OnRecordDone:  func(RecordContext) { calls = append(calls, "second-done") },
		OnRecordError: func(RecordContext, error) { calls = append(calls, "second-error") },
	}

	merged := first.Merge(second)
	merged.start(RecordContext{})
	merged.finish(RecordContext{}, nil)
	merged.finish(RecordContext{}, errors.New("x"))

	assert.Equal(t, []string{"first-start", "first-done", "second-done", "second-error"}, calls)

	var empty RecordHooks
	assert.NotPanics(t, func() {
		empty.start(RecordContext{})
		empty.finish(RecordContext{}, errors.New("x"))
	})
	assert.Nil(t, LoggingHooks(nil).OnRecordDone)
	assert.Nil(t, MetricsHooks(nil).OnRecordError)
	assert.Nil(t, StatsHooks(nil).OnRecordStart)
}

func TestMetricsRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	other := NewMetrics(reg)
	require.NoError(t, other.Register(), "duplicate collectors are tolerated")
}

func TestPercentile(t *testing.T) {
	samples := []int64{10, 20, 30, 40, 50}
	assert.Equal(t, int64(10), percentile(samples, 0))
	assert.Equal(t, int64(30), percentile(samples, 0.5))
	assert.Equal(t, int64(50), percentile(samples, 1))
	assert.Equal(t, int64(40), percentile(samples, 0.75))
	assert.Zero(t, percentile(nil, 0.5))
}

func TestLatencyWindowWraps(t *testing.T) {
	lw := newLatencyWindow(3)
	for _, d := range []time.Duration{1, 2, 3, 4} {
		lw.Add(d)
	}
	snap := lw.Snapshot()
	assert.Equal(t, 3, snap.SampleSize)
	assert.Equal(t, int64(3), snap.P50Ns)
	assert.Equal(t, int64(4), snap.LastNs)
	assert.Equal(t, int64(3), snap.AverageNs)
}

func TestThroughputWindowDropsOldSamples(t *testing.T) {
	tw := newThroughputWindow(time.Minute)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tw.Add(start)
	tw.Add(start.Add(30 * time.Second))
	tw.Add(start.Add(90 * time.Second))

	snap := tw.Snapshot(start.Add(90 * time.Second))
	assert.Equal(t, 2, snap.Count)
	assert.InDelta(t, 60.0, snap.WindowSeconds, 0.001)

	assert.Zero(t, tw.Snapshot(start.Add(10*time.Minute)).Count)
}

var retained [][]byte

func TestBatchCostChargesAllocations(t *testing.T) {
	c := newBatchCost()
	start := c.mark()

	for range 8 {
		retained = append(retained, make([]byte, 64<<10))
	}
	c.charge(start, 4)

	usage := c.Snapshot()
	assert.GreaterOrEqual(t, usage.LastBatchAllocBytes, uint64(8*64<<10))
	assert.Equal(t, usage.LastBatchAllocBytes/4, usage.AllocBytesPerRecord)

	c.charge(c.mark()+1<<40, 0)
	assert.Zero(t, c.Snapshot().LastBatchAllocBytes)

	var nilCost *batchCost
	assert.Zero(t, nilCost.mark())
	nilCost.charge(0, 1)
	assert.Equal(t, ResourceUsage{}, nilCost.Snapshot())
}

func TestStatsSnapshotJSON(t *testing.T) {
	s := NewStats()
	s.recordFinished(true, 5*time.Millisecond, nil)
	s.recordFinished(false, 0, &BatchError{Stage: StagePublish, Err: errors.New("down")})
	s.batchFinished(2, 1, s.batchStarted(), errors.New("down"))

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"records_processed":1`)
	assert.Contains(t, string(data), `"notification":1`)
	assert.Contains(t, string(data), `"batches_failed":1`)

	snap := s.Snapshot()
	assert.Equal(t, int64(5*time.Millisecond), snap.Latency.AverageNs)
	assert.Positive(t, snap.Resource.Goroutines)
	assert.Positive(t, snap.Resource.HeapBytes)

	var nilStats *Stats
	assert.Equal(t, StatsSnapshot{}, nilStats.Snapshot())
}
