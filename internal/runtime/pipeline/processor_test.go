package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/enricher"
	errspkg "github.com/drblury/alertflow/internal/runtime/errors"
	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
	"github.com/drblury/alertflow/internal/runtime/metadata"
	"github.com/drblury/alertflow/internal/runtime/notify"
	"github.com/drblury/alertflow/internal/runtime/storage"
	"github.com/drblury/alertflow/internal/runtime/storage/memory"
)

const cpuHighBody = `{"tipo":"CPU_HIGH","servico":"api-gateway","valor":92.5,"limite":80.0,"mensagem":"CPU usage above threshold"}`

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type published struct {
	subject  string
	payload  string
	metadata metadata.Metadata
}

type recordingPublisher struct {
	calls  []published
	failAt int
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, subject, payload string) error {
	r.calls = append(r.calls, published{subject: subject, payload: payload, metadata: notify.MetadataFrom(ctx)})
	if r.err != nil && len(r.calls)-1 == r.failAt {
		return notify.Wrap("test", subject, r.err)
	}
	return nil
}

type failingSink struct {
	inner  *memory.Store
	saves  int
	failAt int
	err    error
}

func (f *failingSink) Save(ctx context.Context, rec alert.Record) error {
	f.saves++
	if f.saves-1 == f.failAt {
		return storage.Wrap("test", "save", rec.ID, f.err)
	}
	return f.inner.Save(ctx, rec)
}

type panickingParser struct{}

func (panickingParser) Parse(alert.RawRecord) alert.Message {
	panic("parser exploded")
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("alert-%d", n)
	}
}

func newTestProcessor(t *testing.T, deps Dependencies) *Processor {
	t.Helper()
	if deps.Enricher == nil {
		deps.Enricher = enricher.New(
			enricher.WithIDGenerator(sequentialIDs()),
			enricher.WithClock(func() time.Time { return fixedNow }),
		)
	}
	p, err := NewProcessor(deps)
	require.NoError(t, err)
	return p
}

func records(bodies ...any) []alert.RawRecord {
	out := make([]alert.RawRecord, len(bodies))
	for i, body := range bodies {
		out[i] = alert.RawRecord{MessageID: fmt.Sprintf("m-%d", i+1), Body: body}
	}
	return out
}

func TestNewProcessorRequiresCollaborators(t *testing.T) {
	_, err := NewProcessor(Dependencies{Publisher: &recordingPublisher{}})
	assert.ErrorIs(t, err, errspkg.ErrSinkRequired)

	_, err = NewProcessor(Dependencies{Sink: memory.New()})
	assert.ErrorIs(t, err, errspkg.ErrPublisherRequired)
}

func TestHandleCPUHighEndToEnd(t *testing.T) {
	sink := memory.New()
	pub := &recordingPublisher{}
	p := newTestProcessor(t, Dependencies{Sink: sink, Publisher: pub})

	result, err := p.Handle(context.Background(), records(cpuHighBody))
	require.NoError(t, err)
	assert.Equal(t, []string{"alert-1"}, result.ProcessedIDs)

	rec, err := sink.Get(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"tipo":      "CPU_HIGH",
		"servico":   "api-gateway",
		"valor":     92.5,
		"limite":    80.0,
		"mensagem":  "CPU usage above threshold",
		"is_valid":  true,
		"id":        "alert-1",
		"timestamp": "2024-05-01T10:00:00.000000Z",
		"status":    "PROCESSED",
	}, rec.Item())

	require.Len(t, pub.calls, 1)
	assert.Equal(t, "Alert - CPU_HIGH", pub.calls[0].subject)
	assert.JSONEq(t, `{
		"id": "alert-1",
		"tipo": "CPU_HIGH",
		"servico": "api-gateway",
		"timestamp": "2024-05-01T10:00:00.000000Z",
		"mensagem": "Alert processed: CPU usage above threshold"
	}`, pub.calls[0].payload)
	assert.Equal(t, metadata.Metadata{
		metadata.KeyAlertID:         "alert-1",
		metadata.KeyCategory:        "CPU_HIGH",
		metadata.KeyService:         "api-gateway",
		metadata.KeySourceMessageID: "m-1",
	}, pub.calls[0].metadata)
}

func TestHandleKeepsInputOrder(t *testing.T) {
	sink := memory.New()
	pub := &recordingPublisher{}
	p := newTestProcessor(t, Dependencies{Sink: sink, Publisher: pub})

	bodies := make([]any, 5)
	for i := range bodies {
		bodies[i] = fmt.Sprintf(`{"tipo":"T%d","servico":"svc"}`, i)
	}
	result, err := p.Handle(context.Background(), records(bodies...))
	require.NoError(t, err)

	assert.Equal(t, []string{"alert-1", "alert-2", "alert-3", "alert-4", "alert-5"}, result.ProcessedIDs)
	assert.Equal(t, 5, sink.Len())
	require.Len(t, pub.calls, 5)
	for i, call := range pub.calls {
		assert.Equal(t, fmt.Sprintf("Alert - T%d", i), call.subject)
	}
}

func TestHandleEmptyBatch(t *testing.T) {
	sink := memory.New()
	pub := &recordingPublisher{}
	p := newTestProcessor(t, Dependencies{Sink: sink, Publisher: pub})

	result, err := p.Handle(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, result.ProcessedIDs)
	assert.Empty(t, result.ProcessedIDs)
	assert.Zero(t, sink.Len())
	assert.Empty(t, pub.calls)
}

func TestHandleInvalidMessagesAreStillPersistedAndNotified(t *testing.T) {
	sink := memory.New()
	pub := &recordingPublisher{}
	p := newTestProcessor(t, Dependencies{Sink: sink, Publisher: pub})

	result, err := p.Handle(context.Background(), records(`{"tipo":"DISK_FULL"}`, "{not json", nil))
	require.NoError(t, err)
	require.Len(t, result.ProcessedIDs, 3)

	missing, err := sink.Get(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.False(t, missing.Valid)
	assert.Equal(t, "DISK_FULL", missing.Category())

	broken, err := sink.Get(context.Background(), "alert-2")
	require.NoError(t, err)
	assert.False(t, broken.Valid)
	assert.Equal(t, alert.ErrorInvalidJSON, broken.Error)
	assert.Equal(t, "{not json", broken.RawMessage)

	empty, err := sink.Get(context.Background(), "alert-3")
	require.NoError(t, err)
	assert.False(t, empty.Valid)

	require.Len(t, pub.calls, 3)
	assert.Equal(t, "Alert - DISK_FULL", pub.calls[0].subject)
	assert.Equal(t, "Alert - UNKNOWN", pub.calls[1].subject)
	assert.Contains(t, pub.calls[1].payload, `"mensagem":"Alert processed: No details"`)
}

func TestHandleAbortsOnSaveFailure(t *testing.T) {
	boom := errors.New("throttled")
	sink := &failingSink{inner: memory.New(), failAt: 1, err: boom}
	pub := &recordingPublisher{}
	p := newTestProcessor(t, Dependencies{Sink: sink, Publisher: pub})

	result, err := p.Handle(context.Background(), records(cpuHighBody, cpuHighBody, cpuHighBody))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 1, batchErr.Index)
	assert.Equal(t, "m-2", batchErr.MessageID)
	assert.Equal(t, StageSave, batchErr.Stage)

	var storageErr *storage.Error
	assert.ErrorAs(t, err, &storageErr)
	assert.Equal(t, ErrorCategoryStorage, Classify(err))

	assert.Equal(t, []string{"alert-1"}, result.ProcessedIDs)
	assert.Equal(t, 2, sink.saves)
	assert.Equal(t, 1, sink.inner.Len())
	assert.Len(t, pub.calls, 1)
}

func TestHandleAbortsOnPublishFailure(t *testing.T) {
	sink := memory.New()
	pub := &recordingPublisher{failAt: 0, err: errors.New("topic not found")}
	p := newTestProcessor(t, Dependencies{Sink: sink, Publisher: pub})

	result, err := p.Handle(context.Background(), records(cpuHighBody, cpuHighBody))
	require.Error(t, err)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 0, batchErr.Index)
	assert.Equal(t, StagePublish, batchErr.Stage)
	assert.Equal(t, ErrorCategoryNotification, Classify(err))

	var notifyErr *notify.Error
	assert.ErrorAs(t, err, &notifyErr)

	assert.Empty(t, result.ProcessedIDs)
	assert.Equal(t, 1, sink.Len(), "the saved record is not rolled back")
	assert.Len(t, pub.calls, 1)
}

func TestHandleRecoversPanics(t *testing.T) {
	sink := memory.New()
	pub := &recordingPublisher{}
	p := newTestProcessor(t, Dependencies{Sink: sink, Publisher: pub, Parser: panickingParser{}})

	_, err := p.Handle(context.Background(), records(cpuHighBody))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "parser exploded")

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, StageParse, batchErr.Stage)
	assert.Equal(t, ErrorCategoryInternal, Classify(err))
	assert.Zero(t, sink.Len())
	assert.Empty(t, pub.calls)
}

func TestHandleRunsHooks(t *testing.T) {
	var started, done []int
	var failed []error
	hooks := RecordHooks{
		OnRecordStart: func(rc RecordContext) { started = append(started, rc.Index) },
		OnRecordDone: func(rc RecordContext) {
			assert.NotEmpty(t, rc.AlertID)
			assert.NotNil(t, rc.Context)
			done = append(done, rc.Index)
		},
		OnRecordError: func(rc RecordContext, err error) { failed = append(failed, err) },
	}
	pub := &recordingPublisher{failAt: 1, err: errors.New("down")}
	p := newTestProcessor(t, Dependencies{Sink: memory.New(), Publisher: pub, Hooks: hooks})

	_, err := p.Handle(context.Background(), records(cpuHighBody, cpuHighBody, cpuHighBody))
	require.Error(t, err)
	assert.Equal(t, []int{0, 1}, started)
	assert.Equal(t, []int{0}, done)
	require.Len(t, failed, 1)
	assert.Equal(t, err, failed[0])
}

func TestHandleFeedsMetricsAndStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	require.NoError(t, metrics.Register())
	stats := NewStats()

	p := newTestProcessor(t, Dependencies{
		Sink:      memory.New(),
		Publisher: &recordingPublisher{},
		Metrics:   metrics,
		Stats:     stats,
	})
	_, err := p.Handle(context.Background(), records(cpuHighBody, `{"tipo":"X"}`))
	require.NoError(t, err)

	failing := newTestProcessor(t, Dependencies{
		Sink:      &failingSink{inner: memory.New(), failAt: 0, err: errors.New("down")},
		Publisher: &recordingPublisher{},
		Metrics:   metrics,
		Stats:     stats,
	})
	_, err = failing.Handle(context.Background(), records(cpuHighBody))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.batchesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.batchesTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.recordsTotal.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.recordsTotal.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failuresTotal.WithLabelValues("save")))

	snap := stats.Snapshot()
	assert.Equal(t, uint64(1), snap.BatchesProcessed)
	assert.Equal(t, uint64(1), snap.BatchesFailed)
	assert.Equal(t, uint64(2), snap.RecordsProcessed)
	assert.Equal(t, uint64(1), snap.RecordsInvalid)
	assert.Equal(t, uint64(1), snap.RecordsFailed)
	assert.Equal(t, uint64(1), snap.Errors.Storage)
	assert.Contains(t, snap.Errors.LastError, "down")
	assert.Equal(t, 1, snap.LastBatchSize)
	assert.Equal(t, 2, snap.Latency.SampleSize)
}

func TestInvokeSuccessResponse(t *testing.T) {
	p := newTestProcessor(t, Dependencies{Sink: memory.New(), Publisher: &recordingPublisher{}})

	resp := p.Invoke(context.Background(), alert.Batch{Records: records(cpuHighBody, cpuHighBody)})
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"message":"2 processed successfully","processed_ids":["alert-1","alert-2"]}`, resp.Body)

	empty := p.Invoke(context.Background(), alert.Batch{})
	assert.Equal(t, 200, empty.StatusCode)
	assert.JSONEq(t, `{"message":"0 processed successfully","processed_ids":[]}`, empty.Body)
}

func TestInvokeFailureResponse(t *testing.T) {
	p := newTestProcessor(t, Dependencies{Sink: memory.New(), Publisher: &recordingPublisher{}, Parser: panickingParser{}})

	resp := p.Invoke(context.Background(), alert.Batch{Records: records(cpuHighBody)})
	assert.Equal(t, 500, resp.StatusCode)

	var body map[string]any
	require.NoError(t, jsoncodec.UnmarshalString(resp.Body, &body))
	require.Len(t, body, 1)
	assert.Contains(t, body["message"], "Error processing messages: ")
	assert.Contains(t, body["message"], "parser exploded")
}

func TestResponseJSONShape(t *testing.T) {
	data, err := jsoncodec.Marshal(Response{StatusCode: 200, Body: "{}"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"statusCode":200,"body":"{}"}`, string(data))
}
