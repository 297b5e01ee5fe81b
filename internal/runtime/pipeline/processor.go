// Package pipeline drives one invocation: every delivered record is parsed,
// enriched, persisted and announced in order, and the outcome is folded into a
// single batch result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/enricher"
	errspkg "github.com/drblury/alertflow/internal/runtime/errors"
	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
	"github.com/drblury/alertflow/internal/runtime/logging"
	"github.com/drblury/alertflow/internal/runtime/metadata"
	"github.com/drblury/alertflow/internal/runtime/notify"
	"github.com/drblury/alertflow/internal/runtime/parser"
	"github.com/drblury/alertflow/internal/runtime/storage"
)

const tracerName = "github.com/drblury/alertflow/internal/runtime/pipeline"

// Parser turns a raw record into a message. It must not fail; data problems
// are recorded on the message.
type Parser interface {
	Parse(raw alert.RawRecord) alert.Message
}

// Enricher stamps a message with id, timestamp and status.
type Enricher interface {
	Enrich(msg alert.Message) alert.Record
}

// Dependencies are the collaborators of a Processor. Sink and Publisher are
// required; everything else falls back to a default.
type Dependencies struct {
	Sink      storage.Sink
	Publisher notify.Publisher
	Parser    Parser
	Enricher  Enricher
	Logger    logging.ServiceLogger
	Hooks     RecordHooks
	Metrics   *Metrics
	Stats     *Stats
	Tracer    trace.Tracer
	Clock     func() time.Time
}

// Processor runs batches. It keeps no per-invocation state, so concurrent
// Handle calls are safe when the sink and publisher are.
type Processor struct {
	sink      storage.Sink
	publisher notify.Publisher
	parser    Parser
	enricher  Enricher
	logger    logging.ServiceLogger
	hooks     RecordHooks
	metrics   *Metrics
	stats     *Stats
	tracer    trace.Tracer
	now       func() time.Time
}

func NewProcessor(deps Dependencies) (*Processor, error) {
	if deps.Sink == nil {
		return nil, errspkg.ErrSinkRequired
	}
	if deps.Publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}

	p := &Processor{
		sink:      deps.Sink,
		publisher: deps.Publisher,
		parser:    deps.Parser,
		enricher:  deps.Enricher,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		stats:     deps.Stats,
		tracer:    deps.Tracer,
		now:       deps.Clock,
	}
	if p.logger == nil {
		p.logger = logging.NewNopLogger()
	}
	if p.parser == nil {
		p.parser = parser.New(parser.WithLogger(p.logger))
	}
	if p.enricher == nil {
		p.enricher = enricher.New()
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	if p.now == nil {
		p.now = time.Now
	}
	p.hooks = LoggingHooks(p.logger).
		Merge(MetricsHooks(p.metrics)).
		Merge(StatsHooks(p.stats)).
		Merge(deps.Hooks)
	return p, nil
}

// Handle processes records in order. The first storage or notification
// failure, or a recovered panic, stops the batch: the returned *BatchError
// names the failing record and the result lists the ids completed before it.
// Nothing already saved or published is rolled back.
func (p *Processor) Handle(ctx context.Context, records []alert.RawRecord) (alert.BatchResult, error) {
	ctx, span := p.tracer.Start(ctx, "alertflow.batch",
		trace.WithAttributes(attribute.Int("alertflow.batch.size", len(records))))
	defer span.End()

	var mark uint64
	if p.stats != nil {
		mark = p.stats.batchStarted()
	}
	result := alert.BatchResult{ProcessedIDs: make([]string, 0, len(records))}
	for i, raw := range records {
		id, err := p.handleRecord(ctx, i, raw)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.finishBatch(len(records), result.Count(), mark, err)
			p.logger.Error("Failed to process messages", err, logging.LogFields{
				"processed": result.Count(),
				"records":   len(records),
			})
			return result, err
		}
		result.ProcessedIDs = append(result.ProcessedIDs, id)
	}

	span.SetAttributes(attribute.Int("alertflow.batch.processed", result.Count()))
	p.finishBatch(len(records), result.Count(), mark, nil)
	p.logger.Info("Batch processed", logging.LogFields{"processed": result.Count()})
	return result, nil
}

func (p *Processor) handleRecord(ctx context.Context, index int, raw alert.RawRecord) (id string, err error) {
	ctx, span := p.tracer.Start(ctx, "alertflow.record", trace.WithAttributes(
		attribute.Int("alertflow.record.index", index),
		attribute.String("messaging.message.id", raw.MessageID),
	))
	rc := RecordContext{Index: index, MessageID: raw.MessageID, Context: ctx, StartedAt: p.now()}
	stage := StageParse

	defer func() {
		if r := recover(); r != nil {
			id = ""
			err = p.fail(rc, stage, fmt.Errorf("%w: %v", ErrPanic, r))
		}
		rc.Duration = p.now().Sub(rc.StartedAt)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		p.hooks.finish(rc, err)
	}()
	p.hooks.start(rc)

	msg := p.parser.Parse(raw)
	rc.Valid = msg.Valid
	rc.Category = msg.Category()

	stage = StageEnrich
	rec := p.enricher.Enrich(msg)
	rc.AlertID = rec.ID
	span.SetAttributes(
		attribute.String("alertflow.alert.id", rec.ID),
		attribute.String("alertflow.alert.tipo", rc.Category),
		attribute.Bool("alertflow.alert.is_valid", rec.Valid),
	)

	stage = StageSave
	if err := p.sink.Save(ctx, rec); err != nil {
		return "", p.fail(rc, stage, err)
	}

	stage = StageEncode
	notification := alert.NewNotification(rec)
	payload, err := notification.Payload()
	if err != nil {
		return "", p.fail(rc, stage, err)
	}

	stage = StagePublish
	md := metadata.Metadata{}.
		With(metadata.KeyAlertID, rec.ID).
		With(metadata.KeyCategory, notification.Category).
		With(metadata.KeyService, notification.Service).
		With(metadata.KeySourceMessageID, raw.MessageID)
	if err := p.publisher.Publish(notify.WithMetadata(ctx, md), notification.Subject(), payload); err != nil {
		return "", p.fail(rc, stage, err)
	}
	return rec.ID, nil
}

func (p *Processor) fail(rc RecordContext, stage Stage, err error) error {
	return &BatchError{Index: rc.Index, MessageID: rc.MessageID, Stage: stage, Err: err}
}

func (p *Processor) finishBatch(size, processed int, mark uint64, err error) {
	if p.metrics != nil {
		p.metrics.ObserveBatch(size, err)
	}
	if p.stats != nil {
		p.stats.batchFinished(size, processed, mark, err)
	}
}

// Response is the invocation output in the shape queue-triggered functions
// return.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type successBody struct {
	Message      string   `json:"message"`
	ProcessedIDs []string `json:"processed_ids"`
}

type failureBody struct {
	Message string `json:"message"`
}

// Invoke runs a batch and renders the outcome: 200 with the processed ids, or
// 500 with the failure description.
func (p *Processor) Invoke(ctx context.Context, batch alert.Batch) Response {
	result, err := p.Handle(ctx, batch.Records)
	if err != nil {
		return failureResponse(err)
	}
	ids := result.ProcessedIDs
	if ids == nil {
		ids = []string{}
	}
	body, encErr := jsoncodec.MarshalString(successBody{Message: result.Summary(), ProcessedIDs: ids})
	if encErr != nil {
		return failureResponse(encErr)
	}
	return Response{StatusCode: 200, Body: body}
}

func failureResponse(err error) Response {
	body, encErr := jsoncodec.MarshalString(failureBody{Message: fmt.Sprintf(alert.FailureDescription, err.Error())})
	if encErr != nil {
		body = `{"message":"Error processing messages"}`
	}
	return Response{StatusCode: 500, Body: body}
}
