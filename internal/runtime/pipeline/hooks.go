package pipeline

import (
	"context"
	"time"

	"github.com/drblury/alertflow/internal/runtime/logging"
)

// RecordContext describes one record moving through the pipeline.
type RecordContext struct {
	// Index is the position of the record in its batch.
	Index int
	// MessageID is the queue message id, empty when the source had none.
	MessageID string
	// AlertID is the generated id. It is empty in OnRecordStart.
	AlertID string
	// Category is the alert tipo, set once the record was parsed.
	Category string
	// Valid reports the parser verdict.
	Valid bool
	// Context is the context passed to the storage and notification calls.
	Context context.Context
	// StartedAt is when processing of the record began.
	StartedAt time.Time
	// Duration is only set in OnRecordDone and OnRecordError.
	Duration time.Duration
}

// RecordHooks are optional callbacks around each record. Nil hooks are
// skipped. Hooks run on the processing goroutine and must not block.
type RecordHooks struct {
	OnRecordStart func(rc RecordContext)
	OnRecordDone  func(rc RecordContext)
	OnRecordError func(rc RecordContext, err error)
}

// Merge returns hooks calling h first, then other.
func (h RecordHooks) Merge(other RecordHooks) RecordHooks {
	return RecordHooks{
		OnRecordStart: chain(h.OnRecordStart, other.OnRecordStart),
		OnRecordDone:  chain(h.OnRecordDone, other.OnRecordDone),
		OnRecordError: chainError(h.OnRecordError, other.OnRecordError),
	}
}

func chain(a, b func(RecordContext)) func(RecordContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(rc RecordContext) {
		a(rc)
		b(rc)
	}
}

func chainError(a, b func(RecordContext, error)) func(RecordContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(rc RecordContext, err error) {
		a(rc, err)
		b(rc, err)
	}
}

func (h RecordHooks) start(rc RecordContext) {
	if h.OnRecordStart != nil {
		h.OnRecordStart(rc)
	}
}

func (h RecordHooks) finish(rc RecordContext, err error) {
	if err != nil {
		if h.OnRecordError != nil {
			h.OnRecordError(rc, err)
		}
		return
	}
	if h.OnRecordDone != nil {
		h.OnRecordDone(rc)
	}
}

// LoggingHooks logs the record lifecycle. Start is logged at debug level.
func LoggingHooks(logger logging.ServiceLogger) RecordHooks {
	if logger == nil {
		return RecordHooks{}
	}
	return RecordHooks{
		OnRecordStart: func(rc RecordContext) {
			logger.Debug("Processing record", logging.LogFields{
				"index":      rc.Index,
				"message_id": rc.MessageID,
			})
		},
		OnRecordDone: func(rc RecordContext) {
			logger.Info("Record processed", logging.LogFields{
				"index":       rc.Index,
				"message_id":  rc.MessageID,
				"alert_id":    rc.AlertID,
				"tipo":        rc.Category,
				"is_valid":    rc.Valid,
				"duration_ms": rc.Duration.Milliseconds(),
			})
		},
		OnRecordError: func(rc RecordContext, err error) {
			logger.Error("Record failed", err, logging.LogFields{
				"index":       rc.Index,
				"message_id":  rc.MessageID,
				"alert_id":    rc.AlertID,
				"category":    string(Classify(err)),
				"duration_ms": rc.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks feeds record outcomes into m.
func MetricsHooks(m *Metrics) RecordHooks {
	if m == nil {
		return RecordHooks{}
	}
	return RecordHooks{
		OnRecordDone: func(rc RecordContext) {
			m.ObserveRecord(rc.Valid, nil, rc.Duration)
		},
		OnRecordError: func(rc RecordContext, err error) {
			m.ObserveRecord(rc.Valid, err, rc.Duration)
		},
	}
}

// StatsHooks feeds record outcomes into s.
func StatsHooks(s *Stats) RecordHooks {
	if s == nil {
		return RecordHooks{}
	}
	return RecordHooks{
		OnRecordDone: func(rc RecordContext) {
			s.recordFinished(rc.Valid, rc.Duration, nil)
		},
		OnRecordError: func(rc RecordContext, err error) {
			s.recordFinished(rc.Valid, rc.Duration, err)
		},
	}
}
