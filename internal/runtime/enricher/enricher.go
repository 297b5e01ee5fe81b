// Package enricher stamps parsed messages with identity and processing
// metadata.
package enricher

import (
	"time"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/ids"
)

// Enricher assigns a fresh id, the current UTC time and the PROCESSED status.
// It does not look at the validity flag.
type Enricher struct {
	newID ids.Generator
	now   func() time.Time
}

// Option customises an Enricher.
type Option func(*Enricher)

// WithIDGenerator replaces the default ULID generator.
func WithIDGenerator(gen ids.Generator) Option {
	return func(e *Enricher) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		if now != nil {
			e.now = now
		}
	}
}

func New(opts ...Option) *Enricher {
	e := &Enricher{newID: ids.CreateULID, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Enricher) Enrich(msg alert.Message) alert.Record {
	return alert.Record{
		Message:   msg,
		ID:        e.newID(),
		Timestamp: e.now().UTC().Format(alert.TimestampLayout),
		Status:    alert.StatusProcessed,
	}
}
