// Package storage defines how processed alerts are persisted and read back.
// Each backend lives in its own sub-package and registers itself with the
// registry, mirroring the notification transports.
package storage

import (
	"context"
	"fmt"

	"github.com/drblury/alertflow/internal/runtime/alert"
	errspkg "github.com/drblury/alertflow/internal/runtime/errors"
)

const (
	// DefaultListLimit bounds List when the caller passes no limit.
	DefaultListLimit = 100
	// MaxListLimit bounds a single List call.
	MaxListLimit = 1000
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errspkg.ErrRecordNotFound

// Sink persists one enriched record, keyed by its id. Errors are not retried.
type Sink interface {
	Save(ctx context.Context, rec alert.Record) error
}

// Reader exposes the stored records.
type Reader interface {
	Get(ctx context.Context, id string) (alert.Record, error)
	// List returns at most limit records. Backends that keep an index return
	// the newest first; DynamoDB returns scan order.
	List(ctx context.Context, limit int) ([]alert.Record, error)
}

// Store is a full backend.
type Store interface {
	Sink
	Reader
	Close() error
}

// Config provides the values the backends need. *config.Config implements it.
type Config interface {
	GetStorageBackend() string
	GetDynamoDBTable() string
	GetPostgresURL() string
	GetPostgresTable() string
	GetSQLiteFile() string
	GetRedisURL() string
	GetRedisKeyPrefix() string

	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// Error describes a failed storage operation.
type Error struct {
	Backend string
	Op      string
	ID      string
	Err     error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("storage %s: %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s: %s %s: %v", e.Backend, e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err.
func Wrap(backend, op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Backend: backend, Op: op, ID: id, Err: err}
}

// NormalizeLimit applies DefaultListLimit to non-positive limits and caps the
// rest at MaxListLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
