// Package notify delivers alert notifications. The SNS publisher keeps the
// subject as a native attribute; the transport publisher wraps any Watermill
// publisher and carries the subject as a header.
package notify

import (
	"context"
	"fmt"

	metadatapkg "github.com/drblury/alertflow/internal/runtime/metadata"
)

// Publisher sends one notification. Errors are not retried.
type Publisher interface {
	Publish(ctx context.Context, subject, payload string) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, subject, payload string) error

func (f PublisherFunc) Publish(ctx context.Context, subject, payload string) error {
	return f(ctx, subject, payload)
}

// Error describes a rejected publish.
type Error struct {
	Backend string
	Subject string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("notify %s: publish %q: %v", e.Backend, e.Subject, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err.
func Wrap(backend, subject string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Backend: backend, Subject: subject, Err: err}
}

type metadataKey struct{}

// WithMetadata attaches headers for publishers that can carry them.
func WithMetadata(ctx context.Context, md metadatapkg.Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// MetadataFrom returns the headers attached to ctx, never nil.
func MetadataFrom(ctx context.Context) metadatapkg.Metadata {
	if ctx == nil {
		return metadatapkg.Metadata{}
	}
	md, ok := ctx.Value(metadataKey{}).(metadatapkg.Metadata)
	if !ok || md == nil {
		return metadatapkg.Metadata{}
	}
	return md
}
