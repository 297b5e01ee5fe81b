package errors

import sterrors "errors"

var (
	ErrConfigRequired     = sterrors.New("alertflow: configuration is required")
	ErrLoggerRequired     = sterrors.New("alertflow: logger is required")
	ErrSinkRequired       = sterrors.New("alertflow: storage sink is required")
	ErrPublisherRequired  = sterrors.New("alertflow: notification publisher is required")
	ErrTopicRequired      = sterrors.New("alertflow: notification topic is required")
	ErrUnknownBackend     = sterrors.New("alertflow: unknown backend")
	ErrRecordNotFound     = sterrors.New("alertflow: record not found")
	ErrInvalidRecordLimit = sterrors.New("alertflow: record limit must be positive")
)

// ConfigValidationError wraps the joined result of a failed configuration check.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "alertflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
