package pipeline

import (
	"errors"
	"fmt"
)

// Stage names the step of the per-record pipeline that failed.
type Stage string

const (
	StageParse   Stage = "parse"
	StageEnrich  Stage = "enrich"
	StageSave    Stage = "save"
	StageEncode  Stage = "encode"
	StagePublish Stage = "publish"
)

// ErrPanic marks a failure recovered from a panic inside the batch loop.
var ErrPanic = errors.New("alertflow: unexpected panic")

// BatchError aborts an invocation. It identifies the record and stage that
// failed; records before Index were already saved and published.
type BatchError struct {
	Index     int
	MessageID string
	Stage     Stage
	Err       error
}

func (e *BatchError) Error() string {
	if e.MessageID == "" {
		return fmt.Sprintf("record %d: %s: %v", e.Index, e.Stage, e.Err)
	}
	return fmt.Sprintf("record %d (message %s): %s: %v", e.Index, e.MessageID, e.Stage, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// StageInternal labels failures that did not come from a pipeline stage.
const StageInternal Stage = "internal"

// StageOf returns the stage recorded on a BatchError, or StageInternal.
func StageOf(err error) Stage {
	var batchErr *BatchError
	if errors.As(err, &batchErr) && batchErr.Stage != "" {
		return batchErr.Stage
	}
	return StageInternal
}

// ErrorCategory groups failures for stats and metrics.
type ErrorCategory string

const (
	ErrorCategoryNone         ErrorCategory = "none"
	ErrorCategoryStorage      ErrorCategory = "storage"
	ErrorCategoryNotification ErrorCategory = "notification"
	ErrorCategoryInternal     ErrorCategory = "internal"
)

// Classify maps an error to its category by the stage it surfaced in.
func Classify(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}
	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		return ErrorCategoryInternal
	}
	if errors.Is(batchErr.Err, ErrPanic) {
		return ErrorCategoryInternal
	}
	switch batchErr.Stage {
	case StageSave:
		return ErrorCategoryStorage
	case StagePublish:
		return ErrorCategoryNotification
	default:
		return ErrorCategoryInternal
	}
}
