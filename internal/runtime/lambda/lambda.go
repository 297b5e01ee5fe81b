// Package lambda adapts the pipeline to AWS Lambda SQS triggers.
package lambda

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/logging"
	"github.com/drblury/alertflow/internal/runtime/pipeline"
)

// Invoker runs one batch. *pipeline.Processor implements it.
type Invoker interface {
	Invoke(ctx context.Context, batch alert.Batch) pipeline.Response
}

// Handler is the function passed to lambda.Start.
type Handler func(ctx context.Context, event events.SQSEvent) (pipeline.Response, error)

// NewHandler converts SQS events into batches. Failures are reported in the
// response body with status 500, never as a function error, so the runtime
// does not retry the whole event.
func NewHandler(invoker Invoker, logger logging.ServiceLogger) Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(ctx context.Context, event events.SQSEvent) (pipeline.Response, error) {
		fields := logging.LogFields{"records": len(event.Records)}
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			fields["aws_request_id"] = lc.AwsRequestID
		}
		logger.Debug("Received SQS event", fields)

		return invoker.Invoke(ctx, FromSQSEvent(event)), nil
	}
}

// FromSQSEvent maps the Lambda event onto the pipeline input.
func FromSQSEvent(event events.SQSEvent) alert.Batch {
	batch := alert.Batch{Records: make([]alert.RawRecord, 0, len(event.Records))}
	for _, msg := range event.Records {
		batch.Records = append(batch.Records, FromSQSMessage(msg))
	}
	return batch
}

func FromSQSMessage(msg events.SQSMessage) alert.RawRecord {
	rec := alert.RawRecord{
		MessageID:      msg.MessageId,
		ReceiptHandle:  msg.ReceiptHandle,
		Body:           msg.Body,
		Attributes:     msg.Attributes,
		MD5OfBody:      msg.Md5OfBody,
		EventSource:    msg.EventSource,
		EventSourceARN: msg.EventSourceARN,
		AWSRegion:      msg.AWSRegion,
	}
	if len(msg.MessageAttributes) > 0 {
		rec.MessageAttributes = make(map[string]alert.MessageAttribute, len(msg.MessageAttributes))
		for name, attr := range msg.MessageAttributes {
			rec.MessageAttributes[name] = alert.MessageAttribute{
				DataType:    attr.DataType,
				StringValue: attr.StringValue,
				BinaryValue: attr.BinaryValue,
			}
		}
	}
	return rec
}
