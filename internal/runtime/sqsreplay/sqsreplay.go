// Package sqsreplay pulls one batch from a real SQS queue and runs it through
// the pipeline as a single invocation. Messages are deleted only when the
// invocation succeeds, so a failed replay leaves them for the next attempt.
package sqsreplay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/awsconf"
	"github.com/drblury/alertflow/internal/runtime/logging"
	"github.com/drblury/alertflow/internal/runtime/pipeline"
)

// MaxBatchSize is the most messages SQS returns per receive call.
const MaxBatchSize = 10

const eventSource = "aws:sqs"

var (
	ErrQueueURLRequired = errors.New("sqsreplay: queue URL is required")
	ErrInvokerRequired  = errors.New("sqsreplay: invoker is required")
)

// Client is the subset of the SQS API the replayer uses.
type Client interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// NewClient allows overriding the client constructor for testing.
var NewClient = func(cfg aws.Config) Client {
	return sqs.NewFromConfig(cfg)
}

// Invoker runs one batch. *pipeline.Processor implements it.
type Invoker interface {
	Invoke(ctx context.Context, batch alert.Batch) pipeline.Response
}

// Options configures one replay.
type Options struct {
	QueueURL string
	// MaxMessages is clamped to 1..MaxBatchSize.
	MaxMessages int
	// WaitSeconds enables long polling for the single receive call.
	WaitSeconds int
	// VisibilityTimeout hides received messages while they are processed.
	VisibilityTimeout int
}

// Result summarises a replay.
type Result struct {
	Received int               `json:"received"`
	Deleted  int               `json:"deleted"`
	Response pipeline.Response `json:"response"`
}

type Replayer struct {
	client  Client
	invoker Invoker
	logger  logging.ServiceLogger
	region  string
}

func New(client Client, invoker Invoker, region string, logger logging.ServiceLogger) (*Replayer, error) {
	if client == nil {
		return nil, errors.New("sqsreplay: client is required")
	}
	if invoker == nil {
		return nil, ErrInvokerRequired
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Replayer{client: client, invoker: invoker, logger: logger, region: region}, nil
}

// NewFromConfig builds the SQS client from the shared AWS settings.
func NewFromConfig(ctx context.Context, settings awsconf.Settings, invoker Invoker, logger logging.ServiceLogger) (*Replayer, error) {
	awsCfg, err := awsconf.Load(ctx, settings, logger)
	if err != nil {
		return nil, err
	}
	return New(NewClient(awsCfg), invoker, awsCfg.Region, logger)
}

// Replay receives at most one batch, invokes the pipeline and deletes the
// messages on success. An empty receive is not an error and invokes nothing.
func (r *Replayer) Replay(ctx context.Context, opts Options) (Result, error) {
	if opts.QueueURL == "" {
		return Result{}, ErrQueueURLRequired
	}
	log := r.logger.With(logging.LogFields{"queue_url": opts.QueueURL})

	out, err := r.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(opts.QueueURL),
		MaxNumberOfMessages:         int32(clamp(opts.MaxMessages, 1, MaxBatchSize)),
		WaitTimeSeconds:             int32(clamp(opts.WaitSeconds, 0, 20)),
		VisibilityTimeout:           int32(max(opts.VisibilityTimeout, 0)),
		MessageAttributeNames:       []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameAll},
	})
	if err != nil {
		return Result{}, fmt.Errorf("receive messages: %w", err)
	}

	result := Result{Received: len(out.Messages)}
	if result.Received == 0 {
		log.Info("No messages to replay", nil)
		return result, nil
	}
	log.Info("Replaying messages", logging.LogFields{"received": result.Received})

	result.Response = r.invoker.Invoke(ctx, r.toBatch(out.Messages))
	if result.Response.StatusCode != http.StatusOK {
		log.Info("Replay failed, leaving messages on the queue", logging.LogFields{"body": result.Response.Body})
		return result, nil
	}

	result.Deleted, err = r.delete(ctx, opts.QueueURL, out.Messages)
	if err != nil {
		return result, err
	}
	log.Info("Replay finished", logging.LogFields{"deleted": result.Deleted})
	return result, nil
}

func (r *Replayer) delete(ctx context.Context, queueURL string, messages []types.Message) (int, error) {
	entries := make([]types.DeleteMessageBatchRequestEntry, 0, len(messages))
	for i, msg := range messages {
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(i)),
			ReceiptHandle: msg.ReceiptHandle,
		})
	}

	out, err := r.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(queueURL),
		Entries:  entries,
	})
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	if len(out.Failed) > 0 {
		first := out.Failed[0]
		return len(out.Successful), fmt.Errorf("delete messages: %d of %d failed, first: %s: %s",
			len(out.Failed), len(entries), aws.ToString(first.Code), aws.ToString(first.Message))
	}
	return len(out.Successful), nil
}

func (r *Replayer) toBatch(messages []types.Message) alert.Batch {
	batch := alert.Batch{Records: make([]alert.RawRecord, 0, len(messages))}
	for _, msg := range messages {
		rec := alert.RawRecord{
			MessageID:     aws.ToString(msg.MessageId),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
			Attributes:    msg.Attributes,
			MD5OfBody:     aws.ToString(msg.MD5OfBody),
			EventSource:   eventSource,
			AWSRegion:     r.region,
		}
		if msg.Body != nil {
			rec.Body = *msg.Body
		}
		if len(msg.MessageAttributes) > 0 {
			rec.MessageAttributes = make(map[string]alert.MessageAttribute, len(msg.MessageAttributes))
			for name, attr := range msg.MessageAttributes {
				rec.MessageAttributes[name] = alert.MessageAttribute{
					DataType:    aws.ToString(attr.DataType),
					StringValue: attr.StringValue,
					BinaryValue: attr.BinaryValue,
				}
			}
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
