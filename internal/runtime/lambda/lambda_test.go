package lambda

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/pipeline"
)

type recordingInvoker struct {
	batches []alert.Batch
	resp    pipeline.Response
}

func (r *recordingInvoker) Invoke(_ context.Context, batch alert.Batch) pipeline.Response {
	r.batches = append(r.batches, batch)
	return r.resp
}

func sampleEvent() events.SQSEvent {
	value := "critical"
	return events.SQSEvent{Records: []events.SQSMessage{{
		MessageId:     "19dd0b57-b21e-4ac1-bd88-01bbb068cb78",
		ReceiptHandle: "MessageReceiptHandle",
		Body:          `{"tipo":"CPU_HIGH","servico":"api-gateway"}`,
		Md5OfBody:     "7b270e59b47ff90a553787216d55d91d",
		Attributes: map[string]string{
			"ApproximateReceiveCount": "1",
		},
		MessageAttributes: map[string]events.SQSMessageAttribute{
			"severity": {DataType: "String", StringValue: &value},
		},
		EventSource:    "aws:sqs",
		EventSourceARN: "arn:aws:sqs:us-east-1:123456789012:MonitoringQueue",
		AWSRegion:      "us-east-1",
	}}}
}

func TestFromSQSEvent(t *testing.T) {
	batch := FromSQSEvent(sampleEvent())
	require.Len(t, batch.Records, 1)

	rec := batch.Records[0]
	assert.Equal(t, "19dd0b57-b21e-4ac1-bd88-01bbb068cb78", rec.MessageID)
	assert.Equal(t, `{"tipo":"CPU_HIGH","servico":"api-gateway"}`, rec.Body)
	assert.Equal(t, "aws:sqs", rec.EventSource)
	assert.Equal(t, "us-east-1", rec.AWSRegion)
	assert.Equal(t, "1", rec.Attributes["ApproximateReceiveCount"])
	require.Contains(t, rec.MessageAttributes, "severity")
	assert.Equal(t, "critical", *rec.MessageAttributes["severity"].StringValue)

	empty := FromSQSEvent(events.SQSEvent{})
	assert.NotNil(t, empty.Records)
	assert.Empty(t, empty.Records)
}

func TestHandlerNeverReturnsAnError(t *testing.T) {
	invoker := &recordingInvoker{resp: pipeline.Response{StatusCode: 500, Body: `{"message":"Error processing messages: boom"}`}}
	handler := NewHandler(invoker, nil)

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	resp, err := handler(ctx, sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	require.Len(t, invoker.batches, 1)
	assert.Len(t, invoker.batches[0].Records, 1)
}
