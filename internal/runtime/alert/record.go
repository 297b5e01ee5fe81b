package alert

import (
	"fmt"

	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
)

// MessageAttribute mirrors an SQS message attribute.
type MessageAttribute struct {
	DataType    string  `json:"dataType"`
	StringValue *string `json:"stringValue,omitempty"`
	BinaryValue []byte  `json:"binaryValue,omitempty"`
}

// RawRecord is one delivered queue message. Body is either text, bytes, an
// already decoded object, or nil when the record carried no body at all.
type RawRecord struct {
	MessageID         string                      `json:"messageId,omitempty"`
	ReceiptHandle     string                      `json:"receiptHandle,omitempty"`
	Body              any                         `json:"body,omitempty"`
	Attributes        map[string]string           `json:"attributes,omitempty"`
	MessageAttributes map[string]MessageAttribute `json:"messageAttributes,omitempty"`
	MD5OfBody         string                      `json:"md5OfBody,omitempty"`
	EventSource       string                      `json:"eventSource,omitempty"`
	EventSourceARN    string                      `json:"eventSourceARN,omitempty"`
	AWSRegion         string                      `json:"awsRegion,omitempty"`
}

// Batch is the invocation input, shaped like an SQS event.
type Batch struct {
	Records []RawRecord `json:"Records"`
}

// Notification is the summary published for every processed record.
type Notification struct {
	ID        string `json:"id"`
	Category  string `json:"tipo"`
	Service   string `json:"servico"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"mensagem"`
}

// NewNotification projects a record onto the notification shape. The UNKNOWN
// and "No details" placeholders only replace fields missing from the record;
// a present empty or null value is published as an empty string.
func NewNotification(rec Record) Notification {
	return Notification{
		ID:        rec.ID,
		Category:  rec.textOr(FieldCategory, Unknown),
		Service:   rec.textOr(FieldService, Unknown),
		Timestamp: rec.Timestamp,
		Message:   ProcessedPrefix + rec.textOr(FieldMessage, NoDetails),
	}
}

// Subject is the notification subject line.
func (n Notification) Subject() string {
	return SubjectPrefix + n.Category
}

// Payload serializes the notification.
func (n Notification) Payload() (string, error) {
	payload, err := jsoncodec.MarshalString(n)
	if err != nil {
		return "", fmt.Errorf("encode notification %s: %w", n.ID, err)
	}
	return payload, nil
}

// BatchResult lists the records processed by one invocation, in input order.
type BatchResult struct {
	ProcessedIDs []string `json:"processed_ids"`
}

// Count is the number of processed records.
func (r BatchResult) Count() int {
	return len(r.ProcessedIDs)
}

// Summary is the human readable success message.
func (r BatchResult) Summary() string {
	return fmt.Sprintf(ProcessedSummary, r.Count())
}
