package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
)

func cpuHigh() Message {
	return Message{
		Valid: true,
		Fields: map[string]any{
			"tipo":     "CPU_HIGH",
			"servico":  "api-gateway",
			"valor":    92.5,
			"limite":   80.0,
			"mensagem": "CPU usage above threshold",
		},
	}
}

func TestMessageAccessors(t *testing.T) {
	msg := cpuHigh()
	assert.Equal(t, "CPU_HIGH", msg.Category())
	assert.Equal(t, "api-gateway", msg.Service())
	assert.True(t, msg.Has("valor"))
	assert.False(t, msg.Has("host"))

	v, ok := msg.Lookup("limite")
	require.True(t, ok)
	assert.Equal(t, 80.0, v)

	numeric := Message{Fields: map[string]any{"tipo": 42.0, "servico": nil}}
	assert.Equal(t, "42", numeric.Category())
	assert.Equal(t, "", numeric.Service())
	assert.True(t, numeric.Has("servico"))
}

func TestMessageMapFlattensKnownFields(t *testing.T) {
	valid := cpuHigh().Map()
	assert.Equal(t, true, valid[FieldValid])
	assert.NotContains(t, valid, FieldError)
	assert.NotContains(t, valid, FieldRawMessage)
	assert.Equal(t, 92.5, valid["valor"])

	broken := Message{Error: ErrorInvalidJSON, RawMessage: "{not json"}
	doc := broken.Map()
	assert.Equal(t, map[string]any{
		FieldValid:      false,
		FieldError:      "invalid JSON",
		FieldRawMessage: "{not json",
	}, doc)
}

func TestMessageMarshalJSON(t *testing.T) {
	data, err := jsoncodec.Marshal(Message{Valid: false, Fields: map[string]any{"tipo": "DISK_FULL"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tipo":"DISK_FULL","is_valid":false}`, string(data))
}

func TestRecordItem(t *testing.T) {
	rec := Record{Message: cpuHigh(), ID: "01J0", Timestamp: "2024-05-01T10:00:00.000000Z", Status: StatusProcessed}
	item := rec.Item()

	assert.Equal(t, "01J0", item[FieldID])
	assert.Equal(t, "2024-05-01T10:00:00.000000Z", item[FieldTimestamp])
	assert.Equal(t, "PROCESSED", item[FieldStatus])
	assert.Equal(t, "CPU usage above threshold", item["mensagem"])
	assert.Equal(t, true, item[FieldValid])

	data, err := jsoncodec.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"01J0"`)
}

func TestRecordFromItemRoundTrip(t *testing.T) {
	rec := Record{
		Message:   Message{Valid: false, Error: ErrorInvalidJSON, RawMessage: "oops", Fields: map[string]any{}},
		ID:        "01J1",
		Timestamp: "2024-05-01T10:00:00.000000Z",
		Status:    StatusProcessed,
	}
	assert.Equal(t, rec, RecordFromItem(rec.Item()))

	full := Record{Message: cpuHigh(), ID: "01J2", Timestamp: "t", Status: StatusProcessed}
	assert.Equal(t, full, RecordFromItem(full.Item()))

	empty := RecordFromItem(nil)
	assert.NotNil(t, empty.Fields)
	assert.Empty(t, empty.ID)
}

func TestNewNotification(t *testing.T) {
	rec := Record{Message: cpuHigh(), ID: "01J3", Timestamp: "2024-05-01T10:00:00.000000Z", Status: StatusProcessed}
	n := NewNotification(rec)

	assert.Equal(t, Notification{
		ID:        "01J3",
		Category:  "CPU_HIGH",
		Service:   "api-gateway",
		Timestamp: "2024-05-01T10:00:00.000000Z",
		Message:   "Alert processed: CPU usage above threshold",
	}, n)
	assert.Equal(t, "Alert - CPU_HIGH", n.Subject())

	payload, err := n.Payload()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "01J3",
		"tipo": "CPU_HIGH",
		"servico": "api-gateway",
		"timestamp": "2024-05-01T10:00:00.000000Z",
		"mensagem": "Alert processed: CPU usage above threshold"
	}`, payload)
}

func TestNewNotificationDefaults(t *testing.T) {
	rec := Record{Message: Message{Error: ErrorInvalidJSON, RawMessage: "{"}, ID: "01J4"}
	n := NewNotification(rec)

	assert.Equal(t, Unknown, n.Category)
	assert.Equal(t, Unknown, n.Service)
	assert.Equal(t, "Alert processed: No details", n.Message)
	assert.Equal(t, "Alert - UNKNOWN", n.Subject())
}

func TestNewNotificationKeepsPresentEmptyValues(t *testing.T) {
	rec := Record{
		Message: Message{Fields: map[string]any{"tipo": "", "servico": nil, "mensagem": ""}},
		ID:      "01J5",
	}
	n := NewNotification(rec)

	assert.Equal(t, "", n.Category)
	assert.Equal(t, "", n.Service)
	assert.Equal(t, "Alert processed: ", n.Message)
	assert.Equal(t, "Alert - ", n.Subject())

	rec.Fields = map[string]any{"tipo": nil, "servico": "svc"}
	n = NewNotification(rec)
	assert.Equal(t, "", n.Category)
	assert.Equal(t, "svc", n.Service)
	assert.Equal(t, "Alert processed: No details", n.Message)
}

func TestBatchResultSummary(t *testing.T) {
	assert.Equal(t, "0 processed successfully", BatchResult{}.Summary())
	res := BatchResult{ProcessedIDs: []string{"a", "b"}}
	assert.Equal(t, 2, res.Count())
	assert.Equal(t, "2 processed successfully", res.Summary())
}

func TestBatchDecodesSQSEventShape(t *testing.T) {
	var batch Batch
	err := jsoncodec.Unmarshal([]byte(`{
		"Records": [
			{"messageId": "m-1", "body": "{\"tipo\":\"CPU_HIGH\"}", "eventSource": "aws:sqs"},
			{"messageId": "m-2", "body": {"tipo": "DISK_FULL"}},
			{"messageId": "m-3"}
		]
	}`), &batch)
	require.NoError(t, err)
	require.Len(t, batch.Records, 3)

	assert.Equal(t, `{"tipo":"CPU_HIGH"}`, batch.Records[0].Body)
	assert.Equal(t, "aws:sqs", batch.Records[0].EventSource)
	assert.Equal(t, map[string]any{"tipo": "DISK_FULL"}, batch.Records[1].Body)
	assert.Nil(t, batch.Records[2].Body)
}
