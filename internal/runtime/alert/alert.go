// Package alert holds the data flowing through one ingestion invocation: raw
// queue records, parsed messages, enriched records, the derived notification
// and the aggregate batch result.
package alert

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
)

// Document keys. The decoded payload keeps the field names used by the
// monitoring agents that produce the alerts.
const (
	FieldCategory   = "tipo"
	FieldService    = "servico"
	FieldMessage    = "mensagem"
	FieldValid      = "is_valid"
	FieldError      = "error"
	FieldRawMessage = "raw_message"
	FieldID         = "id"
	FieldTimestamp  = "timestamp"
	FieldStatus     = "status"
)

const (
	StatusProcessed = "PROCESSED"
	// Unknown replaces a missing category or service in notifications.
	Unknown = "UNKNOWN"
	// NoDetails replaces a missing free-text message in notifications.
	NoDetails = "No details"
	// ErrorInvalidJSON is the error recorded for bodies that fail to decode.
	ErrorInvalidJSON = "invalid JSON"

	SubjectPrefix      = "Alert - "
	ProcessedPrefix    = "Alert processed: "
	TimestampLayout    = "2006-01-02T15:04:05.000000Z"
	ProcessedSummary   = "%d processed successfully"
	FailureDescription = "Error processing messages: %s"
)

// Message is a parsed queue record. Known fields are explicit; everything the
// producer sent travels untouched in Fields.
type Message struct {
	Valid      bool
	Error      string
	RawMessage any
	Fields     map[string]any
}

// Lookup returns a pass-through field.
func (m Message) Lookup(name string) (any, bool) {
	v, ok := m.Fields[name]
	return v, ok
}

// Has reports whether a field is present. A JSON null counts as present.
func (m Message) Has(name string) bool {
	_, ok := m.Fields[name]
	return ok
}

// Text renders a field as a string. Non-string values use their default
// formatting so a numeric category still yields a usable subject.
func (m Message) Text(name string) (string, bool) {
	v, ok := m.Fields[name]
	if !ok || v == nil {
		return "", false
	}
	switch typed := v.(type) {
	case string:
		return typed, true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	default:
		return fmt.Sprint(typed), true
	}
}

// textOr renders a field, or returns fallback when the field is missing.
func (m Message) textOr(name, fallback string) string {
	if !m.Has(name) {
		return fallback
	}
	s, _ := m.Text(name)
	return s
}

// Category returns the tipo field, empty when absent.
func (m Message) Category() string {
	s, _ := m.Text(FieldCategory)
	return s
}

// Service returns the servico field, empty when absent.
func (m Message) Service() string {
	s, _ := m.Text(FieldService)
	return s
}

// Map flattens the message into a single document.
func (m Message) Map() map[string]any {
	doc := make(map[string]any, len(m.Fields)+3)
	maps.Copy(doc, m.Fields)
	doc[FieldValid] = m.Valid
	if m.Error != "" {
		doc[FieldError] = m.Error
	}
	if m.RawMessage != nil {
		doc[FieldRawMessage] = m.RawMessage
	}
	return doc
}

func (m Message) MarshalJSON() ([]byte, error) {
	return jsoncodec.Marshal(m.Map())
}

// Record is a message after enrichment. It is what the storage sink persists,
// keyed by ID.
type Record struct {
	Message
	ID        string
	Timestamp string
	Status    string
}

// Item returns the flat document persisted for the record.
func (r Record) Item() map[string]any {
	doc := r.Message.Map()
	doc[FieldID] = r.ID
	doc[FieldTimestamp] = r.Timestamp
	doc[FieldStatus] = r.Status
	return doc
}

func (r Record) MarshalJSON() ([]byte, error) {
	return jsoncodec.Marshal(r.Item())
}

// RecordFromItem rebuilds a record from a stored document.
func RecordFromItem(item map[string]any) Record {
	fields := maps.Clone(item)
	if fields == nil {
		fields = map[string]any{}
	}

	var rec Record
	rec.ID = takeString(fields, FieldID)
	rec.Timestamp = takeString(fields, FieldTimestamp)
	rec.Status = takeString(fields, FieldStatus)
	rec.Error = takeString(fields, FieldError)
	if valid, ok := fields[FieldValid].(bool); ok {
		rec.Valid = valid
	}
	delete(fields, FieldValid)
	if raw, ok := fields[FieldRawMessage]; ok {
		rec.RawMessage = raw
		delete(fields, FieldRawMessage)
	}
	rec.Fields = fields
	return rec
}

func takeString(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
