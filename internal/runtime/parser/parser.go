// Package parser turns raw queue records into alert messages. Parsing never
// fails: problems with the payload are recorded on the message itself.
package parser

import (
	"errors"
	"fmt"
	"maps"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
	"github.com/drblury/alertflow/internal/runtime/logging"
)

const emptyBody = "{}"

// DefaultRequiredFields must be present for a message to be valid.
var DefaultRequiredFields = []string{alert.FieldCategory, alert.FieldService}

var errInvalidJSON = errors.New(alert.ErrorInvalidJSON)

// Parser decodes and validates raw records.
type Parser struct {
	logger   logging.ServiceLogger
	required []string
}

// Option customises a Parser.
type Option func(*Parser)

// WithLogger routes validation and decode diagnostics to logger.
func WithLogger(logger logging.ServiceLogger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRequiredFields replaces the fields checked during validation.
func WithRequiredFields(fields ...string) Option {
	return func(p *Parser) {
		p.required = append([]string(nil), fields...)
	}
}

// New builds a parser requiring tipo and servico unless overridden.
func New(opts ...Option) *Parser {
	p := &Parser{
		logger:   logging.NewNopLogger(),
		required: DefaultRequiredFields,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes raw into a message. A body that is not valid JSON yields an
// invalid message carrying the "invalid JSON" error and the original body; a
// decodable object missing required fields keeps every decoded field and is
// flagged invalid.
func (p *Parser) Parse(raw alert.RawRecord) (msg alert.Message) {
	body := raw.Body
	if body == nil {
		body = emptyBody
	}
	fields := logging.LogFields{"message_id": raw.MessageID}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("parser panic: %v", r)
			p.logger.Error("Failed to process queue message", err, fields)
			msg = failure(err.Error(), body)
		}
	}()

	decoded, err := decode(body)
	if err != nil {
		if errors.Is(err, errInvalidJSON) {
			p.logger.Error("Failed to decode queue message JSON", err, fields)
			return failure(alert.ErrorInvalidJSON, body)
		}
		p.logger.Error("Failed to process queue message", err, fields)
		return failure(err.Error(), body)
	}

	msg = alert.Message{Valid: true, Fields: decoded}
	if missing := p.missing(decoded); len(missing) > 0 {
		msg.Valid = false
		fields["missing_fields"] = missing
		p.logger.Info("Received invalid message", fields)
	}
	return msg
}

func (p *Parser) missing(decoded map[string]any) []string {
	var missing []string
	for _, field := range p.required {
		if _, ok := decoded[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

func decode(body any) (map[string]any, error) {
	var value any
	switch typed := body.(type) {
	case string:
		if err := jsoncodec.UnmarshalString(typed, &value); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
		}
	case []byte:
		if err := jsoncodec.Unmarshal(typed, &value); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
		}
	case map[string]any:
		value = typed
	default:
		return nil, fmt.Errorf("unsupported message body type %T", body)
	}

	object, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("message body is not a JSON object: %T", value)
	}
	return maps.Clone(object), nil
}

func failure(reason string, body any) alert.Message {
	if b, ok := body.([]byte); ok {
		body = string(b)
	}
	return alert.Message{
		Valid:      false,
		Error:      reason,
		RawMessage: body,
		Fields:     map[string]any{},
	}
}
