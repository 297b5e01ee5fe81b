package notify

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/alertflow/internal/runtime/errors"
	idspkg "github.com/drblury/alertflow/internal/runtime/ids"
	"github.com/drblury/alertflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/alertflow/internal/runtime/metadata"
)

// TransportPublisher sends notifications through a Watermill publisher.
type TransportPublisher struct {
	backend   string
	publisher message.Publisher
	topic     string
	logger    logging.ServiceLogger
}

func NewTransportPublisher(backend string, publisher message.Publisher, topic string, logger logging.ServiceLogger) (*TransportPublisher, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TransportPublisher{
		backend:   backend,
		publisher: publisher,
		topic:     topic,
		logger:    logger.With(logging.LogFields{"topic": topic}),
	}, nil
}

// NewMessage builds the Watermill message for a notification. The subject
// and any headers attached to ctx travel as metadata.
func NewMessage(ctx context.Context, subject, payload string) *message.Message {
	md := MetadataFrom(ctx).
		With(metadatapkg.KeySubject, subject).
		With(metadatapkg.KeyContentType, metadatapkg.ContentTypeJSON)

	msg := message.NewMessage(idspkg.CreateULID(), []byte(payload))
	msg.Metadata = metadatapkg.ToWatermill(md)
	if ctx != nil {
		msg.SetContext(ctx)
	}
	return msg
}

// ReadMessage unpacks a notification received from a transport subscriber.
func ReadMessage(msg *message.Message) (subject, payload string, md metadatapkg.Metadata) {
	md = metadatapkg.FromWatermill(msg.Metadata)
	return md.Subject(), string(msg.Payload), md
}

func (p *TransportPublisher) Publish(ctx context.Context, subject, payload string) error {
	msg := NewMessage(ctx, subject, payload)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return Wrap(p.backend, subject, err)
	}
	p.logger.Info("Notification published", logging.LogFields{
		"subject":    subject,
		"message_id": msg.UUID,
	})
	return nil
}

// Close closes the underlying publisher.
func (p *TransportPublisher) Close() error {
	return p.publisher.Close()
}
