// Package kafka publishes alert notifications to a Kafka topic.
package kafka

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	metadatapkg "github.com/drblury/alertflow/internal/runtime/metadata"
	"github.com/drblury/alertflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// PartitionKey keys every notification by alert category, so alerts of one
// category keep their order within a partition. Messages without a category
// fall back to the subject.
func PartitionKey(_ string, msg *message.Message) (string, error) {
	if category := msg.Metadata.Get(metadatapkg.KeyCategory); category != "" {
		return category, nil
	}
	return msg.Metadata.Get(metadatapkg.KeySubject), nil
}

func init() {
	transport.Register(TransportName, Build)
}

// Build creates a synchronous Kafka publisher, so a failed delivery surfaces
// as a Publish error.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	brokers := cfg.GetKafkaBrokers()
	if len(brokers) == 0 {
		return transport.Transport{}, errors.New("kafka: no brokers configured")
	}

	publisher, err := PublisherFactory(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.NewWithPartitioningMarshaler(PartitionKey),
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{Publisher: publisher}, nil
}
