// Package transport builds the watermill publishers that can carry alert
// notifications instead of SNS. Each broker lives in its own sub-package and
// registers itself with the registry; import transport/transports to load
// them all.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport is what a builder produces. Subscriber is only set by brokers
// that can be consumed in-process, such as the channel transport.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Builder creates a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the values the transports need. *config.Config implements
// it.
type Config interface {
	// GetNotificationBackend returns the transport name.
	GetNotificationBackend() string

	// Kafka
	GetKafkaBrokers() []string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string

	// HTTP
	GetHTTPPublisherURL() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}
