// Package nats publishes alert notifications on a NATS Core subject.
package nats

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/alertflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

// ClientName identifies the connection on the NATS server.
const ClientName = "alertflow"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

func init() {
	transport.Register(TransportName, Build)
}

func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetNATSURL()
	if url == "" {
		return transport.Transport{}, errors.New("nats: URL is required")
	}

	publisher, err := PublisherFactory(
		nats.PublisherConfig{
			URL: url,
			NatsOptions: []nc.Option{
				nc.Name(ClientName),
				nc.MaxReconnects(-1),
				nc.ReconnectWait(2 * time.Second),
				nc.DisconnectErrHandler(func(_ *nc.Conn, err error) {
					if err != nil {
						logger.Error("NATS disconnected", err, nil)
					}
				}),
			},
			Marshaler: &nats.NATSMarshaler{},
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}
	return transport.Transport{Publisher: publisher}, nil
}
