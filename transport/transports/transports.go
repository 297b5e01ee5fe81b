// Package transports imports every built-in notification transport for
// registration with the default registry.
package transports

import (
	_ "github.com/drblury/alertflow/transport/aws"
	_ "github.com/drblury/alertflow/transport/channel"
	_ "github.com/drblury/alertflow/transport/http"
	_ "github.com/drblury/alertflow/transport/kafka"
	_ "github.com/drblury/alertflow/transport/nats"
	_ "github.com/drblury/alertflow/transport/rabbitmq"
)
