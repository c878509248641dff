package rabbitmq

import (
	"fmt"

	"isuride/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// binding ties a durable queue to a routing pattern on an exchange.
type binding struct {
	queue      string
	exchange   string
	routingKey string
}

var topology = []binding{
	// the matcher only needs to hear about rides entering MATCHING
	{contracts.QueueRideMatching, contracts.ExchangeRideTopic, contracts.RideStatusRoutingKey("MATCHING")},
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(contracts.ExchangeRideTopic, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.ExchangeRideTopic, err)
	}

	for _, b := range topology {
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}
