package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"isuride/internal/domain/ride"
	"isuride/internal/general/contracts"
	"isuride/internal/general/logger"
	"isuride/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

var (
	ErrNotConnected = errors.New("rabbitmq: connection is not open")
	ErrNacked       = errors.New("rabbitmq: publish not acknowledged")
)

// PublishMessage publishes a persistent JSON message and waits for the broker confirm.
func (client *Client) PublishMessage(ctx context.Context, exchange, routingKey string, body []byte) error {
	client.mu.RLock()
	ch, conn := client.pubChan, client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() || ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	// confirms arrive in publish order, so one publisher at a time
	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := ch.PublishWithContext(ctx, exchange, routingKey, true, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return err
	}

	select {
	case c, ok := <-confirms:
		if !ok {
			return ErrNotConnected
		}
		if !c.Ack {
			return ErrNacked
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatusPublisher fans committed ride status events out on the ride topic exchange.
type StatusPublisher struct {
	client   *Client
	producer string
}

// NewStatusPublisher returns a ports.StatusPublisher backed by client.
func NewStatusPublisher(client *Client, producer string) ports.StatusPublisher {
	return &StatusPublisher{client: client, producer: producer}
}

func (publisher *StatusPublisher) PublishStatus(ctx context.Context, rideID string, status ride.Status, at time.Time) error {
	body, err := json.Marshal(contracts.RideStatusMessage{
		RideID:    rideID,
		Status:    status.String(),
		Timestamp: at,
		Envelope: contracts.Envelope{
			CorrelationID: logger.RequestIDFrom(ctx),
			Producer:      publisher.producer,
			SentAt:        time.Now().UTC(),
		},
	})
	if err != nil {
		return err
	}
	return publisher.client.PublishMessage(ctx, contracts.ExchangeRideTopic, contracts.RideStatusRoutingKey(status.String()), body)
}
