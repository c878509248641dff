// Package kafka streams chair location samples.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"isuride/internal/domain/chair"
	"isuride/internal/general/contracts"
	"isuride/internal/general/logger"
	"isuride/internal/ports"

	kafkago "github.com/segmentio/kafka-go"
)

const writeTimeout = 2 * time.Second

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// LocationWriter publishes every location sample keyed by chair id, so one
// chair's samples stay ordered within a partition.
type LocationWriter struct {
	writer   messageWriter
	producer string
}

// NewLocationWriter returns a writer for topic on brokers.
func NewLocationWriter(brokers []string, topic, producer string) *LocationWriter {
	if topic == "" {
		topic = contracts.TopicChairLocations
	}
	w := kafkago.NewWriter(kafkago.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafkago.Hash{},
	})
	return &LocationWriter{writer: w, producer: producer}
}

var _ ports.LocationPublisher = (*LocationWriter)(nil)

func (lw *LocationWriter) PublishLocation(ctx context.Context, loc chair.Location) error {
	b, err := json.Marshal(contracts.ChairLocationMessage{
		LocationID: loc.ID,
		ChairID:    loc.ChairID,
		Location:   contracts.GeoPoint{Latitude: loc.Coordinate.Latitude, Longitude: loc.Coordinate.Longitude},
		RecordedAt: loc.CreatedAt,
		Envelope: contracts.Envelope{
			CorrelationID: logger.RequestIDFrom(ctx),
			Producer:      lw.producer,
			SentAt:        time.Now().UTC(),
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := lw.writer.WriteMessages(ctx, kafkago.Message{Key: []byte(loc.ChairID), Value: b}); err != nil {
		return fmt.Errorf("write location: %w", err)
	}
	return nil
}

func (lw *LocationWriter) Close() error {
	if lw.writer == nil {
		return nil
	}
	return lw.writer.Close()
}
