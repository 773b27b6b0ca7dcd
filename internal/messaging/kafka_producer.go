package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"scanventory-api/internal/model"

	"github.com/segmentio/kafka-go"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaProducer struct {
	writer kafkaWriter
	topic  string
}

// NewKafkaProducer creates a publisher writing alert events to topic.
// Messages are keyed by item id so one item's events stay ordered.
func NewKafkaProducer(brokers []string, topic string) Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}

	log.Printf("[KafkaProducer] Publishing alert events to %s via %v", topic, brokers)
	return &kafkaProducer{writer: writer, topic: topic}
}

func (p *kafkaProducer) PublishAlertEvent(ctx context.Context, event *model.AlertEvent) error {
	message, err := alertMessage(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write alert event to kafka: %w", err)
	}
	return nil
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

func alertMessage(event *model.AlertEvent) (kafka.Message, error) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal alert event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.ItemID),
		Value: eventJSON,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}, nil
}
