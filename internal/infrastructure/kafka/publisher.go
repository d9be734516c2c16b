package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

type Publisher interface {
	PublishPayment(ctx context.Context, event PaymentEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewPublisher returns a no-op publisher when no brokers are configured.
func NewPublisher(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// PublishPayment keys by order id so every event of one order lands on the
// same partition in order.
func (k *KafkaPublisher) PublishPayment(ctx context.Context, event PaymentEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: msg,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

type NopPublisher struct{}

func (NopPublisher) PublishPayment(context.Context, PaymentEvent) error { return nil }
func (NopPublisher) Close() error                                        { return nil }
