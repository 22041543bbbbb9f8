package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic is the topic used when none is configured.
const DefaultTopic = "custody.committed"

// Kafka publishes events to a kafka topic. Events of the same custody account
// land on the same partition.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka will create and return a kafka publisher.
func NewKafka(brokers []string, topic string) *Kafka {
	// set default topic
	if topic == "" {
		topic = DefaultTopic
	}

	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish implements the Publisher interface.
func (k *Kafka) Publish(ctx context.Context, event Event) error {
	// encode event
	data, err := Encode(event)
	if err != nil {
		return err
	}

	// write message
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   event.Account[:],
		Value: data,
	})
}

// Close will flush pending messages and close the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
