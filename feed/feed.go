// Package feed publishes every durably committed message to a kafka topic
// for downstream consumers. The firehose is best effort: a failed publish is
// logged and forgotten, the message store stays authoritative.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/chitamrita/chatd/chat"
)

const (
	writeTimeout = 3 * time.Second
	dialTimeout  = 10 * time.Second
)

// Writer is the kafka writer surface the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds the production writer for the given brokers and
// topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Dialer: &kafka.Dialer{
			Timeout:   dialTimeout,
			DualStack: true,
		},
	})
}

// Publisher implements chat.Publisher on a kafka writer.
type Publisher struct {
	w        Writer
	maxBytes int
}

func NewPublisher(w Writer, maxBytes int) *Publisher {
	return &Publisher{
		w:        w,
		maxBytes: maxBytes,
	}
}

func (p *Publisher) Publish(ctx context.Context, m *chat.Message) error {
	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("error marshal message %s: %v", m.ID, err)
	}
	if len(value) > p.maxBytes {
		return fmt.Errorf("feed: message %s exceeds max limit: %d bytes", m.ID, p.maxBytes)
	}

	km := kafka.Message{
		Key:   []byte(m.ID),
		Value: value,
	}

	ctx2, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.w.WriteMessages(ctx2, km); err != nil {
		return fmt.Errorf("error write to kafka: %v", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
