package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// ParseBrokers splits a comma separated KAFKA_BROKERS value.
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Kafka publishes with one writer per topic, keying each record by its
// message id, and consumes through consumer groups.  Offsets are
// committed after the handler returns, whatever it returned.
type Kafka struct {
	brokers []string
	logger  zerolog.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

// NewKafka returns a transport for brokers.
func NewKafka(brokers []string, logger zerolog.Logger) *Kafka {
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	return &Kafka{brokers: brokers, logger: logger, writers: make(map[string]*kafka.Writer)}
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, ErrClosed
	}
	w, ok := k.writers[topic]
	if !ok {
		w = &kafka.Writer{
			Addr:                   kafka.TCP(k.brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{}, // same message id, same partition
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		}
		k.writers[topic] = w
	}
	return w, nil
}

// Publish writes payload to topic synchronously.
func (k *Kafka) Publish(ctx context.Context, topic, id string, payload []byte) error {
	w, err := k.writer(topic)
	if err != nil {
		return err
	}
	err = w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(id),
		Value:   payload,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte("application/json")}},
	})
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	k.logger.Debug().Str("message_id", id).Str("topic", topic).Msg("message published")
	return nil
}

// Subscribe reads topic as a member of group until ctx is cancelled.
func (k *Kafka) Subscribe(ctx context.Context, topic, group string, h Handler) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	defer func() { _ = r.Close() }()

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}

		msg := Message{ID: string(m.Key), Topic: m.Topic, Body: m.Value}
		if err := h(ctx, msg); err != nil {
			if ctx.Err() != nil {
				// Offset stays uncommitted; the group redelivers it.
				k.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("kafka consumer: shutdown before commit")
				return nil
			}
			k.logger.Error().Err(err).
				Str("message_id", msg.ID).
				Int("partition", m.Partition).
				Int64("offset", m.Offset).
				Msg("kafka consumer: handle message failed, skipping")
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka commit: %w", err)
		}
	}
}

// Close flushes and closes every writer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	var errs []error
	for _, w := range k.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
