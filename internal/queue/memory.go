package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

const memoryTopicBuffer = 256

// MemoryBus is an in-process transport.  Messages published to a topic
// are buffered until a subscriber reads them; groups are ignored, so
// concurrent subscribers on one topic compete for messages.
type MemoryBus struct {
	mu     sync.Mutex
	topics map[string]chan Message
	done   chan struct{}
	closed bool
	logger zerolog.Logger
}

// NewMemoryBus returns an empty bus.
func NewMemoryBus(logger zerolog.Logger) *MemoryBus {
	return &MemoryBus{topics: make(map[string]chan Message), done: make(chan struct{}), logger: logger}
}

func (b *MemoryBus) topic(name string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan Message, memoryTopicBuffer)
		b.topics[name] = ch
	}
	return ch, nil
}

// Publish enqueues payload on topic.  It blocks while the topic buffer is
// full and ctx is live.
func (b *MemoryBus) Publish(ctx context.Context, topic, id string, payload []byte) error {
	ch, err := b.topic(topic)
	if err != nil {
		return err
	}
	body := append([]byte(nil), payload...)
	select {
	case ch <- Message{ID: id, Topic: topic, Body: body}:
		b.logger.Debug().Str("message_id", id).Str("topic", topic).Msg("message relayed in memory")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
}

// Subscribe hands every message on topic to h until ctx is cancelled or
// the bus is closed.
func (b *MemoryBus) Subscribe(ctx context.Context, topic, _ string, h Handler) error {
	ch, err := b.topic(topic)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		case msg := <-ch:
			if err := h(ctx, msg); err != nil {
				if ctx.Err() != nil {
					b.requeue(ch, msg)
					return nil
				}
				b.logger.Warn().Err(err).Str("message_id", msg.ID).Str("topic", topic).Msg("message rejected")
			}
		}
	}
}

func (b *MemoryBus) requeue(ch chan Message, msg Message) {
	select {
	case ch <- msg:
		b.logger.Debug().Str("message_id", msg.ID).Msg("message requeued")
	default:
		b.logger.Error().Str("message_id", msg.ID).Msg("topic buffer full, requeue dropped")
	}
}

// Close stops all subscribers.  Undelivered messages are discarded.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	return nil
}
