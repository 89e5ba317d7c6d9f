// Package queue moves deferred booking submissions between the HTTP
// service and the retry worker.  Three transports implement the same
// Publisher/Subscriber pair: RabbitMQ (default), Kafka and an in-process
// bus for development and tests.
package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a transport after Close.
var ErrClosed = errors.New("queue closed")

// Message is one delivery.  ID is the publisher-assigned message id,
// also used as the partition key on Kafka.
type Message struct {
	ID    string
	Topic string
	Body  []byte
}

// Handler processes a delivery.  Returning nil acknowledges it; an error
// rejects it without requeueing.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends payloads to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, id string, payload []byte) error
}

// Subscriber delivers messages from a topic to a handler until ctx is
// cancelled.  Consumers sharing a group split the messages between them.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, group string, h Handler) error
}

// Bus is a transport that both publishes and subscribes.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}
