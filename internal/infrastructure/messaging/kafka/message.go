package kafka

import (
	"context"
	"time"
)

// Message is a consumed record handed to a MessageHandler.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to publish.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message. A non-nil error triggers retries.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher is the write side used by the consumer's dead-letter path and by
// application services.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// BatchItemError records a failed message of a batch publish.
type BatchItemError struct {
	Index int
	Topic string
	Error error
}

// BatchPublishResult summarizes PublishBatch.
type BatchPublishResult struct {
	Succeeded int
	Failed    int
	Errors    []BatchItemError
}
