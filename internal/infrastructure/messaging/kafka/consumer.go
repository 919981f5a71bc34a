package kafka

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
)

const (
	HeaderOriginalTopic = "original_topic"
	HeaderErrorMessage  = "error_message"
	HeaderAttempts      = "attempts"
)

// RetryConfig defines how failed messages are retried before dead-lettering.
type RetryConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	DeadLetterTopic string
}

// ConsumerMetrics holds consumer counters.
type ConsumerMetrics struct {
	MessagesConsumed     atomic.Int64
	MessagesProcessed    atomic.Int64
	MessagesFailed       atomic.Int64
	MessagesRetried      atomic.Int64
	MessagesDeadLettered atomic.Int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a consumer group and dispatches messages to per-topic
// handlers. Offsets are committed after the handler succeeds or the message
// has been dead-lettered.
type Consumer struct {
	reader  ReaderInterface
	groupID string
	retry   RetryConfig
	logger  logging.Logger

	handlers map[string]MessageHandler
	mu       sync.RWMutex

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	deadLetter Publisher
	metrics    *ConsumerMetrics
}

// NewConsumer creates a group reader for topics. deadLetter may be nil, in
// which case exhausted messages are logged and dropped.
func NewConsumer(cfg config.KafkaConfig, topics []string, deadLetter Publisher, logger logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg, topics); err != nil {
		return nil, err
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		GroupTopics:       topics,
		MinBytes:          1,
		MaxBytes:          50 * 1024 * 1024,
		MaxWait:           time.Second,
		SessionTimeout:    30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		StartOffset:       kafka.FirstOffset,
		Dialer:            &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true},
	})
	retry := RetryConfig{
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
		DeadLetterTopic: cfg.DeadLetterTopic,
	}
	return NewConsumerWithReader(reader, cfg.GroupID, retry, deadLetter, logger), nil
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(r ReaderInterface, groupID string, retry RetryConfig, deadLetter Publisher, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = 3
	}
	if retry.RetryBackoff <= 0 {
		retry.RetryBackoff = time.Second
	}
	if retry.MaxRetryBackoff <= 0 {
		retry.MaxRetryBackoff = 30 * time.Second
	}
	return &Consumer{
		reader:     r,
		groupID:    groupID,
		retry:      retry,
		logger:     logger,
		handlers:   make(map[string]MessageHandler),
		deadLetter: deadLetter,
		metrics:    &ConsumerMetrics{},
	}
}

// Subscribe registers handler for topic, replacing any previous handler.
func (c *Consumer) Subscribe(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("Subscribed to topic", logging.String("topic", topic))
}

// Start runs the consume loop in the background until ctx ends or Close.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("Kafka consumer started", logging.String("group", c.groupID))
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for ctx.Err() == nil {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("FetchMessage error", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.metrics.MessagesConsumed.Add(1)

		msg := &Message{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Key:       m.Key,
			Value:     m.Value,
			Timestamp: m.Time,
			Headers:   make(map[string]string, len(m.Headers)),
		}
		for _, h := range m.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}

		c.mu.RLock()
		handler, ok := c.handlers[m.Topic]
		c.mu.RUnlock()

		if !ok {
			c.logger.Warn("No handler for topic", logging.String("topic", m.Topic))
		} else if err := c.processMessage(ctx, msg, handler); err != nil {
			// Context cancelled mid-retry: leave the offset uncommitted so the
			// message is redelivered.
			return
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("CommitMessages failed", logging.Err(err))
		}
	}
}

// processMessage returns an error only when ctx ends during retries.
func (c *Consumer) processMessage(ctx context.Context, msg *Message, handler MessageHandler) error {
	err := handler(ctx, msg)
	if err == nil {
		c.metrics.MessagesProcessed.Add(1)
		return nil
	}

	backoff := c.retry.RetryBackoff
	attempts := 1
	for i := 0; i < c.retry.MaxRetries; i++ {
		c.metrics.MessagesRetried.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		attempts++
		if err = handler(ctx, msg); err == nil {
			c.metrics.MessagesProcessed.Add(1)
			return nil
		}
		backoff *= 2
		if backoff > c.retry.MaxRetryBackoff {
			backoff = c.retry.MaxRetryBackoff
		}
	}

	c.metrics.MessagesFailed.Add(1)
	c.logger.Error("Message processing failed after retries",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Int("attempts", attempts),
		logging.Err(err))

	if c.deadLetter == nil || c.retry.DeadLetterTopic == "" {
		return nil
	}
	headers := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderOriginalTopic] = msg.Topic
	headers[HeaderErrorMessage] = err.Error()
	headers[HeaderAttempts] = strconv.Itoa(attempts)

	dl := &ProducerMessage{Topic: c.retry.DeadLetterTopic, Key: msg.Key, Value: msg.Value, Headers: headers}
	if dlErr := c.deadLetter.Publish(ctx, dl); dlErr != nil {
		c.logger.Error("Failed to send to dead letter queue", logging.Err(dlErr))
		return nil
	}
	c.metrics.MessagesDeadLettered.Add(1)
	return nil
}

// Stats returns processed, failed and dead-lettered counts.
func (c *Consumer) Stats() (processed, failed, deadLettered int64) {
	return c.metrics.MessagesProcessed.Load(), c.metrics.MessagesFailed.Load(), c.metrics.MessagesDeadLettered.Load()
}

// Close stops the loop and closes the reader.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	err := c.reader.Close()
	c.logger.Info("Kafka consumer closed", logging.Int64("consumed", c.metrics.MessagesConsumed.Load()))
	return err
}

// ValidateConsumerConfig checks brokers, group and topics.
func ValidateConsumerConfig(cfg config.KafkaConfig, topics []string) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "kafka group id required")
	}
	if len(topics) == 0 {
		return errors.New(errors.ErrCodeValidation, "at least one topic required")
	}
	if cfg.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "max_retries must be >= 0")
	}
	return nil
}
