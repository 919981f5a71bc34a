package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/testutil"
)

type mockKafkaReader struct {
	fetchFunc  func(ctx context.Context) (kafka.Message, error)
	commitFunc func(ctx context.Context, msgs ...kafka.Message) error
	closeFunc  func() error
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.commitFunc != nil {
		return m.commitFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaReader) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

// onceReader yields msg once and then blocks until the context ends.
func onceReader(msg kafka.Message, committed chan<- kafka.Message) *mockKafkaReader {
	var fetched atomic.Bool
	return &mockKafkaReader{
		fetchFunc: func(ctx context.Context) (kafka.Message, error) {
			if fetched.Swap(true) {
				<-ctx.Done()
				return kafka.Message{}, ctx.Err()
			}
			return msg, nil
		},
		commitFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			for _, m := range msgs {
				committed <- m
			}
			return nil
		},
	}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func fastRetry(max int) RetryConfig {
	return RetryConfig{MaxRetries: max, RetryBackoff: time.Millisecond, MaxRetryBackoff: 2 * time.Millisecond, DeadLetterTopic: "dlq"}
}

func newTestKafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "test-group"}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(newTestKafkaConfig(), []string{"t"}))

	cfg := newTestKafkaConfig()
	cfg.Brokers = nil
	assert.Error(t, ValidateConsumerConfig(cfg, []string{"t"}))

	cfg = newTestKafkaConfig()
	cfg.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(cfg, []string{"t"}))

	assert.Error(t, ValidateConsumerConfig(newTestKafkaConfig(), nil))

	cfg = newTestKafkaConfig()
	cfg.MaxRetries = -1
	assert.Error(t, ValidateConsumerConfig(cfg, []string{"t"}))
}

func TestNewConsumerWithReader_Defaults(t *testing.T) {
	c := NewConsumerWithReader(&mockKafkaReader{}, "g", RetryConfig{}, nil, nil)
	assert.Equal(t, 3, c.retry.MaxRetries)
	assert.Equal(t, time.Second, c.retry.RetryBackoff)
	assert.Equal(t, 30*time.Second, c.retry.MaxRetryBackoff)
}

func TestSubscribe(t *testing.T) {
	log := testutil.NewMockLogger()
	c := NewConsumerWithReader(&mockKafkaReader{}, "g", fastRetry(1), nil, log)
	c.Subscribe("topic", func(ctx context.Context, msg *Message) error { return nil })
	assert.Len(t, c.handlers, 1)
	assert.True(t, log.HasMessage("info", "Subscribed to topic"))
}

func TestStart_AlreadyRunning(t *testing.T) {
	c := NewConsumerWithReader(&mockKafkaReader{}, "g", fastRetry(1), nil, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()
	assert.Equal(t, ErrAlreadyRunning, c.Start(context.Background()))
}

func TestConsumeLoop_HandlesAndCommits(t *testing.T) {
	committed := make(chan kafka.Message, 1)
	reader := onceReader(kafka.Message{
		Topic:   "test-topic",
		Offset:  42,
		Value:   []byte("value"),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("publication.submitted")}},
	}, committed)

	c := NewConsumerWithReader(reader, "g", fastRetry(1), nil, nil)
	var got *Message
	c.Subscribe("test-topic", func(ctx context.Context, msg *Message) error {
		got = msg
		return nil
	})
	require.NoError(t, c.Start(context.Background()))

	select {
	case m := <-committed:
		assert.Equal(t, int64(42), m.Offset)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for commit")
	}
	require.NoError(t, c.Close())

	require.NotNil(t, got)
	assert.Equal(t, "value", string(got.Value))
	assert.Equal(t, "publication.submitted", got.Headers["event_type"])
	processed, failed, _ := c.Stats()
	assert.Equal(t, int64(1), processed)
	assert.Zero(t, failed)
}

func TestConsumeLoop_UnknownTopicIsCommitted(t *testing.T) {
	committed := make(chan kafka.Message, 1)
	log := testutil.NewMockLogger()
	c := NewConsumerWithReader(onceReader(kafka.Message{Topic: "other", Value: []byte("x")}, committed), "g", fastRetry(1), nil, log)
	require.NoError(t, c.Start(context.Background()))

	select {
	case <-committed:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for commit")
	}
	require.NoError(t, c.Close())
	assert.True(t, log.HasMessage("warn", "No handler for topic"))
}

func TestProcessMessage_RetrySuccess(t *testing.T) {
	c := NewConsumerWithReader(&mockKafkaReader{}, "g", fastRetry(2), nil, nil)

	attempts := 0
	handler := func(ctx context.Context, msg *Message) error {
		attempts++
		if attempts < 2 {
			return errors.New("fail")
		}
		return nil
	}

	require.NoError(t, c.processMessage(context.Background(), &Message{}, handler))
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.metrics.MessagesRetried.Load())
	assert.Equal(t, int64(1), c.metrics.MessagesProcessed.Load())
}

func TestProcessMessage_ExhaustedGoesToDeadLetter(t *testing.T) {
	dlq := &recordingPublisher{}
	c := NewConsumerWithReader(&mockKafkaReader{}, "g", fastRetry(2), dlq, nil)

	attempts := 0
	handler := func(ctx context.Context, msg *Message) error {
		attempts++
		return errors.New("model not loaded")
	}

	msg := &Message{Topic: "publication.submitted", Key: []byte("pub-1"), Value: []byte("{}"), Headers: map[string]string{"trace_id": "t1"}}
	require.NoError(t, c.processMessage(context.Background(), msg, handler))
	assert.Equal(t, 3, attempts)

	require.Len(t, dlq.msgs, 1)
	dl := dlq.msgs[0]
	assert.Equal(t, "dlq", dl.Topic)
	assert.Equal(t, []byte("pub-1"), dl.Key)
	assert.Equal(t, "publication.submitted", dl.Headers[HeaderOriginalTopic])
	assert.Equal(t, "model not loaded", dl.Headers[HeaderErrorMessage])
	assert.Equal(t, "3", dl.Headers[HeaderAttempts])
	assert.Equal(t, "t1", dl.Headers["trace_id"])

	_, failed, deadLettered := c.Stats()
	assert.Equal(t, int64(1), failed)
	assert.Equal(t, int64(1), deadLettered)
}

func TestProcessMessage_DeadLetterFailureIsLogged(t *testing.T) {
	log := testutil.NewMockLogger()
	dlq := &recordingPublisher{err: errors.New("broker down")}
	c := NewConsumerWithReader(&mockKafkaReader{}, "g", fastRetry(1), dlq, log)

	err := c.processMessage(context.Background(), &Message{Topic: "t"}, func(ctx context.Context, msg *Message) error {
		return errors.New("fail")
	})
	assert.NoError(t, err)
	assert.True(t, log.HasMessage("error", "Failed to send to dead letter queue"))
	_, _, deadLettered := c.Stats()
	assert.Zero(t, deadLettered)
}

func TestProcessMessage_CancelledDuringRetry(t *testing.T) {
	retry := fastRetry(5)
	retry.RetryBackoff = time.Hour
	retry.MaxRetryBackoff = time.Hour
	c := NewConsumerWithReader(&mockKafkaReader{}, "g", retry, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.processMessage(ctx, &Message{}, func(ctx context.Context, msg *Message) error {
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClose_Idempotent(t *testing.T) {
	var closes atomic.Int32
	reader := &mockKafkaReader{closeFunc: func() error { closes.Add(1); return nil }}
	c := NewConsumerWithReader(reader, "g", fastRetry(1), nil, nil)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, int32(1), closes.Load())
}
