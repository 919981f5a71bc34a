package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Mutex is a single-holder lock on one key, used to keep two training runs
// from writing the same model concurrently.
type Mutex struct {
	client     *Client
	key        string
	value      string
	ttl        time.Duration
	retryDelay time.Duration
	retryCount int
}

type LockOption func(*Mutex)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(m *Mutex) { m.ttl = ttl }
}

func WithRetry(count int, delay time.Duration) LockOption {
	return func(m *Mutex) {
		m.retryCount = count
		m.retryDelay = delay
	}
}

// NewMutex builds a lock stored at "<prefix>lock:<name>".
func NewMutex(client *Client, prefix, name string, opts ...LockOption) *Mutex {
	m := &Mutex{
		client:     client,
		key:        prefix + "lock:" + name,
		value:      uuid.NewString(),
		ttl:        30 * time.Minute,
		retryDelay: 100 * time.Millisecond,
		retryCount: 1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mutex) Key() string { return m.key }

// Lock tries SET NX up to retryCount times.
func (m *Mutex) Lock(ctx context.Context) error {
	rdb := m.client.Underlying()
	if rdb == nil {
		return ErrClientClosed
	}
	for i := 0; i < m.retryCount; i++ {
		ok, err := rdb.SetNX(ctx, m.key, m.value, m.ttl).Result()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCacheError, "failed to set lock")
		}
		if ok {
			return nil
		}
		if i == m.retryCount-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.retryDelay):
		}
	}
	return ErrLockNotAcquired.WithDetail(m.key)
}

// Unlock releases the lock only if this Mutex still holds it.
func (m *Mutex) Unlock(ctx context.Context) error {
	rdb := m.client.Underlying()
	if rdb == nil {
		return ErrClientClosed
	}
	res, err := unlockScript.Run(ctx, rdb, []string{m.key}, m.value).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lock")
	}
	if res == 0 {
		return ErrLockNotHeld.WithDetail(m.key)
	}
	return nil
}
