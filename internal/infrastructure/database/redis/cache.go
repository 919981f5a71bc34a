package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")
)

const snippetNamespace = "snippets:"

// SnippetLoader computes the snippets of a document on a cache miss.
type SnippetLoader func(ctx context.Context) ([]string, error)

// SnippetCache memoises the extracted snippets of a document, keyed by a
// content hash of the document text.
type SnippetCache struct {
	client     *Client
	logger     logging.Logger
	prefix     string
	defaultTTL time.Duration
	group      singleflight.Group
}

type CacheOption func(*SnippetCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *SnippetCache) { c.prefix = prefix }
}

func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *SnippetCache) { c.defaultTTL = ttl }
}

func NewSnippetCache(client *Client, log logging.Logger, opts ...CacheOption) *SnippetCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &SnippetCache{
		client:     client,
		logger:     log,
		prefix:     "dmi:",
		defaultTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SnippetCache) fullKey(docKey string) string {
	return c.prefix + snippetNamespace + docKey
}

// jitterTTL spreads expiry by ±10% so a bulk load does not expire at once.
func (c *SnippetCache) jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitter := float64(ttl) * 0.1 * (rand.Float64()*2 - 1)
	return ttl + time.Duration(jitter)
}

// Get returns the cached snippets for docKey or ErrCacheMiss.
func (c *SnippetCache) Get(ctx context.Context, docKey string) ([]string, error) {
	rdb := c.client.Underlying()
	if rdb == nil {
		return nil, ErrClientClosed
	}
	data, err := rdb.Get(ctx, c.fullKey(docKey)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to get snippets from cache")
	}
	var snippets []string
	if err := json.Unmarshal(data, &snippets); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, ErrSerializationFailed.Message)
	}
	if snippets == nil {
		snippets = []string{}
	}
	return snippets, nil
}

// Put stores snippets under docKey. A zero ttl uses the default.
func (c *SnippetCache) Put(ctx context.Context, docKey string, snippets []string, ttl time.Duration) error {
	rdb := c.client.Underlying()
	if rdb == nil {
		return ErrClientClosed
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if snippets == nil {
		snippets = []string{}
	}
	data, err := json.Marshal(snippets)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, ErrSerializationFailed.Message)
	}
	if err := rdb.Set(ctx, c.fullKey(docKey), data, c.jitterTTL(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to store snippets")
	}
	return nil
}

// GetOrLoad returns cached snippets, or runs loader once per key across
// concurrent callers and caches its result. Cache failures are logged and
// never fail the call as long as the loader succeeds.
func (c *SnippetCache) GetOrLoad(ctx context.Context, docKey string, loader SnippetLoader) ([]string, bool, error) {
	snippets, err := c.Get(ctx, docKey)
	if err == nil {
		return snippets, true, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("snippet cache read failed", logging.String("key", docKey), logging.Err(err))
	}

	v, err, _ := c.group.Do(docKey, func() (interface{}, error) {
		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if setErr := c.Put(ctx, docKey, loaded, 0); setErr != nil {
			c.logger.Warn("snippet cache write failed", logging.String("key", docKey), logging.Err(setErr))
		}
		return loaded, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]string), false, nil
}

// Invalidate drops every cached snippet list. Called when the lexicon changes.
func (c *SnippetCache) Invalidate(ctx context.Context) (int64, error) {
	rdb := c.client.Underlying()
	if rdb == nil {
		return 0, ErrClientClosed
	}
	var deleted int64
	var cursor uint64
	match := c.prefix + snippetNamespace + "*"
	for {
		keys, next, err := rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "failed to scan snippet keys")
		}
		if len(keys) > 0 {
			if err := rdb.Del(ctx, keys...).Err(); err != nil {
				return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "failed to delete snippet keys")
			}
			deleted += int64(len(keys))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.Info("snippet cache invalidated", logging.Int64("deleted", deleted))
	return deleted, nil
}
