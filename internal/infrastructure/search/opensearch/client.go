package opensearch

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

var (
	ErrInvalidConfig    = errors.New(errors.ErrCodeValidation, "invalid configuration")
	ErrConnectionFailed = errors.New(errors.ErrCodeServiceUnavailable, "connection failed")
)

const (
	defaultMaxRetries          = 3
	defaultRetryBackoff        = 100 * time.Millisecond
	defaultHealthCheckInterval = 30 * time.Second
)

// Client owns the OpenSearch connection and a background health check.
type Client struct {
	client    *opensearch.Client
	cfg       config.OpenSearchConfig
	logger    logging.Logger
	healthy   atomic.Bool
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewClient connects, pings once and starts the health check.
func NewClient(cfg config.OpenSearchConfig, logger logging.Logger) (*Client, error) {
	c, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	if err := c.Ping(ctx); err != nil {
		cancel()
		return nil, ErrConnectionFailed.WithCause(err)
	}

	go c.startHealthCheck(ctx, defaultHealthCheckInterval)
	c.logger.Info("Connected to OpenSearch", logging.Strings("addresses", cfg.Addresses))
	return c, nil
}

// newClient builds the SDK client without touching the network.
func newClient(cfg config.OpenSearchConfig, logger logging.Logger) (*Client, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	transport := &http.Transport{MaxIdleConnsPerHost: 10}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.User,
		Password:      cfg.Password,
		MaxRetries:    defaultMaxRetries,
		RetryBackoff:  func(int) time.Duration { return defaultRetryBackoff },
		Transport:     transport,
		RetryOnStatus: []int{502, 503, 504, 429},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchError, "failed to create opensearch client")
	}
	return &Client{client: osClient, cfg: cfg, logger: logger, cancel: func() {}}, nil
}

// Ping checks the connection to OpenSearch.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("OpenSearch ping failed", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeSearchError, "opensearch ping failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		c.healthy.Store(false)
		c.logger.Warn("OpenSearch ping returned error status", logging.Int("status", resp.StatusCode))
		return errors.Newf(errors.ErrCodeSearchError, "ping returned status %d", resp.StatusCode)
	}

	c.healthy.Store(true)
	return nil
}

// IsHealthy reports the result of the last ping.
func (c *Client) IsHealthy() bool { return c.healthy.Load() }

// GetClient returns the underlying OpenSearch client.
func (c *Client) GetClient() *opensearch.Client { return c.client }

// Close stops the health check. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.logger.Info("OpenSearch client closed")
	})
	return nil
}

func (c *Client) startHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev := c.healthy.Load()
			err := c.Ping(ctx)
			curr := c.healthy.Load()

			if prev && !curr {
				c.logger.Error("OpenSearch cluster became unhealthy", logging.Err(err))
			} else if !prev && curr {
				c.logger.Info("OpenSearch cluster recovered")
			}
		}
	}
}

// ValidateConfig checks the fields NewClient depends on.
func ValidateConfig(cfg config.OpenSearchConfig) error {
	if len(cfg.Addresses) == 0 {
		return ErrInvalidConfig
	}
	if cfg.BulkBatchSize < 0 {
		return errors.New(errors.ErrCodeValidation, "bulk_batch_size must be >= 0")
	}
	return nil
}
