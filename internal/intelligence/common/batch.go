// Package common holds the concurrency helpers shared by the extraction,
// training and prediction pipelines.
package common

import (
	"context"
	stdliberrors "errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// ErrShutdown is returned by Process after Shutdown has been called.
var ErrShutdown = stdliberrors.New("batch processor is shutting down")

// ---------------------------------------------------------------------------
// ItemStatus enumeration
// ---------------------------------------------------------------------------

// ItemStatus represents the outcome status of a single batch item.
type ItemStatus int

const (
	ItemStatusSuccess ItemStatus = iota
	ItemStatusFailed
	ItemStatusTimeout
	ItemStatusCancelled
)

// String returns the human-readable representation of an ItemStatus.
func (s ItemStatus) String() string {
	switch s {
	case ItemStatusSuccess:
		return "SUCCESS"
	case ItemStatusFailed:
		return "FAILED"
	case ItemStatusTimeout:
		return "TIMEOUT"
	case ItemStatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ---------------------------------------------------------------------------
// Generic types
// ---------------------------------------------------------------------------

// ProcessFunc processes a single item.
type ProcessFunc[T, R any] func(ctx context.Context, item T) (R, error)

// ItemResult holds the outcome of one item. Index is the item's position in
// the input slice.
type ItemResult[R any] struct {
	Index      int        `json:"index"`
	Result     R          `json:"result"`
	Error      error      `json:"error,omitempty"`
	DurationMs float64    `json:"duration_ms"`
	Attempts   int        `json:"attempts"`
	Status     ItemStatus `json:"status"`
}

// BatchResult aggregates a batch run. Results are in input order.
type BatchResult[R any] struct {
	Results         []*ItemResult[R] `json:"results"`
	TotalCount      int              `json:"total_count"`
	SuccessCount    int              `json:"success_count"`
	FailureCount    int              `json:"failure_count"`
	TotalDurationMs float64          `json:"total_duration_ms"`
}

// FirstError returns the first failed item's error in input order.
func (b *BatchResult[R]) FirstError() error {
	for _, r := range b.Results {
		if r.Error != nil {
			return fmt.Errorf("item %d: %w", r.Index, r.Error)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// RetryPolicy
// ---------------------------------------------------------------------------

// RetryPolicy governs how failed items are retried.
type RetryPolicy struct {
	MaxRetries        int           `json:"max_retries" yaml:"max_retries"`
	InitialBackoff    time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff        time.Duration `json:"max_backoff" yaml:"max_backoff"`
	BackoffMultiplier float64       `json:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// calculateBackoff returns the delay before the attempt-th retry: exponential
// with ±25% jitter, capped at MaxBackoff.
func calculateBackoff(attempt int, policy *RetryPolicy) time.Duration {
	if policy == nil || policy.InitialBackoff <= 0 {
		return 0
	}
	multiplier := policy.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	base := float64(policy.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	if policy.MaxBackoff > 0 && base > float64(policy.MaxBackoff) {
		base = float64(policy.MaxBackoff)
	}
	jitter := base * 0.25 * (rand.Float64()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

type batchConfig struct {
	maxConcurrency int
	itemTimeout    time.Duration
	retryPolicy    *RetryPolicy
	logger         logging.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*batchConfig)

// WithMaxConcurrency sets the maximum number of items processed concurrently.
func WithMaxConcurrency(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithItemTimeout sets the per-attempt timeout. Zero disables it.
func WithItemTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d > 0 {
			c.itemTimeout = d
		}
	}
}

// WithRetryPolicy retries failed items up to maxRetries times.
func WithRetryPolicy(maxRetries int, backoff time.Duration) BatchOption {
	return func(c *batchConfig) {
		if maxRetries > 0 {
			c.retryPolicy = &RetryPolicy{
				MaxRetries:        maxRetries,
				InitialBackoff:    backoff,
				MaxBackoff:        backoff * 16,
				BackoffMultiplier: 2.0,
			}
		}
	}
}

// WithBatchLogger injects a logger.
func WithBatchLogger(l logging.Logger) BatchOption {
	return func(c *batchConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// ---------------------------------------------------------------------------
// BatchProcessor
// ---------------------------------------------------------------------------

// BatchProcessor runs a function over a slice with bounded concurrency.
// Item failures are recorded in the result and never abort the batch; only a
// cancelled context or Shutdown does.
type BatchProcessor[T, R any] struct {
	cfg batchConfig

	shutdown atomic.Bool
	active   sync.WaitGroup
}

// NewBatchProcessor creates a processor; concurrency defaults to NumCPU.
func NewBatchProcessor[T, R any](opts ...BatchOption) *BatchProcessor[T, R] {
	cfg := batchConfig{
		maxConcurrency: runtime.NumCPU(),
		logger:         logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &BatchProcessor[T, R]{cfg: cfg}
}

// Process executes fn for every item.
func (bp *BatchProcessor[T, R]) Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*BatchResult[R], error) {
	if fn == nil {
		return nil, errors.NewInvalidInput("process function must not be nil")
	}
	if bp.shutdown.Load() {
		return nil, ErrShutdown
	}
	bp.active.Add(1)
	defer bp.active.Done()

	start := time.Now()
	results := make([]*ItemResult[R], len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.cfg.maxConcurrency)
	for i := range items {
		idx, item := i, items[i]
		if gctx.Err() != nil {
			results[idx] = &ItemResult[R]{Index: idx, Error: gctx.Err(), Status: ItemStatusCancelled}
			continue
		}
		g.Go(func() error {
			results[idx] = bp.processOne(gctx, idx, item, fn)
			return nil
		})
	}
	_ = g.Wait()

	br := &BatchResult[R]{Results: results, TotalCount: len(items)}
	for _, r := range results {
		if r.Status == ItemStatusSuccess {
			br.SuccessCount++
		} else {
			br.FailureCount++
		}
	}
	br.TotalDurationMs = float64(time.Since(start).Microseconds()) / 1000
	bp.cfg.logger.Debug("batch finished",
		logging.Int("total", br.TotalCount),
		logging.Int("failed", br.FailureCount),
		logging.Float64("duration_ms", br.TotalDurationMs))

	if err := ctx.Err(); err != nil {
		return br, err
	}
	return br, nil
}

func (bp *BatchProcessor[T, R]) processOne(ctx context.Context, idx int, item T, fn ProcessFunc[T, R]) *ItemResult[R] {
	start := time.Now()
	ir := &ItemResult[R]{Index: idx}

	maxAttempts := 1
	if bp.cfg.retryPolicy != nil {
		maxAttempts += bp.cfg.retryPolicy.MaxRetries
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				ir.Error = ctx.Err()
				ir.Status = ItemStatusCancelled
				ir.DurationMs = msSince(start)
				return ir
			case <-time.After(calculateBackoff(attempt-1, bp.cfg.retryPolicy)):
			}
		}
		ir.Attempts++

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if bp.cfg.itemTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, bp.cfg.itemTimeout)
		}
		res, err := fn(attemptCtx, item)
		cancel()

		if err == nil {
			ir.Result = res
			ir.Error = nil
			ir.Status = ItemStatusSuccess
			ir.DurationMs = msSince(start)
			return ir
		}
		ir.Error = err
		ir.Status = classify(err)
		if ctx.Err() != nil {
			break
		}
	}
	bp.cfg.logger.Warn("batch item failed",
		logging.Int("index", idx),
		logging.Int("attempts", ir.Attempts),
		logging.Err(ir.Error))
	ir.DurationMs = msSince(start)
	return ir
}

// Shutdown stops accepting batches and waits for running ones.
func (bp *BatchProcessor[T, R]) Shutdown(ctx context.Context) error {
	bp.shutdown.Store(true)
	done := make(chan struct{})
	go func() {
		bp.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func classify(err error) ItemStatus {
	switch {
	case stdliberrors.Is(err, context.DeadlineExceeded):
		return ItemStatusTimeout
	case stdliberrors.Is(err, context.Canceled):
		return ItemStatusCancelled
	default:
		return ItemStatusFailed
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

// Shard splits items into at most n contiguous chunks of near-equal size.
func Shard[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}
	shards := make([][]T, 0, n)
	for i := 0; i < n; i++ {
		lo := i * len(items) / n
		hi := (i + 1) * len(items) / n
		shards = append(shards, items[lo:hi])
	}
	return shards
}
