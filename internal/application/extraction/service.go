// Package extraction runs the mention pipeline for application callers,
// consulting the snippet cache and recording metrics around it.
package extraction

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/mention"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// Extractor is the pipeline the service drives. *mention.Extractor
// satisfies it.
type Extractor interface {
	ExtractDetailed(document string) *mention.Extraction
	CacheKey(document string) string
	Lexicon() *mention.Lexicon
	ReplaceLexicon(lex *mention.Lexicon) error
}

// SnippetCache memoises snippets per document key. *redis.SnippetCache
// satisfies it.
type SnippetCache interface {
	GetOrLoad(ctx context.Context, docKey string, loader redis.SnippetLoader) ([]string, bool, error)
	Invalidate(ctx context.Context) (int64, error)
}

// Result is the outcome of one document.
type Result struct {
	DocumentKey string   `json:"document_key"`
	Candidates  []string `json:"candidates,omitempty"`
	Snippets    []string `json:"snippets"`
	Cached      bool     `json:"cached"`
	TookMs      int64    `json:"took_ms"`
}

// Service extracts snippets from documents.
type Service interface {
	// Extract runs the full pipeline and never consults the cache, so the
	// candidate list is always present.
	Extract(ctx context.Context, text string) (*Result, error)
	// Snippets returns only the snippets, served from cache when possible.
	Snippets(ctx context.Context, text string) ([]string, error)
	// ReloadLexicon swaps the lexicon and drops cached snippets.
	ReloadLexicon(ctx context.Context, lex *mention.Lexicon) error
}

type serviceImpl struct {
	extractor Extractor
	cache     SnippetCache
	metrics   *prometheus.PipelineMetrics
	source    string
	logger    logging.Logger
}

// Option customises the service.
type Option func(*serviceImpl)

// WithCache enables the snippet cache.
func WithCache(c SnippetCache) Option {
	return func(s *serviceImpl) { s.cache = c }
}

// WithMetrics records extraction metrics.
func WithMetrics(m *prometheus.PipelineMetrics) Option {
	return func(s *serviceImpl) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSource sets the "source" metric label (api, worker, cli).
func WithSource(source string) Option {
	return func(s *serviceImpl) { s.source = source }
}

// NewService creates the extraction service.
func NewService(extractor Extractor, logger logging.Logger, opts ...Option) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &serviceImpl{
		extractor: extractor,
		metrics:   prometheus.NewNopPipelineMetrics(),
		source:    "api",
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) Extract(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewInvalidInput("document text is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	ex := s.extractor.ExtractDetailed(text)
	prometheus.RecordExtraction(s.metrics, s.source, len(ex.Candidates), len(ex.Snippets), time.Since(start), nil)

	return &Result{
		DocumentKey: mention.DocumentKey(text),
		Candidates:  ex.Candidates,
		Snippets:    ex.Snippets,
		TookMs:      ex.TookMs,
	}, nil
}

func (s *serviceImpl) Snippets(ctx context.Context, text string) ([]string, error) {
	if s.cache == nil {
		res, err := s.Extract(ctx, text)
		if err != nil {
			return nil, err
		}
		return res.Snippets, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewInvalidInput("document text is empty")
	}

	key := s.extractor.CacheKey(text)
	snippets, hit, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) ([]string, error) {
		res, err := s.Extract(ctx, text)
		if err != nil {
			return nil, err
		}
		return res.Snippets, nil
	})
	if err != nil {
		return nil, err
	}
	prometheus.RecordCacheAccess(s.metrics, "snippets", hit)
	return snippets, nil
}

func (s *serviceImpl) ReloadLexicon(ctx context.Context, lex *mention.Lexicon) error {
	if err := s.extractor.ReplaceLexicon(lex); err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	n, err := s.cache.Invalidate(ctx)
	if err != nil {
		// Stale entries expire on their own TTL.
		s.logger.Warn("snippet cache invalidation failed", logging.Err(err))
		return nil
	}
	s.logger.Info("snippet cache invalidated", logging.Int64("keys", n))
	return nil
}
