// Package training learns co-occurrence tables from labeled publications.
package training

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/DataMention-Intelligence/internal/application/extraction"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/common"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/cooccur"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// LabeledDocument is a publication with its ground-truth datasets.
type LabeledDocument struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	DatasetIDs []string `json:"dataset_ids"`
}

// ModelStore persists trained tables. *minio.ModelStore satisfies it.
type ModelStore interface {
	Save(ctx context.Context, runID string, t *cooccur.Table, compress bool) (string, error)
}

// RunRegistry records training runs. *repositories.RunRepo satisfies it.
type RunRegistry interface {
	Create(ctx context.Context, run *repositories.Run) error
	Finish(ctx context.Context, run *repositories.Run) error
}

// Locker serializes training runs across processes. *redis.Mutex satisfies it.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// Config tunes a training run.
type Config struct {
	Shards       int
	MaxRetries   int
	RetryBackoff time.Duration
	ItemTimeout  time.Duration
	Compress     bool
}

// Result describes a finished run.
type Result struct {
	RunID     string         `json:"run_id"`
	ModelKey  string         `json:"model_key,omitempty"`
	Documents int            `json:"documents"`
	Examples  int            `json:"examples"`
	Datasets  int            `json:"datasets"`
	Words     int            `json:"words"`
	Duration  time.Duration  `json:"duration"`
	Table     *cooccur.Table `json:"-"`
}

// Service trains models.
type Service interface {
	Train(ctx context.Context, docs []LabeledDocument) (*Result, error)
}

type serviceImpl struct {
	extraction extraction.Service
	store      ModelStore
	runs       RunRegistry
	lock       Locker
	metrics    *prometheus.PipelineMetrics
	cfg        Config
	logger     logging.Logger
}

// Option customises the service.
type Option func(*serviceImpl)

func WithModelStore(s ModelStore) Option {
	return func(t *serviceImpl) { t.store = s }
}

func WithRunRegistry(r RunRegistry) Option {
	return func(t *serviceImpl) { t.runs = r }
}

func WithLocker(l Locker) Option {
	return func(t *serviceImpl) { t.lock = l }
}

func WithMetrics(m *prometheus.PipelineMetrics) Option {
	return func(t *serviceImpl) {
		if m != nil {
			t.metrics = m
		}
	}
}

// NewService creates the training service. Model store, run registry and
// lock are optional.
func NewService(ext extraction.Service, cfg Config, logger logging.Logger, opts ...Option) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	s := &serviceImpl{
		extraction: ext,
		metrics:    prometheus.NewNopPipelineMetrics(),
		cfg:        cfg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type shardResult struct {
	table    *cooccur.Table
	examples int
}

// Train extracts snippets from every document, learns one table per shard
// and merges the shard tables in input order. Every snippet becomes one
// example labeled with its document's datasets.
func (s *serviceImpl) Train(ctx context.Context, docs []LabeledDocument) (res *Result, err error) {
	if len(docs) == 0 {
		return nil, errors.New(errors.ErrCodeTrainingEmpty, "no training documents")
	}
	if s.lock != nil {
		if err := s.lock.Lock(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if uerr := s.lock.Unlock(context.WithoutCancel(ctx)); uerr != nil {
				s.logger.Warn("failed to release training lock", logging.Err(uerr))
			}
		}()
	}

	start := time.Now()
	run := &repositories.Run{
		ID:        uuid.New(),
		Kind:      repositories.RunKindTraining,
		Documents: len(docs),
		Metadata:  map[string]interface{}{"shards": s.cfg.Shards, "compress": s.cfg.Compress},
	}
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, err
		}
	}
	defer func() {
		prometheus.RecordTrainingRun(s.metrics, time.Since(start), err)
		if err != nil {
			s.finish(ctx, run, err)
		}
	}()

	s.logger.Info("training started",
		logging.String("run_id", run.ID.String()),
		logging.Int("documents", len(docs)),
		logging.Int("shards", s.cfg.Shards))

	shards := common.Shard(docs, s.cfg.Shards)
	bp := common.NewBatchProcessor[[]LabeledDocument, shardResult](
		common.WithMaxConcurrency(len(shards)),
		common.WithItemTimeout(s.cfg.ItemTimeout),
		common.WithRetryPolicy(s.cfg.MaxRetries, s.cfg.RetryBackoff),
		common.WithBatchLogger(s.logger),
	)
	batch, err := bp.Process(ctx, shards, s.learnShard)
	if err != nil {
		return nil, err
	}
	if ferr := batch.FirstError(); ferr != nil {
		return nil, errors.Wrap(ferr, errors.ErrCodeInternal, "training shard failed")
	}

	table := cooccur.NewTable()
	examples := 0
	for _, r := range batch.Results {
		table.Merge(r.Result.table)
		examples += r.Result.examples
	}
	if table.NumDatasets() == 0 {
		return nil, errors.New(errors.ErrCodeTrainingEmpty, "no snippets extracted from training documents")
	}

	res = &Result{
		RunID:     run.ID.String(),
		Documents: len(docs),
		Examples:  examples,
		Datasets:  table.NumDatasets(),
		Words:     table.NumWords(),
		Table:     table,
	}
	if s.store != nil {
		key, err := s.store.Save(ctx, res.RunID, table, s.cfg.Compress)
		if err != nil {
			return nil, err
		}
		res.ModelKey = key
	}
	res.Duration = time.Since(start)
	prometheus.RecordModel(s.metrics, "trained", res.Datasets, res.Words)

	run.Status = repositories.RunStatusSucceeded
	run.ModelKey = res.ModelKey
	run.Examples = res.Examples
	run.Datasets = res.Datasets
	run.Words = res.Words
	s.finish(ctx, run, nil)

	s.logger.Info("training finished",
		logging.String("run_id", res.RunID),
		logging.String("model_key", res.ModelKey),
		logging.Int("examples", res.Examples),
		logging.Int("datasets", res.Datasets),
		logging.Int("words", res.Words),
		logging.Duration("duration", res.Duration))
	return res, nil
}

func (s *serviceImpl) learnShard(ctx context.Context, shard []LabeledDocument) (shardResult, error) {
	var examples []cooccur.TrainingExample
	for _, doc := range shard {
		if err := ctx.Err(); err != nil {
			return shardResult{}, err
		}
		if len(doc.DatasetIDs) == 0 {
			continue
		}
		snippets, err := s.extraction.Snippets(ctx, doc.Text)
		if err != nil {
			if errors.IsInvalidInput(err) {
				s.logger.Debug("skipping document", logging.String("id", doc.ID), logging.Err(err))
				continue
			}
			return shardResult{}, errors.Wrapf(err, errors.ErrCodeInternal, "extract %s", doc.ID)
		}
		for _, snip := range snippets {
			examples = append(examples, cooccur.TrainingExample{Snippet: snip, Datasets: doc.DatasetIDs})
		}
	}
	return shardResult{table: cooccur.Learn(examples), examples: len(examples)}, nil
}

// finish records the outcome of run. Registry failures are logged only.
func (s *serviceImpl) finish(ctx context.Context, run *repositories.Run, cause error) {
	if s.runs == nil {
		return
	}
	if cause != nil {
		run.Status = repositories.RunStatusFailed
		run.ErrorMessage = cause.Error()
	}
	if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("failed to record training run", logging.String("run_id", run.ID.String()), logging.Err(err))
	}
}
