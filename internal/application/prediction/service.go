// Package prediction ranks the datasets a publication most likely uses and
// evaluates those rankings against ground truth.
package prediction

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/DataMention-Intelligence/internal/application/extraction"
	graphrepo "github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/neo4j/repositories"
	pgrepo "github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/cooccur"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// DefaultTopK is the ranking length used when a caller passes zero.
const DefaultTopK = 5

// ModelSource loads stored tables. *minio.ModelStore satisfies it.
type ModelSource interface {
	Load(ctx context.Context, key string) (*cooccur.Table, error)
	LoadLatest(ctx context.Context) (*cooccur.Table, string, error)
}

// ReportStore keeps exported evaluation workbooks. *minio.ModelStore
// satisfies it.
type ReportStore interface {
	SaveReport(ctx context.Context, name string, data []byte) (string, error)
}

// EvaluationRegistry records evaluation runs. *pgrepo.RunRepo satisfies it.
type EvaluationRegistry interface {
	Create(ctx context.Context, run *pgrepo.Run) error
	Finish(ctx context.Context, run *pgrepo.Run) error
	SaveEvaluationRecords(ctx context.Context, runID uuid.UUID, records []pgrepo.EvaluationRecord) error
}

// MentionIndexer stores predicted snippets for search.
// *opensearch.MentionIndex satisfies it.
type MentionIndexer interface {
	IndexSnippets(ctx context.Context, docs []opensearch.MentionDocument) (*opensearch.BulkResult, error)
}

// CitationGraph stores predicted edges. *graphrepo.CitationGraph satisfies it.
type CitationGraph interface {
	RecordPredictions(ctx context.Context, publicationID, modelKey string, edges []graphrepo.PredictedEdge) error
}

// Prediction is the ranking of one publication.
type Prediction struct {
	PublicationID string                  `json:"publication_id"`
	ModelKey      string                  `json:"model_key"`
	Snippets      []string                `json:"snippets"`
	Datasets      []cooccur.ScoredDataset `json:"datasets"`
	TookMs        int64                   `json:"took_ms"`
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	Key      string `json:"key"`
	Datasets int    `json:"datasets"`
	Words    int    `json:"words"`
	Loaded   bool   `json:"loaded"`
}

// Service predicts and evaluates.
type Service interface {
	// LoadModel loads key from the model source, or the latest model when key
	// is empty, and swaps it in.
	LoadModel(ctx context.Context, key string) error
	// SetModel swaps in an already loaded table.
	SetModel(t *cooccur.Table, key string)
	Model() ModelInfo

	PredictSnippet(ctx context.Context, snippet string, topK int) ([]cooccur.ScoredDataset, error)
	PredictDocument(ctx context.Context, publicationID, text string, topK int) (*Prediction, error)
	Evaluate(ctx context.Context, docs []LabeledDocument, opts EvaluateOptions) (*EvaluationReport, error)

	// HandleSubmitted consumes a publication.submitted message.
	HandleSubmitted(ctx context.Context, msg *kafka.Message) error
}

type loadedModel struct {
	table *cooccur.Table
	key   string
}

type serviceImpl struct {
	extraction extraction.Service
	model      atomic.Pointer[loadedModel]

	models  ModelSource
	reports ReportStore
	runs    EvaluationRegistry
	index   MentionIndexer
	graph   CitationGraph

	publisher      kafka.Publisher
	predictedTopic string

	metrics *prometheus.PipelineMetrics
	topK    int
	logger  logging.Logger
}

// Option customises the service.
type Option func(*serviceImpl)

func WithModelSource(m ModelSource) Option {
	return func(s *serviceImpl) { s.models = m }
}

func WithReportStore(r ReportStore) Option {
	return func(s *serviceImpl) { s.reports = r }
}

func WithEvaluationRegistry(r EvaluationRegistry) Option {
	return func(s *serviceImpl) { s.runs = r }
}

func WithMentionIndex(i MentionIndexer) Option {
	return func(s *serviceImpl) { s.index = i }
}

func WithCitationGraph(g CitationGraph) Option {
	return func(s *serviceImpl) { s.graph = g }
}

// WithPublisher publishes a dataset.predicted event per PredictDocument.
func WithPublisher(p kafka.Publisher, topic string) Option {
	return func(s *serviceImpl) {
		s.publisher = p
		s.predictedTopic = topic
	}
}

func WithMetrics(m *prometheus.PipelineMetrics) Option {
	return func(s *serviceImpl) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTopK sets the default ranking length.
func WithTopK(k int) Option {
	return func(s *serviceImpl) {
		if k > 0 {
			s.topK = k
		}
	}
}

// NewService creates the prediction service. It starts without a model.
func NewService(ext extraction.Service, logger logging.Logger, opts ...Option) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &serviceImpl{
		extraction: ext,
		metrics:    prometheus.NewNopPipelineMetrics(),
		topK:       DefaultTopK,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) LoadModel(ctx context.Context, key string) error {
	if s.models == nil {
		return errors.New(errors.ErrCodeModelNotLoaded, "no model source configured")
	}
	var (
		t   *cooccur.Table
		err error
	)
	if key == "" {
		t, key, err = s.models.LoadLatest(ctx)
	} else {
		t, err = s.models.Load(ctx, key)
	}
	if err != nil {
		return err
	}
	s.SetModel(t, key)
	return nil
}

func (s *serviceImpl) SetModel(t *cooccur.Table, key string) {
	s.model.Store(&loadedModel{table: t, key: key})
	prometheus.RecordModel(s.metrics, "serving", t.NumDatasets(), t.NumWords())
	s.logger.Info("model loaded",
		logging.String("key", key),
		logging.Int("datasets", t.NumDatasets()),
		logging.Int("words", t.NumWords()))
}

func (s *serviceImpl) Model() ModelInfo {
	m := s.model.Load()
	if m == nil {
		return ModelInfo{}
	}
	return ModelInfo{Key: m.key, Datasets: m.table.NumDatasets(), Words: m.table.NumWords(), Loaded: true}
}

func (s *serviceImpl) current() (*loadedModel, error) {
	m := s.model.Load()
	if m == nil {
		return nil, errors.New(errors.ErrCodeModelNotLoaded, "no model loaded")
	}
	return m, nil
}

func (s *serviceImpl) PredictSnippet(ctx context.Context, snippet string, topK int) ([]cooccur.ScoredDataset, error) {
	start := time.Now()
	m, err := s.current()
	if err == nil && strings.TrimSpace(snippet) == "" {
		err = errors.NewInvalidInput("snippet is empty")
	}
	prometheus.RecordPrediction(s.metrics, "snippet", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return m.table.Score(snippet, s.k(topK)), nil
}

// PredictDocument extracts the document's snippets and scores them as one
// space-joined context. Because the score is a sum over tokens this equals
// summing the per-snippet scores. Side effects (index, graph, event) are
// best effort and never fail the prediction.
func (s *serviceImpl) PredictDocument(ctx context.Context, publicationID, text string, topK int) (*Prediction, error) {
	p, err := s.predict(ctx, publicationID, text, s.k(topK))
	if err != nil {
		return nil, err
	}
	s.afterPredict(ctx, p)
	return p, nil
}

func (s *serviceImpl) predict(ctx context.Context, publicationID, text string, topK int) (p *Prediction, err error) {
	start := time.Now()
	defer func() { prometheus.RecordPrediction(s.metrics, "document", time.Since(start), err) }()

	m, err := s.current()
	if err != nil {
		return nil, err
	}
	snippets, err := s.extraction.Snippets(ctx, text)
	if err != nil {
		return nil, err
	}
	scores := []cooccur.ScoredDataset{}
	if len(snippets) > 0 {
		scores = m.table.Score(strings.Join(snippets, " "), topK)
	}
	return &Prediction{
		PublicationID: publicationID,
		ModelKey:      m.key,
		Snippets:      snippets,
		Datasets:      scores,
		TookMs:        time.Since(start).Milliseconds(),
	}, nil
}

func (s *serviceImpl) k(topK int) int {
	if topK <= 0 {
		return s.topK
	}
	return topK
}

func (s *serviceImpl) afterPredict(ctx context.Context, p *Prediction) {
	if p.PublicationID == "" {
		return
	}
	ids := cooccur.IDs(p.Datasets)

	if s.index != nil && len(p.Snippets) > 0 {
		docs := make([]opensearch.MentionDocument, len(p.Snippets))
		for i, snip := range p.Snippets {
			docs[i] = opensearch.MentionDocument{
				PublicationID: p.PublicationID,
				Snippet:       snip,
				Position:      i,
				Datasets:      ids,
				Source:        string(graphrepo.EdgeSourcePredicted),
				Model:         p.ModelKey,
			}
		}
		if res, err := s.index.IndexSnippets(ctx, docs); err != nil {
			s.sideEffectFailed("search", p.PublicationID, err)
		} else if res.Failed > 0 {
			s.logger.Warn("some snippets were not indexed",
				logging.String("publication_id", p.PublicationID),
				logging.Int("failed", res.Failed))
		}
	}

	if s.graph != nil {
		edges := make([]graphrepo.PredictedEdge, len(p.Datasets))
		for i, d := range p.Datasets {
			edges[i] = graphrepo.PredictedEdge{DatasetID: d.Dataset, Score: d.Score, Rank: i + 1}
		}
		if err := s.graph.RecordPredictions(ctx, p.PublicationID, p.ModelKey, edges); err != nil {
			s.sideEffectFailed("graph", p.PublicationID, err)
		}
	}

	if s.publisher != nil && s.predictedTopic != "" {
		if err := s.publishPredicted(ctx, p); err != nil {
			s.sideEffectFailed("messaging", p.PublicationID, err)
		}
	}
}

func (s *serviceImpl) sideEffectFailed(component, publicationID string, err error) {
	prometheus.RecordError(s.metrics, component, errors.GetCode(err).String())
	s.logger.Warn("prediction side effect failed",
		logging.String("component", component),
		logging.String("publication_id", publicationID),
		logging.Err(err))
}
