package bootstrap

import (
	"context"
	"fmt"

	"github.com/turtacn/DataMention-Intelligence/internal/application/extraction"
	"github.com/turtacn/DataMention-Intelligence/internal/application/prediction"
	"github.com/turtacn/DataMention-Intelligence/internal/application/training"
	"github.com/turtacn/DataMention-Intelligence/internal/config"
	graphrepo "github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/neo4j/repositories"
	pgrepo "github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/storage/local"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/mention"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// ModelStore is what training and prediction need from an artifact store.
// *minio.ModelStore and *local.ModelStore satisfy it.
type ModelStore interface {
	training.ModelStore
	prediction.ModelSource
	prediction.ReportStore
}

// Services is the application layer wired over an Infrastructure.
type Services struct {
	Extractor  *mention.Extractor
	Extraction extraction.Service
	Training   training.Service
	Prediction prediction.Service

	Models ModelStore
	Runs   *pgrepo.RunRepo
	Index  *opensearch.MentionIndex
	Graph  *graphrepo.CitationGraph
}

type serviceOptions struct {
	source         string
	lexicon        *mention.Lexicon
	segmenter      mention.SentenceSegmenter
	publisher      kafka.Publisher
	predictedTopic string
}

// ServiceOption customises NewServices.
type ServiceOption func(*serviceOptions)

// WithSource labels extraction metrics (api, worker, cli).
func WithSource(source string) ServiceOption {
	return func(o *serviceOptions) { o.source = source }
}

// WithLexicon uses lex instead of the files named in the config.
func WithLexicon(lex *mention.Lexicon) ServiceOption {
	return func(o *serviceOptions) { o.lexicon = lex }
}

// WithSegmenter replaces the punkt segmenter.
func WithSegmenter(seg mention.SentenceSegmenter) ServiceOption {
	return func(o *serviceOptions) { o.segmenter = seg }
}

// WithPublisher makes prediction publish dataset.predicted events.
func WithPublisher(p kafka.Publisher, topic string) ServiceOption {
	return func(o *serviceOptions) {
		o.publisher = p
		o.predictedTopic = topic
	}
}

// NewServices builds the extraction, training and prediction services.
// Optional collaborators are wired only for the backends present in infra;
// without MinIO, models live in cfg.Scoring.ModelPath on disk.
func NewServices(ctx context.Context, cfg *config.Config, infra *Infrastructure, logger logging.Logger, opts ...ServiceOption) (*Services, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if infra == nil {
		infra = &Infrastructure{}
	}
	o := &serviceOptions{source: "api"}
	for _, opt := range opts {
		opt(o)
	}

	lex := o.lexicon
	if lex == nil {
		if cfg.Lexicon.AbbreviationsPath == "" || cfg.Lexicon.PhrasesPath == "" {
			return nil, errors.NewInvalidInput("lexicon.abbreviations_path and lexicon.phrases_path are required")
		}
		loaded, err := mention.LoadLexicon(cfg.Lexicon.AbbreviationsPath, cfg.Lexicon.PhrasesPath)
		if err != nil {
			return nil, err
		}
		lex = loaded
	}
	seg := o.segmenter
	if seg == nil {
		punkt, err := mention.NewPunktSegmenter()
		if err != nil {
			return nil, err
		}
		seg = punkt
	}
	windows := mention.NewWindowExtractor(mention.NewTreebankTokenizer(), cfg.Extraction.LeftWindow, cfg.Extraction.RightWindow)
	extractor, err := mention.NewExtractor(lex, seg,
		mention.WithLogger(logger.Named("mention")),
		mention.WithWindowExtractor(windows))
	if err != nil {
		return nil, err
	}

	svc := &Services{Extractor: extractor}

	extOpts := []extraction.Option{
		extraction.WithMetrics(infra.Metrics),
		extraction.WithSource(o.source),
	}
	if infra.Redis != nil {
		cache := redis.NewSnippetCache(infra.Redis, logger,
			redis.WithPrefix(cfg.Redis.KeyPrefix),
			redis.WithDefaultTTL(cfg.Redis.DefaultTTL))
		extOpts = append(extOpts, extraction.WithCache(cache))
	}
	svc.Extraction = extraction.NewService(extractor, logger.Named("extraction"), extOpts...)

	if infra.MinIO != nil {
		svc.Models = minio.NewModelStore(infra.MinIO, logger)
	} else {
		svc.Models = local.NewModelStore(cfg.Scoring.ModelPath, logger)
	}
	if infra.Postgres != nil {
		svc.Runs = pgrepo.NewRunRepo(infra.Postgres, logger)
	}
	if infra.OpenSearch != nil {
		svc.Index = opensearch.NewMentionIndex(infra.OpenSearch, cfg.OpenSearch, logger)
		if err := svc.Index.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("opensearch index: %w", err)
		}
	}
	if infra.Neo4j != nil {
		svc.Graph = graphrepo.NewCitationGraph(infra.Neo4j, logger)
		if err := svc.Graph.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("neo4j schema: %w", err)
		}
	}

	trainOpts := []training.Option{
		training.WithModelStore(svc.Models),
		training.WithMetrics(infra.Metrics),
	}
	if svc.Runs != nil {
		trainOpts = append(trainOpts, training.WithRunRegistry(svc.Runs))
	}
	if infra.Redis != nil {
		trainOpts = append(trainOpts, training.WithLocker(redis.NewMutex(infra.Redis, cfg.Redis.KeyPrefix, "training")))
	}
	svc.Training = training.NewService(svc.Extraction, training.Config{
		Shards:       cfg.Training.Shards,
		MaxRetries:   cfg.Training.MaxRetries,
		RetryBackoff: cfg.Training.RetryBackoff,
		ItemTimeout:  cfg.Extraction.ItemTimeout,
		Compress:     cfg.Scoring.Compress,
	}, logger.Named("training"), trainOpts...)

	predOpts := []prediction.Option{
		prediction.WithModelSource(svc.Models),
		prediction.WithReportStore(svc.Models),
		prediction.WithMetrics(infra.Metrics),
		prediction.WithTopK(cfg.Scoring.TopK),
	}
	if svc.Runs != nil {
		predOpts = append(predOpts, prediction.WithEvaluationRegistry(svc.Runs))
	}
	if svc.Index != nil {
		predOpts = append(predOpts, prediction.WithMentionIndex(svc.Index))
	}
	if svc.Graph != nil {
		predOpts = append(predOpts, prediction.WithCitationGraph(svc.Graph))
	}
	if o.publisher != nil {
		predOpts = append(predOpts, prediction.WithPublisher(o.publisher, o.predictedTopic))
	}
	svc.Prediction = prediction.NewService(svc.Extraction, logger.Named("prediction"), predOpts...)

	return svc, nil
}

// LoadLatestModel loads the newest model if one exists. A missing model is
// logged and tolerated so a fresh deployment can start before training.
func (s *Services) LoadLatestModel(ctx context.Context, logger logging.Logger) error {
	err := s.Prediction.LoadModel(ctx, "")
	if err == nil {
		return nil
	}
	if errors.IsCode(err, errors.ErrCodeModelNotFound) {
		logger.Warn("no trained model available yet", logging.Err(err))
		return nil
	}
	return err
}
