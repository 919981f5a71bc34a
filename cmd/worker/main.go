// Command worker consumes publication.submitted events, ranks the datasets of
// each publication and publishes dataset.predicted events.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/DataMention-Intelligence/internal/bootstrap"
	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/DataMention-Intelligence/internal/interfaces/http"
	"github.com/turtacn/DataMention-Intelligence/internal/interfaces/http/handlers"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

const (
	defaultHealthPort = 8081
	startupTimeout    = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file (default: $DMI_CONFIG)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and metrics")
	ensureTopics := flag.Bool("ensure-topics", true, "create the pipeline topics if missing")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka.enabled is false; the worker has nothing to consume")
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	submitted, predicted := cfg.Kafka.SubmittedTopic, cfg.Kafka.PredictedTopic
	logger.Info("starting DataMention-Intelligence worker",
		logging.String("version", Version),
		logging.String("commit", GitCommit),
		logging.String("consume", submitted),
		logging.String("publish", predicted))

	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if *ensureTopics {
		if err := createTopics(startCtx, cfg.Kafka, logger); err != nil {
			return err
		}
	}

	infra, err := bootstrap.NewInfrastructure(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	producer, err := kafka.NewProducer(cfg.Kafka, logger.Named("producer"))
	if err != nil {
		return err
	}
	defer producer.Close()

	svc, err := bootstrap.NewServices(startCtx, cfg, infra, logger,
		bootstrap.WithSource("worker"),
		bootstrap.WithPublisher(producer, predicted))
	if err != nil {
		return err
	}
	if err := svc.LoadLatestModel(startCtx, logger); err != nil {
		return err
	}

	consumer, err := kafka.NewConsumer(cfg.Kafka, []string{submitted}, producer, logger.Named("consumer"))
	if err != nil {
		return err
	}
	consumer.Subscribe(submitted, svc.Prediction.HandleSubmitted)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		return err
	}

	health := newHealthServer(cfg, infra, *healthPort, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- health.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("health server failed", logging.Err(err))
		}
	}

	if err := consumer.Close(); err != nil {
		logger.Warn("consumer close failed", logging.Err(err))
	}
	processed, failed, deadLettered := consumer.Stats()
	logger.Info("consumer stopped",
		logging.Int64("processed", processed),
		logging.Int64("failed", failed),
		logging.Int64("dead_lettered", deadLettered))

	return health.Stop(context.Background())
}

func createTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is empty")
	}
	tm, err := kafka.NewTopicManager(cfg.Brokers, logger.Named("topics"))
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg))
}

// newHealthServer exposes health checks and metrics; the worker serves no API.
func newHealthServer(cfg *config.Config, infra *bootstrap.Infrastructure, port int, logger logging.Logger) *httpserver.Server {
	checks := infra.HealthChecks()
	checkers := make([]handlers.HealthChecker, 0, len(checks))
	for _, c := range checks {
		checkers = append(checkers, handlers.CheckFunc{N: c.Name, F: c.Check})
	}
	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(Version, checkers...),
		Logger:        logger,
		Metrics:       infra.Metrics,
		Mode:          cfg.Server.Mode,
	}
	if infra.Collector != nil {
		routerCfg.MetricsHandler = infra.Collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	serverCfg := cfg.Server
	serverCfg.Port = port
	return httpserver.NewServer(serverCfg, httpserver.NewRouter(routerCfg), logger)
}
