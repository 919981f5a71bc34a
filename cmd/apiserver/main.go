// Command apiserver serves the mention extraction and dataset ranking API.
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
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/turtacn/DataMention-Intelligence/internal/interfaces/grpc"
	httpserver "github.com/turtacn/DataMention-Intelligence/internal/interfaces/http"
	"github.com/turtacn/DataMention-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/DataMention-Intelligence/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

const startupTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file (default: $DMI_CONFIG)")
	port := flag.Int("port", 0, "HTTP port (overrides server.port)")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting DataMention-Intelligence API server",
		logging.String("version", Version),
		logging.String("commit", GitCommit),
		logging.Int("port", cfg.Server.Port))

	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	infra, err := bootstrap.NewInfrastructure(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	svc, err := bootstrap.NewServices(startCtx, cfg, infra, logger, bootstrap.WithSource("api"))
	if err != nil {
		return err
	}
	if err := svc.LoadLatestModel(startCtx, logger); err != nil {
		return err
	}

	routerCfg := httpserver.RouterConfig{
		MentionHandler:    handlers.NewMentionHandler(svc.Extraction),
		PredictionHandler: handlers.NewPredictionHandler(svc.Prediction),
		SearchHandler:     newSearchHandler(svc),
		HealthHandler:     handlers.NewHealthHandler(Version, healthCheckers(infra)...),
		Logging:           middleware.DefaultLoggingConfig(),
		Logger:            logger,
		Metrics:           infra.Metrics,
		Mode:              cfg.Server.Mode,
	}
	if infra.Collector != nil {
		routerCfg.MetricsHandler = infra.Collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Server.RateLimitRPS > 0 {
		limiter := middleware.NewTokenBucketLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, time.Minute)
		defer limiter.Stop()
		routerCfg.RateLimiter = limiter
	}

	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)

	var rpc *grpcserver.Server
	if cfg.GRPC.Enabled {
		rpc, err = grpcserver.NewServer(cfg.GRPC,
			grpcserver.WithLogger(logger),
			grpcserver.WithMetrics(infra.Metrics))
		if err != nil {
			return err
		}
		rpc.RegisterService(&grpcserver.PredictionServiceDesc, grpcserver.NewPredictionServer(svc.Prediction))
	}
	return serve(srv, rpc, logger)
}

// serve runs srv, and rpc when enabled, until SIGINT/SIGTERM or the first
// server failure, then drains both.
func serve(srv *httpserver.Server, rpc *grpcserver.Server, logger logging.Logger) error {
	errCh := make(chan error, 2)
	go func() { errCh <- srv.Start() }()
	if rpc != nil {
		go func() { errCh <- rpc.Start() }()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case runErr = <-errCh:
	case sig := <-quit:
		logger.Info("shutting down", logging.String("signal", sig.String()))
	}
	if rpc != nil {
		_ = rpc.Stop(context.Background())
	}
	if err := srv.Stop(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func healthCheckers(infra *bootstrap.Infrastructure) []handlers.HealthChecker {
	checks := infra.HealthChecks()
	out := make([]handlers.HealthChecker, 0, len(checks))
	for _, c := range checks {
		out = append(out, handlers.CheckFunc{N: c.Name, F: c.Check})
	}
	return out
}

// newSearchHandler passes untyped nils for missing backends so the handler
// sees them as absent.
func newSearchHandler(svc *bootstrap.Services) *handlers.SearchHandler {
	var (
		index handlers.MentionSearcher
		graph handlers.CitationReader
	)
	if svc.Index != nil {
		index = svc.Index
	}
	if svc.Graph != nil {
		graph = svc.Graph
	}
	return handlers.NewSearchHandler(index, graph)
}
