// Package bootstrap builds the component graph shared by the API server, the
// queue worker and the CLI from one Config.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/neo4j"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/storage/minio"
)

// Infrastructure holds the clients of the enabled backends. Disabled
// backends stay nil.
type Infrastructure struct {
	Postgres   *postgres.Connection
	Redis      *redis.Client
	MinIO      *minio.Client
	Neo4j      *neo4j.Driver
	OpenSearch *opensearch.Client

	// Collector is nil when metrics are disabled; Metrics is then a no-op.
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.PipelineMetrics

	logger logging.Logger
}

// NamedCheck is one readiness check.
type NamedCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewInfrastructure connects every backend enabled in cfg. On failure the
// clients opened so far are closed.
func NewInfrastructure(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Infrastructure, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	infra := &Infrastructure{Metrics: prometheus.NewNopPipelineMetrics(), logger: logger}

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		infra.Collector = collector
		infra.Metrics = prometheus.NewPipelineMetrics(collector)
	}

	if cfg.Database.Enabled {
		conn, err := postgres.NewConnection(cfg.Database, logger)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		infra.Postgres = conn
		if cfg.Database.AutoMigrate {
			mg, err := postgres.NewMigrator(conn, cfg.Database.MigrationPath)
			if err == nil {
				err = mg.Up()
			}
			if err != nil {
				infra.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		infra.Redis = client
	}

	if cfg.MinIO.Enabled {
		client, err := minio.NewClient(cfg.MinIO, logger)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("minio: %w", err)
		}
		infra.MinIO = client
	}

	if cfg.Neo4j.Enabled {
		drv, err := neo4j.NewDriver(cfg.Neo4j, logger)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("neo4j: %w", err)
		}
		infra.Neo4j = drv
	}

	if cfg.OpenSearch.Enabled {
		client, err := opensearch.NewClient(cfg.OpenSearch, logger)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("opensearch: %w", err)
		}
		infra.OpenSearch = client
	}

	logger.Info("infrastructure initialized",
		logging.Bool("postgres", infra.Postgres != nil),
		logging.Bool("redis", infra.Redis != nil),
		logging.Bool("minio", infra.MinIO != nil),
		logging.Bool("neo4j", infra.Neo4j != nil),
		logging.Bool("opensearch", infra.OpenSearch != nil),
		logging.Bool("metrics", infra.Collector != nil))
	return infra, nil
}

// HealthChecks returns one check per connected backend.
func (i *Infrastructure) HealthChecks() []NamedCheck {
	var checks []NamedCheck
	if i.Postgres != nil {
		checks = append(checks, NamedCheck{Name: "postgres", Check: i.Postgres.HealthCheck})
	}
	if i.Redis != nil {
		checks = append(checks, NamedCheck{Name: "redis", Check: i.Redis.Ping})
	}
	if i.MinIO != nil {
		checks = append(checks, NamedCheck{Name: "minio", Check: i.MinIO.HealthCheck})
	}
	if i.Neo4j != nil {
		checks = append(checks, NamedCheck{Name: "neo4j", Check: i.Neo4j.HealthCheck})
	}
	if i.OpenSearch != nil {
		checks = append(checks, NamedCheck{Name: "opensearch", Check: i.OpenSearch.Ping})
	}
	return checks
}

// Close releases every open client.
func (i *Infrastructure) Close() {
	if i.OpenSearch != nil {
		if err := i.OpenSearch.Close(); err != nil {
			i.logger.Warn("opensearch close failed", logging.Err(err))
		}
	}
	if i.Neo4j != nil {
		if err := i.Neo4j.Close(context.Background()); err != nil {
			i.logger.Warn("neo4j close failed", logging.Err(err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			i.logger.Warn("redis close failed", logging.Err(err))
		}
	}
	if i.Postgres != nil {
		if err := i.Postgres.Close(); err != nil {
			i.logger.Warn("postgres close failed", logging.Err(err))
		}
	}
}
