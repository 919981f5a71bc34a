package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultGRPCPort    = 9090
	DefaultGRPCMsgSize = 16 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultLeftWindow  = 5
	DefaultRightWindow = 6
	DefaultTopK        = 5
	DefaultShards      = 4
	DefaultModelDir    = "models"

	DefaultDBHost = "localhost"
	DefaultDBPort = 5432
	DefaultDBName = "dmi"

	DefaultRedisAddr = "localhost:6379"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultModelBucket   = "dmi-models"
	DefaultReportBucket  = "dmi-reports"

	DefaultKafkaBroker     = "localhost:9092"
	DefaultKafkaGroupID    = "dmi-worker"
	DefaultSubmittedTopic  = "publication.submitted"
	DefaultPredictedTopic  = "dataset.predicted"
	DefaultDeadLetterTopic = "publication.submitted.dlq"

	DefaultNeo4jURI = "bolt://localhost:7687"

	DefaultOpenSearchAddr  = "http://localhost:9200"
	DefaultOpenSearchIndex = "dmi-mentions"

	DefaultCorpusCacheFile   = "corpus_cache.json"
	DefaultDownloadAttempts  = 3
	DefaultDownloadUserAgent = "Mozilla/5.0 (X11; Linux x86_64) dmi-corpus-fetcher"

	DefaultMetricsNamespace = "dmi"
	DefaultMetricsPath      = "/metrics"
)

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg with its default. Fields
// that are already set are left unchanged so explicit configuration wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 16 << 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	// ── gRPC ──────────────────────────────────────────────────────────────────
	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = DefaultGRPCPort
	}
	if cfg.GRPC.MaxRecvMsgSize == 0 {
		cfg.GRPC.MaxRecvMsgSize = DefaultGRPCMsgSize
	}
	if cfg.GRPC.MaxSendMsgSize == 0 {
		cfg.GRPC.MaxSendMsgSize = DefaultGRPCMsgSize
	}
	if cfg.GRPC.GracefulTimeout == 0 {
		cfg.GRPC.GracefulTimeout = 10 * time.Second
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = int(2 * cfg.Server.RateLimitRPS)
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stdout"}
	}
	if len(cfg.Log.ErrorOutputPaths) == 0 {
		cfg.Log.ErrorOutputPaths = []string{"stderr"}
	}

	// ── Core pipeline ─────────────────────────────────────────────────────────
	if cfg.Extraction.LeftWindow == 0 {
		cfg.Extraction.LeftWindow = DefaultLeftWindow
	}
	if cfg.Extraction.RightWindow == 0 {
		cfg.Extraction.RightWindow = DefaultRightWindow
	}
	if cfg.Extraction.Concurrency == 0 {
		cfg.Extraction.Concurrency = 4
	}
	if cfg.Extraction.ItemTimeout == 0 {
		cfg.Extraction.ItemTimeout = 30 * time.Second
	}
	if cfg.Scoring.TopK == 0 {
		cfg.Scoring.TopK = DefaultTopK
	}
	if cfg.Scoring.ModelPath == "" {
		cfg.Scoring.ModelPath = DefaultModelDir
	}
	if cfg.Training.Shards == 0 {
		cfg.Training.Shards = DefaultShards
	}
	if cfg.Training.RetryBackoff == 0 {
		cfg.Training.RetryBackoff = 100 * time.Millisecond
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "file://internal/infrastructure/database/postgres/migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = 24 * time.Hour
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "dmi:"
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.ModelBucket == "" {
		cfg.MinIO.ModelBucket = DefaultModelBucket
	}
	if cfg.MinIO.ReportBucket == "" {
		cfg.MinIO.ReportBucket = DefaultReportBucket
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.SubmittedTopic == "" {
		cfg.Kafka.SubmittedTopic = DefaultSubmittedTopic
	}
	if cfg.Kafka.PredictedTopic == "" {
		cfg.Kafka.PredictedTopic = DefaultPredictedTopic
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultDeadLetterTopic
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = time.Second
	}
	if cfg.Kafka.Concurrency == 0 {
		cfg.Kafka.Concurrency = 4
	}

	// ── Neo4j ─────────────────────────────────────────────────────────────────
	if cfg.Neo4j.URI == "" {
		cfg.Neo4j.URI = DefaultNeo4jURI
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = "neo4j"
	}
	if cfg.Neo4j.MaxConnectionPoolSize == 0 {
		cfg.Neo4j.MaxConnectionPoolSize = 50
	}
	if cfg.Neo4j.ConnectionTimeout == 0 {
		cfg.Neo4j.ConnectionTimeout = 10 * time.Second
	}

	// ── OpenSearch ────────────────────────────────────────────────────────────
	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{DefaultOpenSearchAddr}
	}
	if cfg.OpenSearch.Index == "" {
		cfg.OpenSearch.Index = DefaultOpenSearchIndex
	}
	if cfg.OpenSearch.BulkBatchSize == 0 {
		cfg.OpenSearch.BulkBatchSize = 500
	}

	// ── Corpus ──────────────────────────────────────────────────────────────────
	if cfg.Corpus.CacheFile == "" {
		cfg.Corpus.CacheFile = DefaultCorpusCacheFile
	}
	if cfg.Corpus.Download.Attempts == 0 {
		cfg.Corpus.Download.Attempts = DefaultDownloadAttempts
	}
	if cfg.Corpus.Download.Backoff == 0 {
		cfg.Corpus.Download.Backoff = 5 * time.Second
	}
	if cfg.Corpus.Download.MaxBackoff == 0 {
		cfg.Corpus.Download.MaxBackoff = 30 * time.Second
	}
	if cfg.Corpus.Download.Timeout == 0 {
		cfg.Corpus.Download.Timeout = time.Minute
	}
	if cfg.Corpus.Download.Delay == 0 {
		cfg.Corpus.Download.Delay = 500 * time.Millisecond
	}
	if cfg.Corpus.Download.UserAgent == "" {
		cfg.Corpus.Download.UserAgent = DefaultDownloadUserAgent
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
