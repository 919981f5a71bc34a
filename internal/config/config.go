// Package config defines the configuration structures of DataMention-Intelligence.
// No I/O or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RateLimitRPS is the per-client request rate on /api/v1. Zero disables it.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// GRPCConfig holds the optional gRPC listener served next to HTTP.
type GRPCConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port"`
	Reflection      bool          `mapstructure:"reflection"`
	MaxRecvMsgSize  int           `mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize  int           `mapstructure:"max_send_msg_size"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

// LexiconConfig points at the two lexicon files.
type LexiconConfig struct {
	AbbreviationsPath string `mapstructure:"abbreviations_path"`
	PhrasesPath       string `mapstructure:"phrases_path"`
}

// ExtractionConfig holds window sizes and pipeline parallelism.
type ExtractionConfig struct {
	LeftWindow  int           `mapstructure:"left_window"`
	RightWindow int           `mapstructure:"right_window"`
	Concurrency int           `mapstructure:"concurrency"`
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
}

// ScoringConfig controls ranking and the local model artifact.
type ScoringConfig struct {
	TopK int `mapstructure:"top_k"`

	// ModelPath is the model directory used when MinIO is disabled.
	ModelPath string `mapstructure:"model_path"`
	Compress  bool   `mapstructure:"compress"`
}

// TrainingConfig controls sharded training.
type TrainingConfig struct {
	Shards       int           `mapstructure:"shards"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the run registry.
type DatabaseConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	StatementTimeout int           `mapstructure:"statement_timeout"`
	MigrationPath    string        `mapstructure:"migration_path"`
	AutoMigrate      bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis connection parameters for the snippet cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// MinIOConfig holds object-storage parameters for model artifacts and reports.
type MinIOConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	Region       string `mapstructure:"region"`
	ModelBucket  string `mapstructure:"model_bucket"`
	ReportBucket string `mapstructure:"report_bucket"`
}

// KafkaConfig holds the document queue parameters.
type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	SubmittedTopic  string        `mapstructure:"submitted_topic"`
	PredictedTopic  string        `mapstructure:"predicted_topic"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	Concurrency     int           `mapstructure:"concurrency"`
}

// Neo4jConfig holds citation-graph connection parameters.
type Neo4jConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	URI                   string        `mapstructure:"uri"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	Database              string        `mapstructure:"database"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
}

// OpenSearchConfig holds mention-index parameters.
type OpenSearchConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	Index              string   `mapstructure:"index"`
	BulkBatchSize      int      `mapstructure:"bulk_batch_size"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// CorpusConfig locates the annotated corpus on disk.
type CorpusConfig struct {
	Path    string `mapstructure:"path"`
	TextDir string `mapstructure:"text_dir"`
	PDFDir  string `mapstructure:"pdf_dir"`
	HTMLDir string `mapstructure:"html_dir"`
	// CacheFile is the consolidated corpus cache. Relative paths resolve
	// against the directory of Path.
	CacheFile string         `mapstructure:"cache_file"`
	Download  DownloadConfig `mapstructure:"download"`
}

// DownloadConfig controls fetching of publication PDFs and dataset pages.
type DownloadConfig struct {
	Attempts   int           `mapstructure:"attempts"`
	Backoff    time.Duration `mapstructure:"backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// Delay is the pause between two resources.
	Delay     time.Duration `mapstructure:"delay"`
	UserAgent string        `mapstructure:"user_agent"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	GRPC       GRPCConfig        `mapstructure:"grpc"`
	Log        logging.LogConfig `mapstructure:"log"`
	Lexicon    LexiconConfig     `mapstructure:"lexicon"`
	Extraction ExtractionConfig  `mapstructure:"extraction"`
	Scoring    ScoringConfig     `mapstructure:"scoring"`
	Training   TrainingConfig    `mapstructure:"training"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Redis      RedisConfig       `mapstructure:"redis"`
	MinIO      MinIOConfig       `mapstructure:"minio"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	Neo4j      Neo4jConfig       `mapstructure:"neo4j"`
	OpenSearch OpenSearchConfig  `mapstructure:"opensearch"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Corpus     CorpusConfig      `mapstructure:"corpus"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a fully-populated Config. Sections
// of disabled infrastructure are not checked.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.GRPC.Enabled {
		if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
			return fmt.Errorf("config: grpc.port %d is out of range [1, 65535]", c.GRPC.Port)
		}
		if c.GRPC.Port == c.Server.Port {
			return fmt.Errorf("config: grpc.port %d collides with server.port", c.GRPC.Port)
		}
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Extraction.LeftWindow < 1 || c.Extraction.RightWindow < 1 {
		return fmt.Errorf("config: extraction windows must be ≥ 1, got %d/%d",
			c.Extraction.LeftWindow, c.Extraction.RightWindow)
	}
	if c.Scoring.TopK < 1 {
		return fmt.Errorf("config: scoring.top_k must be ≥ 1, got %d", c.Scoring.TopK)
	}
	if c.Training.Shards < 1 {
		return fmt.Errorf("config: training.shards must be ≥ 1, got %d", c.Training.Shards)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.MinIO.Enabled && (c.MinIO.Endpoint == "" || c.MinIO.ModelBucket == "") {
		return fmt.Errorf("config: minio.endpoint and minio.model_bucket are required")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}
	if c.Neo4j.Enabled && c.Neo4j.URI == "" {
		return fmt.Errorf("config: neo4j.uri is required")
	}
	if c.OpenSearch.Enabled && len(c.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("config: opensearch.addresses must not be empty")
	}
	return nil
}
