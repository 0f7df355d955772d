package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config holds all configuration for the application
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// PipelineConfig holds where the datasets are read from and written to
type PipelineConfig struct {
	InputDir  string `mapstructure:"input_dir"`
	OutputDir string `mapstructure:"output_dir"`
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	Type            string        `mapstructure:"type"` // "csv", "sqlite", "postgresql", "mongodb", "dynamodb"
	TablePrefix     string        `mapstructure:"table_prefix"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	PostgresURI     string        `mapstructure:"postgres_uri"`
	MongoDBURI      string        `mapstructure:"mongodb_uri"`
	MongoDBDatabase string        `mapstructure:"mongodb_database"`
	Region          string        `mapstructure:"region"`   // For AWS DynamoDB
	Endpoint        string        `mapstructure:"endpoint"` // Custom endpoint for local testing
	Timeout         time.Duration `mapstructure:"timeout"`

	// OutputDir is where CSV storage writes; copied from PipelineConfig.
	OutputDir string `mapstructure:"-"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Storage types
const (
	StorageCSV        = "csv"
	StorageSQLite     = "sqlite"
	StoragePostgreSQL = "postgresql"
	StorageMongoDB    = "mongodb"
	StorageDynamoDB   = "dynamodb"
)

type setting struct {
	key string
	env string
	def interface{}
}

var settings = []setting{
	{"pipeline.input_dir", "INPUT_DIR", "."},
	{"pipeline.output_dir", "OUTPUT_DIR", "."},
	{"storage.type", "STORAGE_TYPE", StorageCSV},
	{"storage.table_prefix", "TABLE_PREFIX", "olist_"},
	{"storage.sqlite_path", "SQLITE_PATH", "olist_final.sqlite"},
	{"storage.postgres_uri", "POSTGRES_URI", ""},
	{"storage.mongodb_uri", "MONGODB_URI", ""},
	{"storage.mongodb_database", "MONGODB_DATABASE", "olist"},
	{"storage.region", "AWS_REGION", "us-west-2"},
	{"storage.endpoint", "DYNAMODB_ENDPOINT", ""}, // For local DynamoDB
	{"storage.timeout", "STORAGE_TIMEOUT", 30 * time.Second},
	{"log.level", "LOG_LEVEL", "info"},
	{"log.encoding", "LOG_ENCODING", "console"},
	{"metrics.textfile", "METRICS_TEXTFILE", ""},
}

// Load loads configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", s.env, err)
		}
	}

	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, fmt.Errorf("failed to bind CONFIG_FILE: %w", err)
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Storage.OutputDir = cfg.Pipeline.OutputDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that cannot produce a working run
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageCSV, StorageSQLite, StorageDynamoDB:
	case StoragePostgreSQL:
		if c.Storage.PostgresURI == "" {
			return fmt.Errorf("POSTGRES_URI is required for storage type %s", c.Storage.Type)
		}
	case StorageMongoDB:
		if c.Storage.MongoDBURI == "" {
			return fmt.Errorf("MONGODB_URI is required for storage type %s", c.Storage.Type)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch c.Log.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log encoding: %s", c.Log.Encoding)
	}
	return nil
}
