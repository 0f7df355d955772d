package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Pipeline.InputDir)
	assert.Equal(t, ".", cfg.Pipeline.OutputDir)
	assert.Equal(t, StorageCSV, cfg.Storage.Type)
	assert.Equal(t, ".", cfg.Storage.OutputDir)
	assert.Equal(t, "olist_", cfg.Storage.TablePrefix)
	assert.Equal(t, 30*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Encoding)
	assert.Empty(t, cfg.Metrics.Textfile)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("INPUT_DIR", "/data/in")
	t.Setenv("OUTPUT_DIR", "/data/out")
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("SQLITE_PATH", "/data/out/final.db")
	t.Setenv("STORAGE_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("METRICS_TEXTFILE", "/var/lib/node_exporter/olist.prom")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/in", cfg.Pipeline.InputDir)
	assert.Equal(t, "/data/out", cfg.Storage.OutputDir)
	assert.Equal(t, StorageSQLite, cfg.Storage.Type)
	assert.Equal(t, "/data/out/final.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 5*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/lib/node_exporter/olist.prom", cfg.Metrics.Textfile)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  input_dir: /srv/olist
storage:
  type: mongodb
  mongodb_uri: mongodb://localhost:27017
log:
  encoding: json
`), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_ENCODING", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/olist", cfg.Pipeline.InputDir)
	assert.Equal(t, StorageMongoDB, cfg.Storage.Type)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.MongoDBURI)
	assert.Equal(t, "olist", cfg.Storage.MongoDBDatabase)
	assert.Equal(t, "console", cfg.Log.Encoding, "environment overrides the file")
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Storage: StorageConfig{Type: StorageCSV},
			Log:     LogConfig{Level: "info", Encoding: "console"},
		}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Type = "parquet"
	assert.EqualError(t, cfg.Validate(), "unsupported storage type: parquet")

	cfg = base()
	cfg.Storage.Type = StoragePostgreSQL
	assert.Contains(t, cfg.Validate().Error(), "POSTGRES_URI")

	cfg = base()
	cfg.Storage.Type = StorageMongoDB
	assert.Contains(t, cfg.Validate().Error(), "MONGODB_URI")

	cfg = base()
	cfg.Log.Level = "loud"
	assert.Contains(t, cfg.Validate().Error(), "invalid log level")

	cfg = base()
	cfg.Log.Encoding = "xml"
	assert.Contains(t, cfg.Validate().Error(), "unsupported log encoding")
}
