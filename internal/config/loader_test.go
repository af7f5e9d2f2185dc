package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults without a file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "/Prefix", cfg.Group.Prefix)
		assert.Equal(t, 2048, cfg.Group.KeySize)
		assert.Equal(t, time.Hour, cfg.Group.Freshness)
		assert.Equal(t, time.Hour, cfg.Producer.Bucket)
		assert.Equal(t, 3, cfg.Producer.Retries)
		assert.Equal(t, 4*time.Second, cfg.Producer.InterestLifetime)
		assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
		assert.Equal(t, "gep.db", cfg.Storage.DSN)
		assert.Equal(t, "info", cfg.Logger.Level)
		assert.False(t, cfg.Metrics.Enabled)
	})

	t.Run("reads yaml", func(t *testing.T) {
		path := writeConfig(t, `
group:
  prefix: /Org/Building
  dataType: /location/room
  keySize: 1024
  freshness: 30m
producer:
  bucket: 15m
  retries: 5
  forwardingHints:
    - /hub
storage:
  driver: memory
logger:
  level: debug
  format: json
metrics:
  enabled: true
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, path, cfg.Path)
		assert.Equal(t, "/location/room", cfg.Group.DataType)
		assert.Equal(t, 1024, cfg.Group.KeySize)
		assert.Equal(t, 30*time.Minute, cfg.Group.Freshness)
		assert.Equal(t, 15*time.Minute, cfg.Producer.Bucket)
		assert.Equal(t, 5, cfg.Producer.Retries)
		assert.Equal(t, []string{"/hub"}, cfg.Producer.ForwardingHints)
		assert.Equal(t, DriverMemory, cfg.Storage.Driver)
		assert.Equal(t, "json", cfg.Logger.Format)
		assert.True(t, cfg.Metrics.Enabled)

		prefix, dataType, err := cfg.Group.Names()
		require.NoError(t, err)
		assert.Equal(t, "/Org/Building", prefix.String())
		assert.Equal(t, 2, dataType.Size())
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "logger:\n  level: warn\n")
		t.Setenv("GEP_LOG_LEVEL", "error")
		t.Setenv("GEP_GROUP_KEY_SIZE", "4096")
		t.Setenv("GEP_PRODUCER_BUCKET", "2h")
		t.Setenv("GEP_STORAGE_DRIVER", "redis")
		t.Setenv("GEP_REDIS_ADDR", "localhost:6379")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.Logger.Level)
		assert.Equal(t, 4096, cfg.Group.KeySize)
		assert.Equal(t, 2*time.Hour, cfg.Producer.Bucket)
		assert.Equal(t, DriverRedis, cfg.Storage.Driver)
		assert.Equal(t, "localhost:6379", cfg.Storage.RedisAddr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown driver":     "storage:\n  driver: postgres\n",
		"unknown log level":  "logger:\n  level: verbose\n",
		"unknown log format": "logger:\n  format: xml\n",
		"small key":          "group:\n  keySize: 512\n",
		"negative retries":   "producer:\n  retries: -1\n",
		"zero bucket":        "producer:\n  bucket: 0s\n",
		"redis without addr": "storage:\n  driver: redis\n",
		"sqlite without dsn": "storage:\n  dsn: \"\"\n",
		"empty group prefix": "group:\n  prefix: \"\"\n",
		"negative freshness": "group:\n  freshness: -1m\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
