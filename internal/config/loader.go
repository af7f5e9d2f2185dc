package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("config: invalid configuration")

var defaults = map[string]any{
	"group.prefix":              "/Prefix",
	"group.dataType":            "/data",
	"group.keySize":             2048,
	"group.freshness":           time.Hour,
	"producer.bucket":           time.Hour,
	"producer.retries":          3,
	"producer.interestLifetime": 4 * time.Second,
	"producer.cacheSizeMB":      0,
	"producer.cacheTTL":         time.Duration(0),
	"storage.driver":            DriverSQLite,
	"storage.dsn":               "gep.db",
	"storage.busyTimeout":       5 * time.Second,
	"storage.redisKeyPrefix":    "gep:ckey:",
	"logger.level":              "info",
	"logger.format":             "text",
	"metrics.enabled":           false,
}

var envBindings = map[string]string{
	"group.prefix":         "GEP_GROUP_PREFIX",
	"group.dataType":       "GEP_GROUP_DATA_TYPE",
	"group.keySize":        "GEP_GROUP_KEY_SIZE",
	"producer.bucket":      "GEP_PRODUCER_BUCKET",
	"producer.retries":     "GEP_PRODUCER_RETRIES",
	"producer.cacheSizeMB": "GEP_PRODUCER_CACHE_SIZE_MB",
	"storage.driver":       "GEP_STORAGE_DRIVER",
	"storage.dsn":          "GEP_STORAGE_DSN",
	"storage.redisAddr":    "GEP_REDIS_ADDR",
	"logger.level":         "GEP_LOG_LEVEL",
	"logger.format":        "GEP_LOG_FORMAT",
	"metrics.enabled":      "GEP_METRICS_ENABLED",
}

// Load reads the YAML file at path, overlays GEP_* environment variables
// and validates the result. An empty path loads defaults and environment
// only.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", env, err)
		}
	}

	if path != "" {
		filename := filepath.Base(path)
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unable to decode into config struct: %w", err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags section by section, then the cross-field
// rules tags cannot express.
func (c Config) Validate() error {
	sections := []struct {
		name  string
		value any
	}{
		{"group", &c.Group},
		{"producer", &c.Producer},
		{"storage", &c.Storage},
		{"logger", &c.Logger},
	}
	for _, section := range sections {
		v := validate.Struct(section.value)
		if !v.Validate() {
			return fmt.Errorf("%w: %s: %s", ErrInvalid, section.name, v.Errors.Error())
		}
	}

	if _, _, err := c.Group.Names(); err != nil {
		return fmt.Errorf("%w: group: %v", ErrInvalid, err)
	}

	var problems []string
	if c.Group.Freshness <= 0 {
		problems = append(problems, "group.freshness must be positive")
	}
	if c.Producer.Bucket <= 0 {
		problems = append(problems, "producer.bucket must be positive")
	}
	if c.Producer.InterestLifetime <= 0 {
		problems = append(problems, "producer.interestLifetime must be positive")
	}
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.DSN == "" {
			problems = append(problems, "storage.dsn is required for sqlite")
		}
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			problems = append(problems, "storage.redisAddr is required for redis")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, ", "))
	}
	return nil
}
