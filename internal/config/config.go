// Package config loads gepctl settings from a YAML file and GEP_*
// environment variables.
package config

import (
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

type GroupConfig struct {
	Prefix    string        `mapstructure:"prefix" validate:"required"`
	DataType  string        `mapstructure:"dataType" validate:"required"`
	KeySize   int           `mapstructure:"keySize" validate:"required|min:1024|max:8192"`
	Freshness time.Duration `mapstructure:"freshness"`
}

// Names parses the configured prefix and data type.
func (g GroupConfig) Names() (prefix, dataType ndn.Name, err error) {
	if prefix, err = ndn.ParseName(g.Prefix); err != nil {
		return nil, nil, err
	}
	if dataType, err = ndn.ParseName(g.DataType); err != nil {
		return nil, nil, err
	}
	return prefix, dataType, nil
}

type ProducerConfig struct {
	Bucket           time.Duration `mapstructure:"bucket"`
	Retries          int           `mapstructure:"retries" validate:"min:0|max:100"`
	InterestLifetime time.Duration `mapstructure:"interestLifetime"`
	ForwardingHints  []string      `mapstructure:"forwardingHints"`
	CacheSizeMB      int           `mapstructure:"cacheSizeMB" validate:"min:0"`
	CacheTTL         time.Duration `mapstructure:"cacheTTL"`
}

type StorageConfig struct {
	Driver         string        `mapstructure:"driver" validate:"required|in:sqlite,memory,redis"`
	DSN            string        `mapstructure:"dsn"`
	BusyTimeout    time.Duration `mapstructure:"busyTimeout"`
	RedisAddr      string        `mapstructure:"redisAddr"`
	RedisKeyPrefix string        `mapstructure:"redisKeyPrefix"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"required|in:debug,info,warn,error"`
	Format string `mapstructure:"format" validate:"required|in:json,text"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the full gepctl configuration.
type Config struct {
	Path     string         `mapstructure:"-"`
	Group    GroupConfig    `mapstructure:"group"`
	Producer ProducerConfig `mapstructure:"producer"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}
