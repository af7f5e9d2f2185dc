// Package redis stores producer content keys in Redis so that several
// producer processes share one key per time bucket.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/named-data/ndn-cpp-sub006/internal/logging"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence"
)

// DefaultKeyPrefix namespaces content keys: <prefix><bucket>.
const DefaultKeyPrefix = "gep:ckey:"

// ProducerStore implements persistence.ProducerDb on a Redis client.
type ProducerStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ persistence.ProducerDb = (*ProducerStore)(nil)

// Option customises a ProducerStore.
type Option func(*ProducerStore)

// WithKeyPrefix sets the key namespace. Producers of different data types
// sharing one Redis must use distinct prefixes.
func WithKeyPrefix(prefix string) Option {
	return func(s *ProducerStore) {
		s.prefix = prefix
	}
}

// WithTTL expires content keys after ttl. Zero keeps them forever, which
// is required to decrypt historical content.
func WithTTL(ttl time.Duration) Option {
	return func(s *ProducerStore) {
		s.ttl = ttl
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ProducerStore) {
		s.logger = logger
	}
}

// NewProducerStore wraps rdb.
func NewProducerStore(rdb redis.UniversalClient, opts ...Option) *ProducerStore {
	s := &ProducerStore{rdb: rdb, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Default(s.logger).With("component", "redis")
	return s
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr string, opts ...Option) (*ProducerStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return NewProducerStore(rdb, opts...), nil
}

// Close closes the underlying client.
func (s *ProducerStore) Close() error {
	return s.rdb.Close()
}

func (s *ProducerStore) key(bucket time.Time) string {
	return s.prefix + persistence.BucketKey(bucket)
}

func (s *ProducerStore) HasContentKey(ctx context.Context, bucket time.Time) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(bucket)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists %s: %w", s.key(bucket), err)
	}
	return n > 0, nil
}

func (s *ProducerStore) GetContentKey(ctx context.Context, bucket time.Time) ([]byte, error) {
	key, err := s.rdb.Get(ctx, s.key(bucket)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: content key %s", persistence.ErrNotFound, persistence.BucketKey(bucket))
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", s.key(bucket), err)
	}
	return key, nil
}

// AddContentKey stores key with SETNX, so concurrent producers racing on
// one bucket observe exactly one winner.
func (s *ProducerStore) AddContentKey(ctx context.Context, bucket time.Time, key []byte) error {
	ok, err := s.rdb.SetNX(ctx, s.key(bucket), key, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: setnx %s: %w", s.key(bucket), err)
	}
	if !ok {
		return fmt.Errorf("%w: content key %s", persistence.ErrDuplicate, persistence.BucketKey(bucket))
	}
	s.logger.Debug("content key stored", "bucket", persistence.BucketKey(bucket))
	return nil
}

func (s *ProducerStore) DeleteContentKey(ctx context.Context, bucket time.Time) error {
	if err := s.rdb.Del(ctx, s.key(bucket)).Err(); err != nil {
		return fmt.Errorf("redis: del %s: %w", s.key(bucket), err)
	}
	return nil
}
