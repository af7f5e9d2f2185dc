// Package keycache keeps recently used key bits in memory in front of the
// persistent stores.
package keycache

import (
	"log/slog"
	"time"

	"github.com/coocood/freecache"

	"github.com/named-data/ndn-cpp-sub006/internal/logging"
	"github.com/named-data/ndn-cpp-sub006/internal/metrics"
)

// Cache is a byte-slice cache keyed by string. Implementations copy values
// on Set and Get.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Del(key string)
}

// Config sizes the cache. SizeMB <= 0 disables caching; TTL 0 keeps entries
// until evicted.
type Config struct {
	SizeMB int
	TTL    time.Duration
}

// FreeCache is a Cache backed by github.com/coocood/freecache.
type FreeCache struct {
	cache *freecache.Cache
	ttl   int
}

// New returns a freecache-backed Cache, or a no-op cache when cfg disables
// caching.
func New(cfg Config, logger *slog.Logger) Cache {
	logger = logging.Default(logger).With("component", "keycache")
	if cfg.SizeMB <= 0 {
		logger.Info("key cache disabled")
		return noopCache{}
	}

	ttl := 0
	if cfg.TTL > 0 {
		ttl = max(int(cfg.TTL.Seconds()), 1)
	}
	logger.Info("key cache initialized", "size_mb", cfg.SizeMB, "ttl_seconds", ttl)
	return &FreeCache{
		cache: freecache.NewCache(cfg.SizeMB * 1024 * 1024),
		ttl:   ttl,
	}
}

func (c *FreeCache) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *FreeCache) Set(key string, value []byte) {
	_ = c.cache.Set([]byte(key), value, c.ttl)
}

func (c *FreeCache) Del(key string) {
	c.cache.Del([]byte(key))
}

// EntryCount reports the number of live entries.
func (c *FreeCache) EntryCount() int64 {
	return c.cache.EntryCount()
}

type noopCache struct{}

func (noopCache) Get(_ string) ([]byte, bool) { return nil, false }
func (noopCache) Set(_ string, _ []byte)      {}
func (noopCache) Del(_ string)                {}

// Instrumented counts hits and misses of an inner cache under name.
type Instrumented struct {
	inner   Cache
	name    string
	metrics metrics.Recorder
}

// Instrument wraps c with hit/miss counting. A disabled cache is returned
// unwrapped so that it does not report phantom misses.
func Instrument(c Cache, name string, rec metrics.Recorder) Cache {
	if _, ok := c.(noopCache); ok || rec == nil {
		return c
	}
	return &Instrumented{inner: c, name: name, metrics: rec}
}

func (c *Instrumented) Get(key string) ([]byte, bool) {
	val, ok := c.inner.Get(key)
	if ok {
		c.metrics.IncCacheHits(c.name)
	} else {
		c.metrics.IncCacheMisses(c.name)
	}
	return val, ok
}

func (c *Instrumented) Set(key string, value []byte) {
	c.inner.Set(key, value)
}

func (c *Instrumented) Del(key string) {
	c.inner.Del(key)
}
