// Package producer encrypts application content for a group. Content is
// encrypted with a symmetric content key per time bucket, and each content
// key is published wrapped under the E-Key of every access domain covering
// the data type.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/encryption"
	"github.com/named-data/ndn-cpp-sub006/internal/face"
	"github.com/named-data/ndn-cpp-sub006/internal/keycache"
	"github.com/named-data/ndn-cpp-sub006/internal/keychain"
	"github.com/named-data/ndn-cpp-sub006/internal/logging"
	"github.com/named-data/ndn-cpp-sub006/internal/metrics"
	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence"
	"github.com/named-data/ndn-cpp-sub006/internal/schedule"
)

const (
	// DefaultRetries is how many times an E-Key Interest is re-expressed
	// before its domain is given up.
	DefaultRetries = 3
	// DefaultBucket is the content key rotation period.
	DefaultBucket = time.Hour
)

// ErrNoContentKey is returned by Produce when no content key exists for the
// bucket of the requested time.
var ErrNoContentKey = errors.New("producer: no content key for time slot")

// OnEncryptedKeys receives the wrapped content keys, one per resolved
// domain. It fires exactly once per CreateContentKey call.
type OnEncryptedKeys func(keys []*ndn.Data)

// Producer is safe for concurrent use; face callbacks may run on another
// goroutine than CreateContentKey.
type Producer struct {
	namespace ndn.Name
	domains   []ndn.Name
	face      face.Face
	signer    keychain.Signer
	certName  ndn.Name
	db        persistence.ProducerDb

	retries  int
	bucket   time.Duration
	lifetime time.Duration
	hints    []ndn.Name
	cache    keycache.Cache
	metrics  metrics.Recorder
	logger   *slog.Logger

	createMu sync.Mutex

	mu    sync.Mutex
	eKeys map[string]eKey
}

// eKey is a resolved E-Key and its validity window.
type eKey struct {
	name  ndn.Name
	bits  []byte
	begin time.Time
	end   time.Time
}

func (k eKey) covers(t time.Time) bool {
	return !t.Before(k.begin) && t.Before(k.end)
}

// Option configures a Producer.
type Option func(*Producer)

// WithRetries sets the per-domain retry budget.
func WithRetries(n int) Option {
	return func(p *Producer) {
		if n >= 0 {
			p.retries = n
		}
	}
}

// WithBucket sets the content key rotation period.
func WithBucket(d time.Duration) Option {
	return func(p *Producer) {
		if d > 0 {
			p.bucket = d
		}
	}
}

// WithInterestLifetime sets the lifetime of E-Key Interests.
func WithInterestLifetime(d time.Duration) Option {
	return func(p *Producer) {
		if d > 0 {
			p.lifetime = d
		}
	}
}

// WithForwardingHints attaches forwarding hints to E-Key Interests.
func WithForwardingHints(hints ...ndn.Name) Option {
	return func(p *Producer) {
		p.hints = append(p.hints, hints...)
	}
}

// WithCache fronts the ProducerDb with an in-memory content key cache.
func WithCache(cache keycache.Cache) Option {
	return func(p *Producer) {
		if cache != nil {
			p.cache = cache
		}
	}
}

// WithMetrics sets the instrumentation recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(p *Producer) {
		if rec != nil {
			p.metrics = rec
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) {
		p.logger = logger
	}
}

// New returns a producer publishing under <prefix>/SAMPLE/<dataType>. One
// access domain is derived per non-empty prefix of dataType, deepest first.
func New(prefix, dataType ndn.Name, f face.Face, signer keychain.Signer, certName ndn.Name, db persistence.ProducerDb, opts ...Option) *Producer {
	p := &Producer{
		namespace: prefix.AppendString(encryption.NameSample).AppendName(dataType),
		face:      f,
		signer:    signer,
		certName:  certName,
		db:        db,
		retries:   DefaultRetries,
		bucket:    DefaultBucket,
		lifetime:  ndn.DefaultInterestLifetime,
		cache:     keycache.New(keycache.Config{}, nil),
		metrics:   metrics.Noop(),
		eKeys:     make(map[string]eKey),
	}
	for i := len(dataType); i > 0; i-- {
		domain := prefix.AppendString(encryption.NameRead).AppendName(dataType.Prefix(i)).AppendString(encryption.NameEKey)
		p.domains = append(p.domains, domain)
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.Default(p.logger)
	return p
}

// Domains returns the E-Key Interest names, deepest first.
func (p *Producer) Domains() []ndn.Name {
	return append([]ndn.Name(nil), p.domains...)
}

// Bucket rounds t down to the start of its content key period.
func (p *Producer) Bucket(t time.Time) time.Time {
	return t.UTC().Truncate(p.bucket)
}

// ContentKeyName returns <prefix>/SAMPLE/<dataType>/C-KEY/<bucket> for t.
func (p *Producer) ContentKeyName(t time.Time) ndn.Name {
	return p.namespace.AppendString(encryption.NameCKey, schedule.ToIsoString(p.Bucket(t)))
}

// Produce fills data with plaintext encrypted under the content key of
// t's bucket, then signs it. CreateContentKey must have run for the bucket.
func (p *Producer) Produce(ctx context.Context, data *ndn.Data, t time.Time, plaintext []byte) (err error) {
	bucket := p.Bucket(t)
	bucketIso := schedule.ToIsoString(bucket)
	logger := logging.Operation(ctx, p.logger, "producer", "Produce", "bucket", bucketIso)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to produce", "error", err)
			return
		}
		p.metrics.IncProduced()
		logger.DebugContext(ctx, "content produced", "name", data.Name.String())
	}()

	key, err := p.lookupContentKey(ctx, bucket)
	if err != nil {
		return err
	}

	contentKeyName := p.ContentKeyName(bucket)
	content, err := encryption.EncryptSymmetric(contentKeyName, key, plaintext)
	if err != nil {
		return fmt.Errorf("producer: encrypt content: %w", err)
	}
	wire, err := content.Encode()
	if err != nil {
		return fmt.Errorf("producer: encode content: %w", err)
	}

	data.Name = p.namespace.AppendString(bucketIso, encryption.NameFor).AppendName(contentKeyName)
	data.Content = wire
	if err := p.signer.Sign(data, p.certName); err != nil {
		return fmt.Errorf("producer: sign %s: %w", data.Name, err)
	}
	return nil
}

func (p *Producer) lookupContentKey(ctx context.Context, bucket time.Time) ([]byte, error) {
	bucketIso := schedule.ToIsoString(bucket)
	if key, ok := p.cache.Get(bucketIso); ok {
		return key, nil
	}
	key, err := p.db.GetContentKey(ctx, bucket)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("%w %s", ErrNoContentKey, bucketIso)
	}
	if err != nil {
		return nil, fmt.Errorf("producer: load content key %s: %w", bucketIso, err)
	}
	p.cache.Set(bucketIso, key)
	return key, nil
}

// contentKey returns the key of bucket, creating and persisting one when
// the bucket has none. Concurrent callers for one bucket get the same key.
func (p *Producer) contentKey(ctx context.Context, bucket time.Time) (key []byte, created bool, err error) {
	p.createMu.Lock()
	defer p.createMu.Unlock()

	key, err = p.lookupContentKey(ctx, bucket)
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, ErrNoContentKey) {
		return nil, false, err
	}

	key, err = encryption.GenerateAesKey(encryption.AesKeySize)
	if err != nil {
		return nil, false, err
	}
	err = p.db.AddContentKey(ctx, bucket, key)
	if errors.Is(err, persistence.ErrDuplicate) {
		// Another producer sharing the store won the race.
		key, err = p.db.GetContentKey(ctx, bucket)
		if err != nil {
			return nil, false, fmt.Errorf("producer: reload content key: %w", err)
		}
		p.cache.Set(schedule.ToIsoString(bucket), key)
		return key, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("producer: store content key: %w", err)
	}
	p.cache.Set(schedule.ToIsoString(bucket), key)
	return key, true, nil
}

func (p *Producer) cachedEKey(domain ndn.Name, bucket time.Time) (eKey, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, ok := p.eKeys[domain.String()]
	if !ok || !k.covers(bucket) {
		return eKey{}, false
	}
	return k, true
}

func (p *Producer) storeEKey(domain ndn.Name, k eKey) {
	p.mu.Lock()
	p.eKeys[domain.String()] = k
	p.mu.Unlock()
}
