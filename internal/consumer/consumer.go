// Package consumer retrieves and decrypts group-encrypted content. It walks
// the key chain backwards: content, then the content key wrapped for the
// consumer's group, then the group's D-Key wrapped for the consumer.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/encryption"
	"github.com/named-data/ndn-cpp-sub006/internal/face"
	"github.com/named-data/ndn-cpp-sub006/internal/keycache"
	"github.com/named-data/ndn-cpp-sub006/internal/logging"
	"github.com/named-data/ndn-cpp-sub006/internal/metrics"
	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence"
)

const (
	// DefaultRetries is how many times a timed out or nacked Interest is
	// re-expressed.
	DefaultRetries = 3
	// DefaultCacheSizeMB sizes the decrypted key cache.
	DefaultCacheSizeMB = 1
)

// ErrInvalidKeyName is returned when a key locator does not belong to the
// consumer's group.
var ErrInvalidKeyName = errors.New("consumer: key name outside group")

// OnPlainText receives the decrypted content.
type OnPlainText func(content *ndn.Data, plaintext []byte)

// Verifier validates a fetched Data packet before it is used.
type Verifier func(data *ndn.Data) error

// Consumer decrypts content for one group member.
type Consumer struct {
	face        face.Face
	groupName   ndn.Name
	consumerKey ndn.Name
	db          persistence.ConsumerDb

	retries  int
	lifetime time.Duration
	verify   Verifier
	cKeys    keycache.Cache
	dKeys    keycache.Cache
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithRetries sets how often each Interest is re-expressed.
func WithRetries(n int) Option {
	return func(c *Consumer) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithInterestLifetime sets the lifetime of every expressed Interest.
func WithInterestLifetime(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.lifetime = d
		}
	}
}

// WithVerifier checks every fetched packet.
func WithVerifier(v Verifier) Option {
	return func(c *Consumer) {
		c.verify = v
	}
}

// WithCaches replaces the C-Key and D-Key caches.
func WithCaches(cKeys, dKeys keycache.Cache) Option {
	return func(c *Consumer) {
		if cKeys != nil {
			c.cKeys = cKeys
		}
		if dKeys != nil {
			c.dKeys = dKeys
		}
	}
}

// WithMetrics sets the instrumentation recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(c *Consumer) {
		if rec != nil {
			c.metrics = rec
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// New returns a consumer reading as consumerKeyName in groupName, the
// group manager namespace <prefix>/READ/<dataType>.
func New(f face.Face, groupName, consumerKeyName ndn.Name, db persistence.ConsumerDb, opts ...Option) *Consumer {
	c := &Consumer{
		face:        f,
		groupName:   groupName,
		consumerKey: consumerKeyName,
		db:          db,
		retries:     DefaultRetries,
		lifetime:    ndn.DefaultInterestLifetime,
		metrics:     metrics.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Default(c.logger).With("component", "consumer", "group", groupName.String())
	if c.cKeys == nil {
		c.cKeys = keycache.New(keycache.Config{SizeMB: DefaultCacheSizeMB}, c.logger)
	}
	if c.dKeys == nil {
		c.dKeys = keycache.New(keycache.Config{SizeMB: DefaultCacheSizeMB}, c.logger)
	}
	c.cKeys = keycache.Instrument(c.cKeys, "c-key", c.metrics)
	c.dKeys = keycache.Instrument(c.dKeys, "d-key", c.metrics)
	return c
}

// AddDecryptionKey stores the member private key named keyName.
func (c *Consumer) AddDecryptionKey(ctx context.Context, keyName ndn.Name, privateKeyDer []byte) error {
	if !keyName.Equal(c.consumerKey) {
		c.logger.WarnContext(ctx, "decryption key does not match consumer key", "key", keyName.String())
	}
	if _, err := encryption.ParseRsaPrivateKey(privateKeyDer); err != nil {
		return fmt.Errorf("consumer: decryption key %s: %w", keyName, err)
	}
	if err := c.db.AddKey(ctx, keyName, privateKeyDer); err != nil {
		return fmt.Errorf("consumer: store decryption key %s: %w", keyName, err)
	}
	return nil
}

// Consume fetches contentName and delivers its plaintext through
// onPlainText. Failures at any step go to onError; exactly one of the two
// fires once the face has resolved the chain.
func (c *Consumer) Consume(ctx context.Context, contentName ndn.Name, onPlainText OnPlainText, onError encryption.OnError) {
	r := &request{
		ctx:    ctx,
		logger: logging.Operation(ctx, c.logger, "consumer", "Consume", "content", contentName.String()),
	}
	r.onPlainText = func(data *ndn.Data, plaintext []byte) {
		c.metrics.IncConsumed(metrics.ConsumeDecrypted)
		r.logger.DebugContext(ctx, "content decrypted", "size", len(plaintext))
		if onPlainText != nil {
			onPlainText(data, plaintext)
		}
	}
	r.onError = func(code encryption.ErrorCode, message string) {
		c.metrics.IncConsumed(metrics.ConsumeFailed)
		r.logger.WarnContext(ctx, message, "error_code", code.String())
		if onError != nil {
			onError(code, message)
		}
	}

	interest := ndn.NewInterest(contentName)
	interest.Lifetime = c.lifetime
	c.fetch(r, interest, c.retries, func(data *ndn.Data) {
		content, err := encryption.DecodeEncryptedContent(data.Content)
		if err != nil {
			r.onError(encryption.ErrorCodeInvalidEncryptedFormat, fmt.Sprintf("content %s: %v", data.Name, err))
			return
		}
		c.contentKey(r, content.KeyLocator, func(cKey []byte) {
			plaintext, err := encryption.Decrypt(content, cKey)
			if err != nil {
				r.onError(encryption.ErrorCodeDecryptionFailure, fmt.Sprintf("content %s: %v", data.Name, err))
				return
			}
			r.onPlainText(data, plaintext)
		})
	})
}

// request carries the callbacks of one Consume call.
type request struct {
	ctx         context.Context
	logger      *slog.Logger
	onPlainText OnPlainText
	onError     encryption.OnError
}

// contentKey resolves the content key named cKeyName, from cache or by
// fetching <cKeyName>/FOR/<group>/E-KEY.
func (c *Consumer) contentKey(r *request, cKeyName ndn.Name, next func(cKey []byte)) {
	if key, ok := c.cKeys.Get(cKeyName.String()); ok {
		next(key)
		return
	}

	interest := ndn.NewInterest(cKeyName.AppendString(encryption.NameFor).AppendName(c.groupName).AppendString(encryption.NameEKey))
	interest.Lifetime = c.lifetime
	c.fetch(r, interest, c.retries, func(data *ndn.Data) {
		wrapped, err := encryption.DecodeEncryptedContent(data.Content)
		if err != nil {
			r.onError(encryption.ErrorCodeInvalidEncryptedFormat, fmt.Sprintf("c-key %s: %v", data.Name, err))
			return
		}
		dKeyName, err := c.dKeyName(wrapped.KeyLocator)
		if err != nil {
			r.onError(encryption.ErrorCodeInvalidEncryptedFormat, err.Error())
			return
		}
		c.decryptKey(r, dKeyName, func(dKey []byte) {
			cKey, err := encryption.Decrypt(wrapped, dKey)
			if err != nil {
				r.onError(encryption.ErrorCodeDecryptionFailure, fmt.Sprintf("c-key %s: %v", data.Name, err))
				return
			}
			c.cKeys.Set(cKeyName.String(), cKey)
			next(cKey)
		})
	})
}

// dKeyName maps <group>/E-KEY/<start>/<end> to <group>/D-KEY/<start>/<end>.
func (c *Consumer) dKeyName(eKeyName ndn.Name) (ndn.Name, error) {
	n := c.groupName.Size()
	if eKeyName.Size() != n+3 || !c.groupName.IsPrefixOf(eKeyName) || string(eKeyName.Get(n)) != encryption.NameEKey {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKeyName, eKeyName)
	}
	return c.groupName.AppendString(encryption.NameDKey).Append(eKeyName.SubName(n + 1)...), nil
}

// decryptKey resolves the group private key dKeyName, from cache or by
// fetching <consumerKey>/ENCRYPTED-BY/<dKeyName>.
func (c *Consumer) decryptKey(r *request, dKeyName ndn.Name, next func(dKey []byte)) {
	if key, ok := c.dKeys.Get(dKeyName.String()); ok {
		next(key)
		return
	}

	interest := ndn.NewInterest(c.consumerKey.AppendString(encryption.NameEncryptedBy).AppendName(dKeyName))
	interest.Lifetime = c.lifetime
	c.fetch(r, interest, c.retries, func(data *ndn.Data) {
		hybrid, err := encryption.DecodeHybridContent(data.Content)
		if err != nil {
			r.onError(encryption.ErrorCodeInvalidEncryptedFormat, fmt.Sprintf("d-key %s: %v", data.Name, err))
			return
		}
		memberKey, err := c.db.GetKey(r.ctx, c.consumerKey)
		if err != nil {
			r.onError(encryption.ErrorCodeNoDecryptKey, fmt.Sprintf("member key %s: %v", c.consumerKey, err))
			return
		}
		dKey, err := encryption.DecryptHybrid(hybrid, memberKey)
		if err != nil {
			r.onError(encryption.ErrorCodeDecryptionFailure, fmt.Sprintf("d-key %s: %v", data.Name, err))
			return
		}
		c.dKeys.Set(dKeyName.String(), dKey)
		next(dKey)
	})
}

// fetch expresses interest, re-expressing it on timeout or nack while
// retries remain.
func (c *Consumer) fetch(r *request, interest *ndn.Interest, retries int, onData func(*ndn.Data)) {
	retry := func(cause string) {
		if retries > 0 {
			r.logger.Debug("retrying interest", "name", interest.Name.String(), "cause", cause)
			c.fetch(r, interest, retries-1, onData)
			return
		}
		r.onError(encryption.ErrorCodeDataRetrievalFailure,
			fmt.Sprintf("retrieval of %s failed after retries (%s)", interest.Name, cause))
	}

	_, err := c.face.ExpressInterest(interest,
		func(_ *ndn.Interest, data *ndn.Data) {
			if c.verify != nil {
				if err := c.verify(data); err != nil {
					r.onError(encryption.ErrorCodeGeneral, fmt.Sprintf("verify %s: %v", data.Name, err))
					return
				}
			}
			onData(data)
		},
		func(*ndn.Interest) { retry("timeout") },
		func(_ *ndn.Interest, reason face.NackReason) { retry("nack: " + reason.String()) },
	)
	if err != nil {
		r.onError(encryption.ErrorCodeGeneral, fmt.Sprintf("express %s: %v", interest.Name, err))
	}
}
