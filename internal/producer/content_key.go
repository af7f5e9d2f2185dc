package producer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/encryption"
	"github.com/named-data/ndn-cpp-sub006/internal/face"
	"github.com/named-data/ndn-cpp-sub006/internal/logging"
	"github.com/named-data/ndn-cpp-sub006/internal/metrics"
	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/schedule"
)

// keyRequest tracks the domains still unresolved for one CreateContentKey
// call.
type keyRequest struct {
	bucket         time.Time
	bucketIso      string
	contentKeyName ndn.Name
	contentKey     []byte
	onKeys         OnEncryptedKeys
	onError        encryption.OnError
	logger         *slog.Logger

	mu          sync.Mutex
	outstanding int
	retries     map[string]int
	keys        []*ndn.Data
}

// takeRetry consumes one retry of domain, reporting false when none is left.
func (r *keyRequest) takeRetry(domain ndn.Name) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := domain.String()
	if r.retries[id] <= 0 {
		return false
	}
	r.retries[id]--
	return true
}

// finish records the outcome of one domain and fires onKeys after the last.
func (r *keyRequest) finish(key *ndn.Data) {
	r.mu.Lock()
	if key != nil {
		r.keys = append(r.keys, key)
	}
	r.outstanding--
	if r.outstanding != 0 {
		r.mu.Unlock()
		return
	}
	keys := append([]*ndn.Data(nil), r.keys...)
	r.mu.Unlock()

	r.logger.Info("content key wrapped", "domains", len(keys))
	if r.onKeys != nil {
		r.onKeys(keys)
	}
}

func (r *keyRequest) fail(code encryption.ErrorCode, message string) {
	r.logger.Warn(message, "error_code", code.String())
	if r.onError != nil {
		r.onError(code, message)
	}
}

// CreateContentKey makes sure t's bucket has a content key and wraps it
// with the E-Key of every domain. It returns the content key name at once;
// wrapped keys arrive through onKeys after each domain resolved its E-Key
// or ran out of retries. Domains given up are reported through onError and
// left out of the result.
//
// Calling it again for the same bucket reuses the stored key and only
// re-issues the wrapping.
func (p *Producer) CreateContentKey(ctx context.Context, t time.Time, onKeys OnEncryptedKeys, onError encryption.OnError) (ndn.Name, error) {
	bucket := p.Bucket(t)
	bucketIso := schedule.ToIsoString(bucket)
	logger := logging.Operation(ctx, p.logger, "producer", "CreateContentKey", "bucket", bucketIso)

	key, created, err := p.contentKey(ctx, bucket)
	if err != nil {
		logger.ErrorContext(ctx, "failed to obtain content key", "error", err)
		return nil, err
	}
	if created {
		p.metrics.IncContentKeys(metrics.ContentKeyCreated)
		logger.InfoContext(ctx, "content key created")
	} else {
		p.metrics.IncContentKeys(metrics.ContentKeyReused)
	}

	req := &keyRequest{
		bucket:         bucket,
		bucketIso:      bucketIso,
		contentKeyName: p.ContentKeyName(bucket),
		contentKey:     key,
		onKeys:         onKeys,
		onError:        onError,
		logger:         logger,
		outstanding:    len(p.domains),
		retries:        make(map[string]int, len(p.domains)),
	}
	if len(p.domains) == 0 {
		req.outstanding = 1
		req.finish(nil)
		return req.contentKeyName, nil
	}

	for _, domain := range p.domains {
		req.retries[domain.String()] = p.retries
	}
	for _, domain := range p.domains {
		if k, ok := p.cachedEKey(domain, bucket); ok {
			p.metrics.IncEKeyFetch(metrics.FetchCovering)
			p.wrap(req, k)
			continue
		}
		p.expressKeyInterest(req, domain, p.keyInterest(domain, bucketIso))
	}
	return req.contentKeyName, nil
}

// keyInterest asks for the latest E-Key of domain starting no later than
// the bucket.
func (p *Producer) keyInterest(domain ndn.Name, bucketIso string) *ndn.Interest {
	interest := ndn.NewInterest(domain)
	interest.Lifetime = p.lifetime
	interest.ChildSelector = ndn.ChildSelectorRightmost
	interest.MustBeFresh = true
	interest.ForwardingHint = append([]ndn.Name(nil), p.hints...)
	interest.Exclude.ExcludeAfter(ndn.NewComponent(bucketIso))
	return interest
}

func (p *Producer) expressKeyInterest(req *keyRequest, domain ndn.Name, interest *ndn.Interest) {
	_, err := p.face.ExpressInterest(interest,
		func(i *ndn.Interest, data *ndn.Data) { p.onKeyData(req, domain, i, data) },
		func(i *ndn.Interest) {
			p.metrics.IncEKeyFetch(metrics.FetchTimeout)
			p.retryOrDrop(req, domain, i, "timeout")
		},
		func(i *ndn.Interest, reason face.NackReason) {
			p.metrics.IncEKeyFetch(metrics.FetchNack)
			p.retryOrDrop(req, domain, i, "nack: "+reason.String())
		},
	)
	if err != nil {
		req.logger.Warn("failed to express interest", "domain", domain.String(), "error", err)
		p.retryOrDrop(req, domain, interest, err.Error())
	}
}

func (p *Producer) retryOrDrop(req *keyRequest, domain ndn.Name, interest *ndn.Interest, cause string) {
	if req.takeRetry(domain) {
		req.logger.Debug("retrying e-key interest", "domain", domain.String(), "cause", cause)
		p.expressKeyInterest(req, domain, interest)
		return
	}
	p.metrics.IncEKeyFetch(metrics.FetchDropped)
	req.fail(encryption.ErrorCodeKeyRetrievalFailure,
		fmt.Sprintf("retrieval of e-key for %s failed after retries (%s)", domain, cause))
	req.finish(nil)
}

func (p *Producer) onKeyData(req *keyRequest, domain ndn.Name, interest *ndn.Interest, data *ndn.Data) {
	k, err := parseEKey(domain, data)
	if err != nil {
		p.metrics.IncEKeyFetch(metrics.FetchMalformed)
		req.logger.Warn("discarding malformed e-key", "name", data.Name.String(), "error", err)
		p.retryOrDrop(req, domain, interest, "malformed e-key")
		return
	}

	if !k.covers(req.bucket) {
		p.metrics.IncEKeyFetch(metrics.FetchRefined)
		refined := interest.Clone()
		refined.Exclude.ExcludeBefore(data.Name.Get(len(domain)))
		p.retryOrDrop(req, domain, refined, "e-key "+k.name.String()+" does not cover "+req.bucketIso)
		return
	}

	p.metrics.IncEKeyFetch(metrics.FetchCovering)
	p.storeEKey(domain, k)
	p.wrap(req, k)
}

// parseEKey reads <domain>/<start>/<end> and the public key bits of data.
func parseEKey(domain ndn.Name, data *ndn.Data) (eKey, error) {
	if data.Name.Size() < domain.Size()+2 || !domain.IsPrefixOf(data.Name) {
		return eKey{}, fmt.Errorf("producer: unexpected e-key name %s", data.Name)
	}
	begin, err := schedule.FromIsoString(string(data.Name.Get(domain.Size())))
	if err != nil {
		return eKey{}, fmt.Errorf("producer: e-key start: %w", err)
	}
	end, err := schedule.FromIsoString(string(data.Name.Get(domain.Size() + 1)))
	if err != nil {
		return eKey{}, fmt.Errorf("producer: e-key end: %w", err)
	}
	if _, err := encryption.ParseRsaPublicKey(data.Content); err != nil {
		return eKey{}, err
	}
	return eKey{
		name:  data.Name.Prefix(domain.Size() + 2),
		bits:  append([]byte(nil), data.Content...),
		begin: begin,
		end:   end,
	}, nil
}

// wrap publishes the content key encrypted under k as
// <contentKeyName>/FOR/<eKeyName>.
func (p *Producer) wrap(req *keyRequest, k eKey) {
	content, err := encryption.EncryptAsymmetric(k.name, k.bits, req.contentKey)
	if err != nil {
		req.fail(encryption.ErrorCodeEncryptionFailure, fmt.Sprintf("wrap content key for %s: %v", k.name, err))
		req.finish(nil)
		return
	}
	wire, err := content.Encode()
	if err != nil {
		req.fail(encryption.ErrorCodeEncryptionFailure, fmt.Sprintf("encode content key for %s: %v", k.name, err))
		req.finish(nil)
		return
	}

	data := ndn.NewData(req.contentKeyName.AppendString(encryption.NameFor).AppendName(k.name))
	data.Content = wire
	if err := p.signer.Sign(data, p.certName); err != nil {
		req.fail(encryption.ErrorCodeGeneral, fmt.Sprintf("sign %s: %v", data.Name, err))
		req.finish(nil)
		return
	}
	req.finish(data)
}
