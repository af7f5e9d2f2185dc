// Package metrics exposes prometheus counters for key generation, key
// fetching and content encryption. A nil registerer yields a no-op recorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for E-Key fetches.
const (
	FetchCovering  = "covering"
	FetchRefined   = "refined"
	FetchTimeout   = "timeout"
	FetchNack      = "nack"
	FetchMalformed = "malformed"
	FetchDropped   = "dropped"
)

// Outcome labels for content keys and consumption.
const (
	ContentKeyCreated = "created"
	ContentKeyReused  = "reused"
	ConsumeDecrypted  = "decrypted"
	ConsumeFailed     = "failed"
)

// Recorder receives instrumentation events from the group manager, the
// producer and the consumer.
type Recorder interface {
	ObserveGroupKey(members int)
	IncContentKeys(outcome string)
	IncEKeyFetch(outcome string)
	IncProduced()
	IncConsumed(outcome string)
	IncCacheHits(cache string)
	IncCacheMisses(cache string)
}

// Prometheus is a Recorder backed by prometheus collectors.
type Prometheus struct {
	groupKeys       prometheus.Counter
	groupKeyMembers prometheus.Histogram
	contentKeys     *prometheus.CounterVec
	eKeyFetches     *prometheus.CounterVec
	produced        prometheus.Counter
	consumed        *prometheus.CounterVec
	cacheRequests   *prometheus.CounterVec
}

// New registers the collectors with reg. When reg is nil a no-op recorder
// is returned.
func New(reg prometheus.Registerer) Recorder {
	if reg == nil {
		return Noop()
	}
	factory := promauto.With(reg)

	return &Prometheus{
		groupKeys: factory.NewCounter(prometheus.CounterOpts{
			Name: "gep_group_keys_total",
			Help: "Total number of group key sets generated",
		}),
		groupKeyMembers: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gep_group_key_members",
			Help:    "Number of D-Keys issued per group key set",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		contentKeys: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gep_content_keys_total",
			Help: "Content key requests by outcome",
		}, []string{"outcome"}),
		eKeyFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gep_ekey_fetches_total",
			Help: "E-Key fetch events by outcome",
		}, []string{"outcome"}),
		produced: factory.NewCounter(prometheus.CounterOpts{
			Name: "gep_produced_total",
			Help: "Total number of encrypted Data packets produced",
		}),
		consumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gep_consumed_total",
			Help: "Consumed Data packets by outcome",
		}, []string{"outcome"}),
		cacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gep_cache_requests_total",
			Help: "Key cache lookups by cache and result",
		}, []string{"cache", "result"}),
	}
}

func (m *Prometheus) ObserveGroupKey(members int) {
	m.groupKeys.Inc()
	m.groupKeyMembers.Observe(float64(members))
}

func (m *Prometheus) IncContentKeys(outcome string) {
	m.contentKeys.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) IncEKeyFetch(outcome string) {
	m.eKeyFetches.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) IncProduced() {
	m.produced.Inc()
}

func (m *Prometheus) IncConsumed(outcome string) {
	m.consumed.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) IncCacheHits(cache string) {
	m.cacheRequests.WithLabelValues(cache, "hit").Inc()
}

func (m *Prometheus) IncCacheMisses(cache string) {
	m.cacheRequests.WithLabelValues(cache, "miss").Inc()
}

// Noop returns a Recorder that discards every event.
func Noop() Recorder {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) ObserveGroupKey(_ int)   {}
func (noopMetrics) IncContentKeys(_ string) {}
func (noopMetrics) IncEKeyFetch(_ string)   {}
func (noopMetrics) IncProduced()            {}
func (noopMetrics) IncConsumed(_ string)    {}
func (noopMetrics) IncCacheHits(_ string)   {}
func (noopMetrics) IncCacheMisses(_ string) {}
