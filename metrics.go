package goGate

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one gate counter or histogram.
type MetricID uint16

const (
	// MetricDecisionContinue counts requests let through a gate.
	MetricDecisionContinue MetricID = iota
	// MetricDecisionLogin counts redirects to the login page.
	MetricDecisionLogin
	// MetricDecisionForbidden counts redirects to the forbidden page.
	MetricDecisionForbidden
	// MetricCredentialInvalid counts credentials that failed verification.
	MetricCredentialInvalid
	// MetricStoreUnavailable counts session lookups that exhausted their retry budget.
	MetricStoreUnavailable
	// MetricStoreRetry counts session lookup retries.
	MetricStoreRetry
	// MetricSpoofedHeaderStripped counts inbound requests carrying identity headers.
	MetricSpoofedHeaderStripped
	// MetricRoleCookieMismatch counts role hint cookies that disagree with the token.
	MetricRoleCookieMismatch
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLoginUnavailable
	MetricLogout
	// MetricDecideLatency is a histogram of gate decision time.
	MetricDecideLatency
	// MetricLoginLatency is a histogram of login time, hashing included.
	MetricLoginLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// MetricsConfig toggles metric collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics is a fixed set of lock-free counters and latency histograms. A
// nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metric values.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Non-histogram ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || !isHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when latency is enabled, every
// histogram. A disabled Metrics yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricDecideLatency, MetricLoginLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func (m *Metrics) recordDecision(d Decision, elapsed time.Duration) {
	if m == nil {
		return
	}
	switch d.Kind {
	case Continue:
		m.Inc(MetricDecisionContinue)
	case RedirectToLogin:
		m.Inc(MetricDecisionLogin)
	case RedirectToForbidden:
		m.Inc(MetricDecisionForbidden)
	}
	m.Observe(MetricDecideLatency, elapsed)
}

func isHistogram(id MetricID) bool {
	return id == MetricDecideLatency || id == MetricLoginLatency
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
