package metrics

import (
	"sync/atomic"
	"time"
)

// ID identifies one counter or histogram.
type ID uint16

const (
	SignInSuccess ID = iota
	SignInFailure
	SignInRateLimited
	MFAChallengeIssued
	MFAVerifySuccess
	MFAVerifyFailure
	SignOutSuccess
	SignOutRejected
	RefreshSuccess
	RefreshFailure
	TokenRevoked
	ForgotPasswordRequest
	PasswordResetSuccess
	PasswordResetFailure
	PasswordChangeSuccess
	PasswordChangeFailure
	MFAEnabled
	MFADisabled
	SignUpSuccess
	SignUpFailure
	ProfileUpdated
	AuthorizeSuccess
	AuthorizeFailure
	AuthorizeCacheHit
	CacheWriteFailure
	AuthorizeLatency
	idCount
)

// Count is the number of defined IDs.
const Count = int(idCount)

const (
	// BucketCount is the number of latency histogram buckets.
	BucketCount   = 8
	cacheLineSize = 64
)

type histogram struct {
	buckets [BucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config toggles collection.
type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics is a lock-free set of counters plus the Authorize latency histogram.
// A nil *Metrics ignores all writes.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [idCount]paddedCounter
	latency       histogram
}

// Snapshot is a point-in-time copy suitable for exporters.
type Snapshot struct {
	Counters   map[ID]uint64
	Histograms map[ID][]uint64
}

func New(cfg Config) *Metrics {
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

func (m *Metrics) Inc(id ID) {
	if !m.Enabled() || id >= idCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d for the latency histogram. Other IDs are ignored.
func (m *Metrics) Observe(id ID, d time.Duration) {
	if !m.LatencyEnabled() || id != AuthorizeLatency {
		return
	}
	atomic.AddUint64(&m.latency.buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Counters:   make(map[ID]uint64, Count),
		Histograms: make(map[ID][]uint64, 1),
	}
	if !m.Enabled() {
		return s
	}
	for id := ID(0); id < idCount; id++ {
		if id == AuthorizeLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, BucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.latency.buckets[i])
		}
		s.Histograms[AuthorizeLatency] = buckets
	}
	return s
}

// BucketBounds are the upper bounds, in seconds, of all buckets but the last.
var BucketBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

func bucketIndex(d time.Duration) int {
	secs := d.Seconds()
	for i, b := range BucketBounds {
		if secs <= b {
			return i
		}
	}
	return BucketCount - 1
}
