package authz

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus metrics. All components accept a nil
// *Metrics and skip recording.
type Metrics struct {
	DecisionsTotal           *prometheus.CounterVec
	CacheHitsTotal           prometheus.Counter
	CacheMissesTotal         prometheus.Counter
	InvalidationsTotal       *prometheus.CounterVec
	UnavailableTotal         prometheus.Counter
	MembershipLookupDuration prometheus.Histogram
}

// NewMetrics creates and registers the engine metrics on the given registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlvs_authz_decisions_total",
				Help: "Authorization decisions by entity, action and outcome",
			},
			[]string{"entity", "action", "outcome"},
		),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlvs_authz_cache_hits_total",
			Help: "Permission cache hits",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlvs_authz_cache_misses_total",
			Help: "Permission cache misses",
		}),
		InvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlvs_authz_cache_invalidations_total",
				Help: "Explicit cache invalidations by granularity",
			},
			[]string{"granularity"},
		),
		UnavailableTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlvs_authz_unavailable_total",
			Help: "Authorization checks that failed due to upstream errors",
		}),
		MembershipLookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "atlvs_authz_membership_lookup_duration_seconds",
			Help:    "Latency of membership store lookups",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.DecisionsTotal,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.InvalidationsTotal,
			m.UnavailableTotal,
			m.MembershipLookupDuration,
		)
	}
	return m
}

func (m *Metrics) recordDecision(entity EntityType, action Action, d Decision) {
	if m == nil {
		return
	}
	outcome := "allow"
	if !d.Allowed {
		outcome = string(d.Reason)
	}
	m.DecisionsTotal.WithLabelValues(string(entity), string(action), outcome).Inc()
}

func (m *Metrics) recordCacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) recordInvalidation(granularity string) {
	if m == nil {
		return
	}
	m.InvalidationsTotal.WithLabelValues(granularity).Inc()
}

func (m *Metrics) recordUnavailable() {
	if m == nil {
		return
	}
	m.UnavailableTotal.Inc()
}

func (m *Metrics) observeLookup(seconds float64) {
	if m == nil {
		return
	}
	m.MembershipLookupDuration.Observe(seconds)
}
