// Package metrics exposes Prometheus instrumentation for the sync cycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reserve_scope"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	// Replay
	LogsApplied  prometheus.Counter
	LogsSkipped  *prometheus.CounterVec
	SyncedHeight prometheus.Gauge

	// Discovery and resolution
	VenuesDiscovered   prometheus.Counter
	VenuesEvicted      prometheus.Counter
	TrackedVenues      prometheus.Gauge
	CurrenciesResolved prometheus.Counter
	TokensBlacklisted  prometheus.Counter

	// Health
	ProviderErrors *prometheus.CounterVec
	CycleDuration  *prometheus.HistogramVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LogsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "logs_applied_total",
			Help:      "Total number of event logs applied to venues",
		}),
		LogsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "logs_skipped_total",
			Help:      "Total number of event logs skipped during replay",
		}, []string{"reason"}),
		SyncedHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "synced_height",
			Help:      "Highest block height replayed",
		}),
		VenuesDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "venues_discovered_total",
			Help:      "Total number of venues discovered from factory logs",
		}),
		VenuesEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "venues_evicted_total",
			Help:      "Total number of venues removed for referencing blacklisted tokens",
		}),
		TrackedVenues: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "tracked_venues",
			Help:      "Number of venues currently tracked",
		}),
		CurrenciesResolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "currency",
			Name:      "resolved_total",
			Help:      "Total number of token metadata records resolved",
		}),
		TokensBlacklisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "currency",
			Name:      "blacklisted_total",
			Help:      "Total number of tokens added to the blacklist",
		}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total number of failed data provider requests",
		}, []string{"phase"}),
		CycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of sync cycle phases",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"phase"}),
	}
}

// Handler serves the collectors registered with gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) LogApplied() {
	if m == nil {
		return
	}
	m.LogsApplied.Inc()
}

func (m *Metrics) LogSkipped(reason string) {
	if m == nil {
		return
	}
	m.LogsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetSyncedHeight(height uint64) {
	if m == nil {
		return
	}
	m.SyncedHeight.Set(float64(height))
}

func (m *Metrics) Discovered(n int) {
	if m == nil {
		return
	}
	m.VenuesDiscovered.Add(float64(n))
}

func (m *Metrics) Evicted(n int) {
	if m == nil {
		return
	}
	m.VenuesEvicted.Add(float64(n))
}

func (m *Metrics) SetTrackedVenues(n int) {
	if m == nil {
		return
	}
	m.TrackedVenues.Set(float64(n))
}

func (m *Metrics) Resolved(n int) {
	if m == nil {
		return
	}
	m.CurrenciesResolved.Add(float64(n))
}

func (m *Metrics) Blacklisted(n int) {
	if m == nil {
		return
	}
	m.TokensBlacklisted.Add(float64(n))
}

func (m *Metrics) ProviderError(phase string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(phase).Inc()
}

// ObservePhase records the time since start under phase.
func (m *Metrics) ObservePhase(phase string, start time.Time) {
	if m == nil {
		return
	}
	m.CycleDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
