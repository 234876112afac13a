package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Trigger sources reported by the cart watcher.
const (
	SourceStorage    = "storage"
	SourceStore      = "store"
	SourcePoll       = "poll"
	SourceVisibility = "visibility"
	SourceRefresh    = "refresh"
)

// SyncMetrics records cart reconciliation and reference cache activity.
type SyncMetrics struct {
	duration      prometheus.Histogram
	reconciles    *prometheus.CounterVec
	fetchFailures prometheus.Counter
	triggers      *prometheus.CounterVec
	refcacheSize  *prometheus.GaugeVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
// A nil registerer yields a recorder that drops everything.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "cart_reconcile_duration_seconds",
		Help:      "Duration of cart reconciliations in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
	reconciles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "cart_reconciles_total",
		Help:      "Cart reconciliations by outcome.",
	}, []string{"outcome"})
	fetchFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "design_fetch_failures_total",
		Help:      "Design variant fetches that failed during reconciliation.",
	})
	triggers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "cart_watch_triggers_total",
		Help:      "Reconciliation requests received by the cart watcher, by source.",
	}, []string{"source"})
	refcacheSize := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "storefront",
		Name:      "refcache_entries",
		Help:      "Known name/id pairs in the reference cache, by kind.",
	}, []string{"kind"})
	reg.MustRegister(duration, reconciles, fetchFailures, triggers, refcacheSize)
	return &SyncMetrics{
		duration:      duration,
		reconciles:    reconciles,
		fetchFailures: fetchFailures,
		triggers:      triggers,
		refcacheSize:  refcacheSize,
	}
}

// ObserveReconcile records one reconciliation.
func (m *SyncMetrics) ObserveReconcile(duration time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(duration.Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.reconciles.WithLabelValues(outcome).Inc()
}

// IncFetchFailure counts one failed per-design fetch.
func (m *SyncMetrics) IncFetchFailure() {
	if m == nil || m.fetchFailures == nil {
		return
	}
	m.fetchFailures.Inc()
}

// IncTrigger counts a watcher trigger from source.
func (m *SyncMetrics) IncTrigger(source string) {
	if m == nil || m.triggers == nil {
		return
	}
	m.triggers.WithLabelValues(normalizeLabel(source)).Inc()
}

// SetRefcacheSize reports the number of known pairs for kind.
func (m *SyncMetrics) SetRefcacheSize(kind string, n int) {
	if m == nil || m.refcacheSize == nil {
		return
	}
	m.refcacheSize.WithLabelValues(normalizeLabel(kind)).Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
