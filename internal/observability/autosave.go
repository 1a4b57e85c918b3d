package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AutosaveMetrics counts edit-session commits. A nil receiver is a no-op.
type AutosaveMetrics struct {
	commits  *prometheus.CounterVec
	skips    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	sessions prometheus.Gauge
}

var (
	defaultAutosaveOnce    sync.Once
	defaultAutosaveMetrics *AutosaveMetrics
)

// NewAutosaveMetrics registers the collectors on registerer, or on the
// default registerer (once) when nil.
func NewAutosaveMetrics(registerer prometheus.Registerer) *AutosaveMetrics {
	if registerer == nil {
		defaultAutosaveOnce.Do(func() {
			defaultAutosaveMetrics = buildAutosaveMetrics(prometheus.DefaultRegisterer)
		})
		return defaultAutosaveMetrics
	}
	return buildAutosaveMetrics(registerer)
}

// ObserveCommit records one commit attempt on path.
func (m *AutosaveMetrics) ObserveCommit(path string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.commits.WithLabelValues(path, outcome).Inc()
	m.duration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// Skip records a gated commit that was not sent.
func (m *AutosaveMetrics) Skip(reason string) {
	if m == nil {
		return
	}
	m.skips.WithLabelValues(reason).Inc()
}

func (m *AutosaveMetrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *AutosaveMetrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

func buildAutosaveMetrics(registerer prometheus.Registerer) *AutosaveMetrics {
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicedesk_autosave_commits_total",
		Help: "Commit attempts by path (debounced, forced, flush) and outcome.",
	}, []string{"path", "outcome"})
	skips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicedesk_autosave_skips_total",
		Help: "Gated commits suppressed, by reason.",
	}, []string{"reason"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoicedesk_autosave_commit_duration_seconds",
		Help:    "Duration of commit calls to the record store.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "invoicedesk_edit_sessions_open",
		Help: "Edit sessions currently open.",
	})
	registerer.MustRegister(commits, skips, duration, sessions)
	return &AutosaveMetrics{commits: commits, skips: skips, duration: duration, sessions: sessions}
}
