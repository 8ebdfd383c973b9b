package api

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type engineMetrics struct {
	decisions         *prometheus.CounterVec
	reviews           *prometheus.CounterVec
	retentionRuns     prometheus.Counter
	retentionRedacted prometheus.Counter
	retentionDuration prometheus.Observer
}

var (
	engineMetricsOnce sync.Once
	engineMetricsInst *engineMetrics
)

func globalEngineMetrics() *engineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetricsInst = newEngineMetrics()
	})
	return engineMetricsInst
}

func newEngineMetrics() *engineMetrics {
	return &engineMetrics{
		decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumina",
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Entitlement checks made by the HTTP layer, labeled by module, mode and result",
		}, []string{"module", "mode", "result"}),
		reviews: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumina",
			Subsystem: "workflow",
			Name:      "reviews_total",
			Help:      "Leave and timesheet reviews, labeled by module, decision and result",
		}, []string{"module", "decision", "result"}),
		retentionRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lumina",
			Subsystem: "retention",
			Name:      "runs_total",
			Help:      "Total leave-reason retention runs",
		}),
		retentionRedacted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lumina",
			Subsystem: "retention",
			Name:      "redacted_total",
			Help:      "Leave reasons redacted by the retention job",
		}),
		retentionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lumina",
			Subsystem: "retention",
			Name:      "duration_seconds",
			Help:      "Duration of retention runs",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *engineMetrics) recordDecision(module, mode string, allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.decisions.WithLabelValues(module, mode, result).Inc()
}

func (m *engineMetrics) recordReview(module, decision string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.reviews.WithLabelValues(module, decision, result).Inc()
}

func (m *engineMetrics) recordRetention(started time.Time, redacted int) {
	if m == nil {
		return
	}
	m.retentionRuns.Inc()
	m.retentionRedacted.Add(float64(redacted))
	m.retentionDuration.Observe(time.Since(started).Seconds())
}
