// Package metrics exports Prometheus instruments for skill invocations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Skill names used as label values
const (
	SkillIngestTrends  = "ingest_trend_feeds"
	SkillGenerateMedia = "generate_media_asset"
	SkillPublishIntent = "execute_publish_intent"
)

// Metrics holds the instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SkillInvocations *prometheus.CounterVec
	SkillDuration    *prometheus.HistogramVec

	SourceItems  *prometheus.CounterVec
	SourceErrors *prometheus.CounterVec

	MediaCostUSD    *prometheus.CounterVec
	IntentsByStatus *prometheus.CounterVec

	SnapshotRuns *prometheus.CounterVec
}

// New registers all instruments on a private registry under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SkillInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skill_invocations_total",
				Help:      "Skill invocations by skill and outcome",
			},
			[]string{"skill", "outcome"},
		),
		SkillDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "skill_duration_seconds",
				Help:      "Skill invocation duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"skill"},
		),
		SourceItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trend_source_items_total",
				Help:      "Trend items returned per source",
			},
			[]string{"source"},
		),
		SourceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trend_source_errors_total",
				Help:      "Failed trend source fetches",
			},
			[]string{"source"},
		),
		MediaCostUSD: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "media_cost_usd_total",
				Help:      "Reported media generation spend in USD",
			},
			[]string{"type"},
		),
		IntentsByStatus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_intents_total",
				Help:      "Publish intents by environment and final status",
			},
			[]string{"environment", "status"},
		),
		SnapshotRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trend_snapshot_runs_total",
				Help:      "Scheduled trend snapshot runs by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and gatherers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSkill records one invocation. outcome is "ok" or an error kind.
func (m *Metrics) ObserveSkill(skill, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SkillInvocations.WithLabelValues(skill, outcome).Inc()
	m.SkillDuration.WithLabelValues(skill).Observe(d.Seconds())
}

func (m *Metrics) ObserveSource(source string, items int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SourceErrors.WithLabelValues(source).Inc()
		return
	}
	m.SourceItems.WithLabelValues(source).Add(float64(items))
}

func (m *Metrics) AddMediaCost(mediaType string, usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	m.MediaCostUSD.WithLabelValues(mediaType).Add(usd)
}

func (m *Metrics) ObserveIntent(environment, status string) {
	if m == nil {
		return
	}
	m.IntentsByStatus.WithLabelValues(environment, status).Inc()
}

func (m *Metrics) ObserveSnapshot(outcome string) {
	if m == nil {
		return
	}
	m.SnapshotRuns.WithLabelValues(outcome).Inc()
}
