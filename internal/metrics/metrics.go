package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the Prometheus metrics for the recommender. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	recommendationsTotal   *prometheus.CounterVec
	recommendationDuration prometheus.Histogram
	recommendedItems       prometheus.Histogram
	moderationDecisions    *prometheus.CounterVec
	ruleEvaluations        *prometheus.CounterVec
	providerErrors         *prometheus.CounterVec
	toggleOutcomes         *prometheus.CounterVec
}

// NewCollector registers all metrics on a private registry
func NewCollector(namespace string) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.recommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendation runs by cache outcome",
		},
		[]string{"cache"},
	)
	c.recommendationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendation_duration_seconds",
			Help:      "Time spent producing a recommendation list",
			Buckets:   prometheus.DefBuckets,
		},
	)
	c.recommendedItems = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommended_items",
			Help:      "Number of items returned per recommendation run",
			Buckets:   []float64{0, 1, 5, 10, 20, 50},
		},
	)
	c.moderationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_decisions_total",
			Help:      "Moderation outcomes",
		},
		[]string{"outcome"},
	)
	c.ruleEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_evaluations_total",
			Help:      "Business rule evaluations by entity kind and match outcome",
		},
		[]string{"entity", "matched"},
	)
	c.providerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Upstream document store failures that degraded to empty results",
		},
		[]string{"provider"},
	)
	c.toggleOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggle_outcomes_total",
			Help:      "Optimistic like/mute toggles by final state",
		},
		[]string{"action", "state"},
	)

	c.registry.MustRegister(
		c.recommendationsTotal,
		c.recommendationDuration,
		c.recommendedItems,
		c.moderationDecisions,
		c.ruleEvaluations,
		c.providerErrors,
		c.toggleOutcomes,
		collectors.NewGoCollector(),
	)

	return c
}

// Handler exposes the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) ObserveRecommendation(duration time.Duration, items int, cacheHit bool) {
	if c == nil {
		return
	}
	outcome := "miss"
	if cacheHit {
		outcome = "hit"
	}
	c.recommendationsTotal.WithLabelValues(outcome).Inc()
	c.recommendationDuration.Observe(duration.Seconds())
	c.recommendedItems.Observe(float64(items))
}

func (c *Collector) ObserveModeration(approved bool) {
	if c == nil {
		return
	}
	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	c.moderationDecisions.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveRule(entity string, matched bool) {
	if c == nil {
		return
	}
	label := "false"
	if matched {
		label = "true"
	}
	c.ruleEvaluations.WithLabelValues(entity, label).Inc()
}

func (c *Collector) ProviderError(provider string) {
	if c == nil {
		return
	}
	c.providerErrors.WithLabelValues(provider).Inc()
}

func (c *Collector) ObserveToggle(action, state string) {
	if c == nil {
		return
	}
	c.toggleOutcomes.WithLabelValues(action, state).Inc()
}
