// Package metrics implements ports.MetricsCollector on Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/credcheck/internal/ports"
)

// Namespace prefixes every metric name.
const Namespace = "credcheck"

// unknownLabel replaces label values the caller did not supply.
const unknownLabel = "unknown"

// Label sets for the known metrics.
var (
	inferenceLabels = []string{"provider", "model", "status"}
	strategyLabels  = []string{"variant", "mode", "outcome"}
	outcomeLabels   = []string{"outcome"}
	httpLabels      = []string{"route", "code"}
)

// PrometheusMetrics routes MetricsCollector calls to Prometheus vectors.
// Metric names the pipeline emits get dedicated vectors with fixed label
// sets; anything else lands in the generic operation vectors.
type PrometheusMetrics struct {
	counters   map[string]*counter
	histograms map[string]*histogram

	operationDuration *prometheus.HistogramVec
	operationTotal    *prometheus.CounterVec
	state             *prometheus.GaugeVec
}

type counter struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogram struct {
	vec    *prometheus.HistogramVec
	labels []string
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates the collector and registers its metrics on
// reg. A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	pm := &PrometheusMetrics{
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
	}

	pm.counters["inference_requests_total"] = &counter{
		vec: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "inference_requests_total",
			Help:      "Title verification model requests by provider and status.",
		}, inferenceLabels),
		labels: inferenceLabels,
	}
	tokenLabels := append(append([]string{}, inferenceLabels...), "token_type")
	pm.counters["inference_tokens_total"] = &counter{
		vec: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "inference_tokens_total",
			Help:      "Tokens consumed by title verification requests.",
		}, tokenLabels),
		labels: tokenLabels,
	}
	pm.counters["extraction_strategies_total"] = &counter{
		vec: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "extraction_strategies_total",
			Help:      "Extraction strategies run, by variant, segmentation mode and outcome.",
		}, strategyLabels),
		labels: strategyLabels,
	}
	pm.counters["verifications_total"] = &counter{
		vec: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "verifications_total",
			Help:      "Certificate verifications by outcome.",
		}, outcomeLabels),
		labels: outcomeLabels,
	}
	pm.counters["http_requests_total"] = &counter{
		vec: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, httpLabels),
		labels: httpLabels,
	}

	pm.histograms["inference_latency_seconds"] = &histogram{
		vec: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "inference_latency_seconds",
			Help:      "Latency of title verification model requests.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, inferenceLabels),
		labels: inferenceLabels,
	}

	pm.operationDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of pipeline operations.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation", "outcome"})
	pm.operationTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "operations_total",
		Help:      "Generic pipeline counters keyed by metric name.",
	}, []string{"metric", "outcome"})
	pm.state = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "state",
		Help:      "Current values of pipeline gauges keyed by metric name.",
	}, []string{"metric"})

	return pm
}

// RecordLatency observes duration in the operation duration histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.operationDuration.WithLabelValues(operation, labelOr(labels, "outcome")).Observe(duration.Seconds())
}

// RecordCounter adds value to a known counter, or to operations_total.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	if c, ok := pm.counters[metric]; ok {
		c.vec.WithLabelValues(labelValues(c.labels, labels)...).Add(value)
		return
	}
	pm.operationTotal.WithLabelValues(metric, labelOr(labels, "outcome")).Add(value)
}

// RecordGauge sets the state gauge for metric.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.state.WithLabelValues(metric).Set(value)
}

// RecordHistogram observes value in a known histogram, or in the operation
// duration histogram when metric has none.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	if h, ok := pm.histograms[metric]; ok {
		h.vec.WithLabelValues(labelValues(h.labels, labels)...).Observe(value)
		return
	}
	pm.operationDuration.WithLabelValues(metric, labelOr(labels, "outcome")).Observe(value)
}

func labelValues(names []string, labels map[string]string) []string {
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = labelOr(labels, name)
	}
	return values
}

func labelOr(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return unknownLabel
}
