// Package metrics provides Prometheus metrics for the clinical data
// platform.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	ResourcesCreated    *prometheus.CounterVec
	ResourcesUpdated    *prometheus.CounterVec
	ResourcesDeleted    *prometheus.CounterVec
	ValidationFailures  *prometheus.CounterVec
	DecodeFailures      *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	PredictionsTotal    *prometheus.CounterVec
	PredictionDuration  prometheus.Histogram
	BundleEntries       prometheus.Counter
	KafkaProduced       prometheus.Counter
	KafkaConsumed       prometheus.Counter
	OutboxPending       prometheus.Gauge
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all metrics.
func New() *Metrics {
	m := &Metrics{
		ResourcesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fhir_resources_created_total",
			Help: "Total resources created, by resource type",
		}, []string{"resource_type"}),
		ResourcesUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fhir_resources_updated_total",
			Help: "Total resources updated, by resource type",
		}, []string{"resource_type"}),
		ResourcesDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fhir_resources_deleted_total",
			Help: "Total resources deleted, by resource type",
		}, []string{"resource_type"}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fhir_validation_failures_total",
			Help: "Total resources rejected by validation, by resource type",
		}, []string{"resource_type"}),
		DecodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fhir_decode_failures_total",
			Help: "Total payloads rejected by the codec, by resource type",
		}, []string{"resource_type"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route"}),
		PredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total model runs, by model and status",
		}, []string{"model_id", "status"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_duration_seconds",
			Help:    "Model scoring duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		BundleEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fhir_bundle_entries_total",
			Help: "Total bundle entries processed",
		}),
		KafkaProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.ResourcesCreated,
		m.ResourcesUpdated,
		m.ResourcesDeleted,
		m.ValidationFailures,
		m.DecodeFailures,
		m.RequestDuration,
		m.PredictionsTotal,
		m.PredictionDuration,
		m.BundleEntries,
		m.KafkaProduced,
		m.KafkaConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
