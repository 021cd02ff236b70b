package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization pipeline metrics
	AuthzDecisionsTotal *prometheus.CounterVec

	// Dynamic entity metrics
	DefinitionsCreatedTotal *prometheus.CounterVec
	RecordsCreatedTotal     *prometheus.CounterVec
	RecordValidationErrors  *prometheus.CounterVec

	// Template engine metrics
	InstantiationsTotal    *prometheus.CounterVec
	InstantiationDuration  prometheus.Histogram
	TemplateCacheHitsTotal *prometheus.CounterVec

	// Audit metrics
	AuditEventsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atrium_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_authz_decisions_total",
				Help: "Authorization pipeline decisions by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),

		DefinitionsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_entity_definitions_created_total",
				Help: "Entity definitions created",
			},
			[]string{"source"},
		),
		RecordsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_entity_records_created_total",
				Help: "Entity records created",
			},
			[]string{"entity"},
		),
		RecordValidationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_entity_record_validation_errors_total",
				Help: "Record payloads rejected by schema validation",
			},
			[]string{"entity", "reason"},
		),

		InstantiationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_template_instantiations_total",
				Help: "Template instantiation attempts by template and outcome",
			},
			[]string{"template", "outcome"},
		),
		InstantiationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "atrium_template_instantiation_duration_seconds",
				Help:    "Template instantiation duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		TemplateCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_template_cache_hits_total",
				Help: "Template registry cache hits and misses",
			},
			[]string{"result"},
		),

		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_audit_events_total",
				Help: "Audit events emitted by action",
			},
			[]string{"action", "status"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atrium_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atrium_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.DefinitionsCreatedTotal,
		m.RecordsCreatedTotal,
		m.RecordValidationErrors,
		m.InstantiationsTotal,
		m.InstantiationDuration,
		m.TemplateCacheHitsTotal,
		m.AuditEventsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
