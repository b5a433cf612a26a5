package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/go-mailgate/mailgate/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure Metrics implements Recorder interface at compile time
var _ core.Recorder = (*Metrics)(nil)

const (
	resultSuccess = "success"
	resultError   = "error"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// OAuth connection lifecycle
	ConnectInitiatedTotal *prometheus.CounterVec
	OAuthCallbacksTotal   *prometheus.CounterVec
	DisconnectsTotal      *prometheus.CounterVec

	// CSRF state ledger
	StatesCreatedTotal  *prometheus.CounterVec
	StatesConsumedTotal *prometheus.CounterVec
	StatesSweptTotal    prometheus.Counter

	// Connection validation
	ValidationsTotal    *prometheus.CounterVec
	ValidationDuration  *prometheus.HistogramVec
	HealthProbesTotal   *prometheus.CounterVec
	HealthProbeDuration *prometheus.HistogramVec

	// Provider API proxy
	ProxyRequestsTotal   *prometheus.CounterVec
	ProxyRequestDuration *prometheus.HistogramVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) core.Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	m := &Metrics{
		// OAuth connection lifecycle
		ConnectInitiatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_connect_initiated_total",
				Help: "Total number of OAuth connection flows initiated",
			},
			[]string{"provider", "result"}, // success, error
		),
		OAuthCallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_callbacks_total",
				Help: "Total number of OAuth callback completions",
			},
			[]string{
				"provider",
				"result",
			}, // connected, invalid_state, exchange_failed, metadata_failed, storage_failed
		),
		DisconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_disconnects_total",
				Help: "Total number of connection disconnects",
			},
			[]string{"provider", "mode"}, // deactivate, purge
		),

		// CSRF state ledger
		StatesCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_states_created_total",
				Help: "Total number of CSRF state tokens minted",
			},
			[]string{"result"}, // success, error
		),
		StatesConsumedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_states_consumed_total",
				Help: "Total number of CSRF state redemption attempts",
			},
			[]string{"result"}, // consumed, invalid, expired, mismatch, replayed, error
		),
		StatesSweptTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_states_swept_total",
				Help: "Total number of expired CSRF states removed by the sweeper",
			},
		),

		// Connection validation
		ValidationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connection_validations_total",
				Help: "Total number of connection validations",
			},
			[]string{"outcome", "cache"}, // outcome: VALID or an error code; cache: hit, miss
		),
		ValidationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "connection_validation_duration_seconds",
				Help:    "Time taken to validate a connection",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"cache"}, // hit, miss
		),
		HealthProbesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_health_probes_total",
				Help: "Total number of provider health probes",
			},
			[]string{"provider", "result"}, // success, error
		),
		HealthProbeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_health_probe_duration_seconds",
				Help:    "Time taken for provider health probes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		// Provider API proxy
		ProxyRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_proxy_requests_total",
				Help: "Total number of proxied provider API requests",
			},
			[]string{"endpoint", "status"},
		),
		ProxyRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_proxy_request_duration_seconds",
				Help:    "Time taken for proxied provider API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		// HTTP Request Metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001,
					0.005,
					0.010,
					0.025,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
					10.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),

		// Database Query Metrics
		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation"},
		),
	}

	return m
}

func boolResult(success bool) string {
	if success {
		return resultSuccess
	}
	return resultError
}

func cacheLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// RecordConnectInitiated records a connection flow start
func (m *Metrics) RecordConnectInitiated(provider string, success bool) {
	m.ConnectInitiatedTotal.WithLabelValues(provider, boolResult(success)).Inc()
}

// RecordOAuthCallback records a callback completion with its outcome
func (m *Metrics) RecordOAuthCallback(provider, result string) {
	m.OAuthCallbacksTotal.WithLabelValues(provider, result).Inc()
}

// RecordDisconnect records a disconnect
func (m *Metrics) RecordDisconnect(provider string, purge bool) {
	mode := "deactivate"
	if purge {
		mode = "purge"
	}
	m.DisconnectsTotal.WithLabelValues(provider, mode).Inc()
}

// RecordStateCreated records a state mint attempt
func (m *Metrics) RecordStateCreated(success bool) {
	m.StatesCreatedTotal.WithLabelValues(boolResult(success)).Inc()
}

// RecordStateConsumed records a state redemption attempt
func (m *Metrics) RecordStateConsumed(result string) {
	m.StatesConsumedTotal.WithLabelValues(result).Inc()
}

// RecordStatesSwept records the number of expired states removed
func (m *Metrics) RecordStatesSwept(count int64) {
	m.StatesSweptTotal.Add(float64(count))
}

// RecordValidation records a connection validation outcome
func (m *Metrics) RecordValidation(outcome string, cacheHit bool, duration time.Duration) {
	cache := cacheLabel(cacheHit)
	m.ValidationsTotal.WithLabelValues(outcome, cache).Inc()
	m.ValidationDuration.WithLabelValues(cache).Observe(duration.Seconds())
}

// RecordHealthProbe records a provider health probe
func (m *Metrics) RecordHealthProbe(provider string, success bool, duration time.Duration) {
	m.HealthProbesTotal.WithLabelValues(provider, boolResult(success)).Inc()
	m.HealthProbeDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordProxyRequest records a proxied provider API request
func (m *Metrics) RecordProxyRequest(endpoint string, status int, duration time.Duration) {
	m.ProxyRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.ProxyRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordDatabaseQueryError records a database query error
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
