package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// OAuth connection lifecycle
	RecordConnectInitiated(provider string, success bool)
	RecordOAuthCallback(provider, result string)
	RecordDisconnect(provider string, purge bool)

	// CSRF state ledger
	RecordStateCreated(success bool)
	RecordStateConsumed(result string)
	RecordStatesSwept(count int64)

	// Connection validation
	RecordValidation(outcome string, cacheHit bool, duration time.Duration)
	RecordHealthProbe(provider string, success bool, duration time.Duration)

	// Provider API proxy
	RecordProxyRequest(endpoint string, status int, duration time.Duration)

	// Database operations
	RecordDatabaseQueryError(operation string)
}
