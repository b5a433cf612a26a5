package metrics

import (
	"time"

	"github.com/go-mailgate/mailgate/internal/core"
)

// NoopMetrics is a no-operation implementation of core.Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ core.Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() core.Recorder {
	return &NoopMetrics{}
}

// OAuth connection lifecycle - noop implementations
func (n *NoopMetrics) RecordConnectInitiated(provider string, success bool) {}
func (n *NoopMetrics) RecordOAuthCallback(provider, result string)          {}
func (n *NoopMetrics) RecordDisconnect(provider string, purge bool)         {}

// CSRF state ledger - noop implementations
func (n *NoopMetrics) RecordStateCreated(success bool)  {}
func (n *NoopMetrics) RecordStateConsumed(result string) {}
func (n *NoopMetrics) RecordStatesSwept(count int64)    {}

// Connection validation - noop implementations
func (n *NoopMetrics) RecordValidation(outcome string, cacheHit bool, duration time.Duration) {}
func (n *NoopMetrics) RecordHealthProbe(provider string, success bool, duration time.Duration) {
}

// Provider API proxy - noop implementations
func (n *NoopMetrics) RecordProxyRequest(endpoint string, status int, duration time.Duration) {}

// Database operations - noop implementations
func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
