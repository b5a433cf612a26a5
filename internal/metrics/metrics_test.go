package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	m := Init(true)
	assert.NotNil(t, m)

	// Type assert to concrete Metrics to access fields
	metrics, ok := m.(*Metrics)
	assert.True(t, ok, "Init(true) should return *Metrics")
	assert.NotNil(t, metrics.ConnectInitiatedTotal)
	assert.NotNil(t, metrics.OAuthCallbacksTotal)
	assert.NotNil(t, metrics.ValidationsTotal)
	assert.NotNil(t, metrics.HTTPRequestsTotal)
}

func TestInitNoop(t *testing.T) {
	m := Init(false)
	assert.NotNil(t, m)

	_, ok := m.(*NoopMetrics)
	assert.True(t, ok, "Init(false) should return *NoopMetrics")
}

func TestInitReturnsSameInstance(t *testing.T) {
	m1 := Init(true)
	m2 := Init(true)
	assert.Equal(t, m1, m2, "Init(true) should return the same instance")
}

func TestRecordConnectionLifecycle(t *testing.T) {
	m := Init(true)

	m.RecordConnectInitiated("mailchimp", true)
	m.RecordOAuthCallback("mailchimp", "success")
	m.RecordDisconnect("mailchimp", false)
	m.RecordDisconnect("mailchimp", true)
	// No error means success - prometheus metrics don't return errors for recording
}

func TestRecordStateLedger(t *testing.T) {
	m := Init(true)

	m.RecordStateCreated(true)
	m.RecordStateConsumed("consumed")
	m.RecordStateConsumed("replayed")
	m.RecordStatesSwept(3)
}

func TestRecordValidation(t *testing.T) {
	m := Init(true)

	m.RecordValidation("VALID", false, 50*time.Millisecond)
	m.RecordValidation("NOT_CONNECTED", true, time.Millisecond)
	m.RecordHealthProbe("mailchimp", true, 120*time.Millisecond)
}

func TestRecordProxyRequest(t *testing.T) {
	m := Init(true)

	m.RecordProxyRequest("campaigns", 200, 80*time.Millisecond)
	m.RecordProxyRequest("ping", 502, 10*time.Millisecond)
}

func TestRecordDatabaseQueryError(t *testing.T) {
	m := Init(true)

	m.RecordDatabaseQueryError("get_connection")
}

func TestNoopRecorderAcceptsEverything(t *testing.T) {
	m := NewNoopMetrics()

	m.RecordConnectInitiated("mailchimp", false)
	m.RecordOAuthCallback("mailchimp", "invalid_state")
	m.RecordDisconnect("mailchimp", true)
	m.RecordStateCreated(false)
	m.RecordStateConsumed("expired")
	m.RecordStatesSwept(0)
	m.RecordValidation("TOKEN_INVALID", false, time.Second)
	m.RecordHealthProbe("mailchimp", false, time.Second)
	m.RecordProxyRequest("lists", 404, time.Millisecond)
	m.RecordDatabaseQueryError("upsert_connection")
}
