package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-mailgate/mailgate/internal/cache"
	"github.com/go-mailgate/mailgate/internal/core"
	"github.com/go-mailgate/mailgate/internal/crypto"
	"github.com/go-mailgate/mailgate/internal/metrics"
	"github.com/go-mailgate/mailgate/internal/store"

	"github.com/stretchr/testify/require"
)

// fakeProvider is a configurable core.Provider for service tests.
type fakeProvider struct {
	exchangeFunc func(ctx context.Context, code string) (string, error)
	metadataFunc func(ctx context.Context, token string) (*core.ProviderAccount, error)
	pingFunc     func(ctx context.Context, token, region string) error

	exchangeCalls atomic.Int32
	pingCalls     atomic.Int32
}

func (f *fakeProvider) Name() string { return "mailchimp" }

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://login.mailchimp.test/oauth2/authorize?state=" + state
}

func (f *fakeProvider) Exchange(ctx context.Context, code string) (string, error) {
	f.exchangeCalls.Add(1)
	if f.exchangeFunc != nil {
		return f.exchangeFunc(ctx, code)
	}
	return "mc-token-" + code, nil
}

func (f *fakeProvider) Metadata(ctx context.Context, token string) (*core.ProviderAccount, error) {
	if f.metadataFunc != nil {
		return f.metadataFunc(ctx, token)
	}
	return &core.ProviderAccount{
		AccountID:   "12345",
		AccountName: "Acme Inc",
		Region:      "us21",
		Email:       "owner@acme.example",
		Username:    "acme-owner",
		Role:        "owner",
		LoginEmail:  "owner@acme.example",
	}, nil
}

func (f *fakeProvider) Ping(ctx context.Context, token, region string) error {
	f.pingCalls.Add(1)
	if f.pingFunc != nil {
		return f.pingFunc(ctx, token, region)
	}
	return nil
}

func noopRecorder() core.Recorder {
	return metrics.NewNoopMetrics()
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	return s
}

func newTestCipher(t *testing.T) *crypto.TokenCipher {
	t.Helper()
	key := []byte("0123456789abcdef0123456789abcdef")
	cipher, err := crypto.NewTokenCipher(key)
	require.NoError(t, err)
	return cipher
}

// testFixture wires the full service graph against in-memory backends.
type testFixture struct {
	store       *store.Store
	cipher      *crypto.TokenCipher
	provider    *fakeProvider
	cache       *cache.MemoryCache[ValidationResult]
	states      *StateService
	validator   *ConnectionValidator
	connections *ConnectionService
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	s := newTestStore(t)
	cipher := newTestCipher(t)
	provider := &fakeProvider{}
	memCache := cache.NewMemoryCache[ValidationResult]()
	recorder := metrics.NewNoopMetrics()

	states := NewStateService(s, 10*time.Minute, recorder)
	validator := NewConnectionValidator(s, cipher, provider, memCache, time.Hour, recorder)
	connections := NewConnectionService(s, cipher, provider, states, validator, recorder)

	return &testFixture{
		store:       s,
		cipher:      cipher,
		provider:    provider,
		cache:       memCache,
		states:      states,
		validator:   validator,
		connections: connections,
	}
}
