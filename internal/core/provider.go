package core

import (
	"context"
)

// ProviderAccount holds the account metadata returned by the provider's
// metadata endpoint after a successful token exchange.
type ProviderAccount struct {
	AccountID   string // Provider's account ID
	AccountName string // Human-readable account name
	Region      string // Data-center routing segment (e.g. "us1")
	Email       string // Account email (snapshot)
	Username    string // Login name at the provider
	Role        string // Role of the granting user within the account
	LoginEmail  string // Email the grant was authorized with
}

// Provider is the contract the connection lifecycle depends on. The single
// production implementation lives in internal/mailchimp; tests supply fakes.
type Provider interface {
	// Name returns the provider identifier stored on connection records.
	Name() string

	// AuthCodeURL returns the provider authorization URL carrying the
	// given CSRF state.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for an access token.
	// Returns ErrProviderUnreachable for transport failures and
	// ErrCodeRejected when the provider refuses the code.
	Exchange(ctx context.Context, code string) (string, error)

	// Metadata fetches account metadata (including the region) for a
	// freshly exchanged access token.
	Metadata(ctx context.Context, accessToken string) (*ProviderAccount, error)

	// Ping performs a lightweight health probe against the provider's
	// region-addressed API. Returns ErrTokenRejected when the provider
	// no longer accepts the token.
	Ping(ctx context.Context, accessToken, region string) error
}
