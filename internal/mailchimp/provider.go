package mailchimp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-mailgate/mailgate/internal/core"
	"github.com/go-mailgate/mailgate/internal/retry"

	"golang.org/x/oauth2"
)

const (
	// ProviderName is the identifier stored on connection records
	ProviderName = "mailchimp"

	defaultLoginBase = "https://login.mailchimp.com"
	defaultAPIFormat = "https://%s.api.mailchimp.com/3.0"

	exchangeTimeout = 30 * time.Second
)

// Compile-time interface check.
var _ core.Provider = (*Provider)(nil)

// Config contains the OAuth application credentials registered with Mailchimp.
// LoginBase and APIFormat default to the public Mailchimp endpoints and are
// only overridden in tests.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	LoginBase    string
	APIFormat    string
}

// Provider implements the connection lifecycle against Mailchimp's OAuth 2.0
// authorization-code flow and region-addressed API.
type Provider struct {
	config     *oauth2.Config
	httpClient *retry.Client
	loginBase  string
	apiFormat  string
}

// New creates a Mailchimp provider. httpClient handles retries for the
// metadata and health-probe requests; the token exchange goes through the
// oauth2 transport with its own timeout.
func New(cfg Config, httpClient *retry.Client) *Provider {
	loginBase := cfg.LoginBase
	if loginBase == "" {
		loginBase = defaultLoginBase
	}
	apiFormat := cfg.APIFormat
	if apiFormat == "" {
		apiFormat = defaultAPIFormat
	}
	if httpClient == nil {
		httpClient = retry.NewClient()
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  loginBase + "/oauth2/authorize",
				TokenURL: loginBase + "/oauth2/token",
			},
		},
		httpClient: httpClient,
		loginBase:  loginBase,
		apiFormat:  apiFormat,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return ProviderName
}

// AuthCodeURL returns the Mailchimp authorization URL carrying the given
// CSRF state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
// Mailchimp tokens do not expire and no refresh token is issued, so only
// the access token is returned.
func (p *Provider) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: exchangeTimeout})

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// The token endpoint answered but refused the code
			return "", fmt.Errorf("%w: %v", ErrCodeRejected, err)
		}
		return "", fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}

	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrCodeRejected)
	}

	return token.AccessToken, nil
}

// metadataResponse mirrors the fields of Mailchimp's OAuth metadata endpoint
// that the connection record keeps.
type metadataResponse struct {
	DC          string `json:"dc"`
	Role        string `json:"role"`
	AccountName string `json:"accountname"`
	UserID      int64  `json:"user_id"`
	Login       struct {
		Email      string `json:"email"`
		LoginName  string `json:"login_name"`
		LoginEmail string `json:"login_email"`
	} `json:"login"`
}

// Metadata fetches account metadata for a freshly exchanged access token.
// The returned Region is required for all further API calls.
func (p *Provider) Metadata(ctx context.Context, accessToken string) (*core.ProviderAccount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.loginBase+"/oauth2/metadata", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata request: %w", err)
	}
	// The metadata endpoint uses the OAuth scheme, not Bearer
	req.Header.Set("Authorization", "OAuth "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: metadata returned %d", ErrTokenRejected, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf(
			"%w: metadata returned %d: %s",
			ErrProviderUnreachable, resp.StatusCode, string(body),
		)
	}

	var meta metadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMetadata, err)
	}

	// Without the data-center segment no API host can be derived
	if meta.DC == "" {
		return nil, fmt.Errorf("%w: missing dc", ErrBadMetadata)
	}

	return &core.ProviderAccount{
		AccountID:   fmt.Sprintf("%d", meta.UserID),
		AccountName: meta.AccountName,
		Region:      meta.DC,
		Email:       meta.Login.Email,
		Username:    meta.Login.LoginName,
		Role:        meta.Role,
		LoginEmail:  meta.Login.LoginEmail,
	}, nil
}

// Ping performs a lightweight health probe against the region-addressed API.
func (p *Provider) Ping(ctx context.Context, accessToken, region string) error {
	url := fmt.Sprintf(p.apiFormat, region) + "/ping"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: ping returned %d", ErrTokenRejected, resp.StatusCode)
	default:
		return fmt.Errorf("%w: ping returned %d", ErrProviderUnreachable, resp.StatusCode)
	}
}
