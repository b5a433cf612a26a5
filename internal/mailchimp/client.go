package mailchimp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-mailgate/mailgate/internal/retry"
)

// APIResponse carries a Mailchimp API response through the proxy unchanged.
type APIResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// APIClient issues authenticated requests against one account's
// region-addressed Mailchimp API. A client is built per request from the
// validated connection's decrypted token and region, and never outlives it.
type APIClient struct {
	accessToken string
	baseURL     string
	httpClient  *retry.Client
}

// NewAPIClient creates a client bound to the given token and region.
func NewAPIClient(accessToken, region string, httpClient *retry.Client) *APIClient {
	return NewAPIClientWithBase(accessToken, fmt.Sprintf(defaultAPIFormat, region), httpClient)
}

// NewAPIClientWithBase creates a client against an explicit base URL.
func NewAPIClientWithBase(accessToken, baseURL string, httpClient *retry.Client) *APIClient {
	if httpClient == nil {
		httpClient = retry.NewClient()
	}
	return &APIClient{
		accessToken: accessToken,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
	}
}

// Get performs a GET against the given API path (e.g. "/ping", "/campaigns")
// and returns the response verbatim. Non-2xx responses are returned to the
// caller, not turned into errors; only transport failures error out.
func (c *APIClient) Get(ctx context.Context, path string, query url.Values) (*APIResponse, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}

	return &APIResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
