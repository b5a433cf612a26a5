package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-mailgate/mailgate/internal/core"
	"github.com/go-mailgate/mailgate/internal/mailchimp"
	"github.com/go-mailgate/mailgate/internal/middleware"
	"github.com/go-mailgate/mailgate/internal/retry"
	"github.com/go-mailgate/mailgate/internal/services"

	"github.com/gin-gonic/gin"
)

// APIHandler proxies read-only Mailchimp API endpoints for the dashboard.
// Every request is validated first; on success the proxied response is
// passed through verbatim, status code included.
type APIHandler struct {
	validator *services.ConnectionValidator
	metrics   core.Recorder

	// newClient is replaceable in tests
	newClient func(accessToken, region string) *mailchimp.APIClient
}

// NewAPIHandler creates an API proxy handler backed by the validator.
func NewAPIHandler(
	validator *services.ConnectionValidator,
	httpClient *retry.Client,
	metrics core.Recorder,
) *APIHandler {
	return &APIHandler{
		validator: validator,
		metrics:   metrics,
		newClient: func(accessToken, region string) *mailchimp.APIClient {
			return mailchimp.NewAPIClient(accessToken, region, httpClient)
		},
	}
}

// statusForCode maps validation error codes onto HTTP statuses.
func statusForCode(code services.ErrorCode) int {
	switch code {
	case services.CodeNotAuthenticated:
		return http.StatusUnauthorized
	case services.CodeNotConnected:
		return http.StatusNotFound
	case services.CodeConnectionInactive, services.CodeTokenInvalid:
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

// proxy builds a handler forwarding GET requests to one API endpoint.
func (h *APIHandler) proxy(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		userID := middleware.UserID(c)

		result := h.validator.Validate(c.Request.Context(), userID)
		if !result.Valid {
			status := statusForCode(result.Code)
			h.metrics.RecordProxyRequest(endpoint, status, time.Since(start))
			c.JSON(status, gin.H{
				"error":   result.Code,
				"message": result.Reason,
			})
			return
		}

		client := h.newClient(result.AccessToken, result.Region)
		resp, err := client.Get(c.Request.Context(), "/"+endpoint, c.Request.URL.Query())
		if err != nil {
			log.Printf("[Proxy] %s request failed for user %s: %v", endpoint, userID, err)
			h.metrics.RecordProxyRequest(endpoint, http.StatusBadGateway, time.Since(start))
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "MAILCHIMP_UNREACHABLE",
				"message": "the provider did not answer",
			})
			return
		}

		h.metrics.RecordProxyRequest(endpoint, resp.StatusCode, time.Since(start))

		contentType := resp.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		c.Data(resp.StatusCode, contentType, resp.Body)
	}
}

// Ping proxies the provider health endpoint.
func (h *APIHandler) Ping(c *gin.Context) { h.proxy("ping")(c) }

// Campaigns proxies the campaigns listing.
func (h *APIHandler) Campaigns(c *gin.Context) { h.proxy("campaigns")(c) }

// Lists proxies the audience listing.
func (h *APIHandler) Lists(c *gin.Context) { h.proxy("lists")(c) }

// Reports proxies the campaign reports listing.
func (h *APIHandler) Reports(c *gin.Context) { h.proxy("reports")(c) }
