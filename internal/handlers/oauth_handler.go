package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/go-mailgate/mailgate/internal/mailchimp"
	"github.com/go-mailgate/mailgate/internal/middleware"
	"github.com/go-mailgate/mailgate/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Callback redirect error codes. The dashboard shows these verbatim, so the
// set is closed and stable.
const (
	callbackErrMissingParams    = "missing_parameters"
	callbackErrUnauthorized     = "unauthorized"
	callbackErrInvalidState     = "invalid_state"
	callbackErrUnreachable      = "mailchimp_unreachable"
	callbackErrDatabase         = "database_error"
	callbackErrConnectionFailed = "connection_failed"
)

// OAuthHandler drives the browser-facing connection flow. Outcomes of the
// callback are reported by redirecting back to the dashboard settings page
// with a query parameter, never with an error body.
type OAuthHandler struct {
	connections  *services.ConnectionService
	dashboardURL string
	settingsPath string
}

// NewOAuthHandler creates an OAuth handler redirecting back to the given
// dashboard settings page.
func NewOAuthHandler(
	connections *services.ConnectionService,
	dashboardURL, settingsPath string,
) *OAuthHandler {
	return &OAuthHandler{
		connections:  connections,
		dashboardURL: dashboardURL,
		settingsPath: settingsPath,
	}
}

// settingsRedirect builds the dashboard settings URL with one query parameter.
func (h *OAuthHandler) settingsRedirect(key, value string) string {
	return h.dashboardURL + h.settingsPath + "?" + url.Values{key: {value}}.Encode()
}

// Connect starts the authorization flow by redirecting to Mailchimp.
func (h *OAuthHandler) Connect(c *gin.Context) {
	userID := middleware.UserID(c)

	authURL, err := h.connections.Connect(userID)
	if err != nil {
		log.Printf("[OAuth] Failed to initiate connect for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "CONNECTION_FAILED",
			"message": "failed to initiate the connection flow",
		})
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the authorization flow. Mailchimp redirects the browser
// here; the user is identified by the cookie session only, Bearer tokens are
// not accepted on this route.
func (h *OAuthHandler) Callback(c *gin.Context) {
	// The provider reports a denied or failed grant through the error
	// parameter instead of a code
	if providerErr := c.Query("error"); providerErr != "" {
		log.Printf("[OAuth] Provider returned error %q: %s",
			providerErr, c.Query("error_description"))
		c.Redirect(http.StatusFound, h.settingsRedirect("error", callbackErrConnectionFailed))
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.Redirect(http.StatusFound, h.settingsRedirect("error", callbackErrMissingParams))
		return
	}

	session := sessions.Default(c)
	userID, _ := session.Get(middleware.SessionUserID).(string)
	if userID == "" {
		c.Redirect(http.StatusFound, h.settingsRedirect("error", callbackErrUnauthorized))
		return
	}

	err := h.connections.CompleteCallback(c.Request.Context(), userID, code, state)
	if err != nil {
		log.Printf("[OAuth] Callback failed for user %s: %v", userID, err)
		c.Redirect(http.StatusFound, h.settingsRedirect("error", callbackErrorCode(err)))
		return
	}

	c.Redirect(http.StatusFound, h.settingsRedirect("connected", "true"))
}

// callbackErrorCode maps service errors onto the redirect error codes.
func callbackErrorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrStateInvalid):
		return callbackErrInvalidState
	case errors.Is(err, mailchimp.ErrProviderUnreachable):
		return callbackErrUnreachable
	case errors.Is(err, services.ErrStorageFailed):
		return callbackErrDatabase
	default:
		// Covers rejected codes and malformed metadata
		return callbackErrConnectionFailed
	}
}

// Status reports the user's connection without ever exposing the stored
// token, encrypted or otherwise.
func (h *OAuthHandler) Status(c *gin.Context) {
	userID := middleware.UserID(c)

	conn, err := h.connections.Status(userID)
	if err != nil {
		if errors.Is(err, services.ErrNotConnected) {
			c.JSON(http.StatusOK, gin.H{"connected": false})
			return
		}
		log.Printf("[OAuth] Failed to load connection for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "DATABASE_ERROR",
			"message": "failed to load connection",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":         true,
		"active":            conn.IsActive,
		"provider":          conn.Provider,
		"account_id":        conn.AccountID,
		"account_name":      conn.AccountName,
		"region":            conn.Region,
		"email":             conn.Email,
		"username":          conn.Username,
		"role":              conn.Role,
		"connected_at":      conn.CreatedAt,
		"last_validated_at": conn.LastValidatedAt,
	})
}

// Disconnect deactivates the connection; with ?purge=true the record and
// the encrypted token are deleted outright.
func (h *OAuthHandler) Disconnect(c *gin.Context) {
	userID := middleware.UserID(c)
	purge := c.Query("purge") == "true"

	err := h.connections.Disconnect(c.Request.Context(), userID, purge)
	if err != nil {
		if errors.Is(err, services.ErrNotConnected) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "NOT_CONNECTED",
				"message": "no connection on record",
			})
			return
		}
		log.Printf("[OAuth] Failed to disconnect user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "DATABASE_ERROR",
			"message": "failed to disconnect",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"disconnected": true, "purged": purge})
}
