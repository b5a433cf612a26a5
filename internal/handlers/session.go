package handlers

import (
	"log"
	"net/http"

	"github.com/go-mailgate/mailgate/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SessionHandler bridges the dashboard's Bearer JWT auth into a cookie
// session. The OAuth callback arrives as a bare browser redirect from
// Mailchimp with no Authorization header, so the user must hold a session
// cookie before starting the connect flow.
type SessionHandler struct {
	jwtSecret string
}

// NewSessionHandler creates a session handler verifying JWTs with jwtSecret.
func NewSessionHandler(jwtSecret string) *SessionHandler {
	return &SessionHandler{jwtSecret: jwtSecret}
}

// Create exchanges a valid Bearer JWT for a session cookie.
func (h *SessionHandler) Create(c *gin.Context) {
	userID, err := middleware.BearerUserID(c, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "NOT_AUTHENTICATED",
			"message": "a valid bearer token is required",
		})
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserID, userID)
	if err := session.Save(); err != nil {
		log.Printf("[Session] Failed to save session for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "SESSION_ERROR",
			"message": "failed to establish session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID})
}

// Destroy clears the session cookie.
func (h *SessionHandler) Destroy(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{MaxAge: -1, Path: "/"})
	if err := session.Save(); err != nil {
		log.Printf("[Session] Failed to clear session: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}
