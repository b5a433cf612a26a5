package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionUserID is the session key holding the authenticated user ID
	SessionUserID = "user_id"

	// ContextUserID is the gin context key handlers read the user ID from
	ContextUserID = "user_id"
)

// RequireAuth authenticates a request from either the cookie session or a
// Bearer JWT signed with jwtSecret (HS256, user ID in the sub claim). The
// resolved user ID lands in the gin context under ContextUserID.
func RequireAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if userID, ok := session.Get(SessionUserID).(string); ok && userID != "" {
			c.Set(ContextUserID, userID)
			c.Next()
			return
		}

		if userID, err := BearerUserID(c, jwtSecret); err == nil {
			c.Set(ContextUserID, userID)
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "NOT_AUTHENTICATED",
			"message": "authentication required",
		})
		c.Abort()
	}
}

// BearerUserID extracts and verifies the user ID from a Bearer JWT.
func BearerUserID(c *gin.Context, jwtSecret string) (string, error) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", fmt.Errorf("no bearer token")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// UserID returns the authenticated user ID set by RequireAuth.
func UserID(c *gin.Context) string {
	if userID, ok := c.Get(ContextUserID); ok {
		if s, ok := userID.(string); ok {
			return s
		}
	}
	return ""
}
