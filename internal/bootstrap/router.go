package bootstrap

import (
	"log"
	"net/http"

	"github.com/go-mailgate/mailgate/internal/config"
	"github.com/go-mailgate/mailgate/internal/core"
	"github.com/go-mailgate/mailgate/internal/metrics"
	"github.com/go-mailgate/mailgate/internal/middleware"
	"github.com/go-mailgate/mailgate/internal/store"
	"github.com/go-mailgate/mailgate/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db *store.Store,
	h handlerSet,
	recorder core.Recorder,
	rateLimitRedisClient *redis.Client,
) *gin.Engine {
	setupGinMode(cfg)
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(util.IPMiddleware())

	setupSessionMiddleware(r, cfg)

	// Health check endpoint
	r.GET("/healthz", createHealthCheckHandler(db))

	setupMetricsEndpoint(r, cfg)

	rateLimiters := setupRateLimiting(cfg, rateLimitRedisClient)

	setupAllRoutes(r, cfg, h, rateLimiters)

	logServerStartup(cfg)

	return r
}

// setupSessionMiddleware configures session handling middleware
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("mailgate_session", sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuth(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	h handlerSet,
	rateLimiters rateLimitMiddlewares,
) {
	// Session bootstrap for the dashboard (Bearer JWT in, cookie out)
	r.POST("/auth/session", rateLimiters.session, h.session.Create)
	r.POST("/auth/logout", h.session.Destroy)

	// OAuth callback. Mailchimp redirects a bare browser here, so the route
	// relies on the cookie session alone and stays outside RequireAuth.
	r.GET("/mailchimp/callback", h.oauth.Callback)

	// Connection lifecycle (session cookie or Bearer JWT)
	protected := r.Group("", middleware.RequireAuth(cfg.JWTSecret))
	{
		protected.GET("/mailchimp/connect", rateLimiters.connect, h.oauth.Connect)
		protected.GET("/mailchimp/connection", h.oauth.Status)
		protected.DELETE("/mailchimp/connection", h.oauth.Disconnect)
	}

	// Validated API proxy
	api := r.Group("/api/mailchimp", middleware.RequireAuth(cfg.JWTSecret), rateLimiters.api)
	{
		api.GET("/ping", h.api.Ping)
		api.GET("/campaigns", h.api.Campaigns)
		api.GET("/lists", h.api.Lists)
		api.GET("/reports", h.api.Reports)
	}
}

// createHealthCheckHandler creates health check endpoint handler
func createHealthCheckHandler(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch err := db.Health(); err {
		case nil:
			c.JSON(http.StatusOK, gin.H{
				"status":   "healthy",
				"database": "connected",
			})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
			})
		}
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	gin.SetMode(ginModeMap[cfg.IsProduction])
	log.Printf("Gin mode: %s", ginModeLogMessage[cfg.IsProduction])
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

var ginModeLogMessage = map[bool]string{
	true:  "Release (production)",
	false: "Debug (development)",
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	log.Printf("Mailchimp connection gateway starting on %s", cfg.ServerAddr)
	log.Printf("OAuth callback URL: %s", cfg.MailchimpRedirectURL)
	log.Printf("Dashboard redirect target: %s%s", cfg.DashboardURL, cfg.SettingsPath)
}
