package bootstrap

import (
	"log"
	"time"

	"github.com/go-mailgate/mailgate/internal/config"
	"github.com/go-mailgate/mailgate/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// rateLimitMiddlewares holds rate limiting middlewares for different endpoints
type rateLimitMiddlewares struct {
	connect gin.HandlerFunc
	session gin.HandlerFunc
	api     gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on configuration.
// Accepts an optional go-redis client.
func setupRateLimiting(cfg *config.Config, redisClient *redis.Client) rateLimitMiddlewares {
	noOpMiddleware := func(c *gin.Context) { c.Next() }
	disabledLimiters := rateLimitMiddlewares{
		connect: noOpMiddleware,
		session: noOpMiddleware,
		api:     noOpMiddleware,
	}

	if !cfg.EnableRateLimit {
		return disabledLimiters
	}
	return createRateLimiters(cfg, redisClient)
}

// createRateLimiters creates rate limiting middlewares for all endpoints
func createRateLimiters(cfg *config.Config, redisClient *redis.Client) rateLimitMiddlewares {
	log.Printf("Rate limiting enabled (store: %s)", cfg.RateLimitStore)

	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)
	if storeType == middleware.RateLimitStoreRedis {
		log.Printf("Using shared Redis client for rate limiting")
	} else {
		log.Printf("In-memory rate limiting configured (single instance only)")
	}

	createLimiter := func(requestsPerMinute int, endpoint string) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			StoreType:         storeType,
			RedisClient:       redisClient,
			CleanupInterval:   5 * time.Minute,
		})
		if err != nil {
			log.Fatalf("Failed to create rate limiter for %s: %v", endpoint, err)
		}
		return limiter
	}

	// OAuth initiation is throttled harder than the read-mostly proxy
	connectLimit := cfg.RateLimitPerMinute / 4
	if connectLimit < 1 {
		connectLimit = 1
	}

	return rateLimitMiddlewares{
		connect: createLimiter(connectLimit, "/mailchimp/connect"),
		session: createLimiter(cfg.RateLimitPerMinute, "/auth/session"),
		api:     createLimiter(cfg.RateLimitPerMinute, "/api/mailchimp"),
	}
}
