package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-mailgate/mailgate/internal/config"
	"github.com/go-mailgate/mailgate/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const redisConnTimeout = 5 * time.Second

// initializeRateLimitRedisClient initializes the go-redis client for rate
// limiting. Returns nil if rate limiting is disabled or using memory store.
// Note: rate limiting must use go-redis because ulule/limiter depends on
// go-redis types.
func initializeRateLimitRedisClient(
	ctx context.Context,
	cfg *config.Config,
) (*redis.Client, error) {
	if !cfg.EnableRateLimit {
		return nil, nil //nolint:nilnil // redis client not needed in this configuration
	}
	if cfg.RateLimitStore != string(middleware.RateLimitStoreRedis) {
		return nil, nil //nolint:nilnil // redis client not needed in this configuration
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, redisConnTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	log.Printf(
		"Rate limiting Redis client initialized (address: %s, db: %d)",
		cfg.RedisAddr, cfg.RedisDB,
	)
	return client, nil
}
