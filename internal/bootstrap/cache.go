package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-mailgate/mailgate/internal/cache"
	"github.com/go-mailgate/mailgate/internal/config"
	"github.com/go-mailgate/mailgate/internal/core"
	"github.com/go-mailgate/mailgate/internal/metrics"
	"github.com/go-mailgate/mailgate/internal/services"
)

const (
	cacheInitTimeout = 10 * time.Second

	validationKeyPrefix = "mailgate:validation:"

	// Client-side cache settings for the redis-aside backend
	asideClientTTL = 10 * time.Second
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) core.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}
	return recorder
}

// initializeValidationCache builds the validation result cache based on
// configuration. The closer is nil-safe for the memory backend.
func initializeValidationCache(
	ctx context.Context,
	cfg *config.Config,
) (core.Cache[services.ValidationResult], func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, cacheInitTimeout)
	defer cancel()

	switch cfg.ValidationCacheType {
	case config.CacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache[services.ValidationResult](
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			validationKeyPrefix,
			asideClientTTL,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis-aside validation cache: %w", err)
		}
		log.Printf(
			"Validation cache: redis-aside (addr=%s, db=%d, client_ttl=%s)",
			cfg.RedisAddr, cfg.RedisDB, asideClientTTL,
		)
		return c, c.Close, nil

	case config.CacheTypeRedis:
		c, err := cache.NewRueidisCache[services.ValidationResult](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			validationKeyPrefix,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis validation cache: %w", err)
		}
		log.Printf("Validation cache: redis (addr=%s, db=%d)", cfg.RedisAddr, cfg.RedisDB)
		return c, c.Close, nil

	default: // memory
		c := cache.NewMemoryCache[services.ValidationResult]()
		log.Println("Validation cache: memory (single instance only)")
		return c, c.Close, nil
	}
}
