package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-mailgate/mailgate/internal/crypto"

	"github.com/joho/godotenv"
)

// Validation cache backend constants
const (
	CacheTypeMemory     = "memory"
	CacheTypeRedis      = "redis"
	CacheTypeRedisAside = "redis-aside"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	IsProduction bool

	// Dashboard redirect target for OAuth callbacks
	DashboardURL string
	SettingsPath string

	// Session settings
	SessionSecret string
	SessionMaxAge time.Duration

	// JWT settings (Bearer auth for API callers)
	JWTSecret string

	// Token encryption
	TokenEncryptionKey string // base64 or raw 32-byte AES key

	// Mailchimp OAuth application
	MailchimpClientID     string
	MailchimpClientSecret string
	MailchimpRedirectURL  string

	// OAuth flow settings
	OAuthStateTTL time.Duration
	OAuthTimeout  time.Duration

	// Connection validation
	ValidationTTL       time.Duration
	ValidationCacheType string // "memory", "redis", or "redis-aside"

	// Redis (validation cache and rate limiting)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)

	// Metrics
	MetricsEnabled bool
	MetricsToken   string // optional bearer token guarding /metrics

	// Rate limiting
	EnableRateLimit    bool
	RateLimitPerMinute int
	RateLimitStore     string // "memory" or "redis"

	// Background jobs
	StateSweepInterval time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Determine database driver and DSN
	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "mailgate.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		IsProduction: getEnvBool("IS_PRODUCTION", false),

		DashboardURL: getEnv("DASHBOARD_URL", "http://localhost:3000"),
		SettingsPath: getEnv("SETTINGS_PATH", "/settings"),

		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge: getEnvDuration("SESSION_MAX_AGE", 24*time.Hour),

		JWTSecret: getEnv("JWT_SECRET", "your-256-bit-secret-change-in-production"),

		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		MailchimpClientID:     getEnv("MAILCHIMP_CLIENT_ID", ""),
		MailchimpClientSecret: getEnv("MAILCHIMP_CLIENT_SECRET", ""),
		MailchimpRedirectURL:  getEnv("MAILCHIMP_REDIRECT_URL", ""),

		OAuthStateTTL: getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute),
		OAuthTimeout:  getEnvDuration("OAUTH_TIMEOUT", 30*time.Second),

		ValidationTTL:       getEnvDuration("VALIDATION_TTL", time.Hour),
		ValidationCacheType: getEnv("VALIDATION_CACHE_TYPE", CacheTypeMemory),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),

		EnableRateLimit:    getEnvBool("ENABLE_RATE_LIMIT", false),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitStore:     getEnv("RATE_LIMIT_STORE", "memory"),

		StateSweepInterval: getEnvDuration("STATE_SWEEP_INTERVAL", time.Hour),
	}
}

// Validate checks the settings that cannot fall back to a default.
func (c *Config) Validate() error {
	if c.TokenEncryptionKey == "" {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY is required")
	}
	if _, err := crypto.ParseKey(c.TokenEncryptionKey); err != nil {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY is invalid: %w", err)
	}

	if c.MailchimpClientID == "" || c.MailchimpClientSecret == "" {
		return fmt.Errorf("MAILCHIMP_CLIENT_ID and MAILCHIMP_CLIENT_SECRET are required")
	}
	if c.MailchimpRedirectURL == "" {
		return fmt.Errorf("MAILCHIMP_REDIRECT_URL is required")
	}

	if c.DatabaseDriver != "sqlite" && c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for driver %q", c.DatabaseDriver)
	}

	switch c.ValidationCacheType {
	case CacheTypeMemory, CacheTypeRedis, CacheTypeRedisAside:
	default:
		return fmt.Errorf("unknown VALIDATION_CACHE_TYPE %q", c.ValidationCacheType)
	}

	if c.IsProduction {
		if c.SessionSecret == "session-secret-change-in-production" {
			return fmt.Errorf("SESSION_SECRET must be set in production")
		}
		if c.JWTSecret == "your-256-bit-secret-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
