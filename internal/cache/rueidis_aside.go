package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-mailgate/mailgate/internal/core"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidisaside"
)

// Compile-time interface check.
var _ core.Cache[struct{}] = (*RueidisAsideCache[struct{}])(nil)

// RueidisAsideCache implements Cache interface using rueidisaside for the
// cache-aside pattern. Uses rueidis' automatic client-side caching with RESP3
// protocol for cache invalidation. Suitable for high-load multi-instance
// deployments (5+ pods).
type RueidisAsideCache[T any] struct {
	client    rueidisaside.CacheAsideClient
	keyPrefix string
	clientTTL time.Duration
}

// NewRueidisAsideCache creates a new Redis cache with client-side caching using rueidisaside.
// clientTTL is the local cache TTL (e.g., 30s). Redis will automatically invalidate
// the local cache when keys change.
func NewRueidisAsideCache[T any](
	addr, password string,
	db int,
	keyPrefix string,
	clientTTL time.Duration,
) (*RueidisAsideCache[T], error) {
	client, err := rueidisaside.NewClient(rueidisaside.ClientOption{
		ClientOption: rueidis.ClientOption{
			InitAddress:  []string{addr},
			Password:     password,
			SelectDB:     db,
			DisableCache: false, // Enable client-side caching
			// Client-side cache configuration
			CacheSizeEachConn: 128 * 1024 * 1024, // 128MB per connection
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rueidisaside client: %w", err)
	}

	return &RueidisAsideCache[T]{
		client:    client,
		keyPrefix: keyPrefix,
		clientTTL: clientTTL,
	}, nil
}

// Get retrieves a value from Redis with client-side caching.
// For rueidisaside, a miss is surfaced as ErrCacheMiss so callers can decide
// whether to fetch and Set, keeping interface compatibility.
func (r *RueidisAsideCache[T]) Get(ctx context.Context, key string) (T, error) {
	fullKey := r.keyPrefix + key
	var zero T

	val, err := r.client.Get(
		ctx,
		r.clientTTL,
		fullKey,
		func(ctx context.Context, key string) (string, error) {
			// Return the sentinel so the caller fetches from source and calls Set
			return "", ErrCacheMiss
		},
	)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return zero, ErrCacheMiss
		}
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	if val == "" {
		return zero, ErrCacheMiss
	}

	var value T
	if err := json.Unmarshal([]byte(val), &value); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	return value, nil
}

// GetWithFetch retrieves a value using rueidisaside's cache-aside pattern.
// The fetchFunc is called exactly once on cache miss even under concurrent
// load, and the result is stored in cache automatically.
func (r *RueidisAsideCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	fullKey := r.keyPrefix + key
	var zero T

	val, err := r.client.Get(
		ctx,
		ttl,
		fullKey,
		func(ctx context.Context, key string) (string, error) {
			value, err := fetchFunc(ctx, key)
			if err != nil {
				return "", err
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			return string(encoded), nil
		},
	)
	if err != nil {
		return zero, fmt.Errorf("failed to get with fetch: %w", err)
	}

	var value T
	if err := json.Unmarshal([]byte(val), &value); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	return value, nil
}

// Set stores a value in Redis with TTL.
func (r *RueidisAsideCache[T]) Set(
	ctx context.Context,
	key string,
	value T,
	ttl time.Duration,
) error {
	fullKey := r.keyPrefix + key

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	// Use standard SET command via the underlying client
	cmd := r.client.Client().B().Set().
		Key(fullKey).
		Value(string(encoded)).
		Ex(ttl).
		Build()

	if err := r.client.Client().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	return nil
}

// Delete removes a key from Redis.
func (r *RueidisAsideCache[T]) Delete(ctx context.Context, key string) error {
	fullKey := r.keyPrefix + key

	cmd := r.client.Client().B().Del().Key(fullKey).Build()
	if err := r.client.Client().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	return nil
}

// Clear removes every key under this cache's prefix using SCAN.
func (r *RueidisAsideCache[T]) Clear(ctx context.Context) error {
	client := r.client.Client()

	var cursor uint64
	for {
		cmd := client.B().Scan().
			Cursor(cursor).
			Match(r.keyPrefix + "*").
			Count(100).
			Build()

		resp := client.Do(ctx, cmd)
		if err := resp.Error(); err != nil {
			return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}

		entry, err := resp.AsScanEntry()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}

		if len(entry.Elements) > 0 {
			del := client.B().Del().Key(entry.Elements...).Build()
			if err := client.Do(ctx, del).Error(); err != nil {
				return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
			}
		}

		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// Close closes the Redis connection.
func (r *RueidisAsideCache[T]) Close() error {
	r.client.Close()
	return nil
}

// Health checks if Redis is reachable.
func (r *RueidisAsideCache[T]) Health(ctx context.Context) error {
	cmd := r.client.Client().B().Ping().Build()
	if err := r.client.Client().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
