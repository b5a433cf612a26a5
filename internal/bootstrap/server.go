package bootstrap

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-mailgate/mailgate/internal/config"
	"github.com/go-mailgate/mailgate/internal/services"
	"github.com/go-mailgate/mailgate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
)

// newGracefulManager creates the shutdown manager
func newGracefulManager() *graceful.Manager {
	return graceful.NewManager()
}

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, srv *http.Server) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})
}

// addStateSweepJob adds the periodic expired-state cleanup job
func addStateSweepJob(m *graceful.Manager, cfg *config.Config, states *services.StateService) {
	if cfg.StateSweepInterval <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.StateSweepInterval)
		defer ticker.Stop()

		// Run sweep immediately on startup
		if _, err := states.Sweep(); err != nil {
			log.Printf("Failed to sweep expired OAuth states: %v", err)
		}

		for {
			select {
			case <-ticker.C:
				if _, err := states.Sweep(); err != nil {
					log.Printf("Failed to sweep expired OAuth states: %v", err)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		log.Println("Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
			return err
		}
		log.Println("Redis connection closed")
		return nil
	})
}

// addCacheCleanupJob adds validation cache cleanup on shutdown
func addCacheCleanupJob(m *graceful.Manager, cacheCloser func() error) {
	if cacheCloser == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := cacheCloser(); err != nil {
			log.Printf("Error closing validation cache: %v", err)
		} else {
			log.Println("Validation cache closed")
		}
		return nil
	})
}

// addStoreShutdownJob adds database shutdown handler
func addStoreShutdownJob(m *graceful.Manager, db *store.Store) {
	m.AddShutdownJob(func() error {
		log.Println("Closing database connection...")
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
			return err
		}
		log.Println("Database connection closed")
		return nil
	})
}
