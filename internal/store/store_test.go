package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-mailgate/mailgate/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// TestStoreWithSQLite tests store operations with SQLite
func TestStoreWithSQLite(t *testing.T) {
	testBasicOperations(t, "sqlite", nil)
}

// TestStoreWithPostgres tests store operations with PostgreSQL
func TestStoreWithPostgres(t *testing.T) {
	// Skip if running short tests or Docker is not available
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	// Recover from panic if Docker is not available
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping PostgreSQL test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	testBasicOperations(t, "postgres", pgContainer)
}

// createFreshStore creates a new store instance for test isolation
// For SQLite, each call creates a fresh :memory: database
// For PostgreSQL, each call creates a uniquely-named database in the container
func createFreshStore(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) *Store {
	t.Helper()

	var dsn string
	switch driver {
	case "sqlite":
		// SQLite :memory: creates a fresh database for each connection
		dsn = ":memory:"
	case "postgres":
		// Create a unique database name for this subtest using UUID
		dbName := "test_" + uuid.New().String()[:8]

		ctx := context.Background()

		createDBCmd := fmt.Sprintf("CREATE DATABASE %s", dbName)
		_, _, err := pgContainer.Exec(
			ctx,
			[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", createDBCmd},
		)
		require.NoError(t, err)

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432")
		require.NoError(t, err)
		dsn = fmt.Sprintf(
			"host=%s port=%s user=testuser password=testpass dbname=%s sslmode=disable",
			host, port.Port(), dbName,
		)

		t.Cleanup(func() {
			dropDBCmd := fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName)
			_, _, _ = pgContainer.Exec(
				context.Background(),
				[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", dropDBCmd},
			)
		})
	default:
		t.Fatalf("unsupported driver: %s", driver)
	}

	store, err := New(context.Background(), driver, dsn)
	require.NoError(t, err)
	require.NotNil(t, store)

	return store
}

// newTestState builds an OAuth state row with the given hash and lifetime
func newTestState(hash, userID string, expiresIn time.Duration) *models.OAuthState {
	return &models.OAuthState{
		StateHash:   hash,
		StateSalt:   "salt-" + hash,
		StatePrefix: (hash + "00000000")[:8],
		UserID:      userID,
		Provider:    "mailchimp",
		ExpiresAt:   time.Now().Add(expiresIn),
	}
}

// newTestConnection builds a connection row for the given user
func newTestConnection(userID string) *models.Connection {
	return &models.Connection{
		ID:             uuid.New().String(),
		UserID:         userID,
		Provider:       "mailchimp",
		EncryptedToken: "bm9uY2U=:dGFn:Y2lwaGVydGV4dA==",
		Region:         "us21",
		AccountID:      uuid.New().String(),
		AccountName:    "Acme Inc",
		Email:          "owner@acme.example",
		IsActive:       true,
	}
}

// testBasicOperations tests basic CRUD operations on the store
// Each subtest creates a fresh store instance for isolation
func testBasicOperations(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) {
	t.Run("CreateAndFindOAuthState", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		state := newTestState("hash0001", uuid.New().String(), 10*time.Minute)
		err := store.CreateOAuthState(state)
		require.NoError(t, err)
		require.NotZero(t, state.ID)

		candidates, err := store.FindOAuthStatesByPrefix(state.StatePrefix)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, state.StateHash, candidates[0].StateHash)
		assert.Equal(t, state.UserID, candidates[0].UserID)
	})

	t.Run("FindOAuthStatesExcludesExpired", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		expired := newTestState("hash0002", uuid.New().String(), -1*time.Minute)
		require.NoError(t, store.CreateOAuthState(expired))

		candidates, err := store.FindOAuthStatesByPrefix(expired.StatePrefix)
		require.NoError(t, err)
		assert.Len(t, candidates, 0, "expired states should not be returned")
	})

	t.Run("ConsumeOAuthStateOnce", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		state := newTestState("hash0003", uuid.New().String(), 10*time.Minute)
		require.NoError(t, store.CreateOAuthState(state))

		err := store.ConsumeOAuthState(state.ID)
		require.NoError(t, err)

		// Second consume must fail: the row is gone
		err = store.ConsumeOAuthState(state.ID)
		assert.ErrorIs(t, err, ErrStateConsumed)
	})

	t.Run("ConsumeOAuthStateExpired", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		state := newTestState("hash0004", uuid.New().String(), -1*time.Minute)
		require.NoError(t, store.CreateOAuthState(state))

		err := store.ConsumeOAuthState(state.ID)
		assert.ErrorIs(t, err, ErrStateConsumed)
	})

	t.Run("DeleteExpiredOAuthStates", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		require.NoError(t, store.CreateOAuthState(newTestState("hash0005", uuid.New().String(), -1*time.Hour)))
		require.NoError(t, store.CreateOAuthState(newTestState("hash0006", uuid.New().String(), -1*time.Hour)))
		live := newTestState("hash0007", uuid.New().String(), 10*time.Minute)
		require.NoError(t, store.CreateOAuthState(live))

		removed, err := store.DeleteExpiredOAuthStates()
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		candidates, err := store.FindOAuthStatesByPrefix(live.StatePrefix)
		require.NoError(t, err)
		assert.Len(t, candidates, 1, "live state should survive the sweep")
	})

	t.Run("UpsertAndGetConnection", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		conn := newTestConnection(uuid.New().String())
		require.NoError(t, store.UpsertConnection(conn))

		retrieved, err := store.GetConnection(conn.UserID, conn.Provider)
		require.NoError(t, err)
		assert.Equal(t, conn.ID, retrieved.ID)
		assert.Equal(t, conn.EncryptedToken, retrieved.EncryptedToken)
		assert.Equal(t, conn.Region, retrieved.Region)
		assert.True(t, retrieved.IsActive)
	})

	t.Run("UpsertConnectionReplacesExisting", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		userID := uuid.New().String()
		first := newTestConnection(userID)
		require.NoError(t, store.UpsertConnection(first))

		second := newTestConnection(userID)
		second.EncryptedToken = "bmV3:dGFn:dG9rZW4="
		second.Region = "us6"
		second.IsActive = true
		require.NoError(t, store.UpsertConnection(second))

		retrieved, err := store.GetConnection(userID, "mailchimp")
		require.NoError(t, err)
		// Re-connecting keeps one row per user and provider
		assert.Equal(t, first.ID, retrieved.ID)
		assert.Equal(t, "bmV3:dGFn:dG9rZW4=", retrieved.EncryptedToken)
		assert.Equal(t, "us6", retrieved.Region)
	})

	t.Run("GetConnectionNotFound", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		_, err := store.GetConnection(uuid.New().String(), "mailchimp")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("MarkConnectionInactive", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		conn := newTestConnection(uuid.New().String())
		require.NoError(t, store.UpsertConnection(conn))

		require.NoError(t, store.MarkConnectionInactive(conn.ID))

		retrieved, err := store.GetConnection(conn.UserID, conn.Provider)
		require.NoError(t, err)
		assert.False(t, retrieved.IsActive)
	})

	t.Run("TouchConnectionValidated", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		conn := newTestConnection(uuid.New().String())
		require.NoError(t, store.UpsertConnection(conn))

		at := time.Now().Truncate(time.Second)
		require.NoError(t, store.TouchConnectionValidated(conn.ID, at))

		retrieved, err := store.GetConnection(conn.UserID, conn.Provider)
		require.NoError(t, err)
		require.NotNil(t, retrieved.LastValidatedAt)
		assert.WithinDuration(t, at, *retrieved.LastValidatedAt, time.Second)
	})

	t.Run("DeactivateConnection", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		conn := newTestConnection(uuid.New().String())
		require.NoError(t, store.UpsertConnection(conn))

		require.NoError(t, store.DeactivateConnection(conn.UserID, conn.Provider))

		retrieved, err := store.GetConnection(conn.UserID, conn.Provider)
		require.NoError(t, err)
		assert.False(t, retrieved.IsActive)

		err = store.DeactivateConnection(uuid.New().String(), "mailchimp")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("DeleteConnection", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		conn := newTestConnection(uuid.New().String())
		require.NoError(t, store.UpsertConnection(conn))

		require.NoError(t, store.DeleteConnection(conn.UserID, conn.Provider))

		_, err := store.GetConnection(conn.UserID, conn.Provider)
		assert.ErrorIs(t, err, ErrRecordNotFound)

		err = store.DeleteConnection(conn.UserID, conn.Provider)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("HealthCheck", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		err := store.Health()
		assert.NoError(t, err)
	})
}

// TestConsumeOAuthStateConcurrent verifies that exactly one of N concurrent
// consumers wins when racing for the same state row
func TestConsumeOAuthStateConcurrent(t *testing.T) {
	store, err := New(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)

	// Pin the pool to one connection so every goroutine sees the same
	// in-memory database and writes serialize through it
	sqlDB, err := store.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	state := newTestState("racehash", uuid.New().String(), 10*time.Minute)
	require.NoError(t, store.CreateOAuthState(state))

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.ConsumeOAuthState(state.ID)
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			assert.ErrorIs(t, err, ErrStateConsumed)
			losses++
		}
	}
	assert.Equal(t, 1, wins, "exactly one consumer should win")
	assert.Equal(t, workers-1, losses)
}

// TestDriverFactory tests the driver factory pattern
func TestDriverFactory(t *testing.T) {
	tests := []struct {
		name        string
		driver      string
		dsn         string
		expectError bool
	}{
		{
			name:        "SQLite valid",
			driver:      "sqlite",
			dsn:         ":memory:",
			expectError: false,
		},
		{
			name:        "Unsupported driver",
			driver:      "mysql",
			dsn:         "user:pass@tcp(localhost:3306)/dbname",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialector, err := GetDialector(tt.driver, tt.dsn)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, dialector)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, dialector)
			}
		})
	}
}

// TestRegisterDriver tests registering custom drivers
func TestRegisterDriver(t *testing.T) {
	customDriverCalled := false
	RegisterDriver("custom", func(dsn string) gorm.Dialector {
		customDriverCalled = true
		return nil
	})

	dialector, err := GetDialector("custom", "test-dsn")
	assert.NoError(t, err)
	assert.True(t, customDriverCalled)
	assert.Nil(t, dialector) // Our mock returns nil
}
