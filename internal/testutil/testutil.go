// Package testutil starts throwaway backing services and builds test data.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/vault"
	"github.com/testcontainers/testcontainers-go/wait"

	"chandabaz/internal/config"
	"chandabaz/internal/database"
)

// VaultToken is the root token of the test Vault server
const VaultToken = "test-token"

// RequireIntegration skips the test unless TEST_INTEGRATION is set
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}
}

// SetupPostgres starts PostgreSQL, applies the embedded migrations and
// registers container cleanup.
func SetupPostgres(t *testing.T) *database.Database {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18",
		postgres.WithDatabase("chandabaz_test"),
		postgres.WithUsername("chandabaz_test"),
		postgres.WithPassword("chandabaz_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := database.Open(ctx, connStr, &config.DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 2, ConnMaxLifetime: time.Minute})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx, ""); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// ResetPostgres empties every application table
func ResetPostgres(t *testing.T, db *sql.DB) {
	t.Helper()
	if _, err := db.Exec(`TRUNCATE comments, posts, audit_logs, users CASCADE`); err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}

// SetupMongo starts MongoDB and returns a driver config pointing at a fresh database
func SetupMongo(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate MongoDB container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get MongoDB connection string: %v", err)
	}

	return &config.DatabaseConfig{
		Driver:        config.DriverMongo,
		MongoURI:      uri,
		MongoDatabase: fmt.Sprintf("chandabaz_test_%d", time.Now().UnixNano()),
		Timeout:       30 * time.Second,
	}
}

// SetupVault starts a dev-mode Vault server and returns its config
func SetupVault(t *testing.T) *config.VaultConfig {
	t.Helper()
	ctx := context.Background()

	container, err := vault.Run(ctx,
		"hashicorp/vault:1.15",
		vault.WithToken(VaultToken),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Vault server started!").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start Vault container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate Vault container: %v", err)
		}
	})

	addr, err := container.HttpHostAddress(ctx)
	if err != nil {
		t.Fatalf("Failed to get Vault address: %v", err)
	}

	return &config.VaultConfig{
		Enabled: true,
		Address: addr,
		Token:   VaultToken,
		KVMount: "secret",
		Path:    "chandabaz/jwt",
		Field:   "signing_key",
	}
}
