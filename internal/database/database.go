// Package database opens the PostgreSQL connection pool and applies schema migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"time"

	_ "github.com/lib/pq"

	"chandabaz/internal/config"
	"chandabaz/internal/repository"
)

// Database wraps the SQL database connection
type Database struct {
	DB *sql.DB
}

// DSN builds the lib/pq connection string
func DSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// New creates a new database connection
func New(ctx context.Context, cfg *config.DatabaseConfig) (*Database, error) {
	return Open(ctx, DSN(cfg), cfg)
}

// Open connects with an explicit DSN, applying the pool settings from cfg
func Open(ctx context.Context, dsn string, cfg *config.DatabaseConfig) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, timeoutOr(cfg.Timeout, 10*time.Second))
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// HealthCheck performs a health check on the database
func (d *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Migrate applies pending migrations. An empty path uses the embedded set.
func (d *Database) Migrate(ctx context.Context, path string) error {
	var source fs.FS = os.DirFS(path)
	if path == "" {
		sub, err := fs.Sub(embeddedMigrations, "migrations")
		if err != nil {
			return fmt.Errorf("failed to open embedded migrations: %w", err)
		}
		source = sub
	}
	return NewMigrationExecutor(d.DB).RunMigrations(ctx, source)
}

// Stores wires the PostgreSQL repositories behind the store interfaces
func (d *Database) Stores() *repository.Stores {
	return &repository.Stores{
		Users:    repository.NewUserRepository(d.DB),
		Posts:    repository.NewPostRepository(d.DB),
		Comments: repository.NewCommentRepository(d.DB),
		Audit:    repository.NewAuditRepository(d.DB),
		Ping:     d.HealthCheck,
		Close: func(context.Context) error {
			return d.Close()
		},
	}
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
