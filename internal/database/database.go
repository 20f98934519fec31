// Package database provides database connection and migration functionality.
package database

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"evolveedu/internal/config"
	"evolveedu/internal/observability"
	contextutils "evolveedu/internal/utils"

	// Import PostgreSQL driver for database/sql
	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // required for golang-migrate postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // required for golang-migrate file source

	// OpenTelemetry SQL instrumentation
	"go.nhat.io/otelsql"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Manager handles database connections and migrations with proper logging
type Manager struct {
	logger *observability.Logger
}

var (
	otelDriverNameCache string
	otelDriverOnce      sync.Once
	otelDriverErr       error
)

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{
		logger: logger,
	}
}

// DefaultDatabaseConfig returns the default database configuration
func DefaultDatabaseConfig() config.DatabaseConfig {
	cfg := config.DatabaseConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: config.DatabaseConnMaxLifetime,
	}

	// Check for TEST_DATABASE_URL first (for tests)
	if testURL := os.Getenv("TEST_DATABASE_URL"); testURL != "" {
		cfg.URL = testURL
	}

	return cfg
}

// InitDB initializes and returns a database connection with migrations
func (dm *Manager) InitDB(databaseURL string) (result0 *sql.DB, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "InitDB",
		attribute.String("db.name", extractDatabaseName(databaseURL)),
		attribute.String("db.system", "postgresql"),
		attribute.Bool("migrations.enabled", true),
	)
	defer observability.FinishSpan(span, &err)

	cfg := DefaultDatabaseConfig()
	cfg.URL = databaseURL
	return dm.InitDBWithConfig(cfg)
}

// InitDBWithConfig initializes and returns a database connection with migrations and custom config
func (dm *Manager) InitDBWithConfig(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "InitDBWithConfig",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
		attribute.String("db.system", "postgresql"),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
		attribute.String("db.conn_max_lifetime", cfg.ConnMaxLifetime.String()),
	)
	defer observability.FinishSpan(span, &err)

	db, err := dm.InitDBWithoutMigrations(cfg)
	if err != nil {
		return nil, err
	}

	if err := dm.RunMigrations(cfg.URL); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(context.Background(), "Failed to close database connection after migration failure", closeErr)
		}
		return nil, err
	}

	return db, nil
}

// InitDBWithoutMigrations initializes and returns a database connection without running migrations
func (dm *Manager) InitDBWithoutMigrations(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(context.Background(), "InitDBWithoutMigrations",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
	)
	defer observability.FinishSpan(span, &err)

	// Register OpenTelemetry SQL driver once per process and reuse the name
	otelDriverOnce.Do(func() {
		otelDriverNameCache, otelDriverErr = otelsql.Register("postgres",
			otelsql.WithDatabaseName(extractDatabaseName(cfg.URL)),
			otelsql.TraceQueryWithArgs(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.WrapError(otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverNameCache, cfg.URL)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to open database connection")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return nil, contextutils.WrapError(err, "failed to ping database")
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime,
	})

	return db, nil
}

// RunMigrations applies any pending golang-migrate migrations
func (dm *Manager) RunMigrations(databaseURL string) (err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "RunMigrations",
		attribute.String("db.system", "postgresql"),
	)
	defer observability.FinishSpan(span, &err)

	m, err := dm.newMigrator(databaseURL, span)
	if err != nil {
		return err
	}
	defer dm.closeMigrator(m)

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return contextutils.WrapError(err, "golang-migrate up failed")
	}
	if errors.Is(err, migrate.ErrNoChange) {
		dm.logger.Info(context.Background(), "No new migrations to apply")
		return nil
	}

	dm.logger.Info(context.Background(), "Migrations applied successfully")
	return nil
}

// ResetDatabase rolls back every migration and reapplies them. Destructive;
// only the adm CLI calls this.
func (dm *Manager) ResetDatabase(databaseURL string) (err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "ResetDatabase",
		attribute.String("db.system", "postgresql"),
	)
	defer observability.FinishSpan(span, &err)

	m, err := dm.newMigrator(databaseURL, span)
	if err != nil {
		return err
	}
	defer dm.closeMigrator(m)

	if err = m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return contextutils.WrapError(err, "golang-migrate down failed")
	}
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return contextutils.WrapError(err, "golang-migrate up failed")
	}

	dm.logger.Info(context.Background(), "Database reset completed")
	return nil
}

func (dm *Manager) newMigrator(databaseURL string, span interface{ SetAttributes(...attribute.KeyValue) }) (*migrate.Migrate, error) {
	migrationsPath, err := dm.GetMigrationsPath()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("migration.path", migrationsPath))

	if databaseURL == "" {
		return nil, contextutils.ErrorWithContextf("database URL must be set for migrations")
	}

	sourceURL := "file://" + filepath.ToSlash(migrationsPath)
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to initialize golang-migrate")
	}
	return m, nil
}

func (dm *Manager) closeMigrator(m *migrate.Migrate) {
	if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
		dm.logger.Error(context.Background(), "Error closing migrator", errors.Join(sourceErr, dbErr))
	}
}

// GetMigrationsPath finds the migrations directory relative to the project root
func (dm *Manager) GetMigrationsPath() (result0 string, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "GetMigrationsPath",
		attribute.String("migration.dir.name", "migrations"),
	)
	defer observability.FinishSpan(span, &err)

	// Start from the current directory and work up to find the directory
	currentDir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		migrationsPath := filepath.Join(currentDir, "migrations")
		if _, statErr := os.Stat(migrationsPath); statErr == nil {
			span.SetAttributes(attribute.String("migration.found_path", migrationsPath))
			return migrationsPath, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			err = contextutils.ErrorWithContextf("migrations directory not found in any parent directory")
			return "", err
		}
		currentDir = parentDir
	}
}

// extractDatabaseName extracts the database name from a PostgreSQL connection string
func extractDatabaseName(databaseURL string) string {
	if u, err := url.Parse(databaseURL); err == nil && u.Path != "" {
		if dbName := strings.TrimPrefix(u.Path, "/"); dbName != "" {
			return dbName
		}
	}

	// Fallback for connection strings url.Parse cannot handle
	if strings.Contains(databaseURL, "/") {
		parts := strings.Split(databaseURL, "/")
		dbPart := parts[len(parts)-1]
		if idx := strings.Index(dbPart, "?"); idx != -1 {
			return dbPart[:idx]
		}
		return dbPart
	}

	return "evolveedu_db"
}
