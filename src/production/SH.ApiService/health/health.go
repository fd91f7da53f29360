package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	config "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Config"
)

// HealthChecker provides health check functionality
type HealthChecker struct {
	db *sql.DB
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB) *HealthChecker {
	return &HealthChecker{db: db}
}

// Ping checks if the database connection is healthy
func (h *HealthChecker) Ping(ctx context.Context) error {
	if h.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return h.db.PingContext(ctx)
}

// CheckDatabaseHealth performs a comprehensive database health check
func (h *HealthChecker) CheckDatabaseHealth(ctx context.Context) error {
	if err := h.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}

	return nil
}

// GetHealthStatus returns the current health status in the shape the
// health endpoint serves.
func (h *HealthChecker) GetHealthStatus(ctx context.Context) (map[string]interface{}, bool) {
	status := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.CheckDatabaseHealth(ctx); err != nil {
		status["status"] = "unhealthy"
		status["error"] = err.Error()
		return status, false
	}

	status["status"] = "healthy"
	status["database"] = "connected"
	return status, true
}

// ConnectWithTimeout opens the configured database and verifies it with a
// ping before handing it out.
func ConnectWithTimeout(cfg *config.Config, timeout time.Duration) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	driver := cfg.Database.Driver
	dsn := cfg.GetDatabaseDSN()
	if driver == "sqlite3" {
		// Cascading delete semantics depend on FK enforcement.
		dsn = "file:" + cfg.Database.Path + "?_foreign_keys=on"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s connection: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping %s: %w", driver, err)
	}

	if driver == "sqlite3" {
		// A single sqlite connection avoids SQLITE_BUSY under writes.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.Database.MaxConns)
		db.SetMaxIdleConns(cfg.Database.MinConns)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return db, nil
}

// DatabaseManager handles schema management
type DatabaseManager struct {
	db     *sql.DB
	driver string
}

// NewDatabaseManager creates a new database manager for the given driver
func NewDatabaseManager(db *sql.DB, driver string) *DatabaseManager {
	return &DatabaseManager{db: db, driver: driver}
}

// CreateTables creates the required tables if they don't exist. The DDL is
// the only driver-specific SQL in the system; queries elsewhere stick to
// the shared subset.
func (dm *DatabaseManager) CreateTables(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var queries []string
	if dm.driver == "sqlite3" {
		queries = []string{
			`CREATE TABLE IF NOT EXISTS devices (
				device_id   TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				location    TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				is_active   BOOLEAN NOT NULL DEFAULT 1,
				created_at  TIMESTAMP NOT NULL,
				updated_at  TIMESTAMP NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS readings (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				device_id   TEXT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
				temperature REAL NOT NULL,
				humidity    REAL NOT NULL,
				ts          TIMESTAMP NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON readings (device_id, ts DESC);`,
			`CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings (ts DESC);`,
		}
	} else {
		queries = []string{
			`CREATE TABLE IF NOT EXISTS devices (
				device_id   TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				location    TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				is_active   BOOLEAN NOT NULL DEFAULT true,
				created_at  TIMESTAMPTZ NOT NULL,
				updated_at  TIMESTAMPTZ NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS readings (
				id          BIGSERIAL PRIMARY KEY,
				device_id   TEXT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
				temperature DOUBLE PRECISION NOT NULL,
				humidity    DOUBLE PRECISION NOT NULL,
				ts          TIMESTAMPTZ NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON readings (device_id, ts DESC);`,
			`CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings (ts DESC);`,
		}
	}

	for _, query := range queries {
		if _, err := dm.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (dm *DatabaseManager) Close() error {
	if dm.db != nil {
		return dm.db.Close()
	}
	return nil
}
