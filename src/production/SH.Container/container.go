package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.ApiService/health"
	config "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Config"
	logger "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Logger"
)

// Container manages dependencies and their lifecycle for the API service
type Container struct {
	config *config.Config
	logger *logger.Logger
	db     *sql.DB

	healthChecker   *health.HealthChecker
	databaseManager *health.DatabaseManager

	// Mutex for thread-safe access
	mu sync.RWMutex

	// Cleanup functions
	cleanupFuncs []func() error
}

// BridgeContainer manages dependencies for the MQTT bridge service
type BridgeContainer struct {
	config *config.BridgeConfig
	logger *logger.Logger
}

// NewApiContainer creates a new dependency injection container for the
// API service
func NewApiContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewLogger(&cfg.Logging)

	c := &Container{
		config: cfg,
		logger: log,
	}
	c.registerCleanup()

	return c, nil
}

// NewBridgeContainer creates a new container for the MQTT bridge service
func NewBridgeContainer() (*BridgeContainer, error) {
	cfg, err := config.LoadBridgeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load bridge configuration: %w", err)
	}

	log := logger.NewLogger(&cfg.Logging)

	return &BridgeContainer{
		config: cfg,
		logger: log,
	}, nil
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetConfig returns the bridge configuration
func (c *BridgeContainer) GetConfig() *config.BridgeConfig {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetLogger returns the logger
func (c *BridgeContainer) GetLogger() *logger.Logger {
	return c.logger
}

// GetDatabase returns the database connection, opening it lazily
func (c *Container) GetDatabase() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		db, err := health.ConnectWithTimeout(c.config, 20*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
	}

	return c.db, nil
}

// GetHealthChecker returns the health checker
func (c *Container) GetHealthChecker() (*health.HealthChecker, error) {
	c.mu.Lock()
	if c.healthChecker != nil {
		c.mu.Unlock()
		return c.healthChecker, nil
	}
	c.mu.Unlock()

	// Get database without holding the lock to avoid deadlock
	db, err := c.GetDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for health checker: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthChecker == nil {
		c.healthChecker = health.NewHealthChecker(db)
	}

	return c.healthChecker, nil
}

// GetDatabaseManager returns the database manager
func (c *Container) GetDatabaseManager() (*health.DatabaseManager, error) {
	c.mu.Lock()
	if c.databaseManager != nil {
		c.mu.Unlock()
		return c.databaseManager, nil
	}
	c.mu.Unlock()

	db, err := c.GetDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for database manager: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.databaseManager == nil {
		c.databaseManager = health.NewDatabaseManager(db, c.config.Database.Driver)
	}

	return c.databaseManager, nil
}

// InitializeDatabase initializes the database and creates tables
func (c *Container) InitializeDatabase(ctx context.Context) error {
	dbManager, err := c.GetDatabaseManager()
	if err != nil {
		return fmt.Errorf("failed to get database manager: %w", err)
	}

	if err := dbManager.CreateTables(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	c.logger.Info("Database initialized successfully")
	return nil
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	// Execute cleanup functions in reverse order
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info("Container shutdown complete")
	return nil
}

// Shutdown gracefully shuts down the bridge container
func (c *BridgeContainer) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down bridge container...")
	return nil
}

// registerCleanup registers cleanup functions
func (c *Container) registerCleanup() {
	c.cleanupFuncs = append(c.cleanupFuncs, func() error {
		if c.db != nil {
			return c.db.Close()
		}
		return nil
	})
}

// AddCleanupFunc adds a cleanup function
func (c *Container) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
