// Package app provides the dependency injection container for assembling
// application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/sshdeck/sshdeck/internal/config"
	cryptoService "github.com/sshdeck/sshdeck/internal/crypto/service"
	cryptoUsecase "github.com/sshdeck/sshdeck/internal/crypto/usecase"
	"github.com/sshdeck/sshdeck/internal/database"
	"github.com/sshdeck/sshdeck/internal/metrics"
	"github.com/sshdeck/sshdeck/internal/saver"
)

// Container holds all application dependencies and provides methods to
// access them. It follows the lazy initialization pattern - components are
// created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	systemKeys      *cryptoService.SystemKeyService
	metricsProvider *metrics.Provider
	saveCoordinator *saver.Coordinator
	vault           *cryptoUsecase.DekVault

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	txManagerInit       sync.Once
	systemKeysInit      sync.Once
	metricsProviderInit sync.Once
	saveCoordinatorInit sync.Once
	vaultInit           sync.Once
	initErrors          map[string]error

	// Bounded contexts (initialized in di_auth.go and di_hosts.go)
	auth  authComponents
	hosts hostsComponents
	web   webComponents

	// shuttingDown flips the readiness probe once Shutdown starts.
	shuttingDown chan struct{}
	shutdownOnce sync.Once
}

// NewContainer creates a new dependency injection container with the
// provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:       cfg,
		initErrors:   make(map[string]error),
		shuttingDown: make(chan struct{}),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// ShuttingDown is closed once Shutdown begins.
func (c *Container) ShuttingDown() <-chan struct{} {
	return c.shuttingDown
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in
// configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the hot database. On first access the database is opened,
// restored from the snapshot if one exists, and migrated.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := c.initDB()
		if err != nil {
			c.initErrors["db"] = err
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["txManager"] = fmt.Errorf("failed to get database for tx manager: %w", err)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// SystemKeys returns the system key manager, loading or creating the root
// key file on first access. With KMS_KEY_URI set the file is sealed through
// the configured keeper.
func (c *Container) SystemKeys() (*cryptoService.SystemKeyService, error) {
	c.systemKeysInit.Do(func() {
		keys, err := c.initSystemKeys()
		if err != nil {
			c.initErrors["systemKeys"] = err
			return
		}
		c.systemKeys = keys
	})
	if storedErr, exists := c.initErrors["systemKeys"]; exists {
		return nil, storedErr
	}
	return c.systemKeys, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider, or nil when
// metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// SaveCoordinator returns the snapshot save coordinator.
func (c *Container) SaveCoordinator() (*saver.Coordinator, error) {
	c.saveCoordinatorInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["saveCoordinator"] = fmt.Errorf("failed to get database for save coordinator: %w", err)
			return
		}
		c.saveCoordinator = saver.New(
			db,
			c.config.SnapshotPath(),
			c.config.SaveQuiet,
			c.config.SaveMaxDelay,
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["saveCoordinator"]; exists {
		return nil, storedErr
	}
	return c.saveCoordinator, nil
}

// Vault returns the in-memory data key vault. The session store's residency
// callback is wired when the session use case initializes.
func (c *Container) Vault() *cryptoUsecase.DekVault {
	c.vaultInit.Do(func() {
		c.vault = cryptoUsecase.NewDekVault(c.config.DekIdleEvict, nil, c.Logger())
	})
	return c.vault
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() { close(c.shuttingDown) })

	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.web.httpServer != nil {
		if err := c.web.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.web.metricsServer != nil {
		if err := c.web.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.saveCoordinator != nil {
		c.saveCoordinator.Close()
		if err := c.saveCoordinator.Flush(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("final snapshot flush: %w", err))
		}
	}

	if c.vault != nil {
		c.vault.Close()
	}

	if c.systemKeys != nil {
		c.systemKeys.Close()
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log
// level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB opens the hot database, restoring the snapshot when present, and
// applies pending migrations.
func (c *Container) initDB() (*sql.DB, error) {
	if err := os.MkdirAll(c.config.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	snapshotPath := c.config.SnapshotPath()
	if _, err := os.Stat(snapshotPath); err != nil {
		// First boot: no snapshot to restore.
		snapshotPath = ""
	}

	db, err := database.Connect(database.Config{SnapshotPath: snapshotPath})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// initSystemKeys loads the root secret, sealed with the configured KMS
// keeper when KMS_KEY_URI is set.
func (c *Container) initSystemKeys() (*cryptoService.SystemKeyService, error) {
	if err := os.MkdirAll(c.config.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var keeper cryptoService.KMSKeeper
	if c.config.KMSKeyURI != "" {
		kms := cryptoService.NewKMSService()
		opened, err := kms.OpenKeeper(context.Background(), c.config.KMSKeyURI)
		if err != nil {
			return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
		}
		keeper = opened
	}

	keys, err := cryptoService.LoadSystemKeys(context.Background(), c.config.SystemKeyPath(), keeper)
	if err != nil {
		return nil, fmt.Errorf("failed to load system keys: %w", err)
	}

	return keys, nil
}
