// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/time/rate"

	"github.com/cadetops/mailroom/internal/config"
	"github.com/cadetops/mailroom/internal/database"
	"github.com/cadetops/mailroom/internal/http"
	"github.com/cadetops/mailroom/internal/mailer"
	"github.com/cadetops/mailroom/internal/mailqueue/domain"
	mailqueueHTTP "github.com/cadetops/mailroom/internal/mailqueue/http"
	"github.com/cadetops/mailroom/internal/mailqueue/repository"
	mailqueueUsecase "github.com/cadetops/mailroom/internal/mailqueue/usecase"
	"github.com/cadetops/mailroom/internal/metrics"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	sendLimiter     *rate.Limiter
	transport       mailqueueUsecase.Transport

	// Managers
	txManager database.TxManager

	// Repositories
	jobRepo    mailqueueUsecase.EmailJobRepository
	healthRepo mailqueueUsecase.HealthSnapshotRepository
	logRepo    mailqueueUsecase.ProcessingLogRepository

	// Use Cases
	queueUseCase    mailqueueUsecase.QueueService
	dispatchUseCase mailqueueUsecase.BatchDispatcher
	reclaimUseCase  mailqueueUsecase.StuckReclaimer
	healthUseCase   mailqueueUsecase.HealthChecker

	// Servers and Workers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	sendLimiterInit     sync.Once
	transportInit       sync.Once
	txManagerInit       sync.Once
	jobRepoInit         sync.Once
	healthRepoInit      sync.Once
	logRepoInit         sync.Once
	queueUseCaseInit    sync.Once
	dispatchUseCaseInit sync.Once
	reclaimUseCaseInit  sync.Once
	healthUseCaseInit   sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider.
// Returns nil without error when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder.
// A no-op recorder is returned when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// SendLimiter returns the process-wide send pacing limiter. Every dispatch
// path shares this single limiter so consecutive sends never violate the
// transport provider's rate limit, regardless of which pass sends them.
func (c *Container) SendLimiter() *rate.Limiter {
	c.sendLimiterInit.Do(func() {
		c.sendLimiter = rate.NewLimiter(rate.Every(c.config.DispatchMinSendInterval), 1)
	})
	return c.sendLimiter
}

// Transport returns the outbound email transport. An SMTP sender is used
// when an SMTP host is configured, otherwise a log-only sender.
func (c *Container) Transport() mailqueueUsecase.Transport {
	c.transportInit.Do(func() {
		c.transport = c.initTransport()
	})
	return c.transport
}

// EmailJobRepository returns the email job repository instance.
func (c *Container) EmailJobRepository() (mailqueueUsecase.EmailJobRepository, error) {
	var err error
	c.jobRepoInit.Do(func() {
		c.jobRepo, err = c.initEmailJobRepository()
		if err != nil {
			c.initErrors["jobRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["jobRepo"]; exists {
		return nil, storedErr
	}
	return c.jobRepo, nil
}

// HealthSnapshotRepository returns the health snapshot repository instance.
func (c *Container) HealthSnapshotRepository() (mailqueueUsecase.HealthSnapshotRepository, error) {
	var err error
	c.healthRepoInit.Do(func() {
		c.healthRepo, err = c.initHealthSnapshotRepository()
		if err != nil {
			c.initErrors["healthRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["healthRepo"]; exists {
		return nil, storedErr
	}
	return c.healthRepo, nil
}

// ProcessingLogRepository returns the processing log repository instance.
func (c *Container) ProcessingLogRepository() (mailqueueUsecase.ProcessingLogRepository, error) {
	var err error
	c.logRepoInit.Do(func() {
		c.logRepo, err = c.initProcessingLogRepository()
		if err != nil {
			c.initErrors["logRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["logRepo"]; exists {
		return nil, storedErr
	}
	return c.logRepo, nil
}

// QueueUseCase returns the queue use case instance.
func (c *Container) QueueUseCase() (mailqueueUsecase.QueueService, error) {
	var err error
	c.queueUseCaseInit.Do(func() {
		c.queueUseCase, err = c.initQueueUseCase()
		if err != nil {
			c.initErrors["queueUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["queueUseCase"]; exists {
		return nil, storedErr
	}
	return c.queueUseCase, nil
}

// DispatchUseCase returns the batch dispatch use case instance.
func (c *Container) DispatchUseCase() (mailqueueUsecase.BatchDispatcher, error) {
	var err error
	c.dispatchUseCaseInit.Do(func() {
		c.dispatchUseCase, err = c.initDispatchUseCase()
		if err != nil {
			c.initErrors["dispatchUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispatchUseCase"]; exists {
		return nil, storedErr
	}
	return c.dispatchUseCase, nil
}

// ReclaimUseCase returns the stuck-job reclaim use case instance.
func (c *Container) ReclaimUseCase() (mailqueueUsecase.StuckReclaimer, error) {
	var err error
	c.reclaimUseCaseInit.Do(func() {
		c.reclaimUseCase, err = c.initReclaimUseCase()
		if err != nil {
			c.initErrors["reclaimUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["reclaimUseCase"]; exists {
		return nil, storedErr
	}
	return c.reclaimUseCase, nil
}

// HealthUseCase returns the queue health use case instance.
func (c *Container) HealthUseCase() (mailqueueUsecase.HealthChecker, error) {
	var err error
	c.healthUseCaseInit.Do(func() {
		c.healthUseCase, err = c.initHealthUseCase()
		if err != nil {
			c.initErrors["healthUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["healthUseCase"]; exists {
		return nil, storedErr
	}
	return c.healthUseCase, nil
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance.
// Returns nil without error when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Shutdown HTTP server if initialized
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	// Shutdown metrics server if initialized
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Shutdown metrics provider if initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// retryPolicy builds the shared retry and pacing policy from configuration.
func (c *Container) retryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxRetries:      c.config.RetryMaxRetries,
		StuckThreshold:  c.config.RetryStuckThreshold,
		MinSendInterval: c.config.DispatchMinSendInterval,
	}
}

// initLogger creates and configures a structured logger based on the log level.
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

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initTransport creates the outbound email transport.
func (c *Container) initTransport() mailqueueUsecase.Transport {
	logger := c.Logger()

	if c.config.SMTPHost == "" {
		logger.Warn("smtp host not configured, outbound email will be logged only")
		return mailer.NewLogSender(logger)
	}

	return mailer.NewSMTPSender(mailer.Config{
		Host:            c.config.SMTPHost,
		Port:            c.config.SMTPPort,
		Username:        c.config.SMTPUsername,
		Password:        c.config.SMTPPassword,
		From:            c.config.SMTPFrom,
		RetryMaxElapsed: c.config.SMTPRetryMaxElapsed,
	}, logger)
}

// initEmailJobRepository creates the email job repository instance.
func (c *Container) initEmailJobRepository() (mailqueueUsecase.EmailJobRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for email job repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return repository.NewMySQLEmailJobRepository(db), nil
	case "postgres":
		return repository.NewPostgreSQLEmailJobRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initHealthSnapshotRepository creates the health snapshot repository instance.
func (c *Container) initHealthSnapshotRepository() (mailqueueUsecase.HealthSnapshotRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for health snapshot repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return repository.NewMySQLHealthSnapshotRepository(db), nil
	case "postgres":
		return repository.NewPostgreSQLHealthSnapshotRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initProcessingLogRepository creates the processing log repository instance.
func (c *Container) initProcessingLogRepository() (mailqueueUsecase.ProcessingLogRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for processing log repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return repository.NewMySQLProcessingLogRepository(db), nil
	case "postgres":
		return repository.NewPostgreSQLProcessingLogRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initQueueUseCase creates the queue use case with all its dependencies.
func (c *Container) initQueueUseCase() (mailqueueUsecase.QueueService, error) {
	jobRepo, err := c.EmailJobRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get email job repository for queue use case: %w", err)
	}

	healthRepo, err := c.HealthSnapshotRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get health snapshot repository for queue use case: %w", err)
	}

	logRepo, err := c.ProcessingLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get processing log repository for queue use case: %w", err)
	}

	return mailqueueUsecase.NewQueueUseCase(c.retryPolicy(), jobRepo, healthRepo, logRepo, c.Logger()), nil
}

// initDispatchUseCase creates the batch dispatch use case with all its dependencies.
func (c *Container) initDispatchUseCase() (mailqueueUsecase.BatchDispatcher, error) {
	jobRepo, err := c.EmailJobRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get email job repository for dispatch use case: %w", err)
	}

	logRepo, err := c.ProcessingLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get processing log repository for dispatch use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for dispatch use case: %w", err)
	}

	dispatchConfig := mailqueueUsecase.DispatchConfig{
		BatchSize: c.config.DispatchBatchSize,
		Interval:  c.config.DispatchInterval,
	}

	return mailqueueUsecase.NewDispatchUseCase(
		dispatchConfig,
		jobRepo,
		logRepo,
		c.Transport(),
		c.SendLimiter(),
		businessMetrics,
		c.Logger(),
	), nil
}

// initReclaimUseCase creates the stuck-job reclaim use case with all its dependencies.
func (c *Container) initReclaimUseCase() (mailqueueUsecase.StuckReclaimer, error) {
	jobRepo, err := c.EmailJobRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get email job repository for reclaim use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for reclaim use case: %w", err)
	}

	return mailqueueUsecase.NewReclaimUseCase(c.retryPolicy(), jobRepo, businessMetrics, c.Logger()), nil
}

// initHealthUseCase creates the queue health use case with all its dependencies.
func (c *Container) initHealthUseCase() (mailqueueUsecase.HealthChecker, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for health use case: %w", err)
	}

	jobRepo, err := c.EmailJobRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get email job repository for health use case: %w", err)
	}

	healthRepo, err := c.HealthSnapshotRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get health snapshot repository for health use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for health use case: %w", err)
	}

	thresholds := domain.HealthThresholds{
		FailedCritical: c.config.HealthFailedCritical,
		PendingWarning: c.config.HealthPendingWarning,
	}

	return mailqueueUsecase.NewHealthUseCase(
		thresholds,
		c.retryPolicy(),
		txManager,
		jobRepo,
		healthRepo,
		businessMetrics,
		c.Logger(),
	), nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	queueUseCase, err := c.QueueUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue use case for http server: %w", err)
	}

	dispatchUseCase, err := c.DispatchUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatch use case for http server: %w", err)
	}

	reclaimUseCase, err := c.ReclaimUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get reclaim use case for http server: %w", err)
	}

	healthUseCase, err := c.HealthUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get health use case for http server: %w", err)
	}

	queueHandler := mailqueueHTTP.NewQueueHandler(
		queueUseCase,
		dispatchUseCase,
		reclaimUseCase,
		healthUseCase,
		logger,
	)

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(queueHandler, c.config.CORSEnabled, c.config.CORSAllowOrigins)

	return server, nil
}

// initMetricsServer creates the metrics server with all its dependencies.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
