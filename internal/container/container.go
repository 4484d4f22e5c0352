package container

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/dispatcher"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/internal/config"
	"github.com/Prygunov-Andrei/finance-sub003/internal/infrastructure/export"
	"github.com/Prygunov-Andrei/finance-sub003/internal/infrastructure/metrics"
	"github.com/Prygunov-Andrei/finance-sub003/internal/infrastructure/worker"
	httpiface "github.com/Prygunov-Andrei/finance-sub003/internal/interfaces/http"
	"github.com/Prygunov-Andrei/finance-sub003/internal/webhook"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/clock"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	txManager    port.TransactionManager
	repositories *RepositoryBundle

	// Infrastructure - External
	fileStorage port.FileStorage
	recognizer  port.DocumentRecognizer
	notifier    port.Notifier
	metrics     *metrics.Metrics
	exporter    *export.RegistryExporter
	verifier    *webhook.Verifier

	// Application
	clock      clock.Clock
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine
	services   *ServiceBundle

	// Workers
	workers    *worker.Manager
	runWorkers bool

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// Option configures the container
type Option func(*Container)

// WithoutWorkers builds the workers but never starts them.
// Used by one-shot commands.
func WithoutWorkers() Option {
	return func(c *Container) {
		c.runWorkers = false
	}
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config:     cfg,
		logger:     logger,
		runWorkers: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. External adapters (storage, OpenAI, Lark, metrics)
// 3. Dispatcher, workflow engine and services
// 4. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("driver", c.config.Database.Driver))

	if err := c.initExternal(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize external adapters: %w", err)
	}
	c.logger.Info("External adapters initialized")

	if err := c.initApplication(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	c.logger.Info("Application services initialized")

	c.workers = ProvideWorkers(c.config, c.services, c.clock, c.logger)
	if c.runWorkers {
		if err := c.workers.StartAll(c.ctx); err != nil {
			c.closeDatabase()
			return fmt.Errorf("failed to start workers: %w", err)
		}
		c.logger.Info("Workers started", zap.Int("count", c.workers.WorkerCount()))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil && c.workers.IsRunning() {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Waits for in-flight async notifications.
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if err := c.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeDatabase() error {
	if c.sqlDB == nil {
		return nil
	}
	err := c.sqlDB.Close()
	c.sqlDB = nil
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
		return err
	}
	c.logger.Info("Database closed")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.repositories == nil:
		set("database", false, "not initialized")
	case c.sqlDB == nil:
		set("database", true, "in-memory")
	default:
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.sqlDB.PingContext(pingCtx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	switch {
	case c.workers == nil:
		set("workers", false, "not initialized")
	case !c.runWorkers:
		set("workers", true, "disabled")
	default:
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.WorkerCount()))
	}

	if c.dispatcher != nil {
		set("dispatcher", true, "")
	} else {
		set("dispatcher", false, "not initialized")
	}

	if c.recognizer != nil {
		set("recognizer", true, "openai")
	} else {
		set("recognizer", true, "disabled")
	}

	return status
}

// HealthCheck reports the first unhealthy component as an error.
func (c *Container) HealthCheck() error {
	status := c.Health(context.Background())
	if status.Overall {
		return nil
	}
	for name, component := range status.Components {
		if !component.Healthy {
			return fmt.Errorf("%s: %s", name, component.Message)
		}
	}
	return fmt.Errorf("unhealthy")
}

// HTTPDependencies returns the services exposed by the HTTP server.
func (c *Container) HTTPDependencies() httpiface.Dependencies {
	deps := httpiface.Dependencies{
		Invoices:  c.services.Invoice,
		Engine:    c.engine,
		Dashboard: c.services.Dashboard,
		Recurring: c.services.Recurring,
		Intake:    c.services.Intake,
		Accounts:  c.services.Account,
		Exporter:  c.exporter,
		Clock:     c.clock,
		Ingress:   webhook.NewHandler(c.services.Intake, c.logger).Handle,
		Health:    c.HealthCheck,
	}
	if c.config.Metrics.Enabled {
		deps.Metrics = c.metrics.Handler()
	}
	return deps
}

// NewHTTPServer builds the HTTP server over the container's services.
func (c *Container) NewHTTPServer() *httpiface.Server {
	server := c.config.Server
	return httpiface.NewServer(httpiface.ServerConfig{
		Host:           server.Host,
		Port:           server.Port,
		ReadTimeout:    server.ReadTimeout,
		WriteTimeout:   server.WriteTimeout,
		RequestTimeout: server.RequestTimeout,
		MaxUploadBytes: server.MaxUploadBytes,
	}, c.HTTPDependencies(), &zapLoggerAdapter{logger: c.logger.Named("http")})
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = bundle.SqlDB
	c.txManager = bundle.TxManager
	c.repositories = bundle.Repositories
	return nil
}

func (c *Container) initExternal() error {
	clk, err := ProvideClock(c.config)
	if err != nil {
		return err
	}
	c.clock = clk

	files, err := ProvideFileStorage(c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.fileStorage = files

	recognizer, err := ProvideRecognizer(c.config, files, c.logger)
	if err != nil {
		return err
	}
	c.recognizer = recognizer

	c.notifier = ProvideNotifier(c.config.Lark, c.logger)
	c.metrics = metrics.New()
	c.exporter = export.NewRegistryExporter(c.logger)
	c.verifier = webhook.NewVerifier(c.config.Bitrix.ApplicationToken, c.logger)
	return nil
}

func (c *Container) initApplication() error {
	c.dispatcher = ProvideDispatcher(c.logger)

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Dispatcher: c.dispatcher,
		Observer:   c.metrics,
		Clock:      c.clock,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Engine:     c.engine,
		Storage:    c.fileStorage,
		Recognizer: c.recognizer,
		Notifier:   c.notifier,
		Observer:   c.metrics,
		Verifier:   c.verifier,
		Clock:      c.clock,
		MaxCatchUp: c.config.Scheduler.MaxCatchUp,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services

	c.services.Notification.Register(c.dispatcher)
	return nil
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Engine returns the workflow engine.
func (c *Container) Engine() workflow.Engine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Exporter returns the registry spreadsheet exporter.
func (c *Container) Exporter() *export.RegistryExporter {
	return c.exporter
}

// Clock returns the business clock.
func (c *Container) Clock() clock.Clock {
	return c.clock
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the small Info/Error logger interfaces
// used by services, the dispatcher, the engine and the HTTP server.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
