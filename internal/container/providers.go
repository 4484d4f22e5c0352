// Package container provides dependency injection and lifecycle management
// for the payables service.
package container

import (
	"database/sql"
	"fmt"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/dispatcher"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/service"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/internal/config"
	infraLark "github.com/Prygunov-Andrei/finance-sub003/internal/infrastructure/external/lark"
	"github.com/Prygunov-Andrei/finance-sub003/internal/infrastructure/external/openai"
	"github.com/Prygunov-Andrei/finance-sub003/internal/infrastructure/persistence/memory"
	"github.com/Prygunov-Andrei/finance-sub003/internal/infrastructure/persistence/sqlite"
	"github.com/Prygunov-Andrei/finance-sub003/internal/infrastructure/storage"
	"github.com/Prygunov-Andrei/finance-sub003/internal/infrastructure/worker"
	"github.com/Prygunov-Andrei/finance-sub003/internal/webhook"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/clock"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
// SqlDB is nil for the memory driver.
type DatabaseBundle struct {
	SqlDB        *sql.DB
	TxManager    port.TransactionManager
	Repositories *RepositoryBundle
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Invoice   port.InvoiceRepository
	Event     port.EventRepository
	Account   port.LedgerAccountRepository
	Recurring port.RecurringPaymentRepository
	Webhook   port.WebhookRequestRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Invoice      service.InvoiceService
	Dashboard    service.DashboardService
	Recurring    service.RecurringService
	Intake       service.IntakeService
	Recognition  service.RecognitionService
	Account      service.AccountService
	Notification service.NotificationService
}

// ProvideDatabase opens the configured store.
// For sqlite it also applies pending migrations.
func ProvideDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == config.DriverMemory {
		store := memory.NewStore()
		logger.Info("Using in-memory store")
		return &DatabaseBundle{
			TxManager: store,
			Repositories: &RepositoryBundle{
				Invoice:   store.Invoices(),
				Event:     store.Events(),
				Account:   store.Accounts(),
				Recurring: store.RecurringPayments(),
				Webhook:   store.WebhookRequests(),
			},
		}, nil
	}

	sqlDB, err := database.Open(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(sqlDB, logger).Up(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db := sqlite.NewDB(sqlDB, logger)

	return &DatabaseBundle{
		SqlDB:     sqlDB,
		TxManager: db,
		Repositories: &RepositoryBundle{
			Invoice:   sqlite.NewInvoiceRepository(db, logger),
			Event:     sqlite.NewEventRepository(db, logger),
			Account:   sqlite.NewLedgerAccountRepository(db, logger),
			Recurring: sqlite.NewRecurringPaymentRepository(db, logger),
			Webhook:   sqlite.NewWebhookRequestRepository(db, logger),
		},
	}, nil
}

// ProvideClock creates the business clock in the configured timezone.
func ProvideClock(cfg *config.Config) (clock.Clock, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return clock.NewSystem(loc), nil
}

// ProvideFileStorage creates the document store.
func ProvideFileStorage(cfg config.StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg.DocumentDir == "" {
		return nil, fmt.Errorf("storage.document_dir is required")
	}
	return storage.NewLocalFileStorage(cfg.DocumentDir, logger), nil
}

// ProvideRecognizer creates the OpenAI document recognizer.
// Returns nil when no API key is configured; uploaded invoices then leave
// recognition with empty fields.
func ProvideRecognizer(cfg *config.Config, files port.FileStorage, logger *zap.Logger) (port.DocumentRecognizer, error) {
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("OpenAI API key not configured, document recognition disabled")
		return nil, nil
	}

	prompts := openai.DefaultPrompts()
	if cfg.Recognition.PromptsPath != "" {
		loaded, err := openai.LoadPrompts(cfg.Recognition.PromptsPath)
		if err != nil {
			return nil, err
		}
		prompts = loaded
	}

	extractor := openai.NewFitzTextExtractor(cfg.Recognition.MaxPages, logger)

	return openai.NewRecognizer(openai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
	}, prompts, extractor, files, logger), nil
}

// ProvideNotifier creates the operator notifier.
// Falls back to logging when Lark is not configured.
func ProvideNotifier(cfg config.LarkConfig, logger *zap.Logger) port.Notifier {
	larkCfg := infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		ChatID:    cfg.ChatID,
		BaseURL:   cfg.BaseURL,
	}
	if !larkCfg.Enabled() {
		logger.Warn("Lark not configured, notifications go to the log")
		return service.NewLogNotifier(&zapLoggerAdapter{logger: logger.Named("notifications")})
	}
	return infraLark.NewNotifier(infraLark.NewSDKClient(larkCfg), cfg.ChatID, logger)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
	)
}

// WorkflowDeps holds dependencies for the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Observer   port.TransitionObserver
	Clock      clock.Clock
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the invoice workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	if deps == nil || deps.Repos == nil || deps.TxManager == nil {
		return nil, fmt.Errorf("repositories and transaction manager are required")
	}

	return workflow.NewEngine(
		deps.Repos.Invoice,
		deps.Repos.Event,
		deps.Repos.Account,
		deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithObserver(deps.Observer),
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("workflow")}),
		workflow.WithClock(deps.Clock),
	), nil
}

// ServiceDeps holds dependencies for application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Engine     workflow.Engine
	Storage    port.FileStorage
	Recognizer port.DocumentRecognizer
	Notifier   port.Notifier
	Observer   port.TransitionObserver
	Verifier   *webhook.Verifier
	Clock      clock.Clock
	MaxCatchUp int
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Engine == nil {
		return nil, fmt.Errorf("repositories and engine are required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("webhook verifier is required")
	}

	log := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	notification := service.NewNotificationService(deps.Notifier, log)
	invoices := service.NewInvoiceService(repos.Invoice, repos.Event, deps.Engine, deps.TxManager, deps.Storage, deps.Clock, log)

	return &ServiceBundle{
		Invoice:      invoices,
		Dashboard:    service.NewDashboardService(repos.Invoice, repos.Account),
		Recurring:    service.NewRecurringService(repos.Recurring, repos.Invoice, deps.Engine, deps.TxManager, deps.Observer, deps.Clock, deps.MaxCatchUp, log),
		Intake:       service.NewIntakeService(invoices, repos.Invoice, repos.Webhook, deps.Verifier.Verify, notification, deps.Observer, deps.Clock, log),
		Recognition:  service.NewRecognitionService(repos.Invoice, deps.Engine, deps.Recognizer, log),
		Account:      service.NewAccountService(repos.Account, deps.Clock, log),
		Notification: notification,
	}, nil
}

// ProvideWorkers creates the background workers enabled in configuration.
func ProvideWorkers(cfg *config.Config, services *ServiceBundle, clk clock.Clock, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)

	if cfg.Scheduler.Enabled {
		manager.Register(worker.NewSchedulerWorker(cfg.Scheduler.Interval, services.Recurring, clk, logger))
	}

	if cfg.Recognition.Enabled {
		manager.Register(worker.NewRecognitionWorker(worker.RecognitionWorkerConfig{
			PollInterval:   cfg.Recognition.PollInterval,
			BatchSize:      cfg.Recognition.BatchSize,
			ProcessTimeout: cfg.Recognition.ProcessTimeout,
		}, services.Recognition, logger))
	}

	return manager
}
