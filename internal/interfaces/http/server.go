// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/service"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/clock"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RegistryWriter renders the payment registry to a spreadsheet
type RegistryWriter interface {
	Write(w io.Writer, rows []service.RegistryRow) error
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		RequestTimeout: 20 * time.Second,
		MaxUploadBytes: 20 << 20,
	}
}

// Dependencies are the application services exposed over HTTP
type Dependencies struct {
	Invoices  service.InvoiceService
	Engine    workflow.Engine
	Dashboard service.DashboardService
	Recurring service.RecurringService
	Intake    service.IntakeService
	Accounts  service.AccountService
	Exporter  RegistryWriter
	Clock     clock.Clock
	Metrics   http.Handler    // nil disables GET /metrics
	Ingress   gin.HandlerFunc // CRM webhook handler, nil disables POST /webhook/bitrix
	Health    func() error    // nil reports always healthy
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config: config,
		router: gin.New(),
		deps:   deps,
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	if s.config.RequestTimeout > 0 {
		s.router.Use(timeoutMiddleware(s.config.RequestTimeout))
	}
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// timeoutMiddleware bounds the request context so storage calls give up with the client
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps, s.config.MaxUploadBytes, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
	if s.deps.Ingress != nil {
		s.router.POST("/webhook/bitrix", s.deps.Ingress)
	}

	api := s.router.Group("/api")
	{
		api.POST("/invoices", h.CreateInvoice)
		api.GET("/invoices", h.ListInvoices)
		api.GET("/invoices/:id", h.GetInvoice)
		api.PATCH("/invoices/:id", h.UpdateInvoice)
		api.POST("/invoices/:id/transitions", h.TransitionInvoice)
		api.GET("/invoices/:id/events", h.ListInvoiceEvents)
		api.GET("/invoices/:id/consistency", h.VerifyConsistency)
		api.GET("/events", h.QueryEvents)

		api.GET("/dashboard", h.GetDashboard)
		api.GET("/registry", h.ListRegistry)
		api.GET("/registry/export", h.ExportRegistry)

		api.POST("/accounts", h.CreateAccount)
		api.GET("/accounts", h.ListAccounts)
		api.PUT("/accounts/:id/bank-balance", h.SyncBankBalance)

		api.POST("/recurring-payments", h.CreateRecurringPayment)
		api.GET("/recurring-payments", h.ListRecurringPayments)
		api.POST("/scheduler/tick", h.RunSchedulerTick)

		api.GET("/webhooks/requests", h.ListWebhookRequests)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
