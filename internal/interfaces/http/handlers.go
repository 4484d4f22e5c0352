package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps           Dependencies
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		deps:           deps,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}

	if h.deps.Health != nil {
		if err := h.deps.Health(); err != nil {
			response.Status = "unhealthy"
			response.Error = err.Error()
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: response})
			return
		}
	}

	ok(c, http.StatusOK, response)
}

func (h *Handlers) now() time.Time {
	if h.deps.Clock == nil {
		return time.Now()
	}
	return h.deps.Clock.Now()
}

// parseDate parses an optional YYYY-MM-DD value; empty yields nil
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	d, err := entity.ParseDate(value)
	if err != nil {
		return nil, &fieldError{field: field, value: value}
	}
	return &d, nil
}

// parseTime accepts RFC3339 timestamps or plain dates
func parseTime(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	return parseDate(field, value)
}

type fieldError struct {
	field string
	value string
}

func (e *fieldError) Error() string {
	return "invalid " + e.field + ": " + e.value
}
