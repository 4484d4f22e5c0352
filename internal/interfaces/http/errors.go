package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// statusOf maps a workflow error to its HTTP status
func statusOf(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, domainwf.ErrConcurrentModification),
		errors.Is(err, domainwf.ErrDuplicateGeneration):
		return http.StatusConflict
	case errors.Is(err, domainwf.ErrIncompleteInvoice),
		errors.Is(err, domainwf.ErrMissingComment),
		errors.Is(err, domainwf.ErrInsufficientContext):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrValidation), errors.Is(err, domainwf.ErrInvalidState):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "path", c.Request.URL.Path, "error", err)
		message = "internal error"
	}
	c.JSON(status, Response{
		Success: false,
		Error:   message,
		Code:    domainwf.Code(err),
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   message,
		Code:    "validation_failed",
	})
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}
