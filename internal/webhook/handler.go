package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/service"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// maxBodyBytes bounds the size of an inbound CRM payload
const maxBodyBytes = 1 << 20

// Handler receives Bitrix24 deal webhooks
type Handler struct {
	intake service.IntakeService
	logger *zap.Logger
}

// NewHandler creates a new webhook handler
func NewHandler(intake service.IntakeService, logger *zap.Logger) *Handler {
	return &Handler{
		intake: intake,
		logger: logger,
	}
}

// Handle processes POST /webhook/bitrix
func (h *Handler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("Failed to read request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	result, err := h.intake.HandleBitrixDeal(c.Request.Context(), body)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid application token"})
	case errors.Is(err, domainwf.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, result)
	case result != nil:
		// recorded as failed; the CRM retries on 5xx
		c.JSON(http.StatusInternalServerError, result)
	default:
		h.logger.Error("Failed to handle Bitrix webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Register mounts the webhook route on the router
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/webhook/bitrix", h.Handle)
}
