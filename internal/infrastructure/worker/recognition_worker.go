package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/service"
)

// RecognitionWorkerConfig holds configuration for the recognition worker
type RecognitionWorkerConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	ProcessTimeout time.Duration
}

// DefaultRecognitionWorkerConfig returns default configuration
func DefaultRecognitionWorkerConfig() RecognitionWorkerConfig {
	return RecognitionWorkerConfig{
		PollInterval:   10 * time.Second,
		BatchSize:      5,
		ProcessTimeout: 120 * time.Second,
	}
}

// RecognitionWorker moves invoices out of recognition as documents are read
type RecognitionWorker struct {
	*pollLoop
	config      RecognitionWorkerConfig
	recognition service.RecognitionService
	logger      *zap.Logger
}

// NewRecognitionWorker creates a new recognition worker
func NewRecognitionWorker(config RecognitionWorkerConfig, recognition service.RecognitionService, logger *zap.Logger) *RecognitionWorker {
	w := &RecognitionWorker{
		config:      config,
		recognition: recognition,
		logger:      logger,
	}
	w.pollLoop = newPollLoop("RecognitionWorker", config.PollInterval, w.process, logger)
	return w
}

func (w *RecognitionWorker) process(ctx context.Context) error {
	if w.config.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.ProcessTimeout)
		defer cancel()
	}

	report, err := w.recognition.ProcessPending(ctx, w.config.BatchSize)
	if err != nil {
		return err
	}
	if report.Completed > 0 || report.Failed > 0 {
		w.logger.Info("Recognition batch processed",
			zap.Int("completed", report.Completed),
			zap.Int("failed", report.Failed))
	}
	return nil
}
