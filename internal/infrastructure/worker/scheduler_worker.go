package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/service"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/clock"
)

// SchedulerWorker generates recurring payment invoices on every tick
type SchedulerWorker struct {
	*pollLoop
	recurring service.RecurringService
	clock     clock.Clock
	logger    *zap.Logger
}

// NewSchedulerWorker creates the recurring payment tick worker
func NewSchedulerWorker(interval time.Duration, recurring service.RecurringService, clk clock.Clock, logger *zap.Logger) *SchedulerWorker {
	w := &SchedulerWorker{
		recurring: recurring,
		clock:     clk,
		logger:    logger,
	}
	w.pollLoop = newPollLoop("SchedulerWorker", interval, w.tick, logger)
	return w
}

func (w *SchedulerWorker) tick(ctx context.Context) error {
	report, err := w.recurring.GenerateDue(ctx, w.clock.Now())
	if err != nil {
		return err
	}
	if report.Generated > 0 || report.Failed > 0 {
		w.logger.Info("Recurring payments generated",
			zap.String("date", report.Date),
			zap.Int("generated", report.Generated),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed))
	}
	return nil
}
