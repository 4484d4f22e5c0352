package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// RecognitionReport summarizes one recognition batch
type RecognitionReport struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// RecognitionService moves invoices out of recognition
type RecognitionService interface {
	ProcessPending(ctx context.Context, batchSize int) (*RecognitionReport, error)
}

type recognitionServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	engine      workflow.Engine
	recognizer  port.DocumentRecognizer
	logger      Logger
}

// NewRecognitionService creates a new RecognitionService; recognizer may be nil
func NewRecognitionService(
	invoiceRepo port.InvoiceRepository,
	engine workflow.Engine,
	recognizer port.DocumentRecognizer,
	logger Logger,
) RecognitionService {
	return &recognitionServiceImpl{
		invoiceRepo: invoiceRepo,
		engine:      engine,
		recognizer:  recognizer,
		logger:      logger,
	}
}

// ProcessPending recognizes up to batchSize invoices waiting in recognition.
// Invoices without a document complete with full confidence.
func (s *recognitionServiceImpl) ProcessPending(ctx context.Context, batchSize int) (*RecognitionReport, error) {
	pending, err := s.invoiceRepo.ListByStatus(ctx, domainwf.StateRecognition, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices in recognition: %w", err)
	}

	report := &RecognitionReport{}
	for _, inv := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.process(ctx, inv); err != nil {
			report.Failed++
			s.logger.Error("Recognition failed", "invoice_id", inv.ID, "error", err)
			continue
		}
		report.Completed++
	}
	return report, nil
}

func (s *recognitionServiceImpl) process(ctx context.Context, inv *entity.Invoice) error {
	params := workflow.TransitionParams{
		Actor:           entity.ActorSystem,
		ExpectedVersion: &inv.Version,
	}

	if inv.DocumentPath != "" && s.recognizer != nil {
		result, err := s.recognizer.Recognize(ctx, inv.DocumentPath)
		if err != nil {
			return fmt.Errorf("failed to recognize document: %w", err)
		}
		params.Recognition = result
	}

	_, err := s.engine.Transition(ctx, inv.ID, domainwf.TriggerCompleteRecognition, params)
	if errors.Is(err, domainwf.ErrConcurrentModification) {
		// edited or recognized elsewhere meanwhile; the next poll sees the fresh version
		return nil
	}
	return err
}
