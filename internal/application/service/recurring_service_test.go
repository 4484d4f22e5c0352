package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) recurringService(maxCatchUp int) RecurringService {
	return NewRecurringService(f.store.RecurringPayments(), f.store.Invoices(), f.engine, f.store,
		f.observer, f.clock, maxCatchUp, nopLogger{})
}

func rent(dayOfMonth int, validFrom time.Time) *entity.RecurringPayment {
	return &entity.RecurringPayment{
		Name:           "Office rent",
		CounterpartyID: "C-LANDLORD",
		CategoryID:     "CAT-RENT",
		AccountID:      "A1",
		LegalEntityID:  "LE-1",
		ObjectID:       "OBJ-HQ",
		Amount:         decimal.RequireFromString("75000.00"),
		Frequency:      entity.FrequencyMonthly,
		DayOfMonth:     dayOfMonth,
		ValidFrom:      validFrom,
		IsActive:       true,
	}
}

func (f *fixture) recurringInvoices(t *testing.T) []*entity.Invoice {
	t.Helper()
	page, err := f.invoices.ListInvoices(context.Background(), entity.InvoiceFilter{Source: entity.SourceRecurring})
	require.NoError(t, err)
	result := make([]*entity.Invoice, 0, len(page.Items))
	for _, item := range page.Items {
		inv, err := f.store.Invoices().GetByID(context.Background(), item.ID)
		require.NoError(t, err)
		result = append(result, inv)
	}
	return result
}

func TestRecurringService_TickTwiceGeneratesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.recurringService(0)

	tpl := rent(12, date(2026, 3, 1))
	require.NoError(t, svc.CreateTemplate(ctx, tpl))
	assert.Equal(t, date(2026, 3, 12), tpl.NextGenerationDate)

	report, err := svc.GenerateDue(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Generated)
	assert.Equal(t, "2026-03-12", report.Date)

	report, err = svc.GenerateDue(ctx, testNow)
	require.NoError(t, err)
	assert.Zero(t, report.Generated)
	assert.Zero(t, report.Failed)

	invoices := f.recurringInvoices(t)
	require.Len(t, invoices, 1)
	inv := invoices[0]
	assert.Equal(t, domainwf.StateReview, inv.Status)
	assert.Equal(t, tpl.ID, inv.RecurringPaymentID)
	assert.Equal(t, "C-LANDLORD", inv.CounterpartyID)
	assert.Equal(t, "CAT-RENT", inv.CategoryID)
	assert.Equal(t, "A1", inv.AccountID)
	assert.Equal(t, "LE-1", inv.LegalEntityID)
	assert.Equal(t, "OBJ-HQ", inv.ObjectID)
	assert.True(t, inv.Gross().Equal(decimal.RequireFromString("75000.00")))
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, date(2026, 3, 12), *inv.DueDate)
	assert.Equal(t, entity.ActorSystem, inv.CreatedBy)

	stored, err := f.store.RecurringPayments().GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 4, 12), stored.NextGenerationDate)
	assert.Equal(t, 1, f.observer.generation["generated"])
}

func TestRecurringService_CatchesUpMissedPeriods(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tpl := rent(5, date(2026, 1, 1))
	require.NoError(t, f.recurringService(0).CreateTemplate(ctx, tpl))

	report, err := f.recurringService(2).GenerateDue(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Generated)
	assert.Len(t, report.InvoiceIDs, 2)

	stored, err := f.store.RecurringPayments().GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 3, 5), stored.NextGenerationDate)

	report, err = f.recurringService(0).GenerateDue(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Generated)
	assert.Len(t, f.recurringInvoices(t), 3)
}

func TestRecurringService_ExistingPeriodIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.recurringService(0)

	tpl := rent(12, date(2026, 3, 1))
	require.NoError(t, svc.CreateTemplate(ctx, tpl))

	due := date(2026, 3, 12)
	require.NoError(t, f.engine.Create(ctx, &entity.Invoice{
		Source:             entity.SourceRecurring,
		Status:             domainwf.StateReview,
		AmountGross:        money("75000.00"),
		DueDate:            &due,
		RecurringPaymentID: tpl.ID,
	}, entity.ActorSystem))

	report, err := svc.GenerateDue(ctx, testNow)
	require.NoError(t, err)
	assert.Zero(t, report.Generated)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.Len(t, f.recurringInvoices(t), 1)

	stored, err := f.store.RecurringPayments().GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 4, 12), stored.NextGenerationDate)
}

func TestRecurringService_RespectsValidityWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.recurringService(0)

	validTo := date(2026, 2, 1)
	tpl := rent(5, date(2026, 1, 1))
	tpl.ValidTo = &validTo
	require.NoError(t, svc.CreateTemplate(ctx, tpl))

	inactive := rent(5, date(2026, 1, 1))
	inactive.IsActive = false
	require.NoError(t, svc.CreateTemplate(ctx, inactive))

	report, err := svc.GenerateDue(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Generated)
	assert.Equal(t, 2, report.Skipped)

	invoices := f.recurringInvoices(t)
	require.Len(t, invoices, 1)
	assert.Equal(t, date(2026, 1, 5), *invoices[0].DueDate)
}

func TestRecurringService_CreateTemplateValidates(t *testing.T) {
	f := newFixture(t)
	tpl := rent(31, date(2026, 1, 1))

	err := f.recurringService(0).CreateTemplate(context.Background(), tpl)
	assert.ErrorIs(t, err, domainwf.ErrValidation)

	templates, err := f.recurringService(0).ListTemplates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, templates)
}
