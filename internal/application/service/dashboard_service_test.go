package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/overdue"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

func assertBucket(t *testing.T, b BucketTotal, count int, amount string) {
	t.Helper()
	assert.Equal(t, count, b.Count)
	assert.True(t, b.Amount.Equal(decimal.RequireFromString(amount)), "amount %s != %s", b.Amount, amount)
}

func TestDashboardService_RegistrySummary(t *testing.T) {
	f := newFixture(t)
	svc := NewDashboardService(f.store.Invoices(), f.store.Accounts())

	f.registryInvoice(t, "100.00", day(-1), "OBJ-1", "CAT-A")
	f.registryInvoice(t, "200.00", day(0), "OBJ-1", "CAT-B")
	f.registryInvoice(t, "300.00", day(3), "OBJ-2", "CAT-A")
	f.registryInvoice(t, "400.00", day(10), "OBJ-2", "CAT-A")
	f.registryInvoice(t, "500.00", day(30), "", "CAT-B")
	f.registryInvoice(t, "600.00", nil, "OBJ-3", "CAT-B")

	dashboard, err := svc.GetDashboard(context.Background(), testNow)
	require.NoError(t, err)

	s := dashboard.RegistrySummary
	assertBucket(t, s.Total, 6, "2100.00")
	assertBucket(t, s.Overdue, 1, "100.00")
	assertBucket(t, s.DueToday, 1, "200.00")
	assertBucket(t, s.DueThisWeek, 2, "500.00")
	assertBucket(t, s.DueThisMonth, 3, "900.00")

	require.Len(t, dashboard.ByObject, 4)
	assert.Equal(t, "OBJ-2", dashboard.ByObject[0].Key)
	assert.True(t, dashboard.ByObject[0].Amount.Equal(decimal.RequireFromString("700.00")))
	assert.Equal(t, "OBJ-3", dashboard.ByObject[1].Key)
	assert.Equal(t, "", dashboard.ByObject[2].Key)
	assert.Equal(t, "OBJ-1", dashboard.ByObject[3].Key)

	require.Len(t, dashboard.ByCategory, 2)
	assert.Equal(t, "CAT-B", dashboard.ByCategory[0].Key)
	assert.Equal(t, 3, dashboard.ByCategory[0].Count)
	assert.True(t, dashboard.ByCategory[0].Amount.Equal(decimal.RequireFromString("1300.00")))

	require.Len(t, dashboard.AccountBalances, 1)
	assert.Equal(t, "A1", dashboard.AccountBalances[0].AccountID)
	assert.Equal(t, testNow, dashboard.GeneratedAt)
}

func TestDashboardService_PaidInvoiceLeavesRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewDashboardService(f.store.Invoices(), f.store.Accounts())

	inv := f.registryInvoice(t, "120000.00", day(2), "OBJ-1", "CAT-A")

	dashboard, err := svc.GetDashboard(ctx, testNow)
	require.NoError(t, err)
	assertBucket(t, dashboard.RegistrySummary.Total, 1, "120000.00")
	assertBucket(t, dashboard.RegistrySummary.DueThisWeek, 1, "120000.00")

	for _, action := range []domainwf.Trigger{domainwf.TriggerApprove, domainwf.TriggerMarkPaid} {
		_, err := f.engine.Transition(ctx, inv.ID, action, workflow.TransitionParams{Actor: "bob"})
		require.NoError(t, err)
	}

	dashboard, err = svc.GetDashboard(ctx, testNow)
	require.NoError(t, err)
	assertBucket(t, dashboard.RegistrySummary.Total, 0, "0")
	assertBucket(t, dashboard.RegistrySummary.DueThisWeek, 0, "0")
	assert.Empty(t, dashboard.ByObject)
	require.Len(t, dashboard.AccountBalances, 1)
	assert.True(t, dashboard.AccountBalances[0].Balance.Equal(decimal.RequireFromString("380000.00")))
}

func TestDashboardService_ListRegistry(t *testing.T) {
	f := newFixture(t)
	svc := NewDashboardService(f.store.Invoices(), f.store.Accounts())

	undated := f.registryInvoice(t, "1.00", nil, "", "")
	later := f.registryInvoice(t, "2.00", day(4), "", "")
	late := f.registryInvoice(t, "3.00", day(-2), "", "")

	rows, err := svc.ListRegistry(context.Background(), testNow)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, late.ID, rows[0].Invoice.ID)
	assert.Equal(t, overdue.BucketOverdue, rows[0].Bucket)
	require.NotNil(t, rows[0].DaysUntil)
	assert.Equal(t, -2, *rows[0].DaysUntil)

	assert.Equal(t, later.ID, rows[1].Invoice.ID)
	assert.Equal(t, overdue.BucketDueThisWeek, rows[1].Bucket)

	assert.Equal(t, undated.ID, rows[2].Invoice.ID)
	assert.Equal(t, overdue.BucketNotApplicable, rows[2].Bucket)
	assert.Nil(t, rows[2].DaysUntil)
}
