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

func TestAccountService_CreateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewAccountService(f.store.Accounts(), f.clock, nopLogger{})

	err := svc.CreateAccount(ctx, &entity.LedgerAccount{Name: " "})
	assert.ErrorIs(t, err, domainwf.ErrValidation)

	account := &entity.LedgerAccount{Name: "Reserve", Number: "40702810", Balance: decimal.RequireFromString("1000.00")}
	require.NoError(t, svc.CreateAccount(ctx, account))
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "RUB", account.Currency)

	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestAccountService_SyncBankBalanceLeavesInternalBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewAccountService(f.store.Accounts(), f.clock, nopLogger{})

	asOf := time.Date(2026, 3, 11, 18, 30, 0, 0, time.UTC)
	account, err := svc.SyncBankBalance(ctx, "A1", decimal.RequireFromString("498000.00"), asOf)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("500000.00")))
	assert.True(t, account.BankBalance.Decimal.Equal(decimal.RequireFromString("498000.00")))
	require.NotNil(t, account.BankBalanceDate)
	assert.Equal(t, "2026-03-11", entity.FormatDate(account.BankBalanceDate))

	stored, err := f.store.Accounts().GetByID(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(decimal.RequireFromString("500000.00")))
	assert.True(t, stored.BankBalance.Valid)

	_, err = svc.SyncBankBalance(ctx, "missing", decimal.Zero, asOf)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
}
