package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/clock"
)

// AccountService manages ledger accounts.
// Internal balances change only through paid invoices.
type AccountService interface {
	CreateAccount(ctx context.Context, account *entity.LedgerAccount) error
	ListAccounts(ctx context.Context) ([]*entity.LedgerAccount, error)
	SyncBankBalance(ctx context.Context, id string, balance decimal.Decimal, asOf time.Time) (*entity.LedgerAccount, error)
}

type accountServiceImpl struct {
	accountRepo port.LedgerAccountRepository
	clock       clock.Clock
	logger      Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(accountRepo port.LedgerAccountRepository, clk clock.Clock, logger Logger) AccountService {
	return &accountServiceImpl{
		accountRepo: accountRepo,
		clock:       clk,
		logger:      logger,
	}
}

func (s *accountServiceImpl) CreateAccount(ctx context.Context, account *entity.LedgerAccount) error {
	if strings.TrimSpace(account.Name) == "" {
		return fmt.Errorf("%w: account name is required", domainwf.ErrValidation)
	}
	if account.Currency == "" {
		account.Currency = "RUB"
	}
	if account.ID == "" {
		account.ID = entity.NewID()
	}
	now := s.clock.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return fmt.Errorf("failed to create ledger account: %w", err)
	}
	s.logger.Info("Ledger account created", "account_id", account.ID, "balance", account.Balance.String())
	return nil
}

func (s *accountServiceImpl) ListAccounts(ctx context.Context) ([]*entity.LedgerAccount, error) {
	return s.accountRepo.List(ctx)
}

// SyncBankBalance stores an externally reported balance; the internal balance is untouched
func (s *accountServiceImpl) SyncBankBalance(ctx context.Context, id string, balance decimal.Decimal, asOf time.Time) (*entity.LedgerAccount, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: ledger account %s", domainwf.ErrNotFound, id)
	}

	day := entity.DateOf(asOf)
	if err := s.accountRepo.UpdateBankBalance(ctx, id, balance, day); err != nil {
		return nil, err
	}
	account.BankBalance = entity.NullAmount(balance)
	account.BankBalanceDate = &day
	return account, nil
}
