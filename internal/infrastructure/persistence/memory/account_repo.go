package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// LedgerAccountRepository implements port.LedgerAccountRepository in memory
type LedgerAccountRepository struct {
	s *Store
}

func (r *LedgerAccountRepository) Create(ctx context.Context, account *entity.LedgerAccount) error {
	return r.s.write(ctx, func(d *state) error {
		if _, exists := d.accounts[account.ID]; exists {
			return fmt.Errorf("%w: account %s already exists", workflow.ErrValidation, account.ID)
		}
		d.accounts[account.ID] = *account
		return nil
	})
}

func (r *LedgerAccountRepository) GetByID(ctx context.Context, id string) (*entity.LedgerAccount, error) {
	var found *entity.LedgerAccount
	r.s.read(func(d *state) {
		if acc, ok := d.accounts[id]; ok {
			found = &acc
		}
	})
	return found, nil
}

func (r *LedgerAccountRepository) List(ctx context.Context) ([]*entity.LedgerAccount, error) {
	result := []*entity.LedgerAccount{}
	r.s.read(func(d *state) {
		for _, acc := range d.accounts {
			acc := acc
			result = append(result, &acc)
		}
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *LedgerAccountRepository) Debit(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.s.write(ctx, func(d *state) error {
		acc, ok := d.accounts[id]
		if !ok {
			return fmt.Errorf("%w: account %s", workflow.ErrNotFound, id)
		}
		acc.Balance = acc.Balance.Sub(amount)
		acc.UpdatedAt = time.Now()
		d.accounts[id] = acc
		balance = acc.Balance
		return nil
	})
	return balance, err
}

func (r *LedgerAccountRepository) UpdateBankBalance(ctx context.Context, id string, balance decimal.Decimal, asOf time.Time) error {
	return r.s.write(ctx, func(d *state) error {
		acc, ok := d.accounts[id]
		if !ok {
			return fmt.Errorf("%w: account %s", workflow.ErrNotFound, id)
		}
		acc.BankBalance = entity.NullAmount(balance)
		acc.BankBalanceDate = &asOf
		acc.UpdatedAt = time.Now()
		d.accounts[id] = acc
		return nil
	})
}

var _ port.LedgerAccountRepository = (*LedgerAccountRepository)(nil)
