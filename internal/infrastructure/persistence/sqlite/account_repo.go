package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

const accountColumns = `id, name, number, currency, balance, bank_balance, bank_balance_date, created_at, updated_at`

// LedgerAccountRepository implements port.LedgerAccountRepository
type LedgerAccountRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewLedgerAccountRepository creates a new ledger account repository
func NewLedgerAccountRepository(db *DB, logger *zap.Logger) port.LedgerAccountRepository {
	return &LedgerAccountRepository{
		db:     db,
		logger: logger,
	}
}

func (r *LedgerAccountRepository) Create(ctx context.Context, account *entity.LedgerAccount) error {
	_, err := r.db.getExecutor(ctx).ExecContext(ctx,
		`INSERT INTO ledger_accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Name, account.Number, account.Currency, account.Balance,
		account.BankBalance, dateValue(account.BankBalanceDate),
		account.CreatedAt.UTC(), account.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create ledger account", zap.String("account_id", account.ID), zap.Error(err))
		return fmt.Errorf("failed to create ledger account: %w", err)
	}
	return nil
}

func (r *LedgerAccountRepository) GetByID(ctx context.Context, id string) (*entity.LedgerAccount, error) {
	account, err := scanAccount(r.db.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get ledger account", zap.String("account_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get ledger account: %w", err)
	}
	return account, nil
}

func (r *LedgerAccountRepository) List(ctx context.Context) ([]*entity.LedgerAccount, error) {
	rows, err := r.db.getExecutor(ctx).QueryContext(ctx,
		`SELECT `+accountColumns+` FROM ledger_accounts ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*entity.LedgerAccount{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// Debit decreases the internal balance by amount.
// Balances are TEXT decimals, so the subtraction happens in Go within one transaction.
func (r *LedgerAccountRepository) Debit(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.getExecutor(txCtx)

		var current decimal.Decimal
		err := exec.QueryRowContext(txCtx, `SELECT balance FROM ledger_accounts WHERE id = ?`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: account %s", workflow.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to read balance: %w", err)
		}

		balance = current.Sub(amount)
		if _, err := exec.ExecContext(txCtx,
			`UPDATE ledger_accounts SET balance = ?, updated_at = ? WHERE id = ?`,
			balance, time.Now().UTC(), id,
		); err != nil {
			r.logger.Error("Failed to debit ledger account", zap.String("account_id", id), zap.Error(err))
			return fmt.Errorf("failed to debit ledger account: %w", err)
		}
		return nil
	})
	return balance, err
}

func (r *LedgerAccountRepository) UpdateBankBalance(ctx context.Context, id string, balance decimal.Decimal, asOf time.Time) error {
	result, err := r.db.getExecutor(ctx).ExecContext(ctx,
		`UPDATE ledger_accounts SET bank_balance = ?, bank_balance_date = ?, updated_at = ? WHERE id = ?`,
		balance, asOf.Format(entity.DateLayout), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update bank balance: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: account %s", workflow.ErrNotFound, id)
	}
	return nil
}

func scanAccount(row rowScanner) (*entity.LedgerAccount, error) {
	var (
		account  entity.LedgerAccount
		bankDate sql.NullString
	)
	if err := row.Scan(&account.ID, &account.Name, &account.Number, &account.Currency, &account.Balance,
		&account.BankBalance, &bankDate, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return nil, err
	}
	date, err := nullDate(bankDate)
	if err != nil {
		return nil, err
	}
	account.BankBalanceDate = date
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return &account, nil
}

// Verify interface compliance
var _ port.LedgerAccountRepository = (*LedgerAccountRepository)(nil)
