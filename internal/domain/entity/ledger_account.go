package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerAccount is a payment source with an internally tracked balance
type LedgerAccount struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Number          string              `json:"number"`
	Currency        string              `json:"currency"`
	Balance         decimal.Decimal     `json:"balance"`
	BankBalance     decimal.NullDecimal `json:"bank_balance"`
	BankBalanceDate *time.Time          `json:"bank_balance_date"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}
