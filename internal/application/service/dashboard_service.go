package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/overdue"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// BucketTotal is a count and gross sum over a set of invoices
type BucketTotal struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

func (b *BucketTotal) add(amount decimal.Decimal) {
	b.Count++
	b.Amount = b.Amount.Add(amount)
}

// RegistrySummary buckets the registry by due date.
// DueThisWeek and DueThisMonth are cumulative from today; invoices without a due date count only in Total.
type RegistrySummary struct {
	Total        BucketTotal `json:"total"`
	Overdue      BucketTotal `json:"overdue"`
	DueToday     BucketTotal `json:"due_today"`
	DueThisWeek  BucketTotal `json:"due_this_week"`
	DueThisMonth BucketTotal `json:"due_this_month"`
}

// GroupTotal is a group-by row of the registry
type GroupTotal struct {
	Key    string          `json:"key"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// AccountBalance is the internal and last-synced bank balance of a ledger account
type AccountBalance struct {
	AccountID       string              `json:"account_id"`
	Name            string              `json:"name"`
	Number          string              `json:"number"`
	Currency        string              `json:"currency"`
	Balance         decimal.Decimal     `json:"balance"`
	BankBalance     decimal.NullDecimal `json:"bank_balance"`
	BankBalanceDate *time.Time          `json:"bank_balance_date"`
}

// Dashboard is the aggregated view of what is owed, by whom and by when
type Dashboard struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	RegistrySummary RegistrySummary  `json:"registry_summary"`
	ByObject        []GroupTotal     `json:"by_object"`
	ByCategory      []GroupTotal     `json:"by_category"`
	AccountBalances []AccountBalance `json:"account_balances"`
}

// RegistryRow is an invoice of the registry with its overdue classification
type RegistryRow struct {
	Invoice   *entity.Invoice `json:"invoice"`
	Bucket    overdue.Bucket  `json:"overdue_bucket"`
	DaysUntil *int            `json:"days_until_due"`
}

// DashboardService derives dashboard figures from current invoice states on read
type DashboardService interface {
	GetDashboard(ctx context.Context, now time.Time) (*Dashboard, error)
	ListRegistry(ctx context.Context, now time.Time) ([]RegistryRow, error)
}

type dashboardServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	accountRepo port.LedgerAccountRepository
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(invoiceRepo port.InvoiceRepository, accountRepo port.LedgerAccountRepository) DashboardService {
	return &dashboardServiceImpl{
		invoiceRepo: invoiceRepo,
		accountRepo: accountRepo,
	}
}

// GetDashboard scans the registry once; each invoice contributes from a single fetched row
func (s *dashboardServiceImpl) GetDashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	registry, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{GeneratedAt: now}
	summary := &dashboard.RegistrySummary
	byObject := map[string]*GroupTotal{}
	byCategory := map[string]*GroupTotal{}

	for _, inv := range registry {
		amount := inv.Gross()
		summary.Total.add(amount)

		if inv.DueDate != nil {
			switch overdue.Classify(inv.Status, inv.DueDate, now) {
			case overdue.BucketOverdue:
				summary.Overdue.add(amount)
			case overdue.BucketDueToday:
				summary.DueToday.add(amount)
			}
			if overdue.InCurrentWeek(*inv.DueDate, now) {
				summary.DueThisWeek.add(amount)
			}
			if overdue.InCurrentMonth(*inv.DueDate, now) {
				summary.DueThisMonth.add(amount)
			}
		}

		addToGroup(byObject, inv.ObjectID, amount)
		addToGroup(byCategory, inv.CategoryID, amount)
	}

	dashboard.ByObject = sortedGroups(byObject)
	dashboard.ByCategory = sortedGroups(byCategory)

	accounts, err := s.accountRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger accounts: %w", err)
	}
	dashboard.AccountBalances = make([]AccountBalance, 0, len(accounts))
	for _, acc := range accounts {
		dashboard.AccountBalances = append(dashboard.AccountBalances, AccountBalance{
			AccountID:       acc.ID,
			Name:            acc.Name,
			Number:          acc.Number,
			Currency:        acc.Currency,
			Balance:         acc.Balance,
			BankBalance:     acc.BankBalance,
			BankBalanceDate: acc.BankBalanceDate,
		})
	}

	return dashboard, nil
}

// ListRegistry returns the registry ordered by due date, undated invoices last
func (s *dashboardServiceImpl) ListRegistry(ctx context.Context, now time.Time) ([]RegistryRow, error) {
	registry, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]RegistryRow, 0, len(registry))
	for _, inv := range registry {
		row := RegistryRow{Invoice: inv, Bucket: overdue.Classify(inv.Status, inv.DueDate, now)}
		if inv.DueDate != nil {
			days := overdue.DaysUntil(*inv.DueDate, now)
			row.DaysUntil = &days
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Invoice.DueDate, rows[j].Invoice.DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return rows, nil
}

// registry lists in_registry invoices, counting each invoice at most once
func (s *dashboardServiceImpl) registry(ctx context.Context) ([]*entity.Invoice, error) {
	invoices, err := s.invoiceRepo.ListByStatus(ctx, domainwf.StateInRegistry, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry: %w", err)
	}

	seen := make(map[string]bool, len(invoices))
	registry := make([]*entity.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv == nil || seen[inv.ID] || inv.Status != domainwf.StateInRegistry {
			continue
		}
		seen[inv.ID] = true
		registry = append(registry, inv)
	}
	return registry, nil
}

func addToGroup(groups map[string]*GroupTotal, key string, amount decimal.Decimal) {
	g, ok := groups[key]
	if !ok {
		g = &GroupTotal{Key: key}
		groups[key] = g
	}
	g.Count++
	g.Amount = g.Amount.Add(amount)
}

func sortedGroups(groups map[string]*GroupTotal) []GroupTotal {
	result := make([]GroupTotal, 0, len(groups))
	for _, g := range groups {
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Amount.Equal(result[j].Amount) {
			return result[i].Amount.GreaterThan(result[j].Amount)
		}
		return result[i].Key < result[j].Key
	})
	return result
}
