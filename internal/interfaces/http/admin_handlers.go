package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
)

// CreateAccountRequest is the body of POST /api/accounts
type CreateAccountRequest struct {
	Name     string          `json:"name" binding:"required"`
	Number   string          `json:"number"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

// BankBalanceRequest is the body of PUT /api/accounts/:id/bank-balance
type BankBalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
	AsOf    string          `json:"as_of"`
}

// RecurringPaymentRequest is the body of POST /api/recurring-payments
type RecurringPaymentRequest struct {
	Name           string          `json:"name" binding:"required"`
	CounterpartyID string          `json:"counterparty_id"`
	CategoryID     string          `json:"category_id"`
	AccountID      string          `json:"account_id"`
	LegalEntityID  string          `json:"legal_entity_id"`
	ObjectID       string          `json:"object_id"`
	Amount         decimal.Decimal `json:"amount"`
	IsApproximate  bool            `json:"is_approximate"`
	Frequency      string          `json:"frequency"`
	DayOfMonth     int             `json:"day_of_month"`
	ValidFrom      string          `json:"valid_from"`
	ValidTo        string          `json:"valid_to"`
}

// CreateAccount handles POST /api/accounts
func (h *Handlers) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	account := &entity.LedgerAccount{
		Name:     strings.TrimSpace(req.Name),
		Number:   req.Number,
		Currency: strings.ToUpper(req.Currency),
		Balance:  req.Balance,
	}
	if err := h.deps.Accounts.CreateAccount(c.Request.Context(), account); err != nil {
		h.respondError(c, "create_account", err)
		return
	}
	ok(c, http.StatusCreated, account)
}

// ListAccounts handles GET /api/accounts
func (h *Handlers) ListAccounts(c *gin.Context) {
	accounts, err := h.deps.Accounts.ListAccounts(c.Request.Context())
	if err != nil {
		h.respondError(c, "list_accounts", err)
		return
	}
	ok(c, http.StatusOK, accounts)
}

// SyncBankBalance handles PUT /api/accounts/:id/bank-balance
func (h *Handlers) SyncBankBalance(c *gin.Context) {
	var req BankBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	asOf := h.now()
	if req.AsOf != "" {
		d, err := parseDate("as_of", req.AsOf)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		asOf = *d
	}

	account, err := h.deps.Accounts.SyncBankBalance(c.Request.Context(), c.Param("id"), req.Balance, asOf)
	if err != nil {
		h.respondError(c, "sync_bank_balance", err)
		return
	}
	ok(c, http.StatusOK, account)
}

// CreateRecurringPayment handles POST /api/recurring-payments
func (h *Handlers) CreateRecurringPayment(c *gin.Context) {
	var req RecurringPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	validFrom, err := parseDate("valid_from", req.ValidFrom)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	validTo, err := parseDate("valid_to", req.ValidTo)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if validFrom == nil {
		today := entity.DateOf(h.now())
		validFrom = &today
	}

	frequency := req.Frequency
	if frequency == "" {
		frequency = entity.FrequencyMonthly
	}

	payment := &entity.RecurringPayment{
		Name:           strings.TrimSpace(req.Name),
		CounterpartyID: req.CounterpartyID,
		CategoryID:     req.CategoryID,
		AccountID:      req.AccountID,
		LegalEntityID:  req.LegalEntityID,
		ObjectID:       req.ObjectID,
		Amount:         req.Amount,
		IsApproximate:  req.IsApproximate,
		Frequency:      frequency,
		DayOfMonth:     req.DayOfMonth,
		ValidFrom:      *validFrom,
		ValidTo:        validTo,
		IsActive:       true,
	}
	if err := h.deps.Recurring.CreateTemplate(c.Request.Context(), payment); err != nil {
		h.respondError(c, "create_recurring_payment", err)
		return
	}
	ok(c, http.StatusCreated, payment)
}

// ListRecurringPayments handles GET /api/recurring-payments
func (h *Handlers) ListRecurringPayments(c *gin.Context) {
	payments, err := h.deps.Recurring.ListTemplates(c.Request.Context())
	if err != nil {
		h.respondError(c, "list_recurring_payments", err)
		return
	}
	ok(c, http.StatusOK, payments)
}

// RunSchedulerTick handles POST /api/scheduler/tick?date=YYYY-MM-DD
func (h *Handlers) RunSchedulerTick(c *gin.Context) {
	today := h.now()
	if date := c.Query("date"); date != "" {
		d, err := parseDate("date", date)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		today = *d
	}

	report, err := h.deps.Recurring.GenerateDue(c.Request.Context(), today)
	if err != nil {
		h.respondError(c, "scheduler_tick", err)
		return
	}
	ok(c, http.StatusOK, report)
}

// ListWebhookRequests handles GET /api/webhooks/requests
func (h *Handlers) ListWebhookRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	requests, err := h.deps.Intake.ListRequests(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		h.respondError(c, "list_webhook_requests", err)
		return
	}
	ok(c, http.StatusOK, requests)
}
