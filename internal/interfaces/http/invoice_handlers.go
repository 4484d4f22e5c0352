package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/service"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// CreateInvoiceRequest is the body of POST /api/invoices
type CreateInvoiceRequest struct {
	Source          string              `json:"source"`
	Actor           string              `json:"actor"`
	Number          *string             `json:"number"`
	AmountGross     decimal.NullDecimal `json:"amount_gross"`
	AmountNet       decimal.NullDecimal `json:"amount_net"`
	AmountVAT       decimal.NullDecimal `json:"amount_vat"`
	InvoiceDate     string              `json:"invoice_date"`
	DueDate         string              `json:"due_date"`
	CounterpartyID  string              `json:"counterparty_id"`
	ObjectID        string              `json:"object_id"`
	ContractID      string              `json:"contract_id"`
	CategoryID      string              `json:"category_id"`
	LegalEntityID   string              `json:"legal_entity_id"`
	AccountID       string              `json:"account_id"`
	SupplyRequestID string              `json:"supply_request_id"`
	DealID          string              `json:"deal_id"`
	LineItems       []entity.LineItem   `json:"line_items"`
}

// UpdateInvoiceRequest is the body of PATCH /api/invoices/:id; absent fields stay unchanged
type UpdateInvoiceRequest struct {
	Number          *string          `json:"number"`
	AmountGross     *decimal.Decimal `json:"amount_gross"`
	AmountNet       *decimal.Decimal `json:"amount_net"`
	AmountVAT       *decimal.Decimal `json:"amount_vat"`
	InvoiceDate     *string          `json:"invoice_date"`
	DueDate         *string          `json:"due_date"`
	CounterpartyID  *string          `json:"counterparty_id"`
	ObjectID        *string          `json:"object_id"`
	ContractID      *string          `json:"contract_id"`
	CategoryID      *string          `json:"category_id"`
	LegalEntityID   *string          `json:"legal_entity_id"`
	AccountID       *string          `json:"account_id"`
	Actor           string           `json:"actor"`
	ExpectedVersion *int64           `json:"expected_version"`
}

// TransitionRequest is the body of POST /api/invoices/:id/transitions
type TransitionRequest struct {
	Action          string `json:"action" binding:"required"`
	Actor           string `json:"actor"`
	Comment         string `json:"comment"`
	NewDueDate      string `json:"new_due_date"`
	OverrideDueDate bool   `json:"override_due_date"`
	ExpectedVersion *int64 `json:"expected_version"`
}

// ListInvoicesRequest represents query parameters for listing invoices
type ListInvoicesRequest struct {
	Status string `form:"status"`
	Source string `form:"source"`
	Query  string `form:"q"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// CreateInvoice handles POST /api/invoices.
// The body is JSON, or multipart with the JSON in the "invoice" field and the file in "document".
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	var document []byte
	var documentName string

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if h.maxUploadBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
		}
		if err := json.Unmarshal([]byte(c.PostForm("invoice")), &req); err != nil {
			badRequest(c, "invalid invoice field: "+err.Error())
			return
		}
		file, err := c.FormFile("document")
		if err == nil {
			f, err := file.Open()
			if err != nil {
				badRequest(c, "failed to open document")
				return
			}
			defer f.Close()
			if document, err = io.ReadAll(f); err != nil {
				badRequest(c, "failed to read document")
				return
			}
			documentName = file.Filename
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	input, err := req.toInput()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	input.Document = document
	input.DocumentName = documentName

	source := req.Source
	if source == "" {
		source = entity.SourceManual
	}

	inv, err := h.deps.Invoices.CreateInvoice(c.Request.Context(), source, input, actorOf(c, req.Actor))
	if err != nil {
		h.respondError(c, "create_invoice", err)
		return
	}
	ok(c, http.StatusCreated, inv)
}

func (r CreateInvoiceRequest) toInput() (service.CreateInvoiceInput, error) {
	invoiceDate, err := parseDate("invoice_date", r.InvoiceDate)
	if err != nil {
		return service.CreateInvoiceInput{}, err
	}
	dueDate, err := parseDate("due_date", r.DueDate)
	if err != nil {
		return service.CreateInvoiceInput{}, err
	}
	return service.CreateInvoiceInput{
		Number:          r.Number,
		AmountGross:     r.AmountGross,
		AmountNet:       r.AmountNet,
		AmountVAT:       r.AmountVAT,
		InvoiceDate:     invoiceDate,
		DueDate:         dueDate,
		CounterpartyID:  r.CounterpartyID,
		ObjectID:        r.ObjectID,
		ContractID:      r.ContractID,
		CategoryID:      r.CategoryID,
		LegalEntityID:   r.LegalEntityID,
		AccountID:       r.AccountID,
		SupplyRequestID: r.SupplyRequestID,
		DealID:          r.DealID,
		LineItems:       r.LineItems,
	}, nil
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	var req ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	page, err := h.deps.Invoices.ListInvoices(c.Request.Context(), entity.InvoiceFilter{
		Status: domainwf.State(req.Status),
		Source: req.Source,
		Search: req.Query,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		h.respondError(c, "list_invoices", err)
		return
	}
	ok(c, http.StatusOK, page)
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	details, err := h.deps.Invoices.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get_invoice", err)
		return
	}
	ok(c, http.StatusOK, details)
}

// UpdateInvoice handles PATCH /api/invoices/:id
func (h *Handlers) UpdateInvoice(c *gin.Context) {
	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	patch := service.DetailsPatch{
		Number:         req.Number,
		AmountGross:    req.AmountGross,
		AmountNet:      req.AmountNet,
		AmountVAT:      req.AmountVAT,
		CounterpartyID: req.CounterpartyID,
		ObjectID:       req.ObjectID,
		ContractID:     req.ContractID,
		CategoryID:     req.CategoryID,
		LegalEntityID:  req.LegalEntityID,
		AccountID:      req.AccountID,
	}
	var err error
	if req.InvoiceDate != nil {
		if patch.InvoiceDate, err = parseDate("invoice_date", *req.InvoiceDate); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if req.DueDate != nil {
		if patch.DueDate, err = parseDate("due_date", *req.DueDate); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	inv, err := h.deps.Invoices.UpdateDetails(c.Request.Context(), c.Param("id"), patch, actorOf(c, req.Actor), req.ExpectedVersion)
	if err != nil {
		h.respondError(c, "update_invoice", err)
		return
	}
	ok(c, http.StatusOK, inv)
}

// TransitionInvoice handles POST /api/invoices/:id/transitions
func (h *Handlers) TransitionInvoice(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	action := domainwf.Trigger(req.Action)
	if action == domainwf.TriggerCompleteRecognition {
		badRequest(c, "complete_recognition is performed by the recognition worker")
		return
	}

	newDueDate, err := parseDate("new_due_date", req.NewDueDate)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	inv, err := h.deps.Engine.Transition(c.Request.Context(), c.Param("id"), action, workflow.TransitionParams{
		Actor:           actorOf(c, req.Actor),
		Comment:         req.Comment,
		NewDueDate:      newDueDate,
		OverrideDueDate: req.OverrideDueDate,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.respondError(c, "transition_"+req.Action, err)
		return
	}
	ok(c, http.StatusOK, inv)
}

// ListInvoiceEvents handles GET /api/invoices/:id/events
func (h *Handlers) ListInvoiceEvents(c *gin.Context) {
	events, err := h.deps.Invoices.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "list_events", err)
		return
	}
	ok(c, http.StatusOK, events)
}

// VerifyConsistency handles GET /api/invoices/:id/consistency
func (h *Handlers) VerifyConsistency(c *gin.Context) {
	report, err := h.deps.Engine.VerifyConsistency(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "verify_consistency", err)
		return
	}
	ok(c, http.StatusOK, report)
}

// QueryEvents handles GET /api/events
func (h *Handlers) QueryEvents(c *gin.Context) {
	from, err := parseTime("from", c.Query("from"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	to, err := parseTime("to", c.Query("to"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	q := event.Query{
		Actor:     c.Query("actor"),
		Type:      event.Type(c.Query("type")),
		InvoiceID: c.Query("invoice_id"),
		From:      from,
		To:        to,
	}
	if limit := c.Query("limit"); limit != "" {
		if _, err := fmt.Sscan(limit, &q.Limit); err != nil {
			badRequest(c, "invalid limit: "+limit)
			return
		}
	}

	events, err := h.deps.Invoices.QueryEvents(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, "query_events", err)
		return
	}
	ok(c, http.StatusOK, events)
}

// actorOf prefers the body actor and falls back to the X-Actor header
func actorOf(c *gin.Context, actor string) string {
	if strings.TrimSpace(actor) != "" {
		return strings.TrimSpace(actor)
	}
	return strings.TrimSpace(c.GetHeader("X-Actor"))
}
