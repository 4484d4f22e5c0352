package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/service"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/internal/infrastructure/persistence/memory"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/clock"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memStorage) Save(ctx context.Context, path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return nil
}

func (m *memStorage) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

func (m *memStorage) Exists(ctx context.Context, path string) bool {
	_, err := m.Read(ctx, path)
	return err == nil
}

func (m *memStorage) Delete(ctx context.Context, path string) error { return nil }

func (m *memStorage) GetFullPath(relativePath string) string { return relativePath }

type stubExporter struct {
	rows []service.RegistryRow
}

func (s *stubExporter) Write(w io.Writer, rows []service.RegistryRow) error {
	s.rows = rows
	_, err := w.Write([]byte("PK-xlsx"))
	return err
}

var testNow = time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

type testServer struct {
	router   *gin.Engine
	engine   workflow.Engine
	store    *memory.Store
	storage  *memStorage
	exporter *stubExporter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	clk := clock.NewFakeClock(testNow)
	storage := &memStorage{files: map[string][]byte{}}
	engine := workflow.NewEngine(store.Invoices(), store.Events(), store.Accounts(), store, workflow.WithClock(clk))
	invoices := service.NewInvoiceService(store.Invoices(), store.Events(), engine, store, storage, clk, nopLogger{})
	exporter := &stubExporter{}

	deps := Dependencies{
		Invoices:  invoices,
		Engine:    engine,
		Dashboard: service.NewDashboardService(store.Invoices(), store.Accounts()),
		Recurring: service.NewRecurringService(store.RecurringPayments(), store.Invoices(), engine, store, nil, clk, 0, nopLogger{}),
		Intake: service.NewIntakeService(invoices, store.Invoices(), store.WebhookRequests(),
			func(token string) bool { return token == "secret" }, nil, nil, clk, nopLogger{}),
		Accounts: service.NewAccountService(store.Accounts(), clk, nopLogger{}),
		Exporter: exporter,
		Clock:    clk,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	}

	srv := NewServer(DefaultServerConfig(), deps, nopLogger{})
	gin.SetMode(gin.TestMode)
	return &testServer{router: srv.Router(), engine: engine, store: store, storage: storage, exporter: exporter}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func data(resp map[string]interface{}) map[string]interface{} {
	d, _ := resp["data"].(map[string]interface{})
	return d
}

// registryInvoice creates an invoice over HTTP and moves it into the registry
func (s *testServer) registryInvoice(t *testing.T, gross, due string) string {
	t.Helper()
	rec, resp := s.do(t, http.MethodPost, "/api/invoices", map[string]interface{}{
		"actor":           "alice",
		"amount_gross":    gross,
		"counterparty_id": "C1",
		"account_id":      "A1",
		"due_date":        due,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := data(resp)["id"].(string)

	_, err := s.engine.Transition(context.Background(), id, domainwf.TriggerCompleteRecognition,
		workflow.TransitionParams{Actor: entity.ActorSystem})
	require.NoError(t, err)

	rec, _ = s.do(t, http.MethodPost, "/api/invoices/"+id+"/transitions", map[string]interface{}{
		"action": "submit_to_registry", "actor": "bob",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}

func (s *testServer) createAccount(t *testing.T) {
	t.Helper()
	require.NoError(t, s.store.Accounts().Create(context.Background(), &entity.LedgerAccount{
		ID: "A1", Name: "Main", Currency: "RUB", Balance: decimal.RequireFromString("500000.00"),
	}))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", data(resp)["status"])

	rec, _ = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestInvoiceLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createAccount(t)
	id := s.registryInvoice(t, "120000.00", "2026-03-20")

	rec, resp := s.do(t, http.MethodPost, "/api/invoices/"+id+"/transitions", map[string]interface{}{
		"action": "approve", "actor": "director", "expected_version": 3,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", data(resp)["status"])

	rec, _ = s.do(t, http.MethodPost, "/api/invoices/"+id+"/transitions", map[string]interface{}{
		"action": "mark_paid", "actor": "cashier",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, resp = s.do(t, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := resp["data"].([]interface{})
	require.Len(t, accounts, 1)
	assert.Equal(t, "380000", accounts[0].(map[string]interface{})["balance"])

	rec, resp = s.do(t, http.MethodGet, "/api/invoices/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, data(resp)["events"], 5)

	rec, resp = s.do(t, http.MethodGet, "/api/invoices/"+id+"/consistency", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, data(resp)["consistent"])

	rec, resp = s.do(t, http.MethodGet, "/api/events?actor=director&type=approved", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["data"], 1)
}

func TestTransitionErrorCodes(t *testing.T) {
	s := newTestServer(t)
	s.createAccount(t)
	id := s.registryInvoice(t, "100.00", "2026-03-20")

	tests := []struct {
		name       string
		invoiceID  string
		body       map[string]interface{}
		wantStatus int
		wantCode   string
	}{
		{"blank reject comment", id, map[string]interface{}{"action": "reject", "actor": "d", "comment": "  "}, http.StatusUnprocessableEntity, "missing_comment"},
		{"pay before approval", id, map[string]interface{}{"action": "mark_paid", "actor": "d"}, http.StatusConflict, "invalid_transition"},
		{"stale version", id, map[string]interface{}{"action": "approve", "actor": "d", "expected_version": 1}, http.StatusConflict, "concurrent_modification"},
		{"unknown invoice", "missing", map[string]interface{}{"action": "approve", "actor": "d"}, http.StatusNotFound, "not_found"},
		{"missing actor", id, map[string]interface{}{"action": "approve"}, http.StatusBadRequest, "validation_failed"},
		{"unknown action", id, map[string]interface{}{"action": "archive", "actor": "d"}, http.StatusBadRequest, "validation_failed"},
		{"system action", id, map[string]interface{}{"action": "complete_recognition", "actor": "d"}, http.StatusBadRequest, "validation_failed"},
		{"bad date", id, map[string]interface{}{"action": "reschedule", "actor": "d", "comment": "x", "new_due_date": "20.03.2026"}, http.StatusBadRequest, "validation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := s.do(t, http.MethodPost, "/api/invoices/"+tt.invoiceID+"/transitions", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tt.wantCode, resp["code"])
		})
	}
}

func TestCreateInvoice_Validation(t *testing.T) {
	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodPost, "/api/invoices", map[string]interface{}{
		"actor": "alice", "counterparty_id": "C1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp["error"], "amount_gross")

	rec, _ = s.do(t, http.MethodPost, "/api/invoices", map[string]interface{}{
		"actor": "alice", "source": "recurring", "amount_gross": "1", "counterparty_id": "C1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateInvoice_Multipart(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("invoice", `{"actor":"alice","amount_gross":"500.00","counterparty_id":"C1"}`))
	part, err := mw.CreateFormFile("document", "scan.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.7"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/invoices", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	path := data(resp)["document_path"].(string)
	assert.True(t, s.storage.Exists(context.Background(), path))
}

func TestUpdateInvoice(t *testing.T) {
	s := newTestServer(t)
	rec, resp := s.do(t, http.MethodPost, "/api/invoices", map[string]interface{}{
		"actor": "alice", "amount_gross": "100.00", "counterparty_id": "C1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := data(resp)["id"].(string)

	rec, resp = s.do(t, http.MethodPatch, "/api/invoices/"+id, map[string]interface{}{
		"due_date": "2026-04-01", "object_id": "OBJ1", "expected_version": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", resp["code"])

	rec, resp = s.do(t, http.MethodPatch, "/api/invoices/"+id, map[string]interface{}{
		"actor": "bob", "due_date": "2026-04-01", "object_id": "OBJ1", "expected_version": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "OBJ1", data(resp)["object_id"])

	rec, resp = s.do(t, http.MethodPatch, "/api/invoices/"+id, map[string]interface{}{
		"actor": "bob", "object_id": "OBJ2", "expected_version": 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "concurrent_modification", resp["code"])

	rec, resp = s.do(t, http.MethodGet, "/api/invoices/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := data(resp)["events"].([]interface{})
	require.Len(t, events, 2)
	edit := events[1].(map[string]interface{})
	assert.Equal(t, "details_updated", edit["type"])
	assert.Equal(t, "bob", edit["actor"])
}

func TestListInvoices(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		rec, _ := s.do(t, http.MethodPost, "/api/invoices", map[string]interface{}{
			"actor": "alice", "amount_gross": "10", "counterparty_id": "C1",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, resp := s.do(t, http.MethodGet, "/api/invoices?status=recognition&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), data(resp)["total"])
	assert.Len(t, data(resp)["items"], 2)

	rec, resp = s.do(t, http.MethodGet, "/api/invoices?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", resp["code"])
}

func TestDashboardAndExport(t *testing.T) {
	s := newTestServer(t)
	s.createAccount(t)
	s.registryInvoice(t, "100.00", "2026-03-10")
	s.registryInvoice(t, "200.00", "2026-03-12")

	rec, resp := s.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := data(resp)["registry_summary"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["total"].(map[string]interface{})["count"])
	assert.Equal(t, float64(1), summary["overdue"].(map[string]interface{})["count"])

	rec, resp = s.do(t, http.MethodGet, "/api/registry", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["data"], 2)

	rec, _ = s.do(t, http.MethodGet, "/api/registry/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "registry-2026-03-12.xlsx")
	assert.Equal(t, "PK-xlsx", rec.Body.String())
	assert.Len(t, s.exporter.rows, 2)
}

func TestAccountsEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodPost, "/api/accounts", map[string]interface{}{"name": "Reserve", "balance": "1000"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := data(resp)["id"].(string)
	assert.Equal(t, "RUB", data(resp)["currency"])

	rec, resp = s.do(t, http.MethodPut, "/api/accounts/"+id+"/bank-balance", map[string]interface{}{"balance": "950.50", "as_of": "2026-03-11"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "950.5", data(resp)["bank_balance"])

	rec, _ = s.do(t, http.MethodPut, "/api/accounts/missing/bank-balance", map[string]interface{}{"balance": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecurringAndSchedulerTick(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/api/recurring-payments", map[string]interface{}{
		"name": "Office rent", "counterparty_id": "C9", "amount": "50000.00",
		"day_of_month": 5, "valid_from": "2026-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, resp := s.do(t, http.MethodPost, "/api/scheduler/tick", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), data(resp)["generated"])

	rec, resp = s.do(t, http.MethodPost, "/api/scheduler/tick?date=2026-03-12", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), data(resp)["generated"])

	rec, resp = s.do(t, http.MethodGet, "/api/recurring-payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["data"], 1)

	rec, _ = s.do(t, http.MethodPost, "/api/recurring-payments", map[string]interface{}{
		"name": "Broken", "counterparty_id": "C9", "amount": "1", "day_of_month": 31,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRequestLog(t *testing.T) {
	s := newTestServer(t)
	intake := service.NewIntakeService(nil, s.store.Invoices(), s.store.WebhookRequests(),
		func(string) bool { return false }, nil, nil, clock.NewFakeClock(testNow), nopLogger{})
	_, err := intake.HandleBitrixDeal(context.Background(), []byte(`{"deal":{"id":"1"}}`))
	require.Error(t, err)

	rec, resp := s.do(t, http.MethodGet, "/api/webhooks/requests?status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["data"], 1)
}
