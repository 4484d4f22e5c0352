package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/internal/infrastructure/persistence/memory"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/clock"
)

// Mock implementations

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockNotifier struct {
	mu   sync.Mutex
	sent []port.Notification
	err  error
}

func (m *mockNotifier) Notify(ctx context.Context, n port.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) Sent() []port.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]port.Notification(nil), m.sent...)
}

type mockObserver struct {
	mu         sync.Mutex
	generation map[string]int
	webhooks   map[string]int
}

func newMockObserver() *mockObserver {
	return &mockObserver{generation: map[string]int{}, webhooks: map[string]int{}}
}

func (m *mockObserver) ObserveTransition(action, result string, duration time.Duration) {}

func (m *mockObserver) ObserveGeneration(result string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation[result] += count
}

func (m *mockObserver) ObserveWebhook(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[status]++
}

type mockStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: map[string][]byte{}}
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *mockStorage) GetFullPath(relativePath string) string { return "/data/" + relativePath }

type mockRecognizer struct {
	result *port.RecognitionResult
	err    error
	paths  []string
}

func (m *mockRecognizer) Recognize(ctx context.Context, path string) (*port.RecognitionResult, error) {
	m.paths = append(m.paths, path)
	return m.result, m.err
}

// Fixture

var testNow = time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	clock    *clock.FakeClock
	observer *mockObserver
	storage  *mockStorage
	engine   workflow.Engine
	invoices InvoiceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		clock:    clock.NewFakeClock(testNow),
		observer: newMockObserver(),
		storage:  newMockStorage(),
	}
	f.engine = workflow.NewEngine(f.store.Invoices(), f.store.Events(), f.store.Accounts(), f.store,
		workflow.WithClock(f.clock),
	)
	f.invoices = NewInvoiceService(f.store.Invoices(), f.store.Events(), f.engine, f.store, f.storage, f.clock, nopLogger{})

	require.NoError(t, f.store.Accounts().Create(context.Background(), &entity.LedgerAccount{
		ID:       "A1",
		Name:     "Main",
		Currency: "RUB",
		Balance:  decimal.RequireFromString("500000.00"),
	}))
	return f
}

func day(offset int) *time.Time {
	d := entity.DateOf(testNow).AddDate(0, 0, offset)
	return &d
}

func money(s string) decimal.NullDecimal {
	return entity.NullAmount(decimal.RequireFromString(s))
}

// registryInvoice creates a manual invoice and drives it into the registry
func (f *fixture) registryInvoice(t *testing.T, gross string, due *time.Time, objectID, categoryID string) *entity.Invoice {
	t.Helper()
	ctx := context.Background()
	inv, err := f.invoices.CreateInvoice(ctx, entity.SourceManual, CreateInvoiceInput{
		AmountGross:    money(gross),
		CounterpartyID: "C1",
		AccountID:      "A1",
		DueDate:        due,
		ObjectID:       objectID,
		CategoryID:     categoryID,
	}, "alice")
	require.NoError(t, err)

	for _, action := range []domainwf.Trigger{domainwf.TriggerCompleteRecognition, domainwf.TriggerSubmitToRegistry} {
		inv, err = f.engine.Transition(ctx, inv.ID, action, workflow.TransitionParams{
			Actor:           "bob",
			OverrideDueDate: due == nil,
		})
		require.NoError(t, err)
	}
	return inv
}
