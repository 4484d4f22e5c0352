package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/service"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

func TestVerifier(t *testing.T) {
	v := NewVerifier("secret-token", zap.NewNop())
	assert.True(t, v.Verify("secret-token"))
	assert.False(t, v.Verify("secret"))
	assert.False(t, v.Verify(""))

	unconfigured := NewVerifier("", zap.NewNop())
	assert.False(t, unconfigured.Verify(""))
	assert.False(t, unconfigured.Verify("anything"))
}

type stubIntake struct {
	body   string
	result *service.IntakeResult
	err    error
}

func (s *stubIntake) HandleBitrixDeal(ctx context.Context, raw []byte) (*service.IntakeResult, error) {
	s.body = string(raw)
	return s.result, s.err
}

func (s *stubIntake) ListRequests(ctx context.Context, status string, limit int) ([]*entity.WebhookRequest, error) {
	return nil, nil
}

func serve(t *testing.T, intake service.IntakeService, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(intake, zap.NewNop()).Register(r)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/bitrix", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_StatusMapping(t *testing.T) {
	failed := &service.IntakeResult{RequestID: "R1", Status: entity.WebhookStatusFailed}

	tests := []struct {
		name       string
		result     *service.IntakeResult
		err        error
		wantStatus int
	}{
		{"accepted", &service.IntakeResult{RequestID: "R1", Status: entity.WebhookStatusAccepted, InvoiceID: "INV1"}, nil, http.StatusOK},
		{"duplicate", &service.IntakeResult{RequestID: "R1", Status: entity.WebhookStatusDuplicate, InvoiceID: "INV1"}, nil, http.StatusOK},
		{"wrong token", failed, fmt.Errorf("%w: invalid application token", service.ErrUnauthorized), http.StatusUnauthorized},
		{"mapping failure", failed, fmt.Errorf("%w: deal id is required", domainwf.ErrValidation), http.StatusUnprocessableEntity},
		{"recorded failure", failed, fmt.Errorf("database is locked"), http.StatusInternalServerError},
		{"unrecorded failure", nil, fmt.Errorf("database is locked"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intake := &stubIntake{result: tt.result, err: tt.err}
			rec := serve(t, intake, `{"deal":{"id":"42"}}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, `{"deal":{"id":"42"}}`, intake.body)
		})
	}
}

func TestHandler_ReturnsIntakeResult(t *testing.T) {
	intake := &stubIntake{result: &service.IntakeResult{RequestID: "R1", Status: entity.WebhookStatusAccepted, InvoiceID: "INV1"}}
	rec := serve(t, intake, `{}`)

	var got service.IntakeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "INV1", got.InvoiceID)
	assert.Equal(t, entity.WebhookStatusAccepted, got.Status)
}
