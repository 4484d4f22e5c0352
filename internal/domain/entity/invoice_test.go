package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

func amount(s string) decimal.NullDecimal {
	return NullAmount(decimal.RequireFromString(s))
}

func TestInvoice_Validate_AmountInvariant(t *testing.T) {
	tests := []struct {
		name    string
		gross   decimal.NullDecimal
		net     decimal.NullDecimal
		vat     decimal.NullDecimal
		wantErr bool
	}{
		{"all unset", decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.NullDecimal{}, false},
		{"only gross", amount("120000.00"), decimal.NullDecimal{}, decimal.NullDecimal{}, false},
		{"exact sum", amount("120000.00"), amount("100000.00"), amount("20000.00"), false},
		{"off by a cent", amount("120000.00"), amount("100000.00"), amount("19999.99"), true},
		{"net set vat unset", amount("120000.00"), amount("1.00"), decimal.NullDecimal{}, false},
		{"negative gross", amount("-1"), decimal.NullDecimal{}, decimal.NullDecimal{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invoice{
				Source:      SourceManual,
				Status:      workflow.StateRecognition,
				AmountGross: tt.gross,
				AmountNet:   tt.net,
				AmountVAT:   tt.vat,
			}
			err := inv.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, workflow.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInvoice_Validate_RejectsUnknownEnums(t *testing.T) {
	inv := &Invoice{Source: "fax", Status: workflow.StateReview}
	assert.ErrorIs(t, inv.Validate(), workflow.ErrValidation)

	inv = &Invoice{Source: SourceManual, Status: "draft"}
	assert.ErrorIs(t, inv.Validate(), workflow.ErrValidation)
}

func TestInvoice_MissingForRegistry(t *testing.T) {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	inv := &Invoice{}
	assert.Equal(t, []string{"amount_gross", "counterparty", "due_date"}, inv.MissingForRegistry(false))
	assert.Equal(t, []string{"amount_gross", "counterparty"}, inv.MissingForRegistry(true))

	inv = &Invoice{AmountGross: amount("10"), CounterpartyID: "C1", DueDate: &due}
	assert.Empty(t, inv.MissingForRegistry(false))
}

func TestInvoice_Clone(t *testing.T) {
	inv := &Invoice{ID: "a", LineItems: []LineItem{{RawName: "cement"}}}
	c := inv.Clone()
	require.NotNil(t, c)

	c.LineItems[0].RawName = "sand"
	c.ID = "b"

	assert.Equal(t, "cement", inv.LineItems[0].RawName)
	assert.Equal(t, "a", inv.ID)
	assert.Nil(t, (*Invoice)(nil).Clone())
}
