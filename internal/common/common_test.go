package common

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidatorCollectsEveryFailure(t *testing.T) {
	v := NewValidator().
		Field("po_number", "  ", Required).
		Field("currency", "gbp", CurrencyCode).
		Field("total", -1.0, NonNegative).
		Field("supplier", "Acme", Required)

	require.True(t, v.HasErrors())
	err := v.Error()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "po_number is required")
	assert.Contains(t, err.Error(), "currency must be 3 uppercase letters")
	assert.Contains(t, err.Error(), "total must not be negative")
	assert.NotContains(t, err.Error(), "supplier")

	st, ok := status.FromError(ValidateAndReturnError(v))
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
}

func TestValidatorPasses(t *testing.T) {
	v := NewValidator().Field("currency", "EUR", CurrencyCode).Field("qty", 3, NonNegative)
	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())
	assert.NoError(t, ValidateAndReturnError(v))
}

func TestRequired(t *testing.T) {
	blank := " "
	name := "x"
	assert.NotNil(t, Required("f", nil))
	assert.NotNil(t, Required("f", &blank))
	assert.NotNil(t, Required("f", (*string)(nil)))
	assert.Nil(t, Required("f", &name))
	assert.Nil(t, Required("f", 0))
	assert.NotNil(t, NonNegative("f", "ten"))
}

func TestErrorKindsUnwrap(t *testing.T) {
	err := ExtractionFailure("no text", errors.New("tesseract exited"))
	assert.True(t, errors.Is(err, ErrExtractionFailure))
	assert.Contains(t, err.Error(), "EXTRACTION_FAILURE")

	assert.True(t, errors.Is(ExtractionFailure("empty", nil), ErrExtractionFailure))
	assert.True(t, errors.Is(LogicFault("matching", errors.New("boom")), ErrLogicFault))
	assert.Nil(t, WrapError(nil, "ignored"))
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Data:       DataConfig{PODatabasePath: "po.json"},
			Worker:     WorkerConfig{Workers: 2},
			Narration:  NarrationConfig{Provider: "template"},
			Thresholds: DefaultThresholds(),
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no PO source", func(c *Config) { c.Data.PODatabasePath = "" }},
		{"no workers", func(c *Config) { c.Worker.Workers = 0 }},
		{"unknown narrator", func(c *Config) { c.Narration.Provider = "claude" }},
		{"unordered price bands", func(c *Config) { c.Thresholds.PriceFlagReview = 0.5 }},
		{"confidence bands inverted", func(c *Config) { c.Thresholds.MatchAcceptableConfidence = 0.99 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("WORKERS", "7")
	t.Setenv("INVOICE_TIMEOUT", "90s")
	t.Setenv("PRICE_ESCALATE", "0.2")
	t.Setenv("DATA_DIR", "/srv/data")
	t.Setenv("PO_DATABASE_PATH", "")
	t.Setenv("NARRATION_PROVIDER", "Gemini")

	cfg := LoadConfig()
	assert.Equal(t, 7, cfg.Worker.Workers)
	assert.Equal(t, 90*time.Second, cfg.Worker.InvoiceTimeout)
	assert.Equal(t, 0.2, cfg.Thresholds.PriceEscalate)
	assert.Equal(t, "gemini", cfg.Narration.Provider)
	assert.Equal(t, filepath.Join("/srv/data", "purchase_orders.json"), cfg.Data.PODatabasePath)
}

func TestNamedInvoices(t *testing.T) {
	d := DataConfig{DataDir: "data", NamedInvoices: DefaultNamedInvoices}
	p, ok := d.NamedInvoicePath(" 4 ")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("data", "invoices", "Invoice_4_Price_Trap.pdf"), p)

	_, ok = d.NamedInvoicePath("6")
	assert.False(t, ok)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, d.NamedInvoiceKeys())
}

func TestContextHelpers(t *testing.T) {
	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "run-1", RunIDFromContext(ctx))
	assert.Empty(t, RunIDFromContext(context.Background()))

	c, cancel := WithTimeout(context.Background(), 0)
	defer cancel()
	_, hasDeadline := c.Deadline()
	assert.False(t, hasDeadline)

	c2, cancel2 := WithTimeout(context.Background(), time.Minute)
	defer cancel2()
	_, hasDeadline = c2.Deadline()
	assert.True(t, hasDeadline)
}
