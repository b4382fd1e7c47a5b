package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/internal/llm"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
		assert.Len(t, body["messages"], 3)

		if status != http.StatusOK {
			http.Error(w, `{"error":{"message":"rate limited"}}`, status)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	return NewClient(Config{APIKey: "test-key", BaseURL: url + "/v1/", LenientOptional: true}, nil)
}

func TestExtractFields(t *testing.T) {
	content := "```json\n" + `{"invoice_number":"INV-2024-002","invoice_date":"20/02/2024","supplier_name":"Northern Office Supplies",
	"po_reference":"PO-2024-002","currency":"GBP","line_items":[{"description":"Toner cartridge","quantity":10,"unit_price":85,"line_total":850}],
	"subtotal":850,"vat_amount":170,"total":1020}` + "\n```"
	srv := chatServer(t, http.StatusOK, content)

	f, raw, err := newTestClient(srv.URL).ExtractFields(context.Background(), llm.ExtractRequest{Text: "INVOICE INV-2024-002"})
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, "Northern Office Supplies", f.SupplierName)
	assert.Equal(t, "2024-02-20", f.InvoiceDate)
	assert.Equal(t, "PO-2024-002", f.POReference)
	require.Len(t, f.LineItems, 1)
	assert.Equal(t, "10", f.LineItems[0].Quantity)
	assert.Equal(t, "1020", f.Total)
}

func TestExtractFieldsSchemaFailure(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"invoice_number":"INV-9","total":"12.00","line_items":[]}`)

	_, _, err := newTestClient(srv.URL).ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestExtractFieldsStrictMode(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"supplier_name":"Acme","invoice_date":"20/02/2024","total":"1","line_items":[]}`)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, nil)

	_, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"})
	require.Error(t, err)
}

func TestExtractFieldsHTTPError(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "")

	_, _, err := newTestClient(srv.URL).ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"})
	var se *llm.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
}
