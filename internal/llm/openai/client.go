package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/llm"
)

// ExtractFields implements llm.FieldExtractor using text-only chat/completions in JSON mode.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.InvoiceFields, []byte, error) {
	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()
	if req.DefaultCurrency == "" {
		req.DefaultCurrency = c.cfg.DefaultCurrency
	}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"filename", req.FilenameHint,
	)

	schema := llm.BuildInvoiceJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.InvoiceFields{}, nil, fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return llm.InvoiceFields{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices", "req_id", rid, "raw", string(raw))
		return llm.InvoiceFields{}, raw, fmt.Errorf("no choices in openai response")
	}

	content, _, err := llm.NormalizeAndSanitizeJSON([]byte(cc.Choices[0].Message.Content), c.logger)
	if err != nil {
		c.logger.Error("llm.extract.sanitize_failed", "req_id", rid, "error", err)
		return llm.InvoiceFields{}, []byte(cc.Choices[0].Message.Content), err
	}

	// Validate strictly first.
	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		if !c.cfg.LenientOptional {
			c.logger.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", err, "content", string(content))
			return llm.InvoiceFields{}, content, fmt.Errorf("schema validation failed: %w", err)
		}
		// Try a lenient sanitize: drop/normalize optional offenders and re-validate.
		cleaned, dropped, sErr := llm.SanitizeOptionalFields(content)
		if sErr != nil {
			c.logger.Error("llm.extract.sanitize_failed", "req_id", rid, "error", sErr)
			return llm.InvoiceFields{}, content, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.logger.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", vErr, "content", string(cleaned))
			return llm.InvoiceFields{}, cleaned, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.logger.Warn("llm.extract.lenient_sanitize_applied", "req_id", rid, "dropped", dropped)
		content = cleaned
	}

	var out llm.InvoiceFields
	if err := json.Unmarshal(content, &out); err != nil {
		c.logger.Error("llm.extract.unmarshal_failed", "req_id", rid, "error", err)
		return llm.InvoiceFields{}, content, fmt.Errorf("unmarshal fields: %w", err)
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"supplier", out.SupplierName,
		"invoice_number", out.InvoiceNumber,
		"po_reference", out.POReference,
		"line_items", len(out.LineItems),
		"total", out.Total,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
