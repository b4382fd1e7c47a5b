package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
)

const poFile = `{"purchase_orders": [
  {"po_number": "PO-2024-003", "supplier": "Precision Tools Ltd", "date": "2024-02-25", "total": 270, "currency": "GBP",
   "line_items": [{"description": "Drill bit set", "quantity": 9, "unit": "units", "unit_price": 30, "line_total": 270}]}
]}`

const structuredInvoice = `{
  "invoice_number": "INV-2024-003", "invoice_date": "2024-03-01",
  "supplier_name": "Precision Tools Ltd", "po_reference": "PO-2024-003",
  "line_items": [{"description": "Drill bit set", "quantity": 9, "unit_price": 30, "line_total": 270}],
  "subtotal": 270, "total": 270
}`

func setupEnv(t *testing.T) (dir string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("DB_URL", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("NARRATION_PROVIDER", "template")
	t.Setenv("PO_DATABASE_PATH", filepath.Join(dir, "purchase_orders.json"))
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "outputs"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "purchase_orders.json"), []byte(poFile), 0o644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := newApp(&out, &errOut).Run(append([]string{"reconcile"}, args...))
	return out.String(), err
}

func TestRunDirectoryWritesResults(t *testing.T) {
	dir := setupEnv(t)
	inbox := filepath.Join(dir, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "inv3.json"), []byte(structuredInvoice), 0o644))
	xlsx := filepath.Join(dir, "results.xlsx")

	out, err := run(t, "run", "--dir", inbox, "--xlsx", xlsx)
	require.NoError(t, err)
	assert.Contains(t, out, "INV-2024-003")
	assert.Contains(t, out, "PO-2024-003")
	assert.Contains(t, out, "Processed 1 invoices")

	b, err := os.ReadFile(filepath.Join(dir, "outputs", "all_results.json"))
	require.NoError(t, err)
	var summary pipeline.BatchSummary
	require.NoError(t, json.Unmarshal(b, &summary))
	require.Len(t, summary.Results, 1)
	assert.Equal(t, constants.ActionAutoApprove, summary.Results[0].ProcessingResults.RecommendedAction)

	assert.FileExists(t, filepath.Join(dir, "outputs", "inv3_result.json"))
	assert.FileExists(t, xlsx)
}

func TestRunRequiresOneSelection(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "choose --file")

	_, err = run(t, "run", "--all", "--invoice", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")

	_, err = run(t, "run", "--invoice", "9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown invoice")
}

func TestPOList(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "po", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Precision Tools Ltd")
	assert.Contains(t, out, "1 purchase orders")
}

func TestPOImportAndExportNeedStore(t *testing.T) {
	dir := setupEnv(t)
	_, err := run(t, "po", "import", "--json", filepath.Join(dir, "purchase_orders.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_URL")

	_, err = run(t, "export")
	require.Error(t, err)
}

func TestPOImportIntoSQLite(t *testing.T) {
	dir := setupEnv(t)
	dsn := filepath.Join(dir, "reconciler.db")

	out, err := run(t, "--dsn", dsn, "po", "import", "--json", filepath.Join(dir, "purchase_orders.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 purchase orders (0 skipped)")

	out, err = run(t, "--dsn", dsn, "po", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "PO-2024-003")
}

func TestExtractPrintsSnapshot(t *testing.T) {
	dir := setupEnv(t)
	p := filepath.Join(dir, "inv.json")
	require.NoError(t, os.WriteFile(p, []byte(structuredInvoice), 0o644))

	out, err := run(t, "extract", "--file", p)
	require.NoError(t, err)
	assert.Contains(t, out, `"document_quality": "structured"`)
	assert.Contains(t, out, "INV-2024-003")
}
