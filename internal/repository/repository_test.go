package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
)

const poDatabase = `{
  "purchase_orders": [
    {"po_number": "PO-2024-002", "supplier": "Northern Office Supplies", "date": "2024-01-20", "total": 850,
     "line_items": [{"item_id": "TN-85", "description": "Toner cartridge", "quantity": 10, "unit_price": 85.00, "line_total": 850.00}]},
    {"po_number": "PO-2024-001", "supplier": "Acme Industrial Supplies Ltd", "date": "2024-01-10", "total": "1025.00", "currency": "gbp",
     "line_items": [
       {"item_id": "BLT-M8", "description": "Steel bolts M8", "quantity": 100, "unit": "pcs", "unit_price": 0.25, "line_total": 25},
       {"description": "Hydraulic pump", "quantity": 2, "unit_price": 500, "line_total": 1000}
     ]},
    {"po_number": "", "supplier": "Ghost Ltd", "date": "2024-01-01", "total": 10, "line_items": []},
    {"po_number": "PO-2024-009", "supplier": "Broken Ltd", "date": "2024-01-01", "total": "lots", "line_items": []},
    {"po_number": "po-2024-001", "supplier": "Acme again", "date": "2024-01-11", "total": 1, "line_items": []},
    {"po_number": "PO-2024-010", "supplier": "Negative Ltd", "date": "2024-01-01", "total": 5,
     "line_items": [{"description": "", "quantity": -1, "unit_price": 1, "line_total": 1}]},
    "not an object"
  ]
}`

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestLoadPurchaseOrders(t *testing.T) {
	orders, skipped, err := LoadPurchaseOrders(strings.NewReader(poDatabase), nil)
	require.NoError(t, err)

	require.Len(t, orders, 2)
	assert.Equal(t, "PO-2024-002", orders[0].PONumber, "file order is kept")
	assert.Equal(t, "GBP", orders[0].Currency)
	assert.Equal(t, "TN-85", orders[0].LineItems[0].ItemCode)
	assert.Equal(t, "units", orders[0].LineItems[0].Unit)

	acme := orders[1]
	assert.Equal(t, 1025.0, acme.Total)
	assert.Equal(t, "GBP", acme.Currency)
	require.Len(t, acme.LineItems, 2)
	assert.Equal(t, "pcs", acme.LineItems[0].Unit)
	assert.Empty(t, acme.LineItems[1].ItemCode)

	require.Len(t, skipped, 5)
	for _, e := range skipped {
		assert.ErrorIs(t, e, common.ErrMalformedPORecord)
	}
	assert.Contains(t, skipped[0].Error(), "po_number")
	assert.Contains(t, skipped[1].Error(), "record 3")
	assert.Contains(t, skipped[2].Error(), "duplicate po_number")
	assert.Contains(t, skipped[3].Error(), "line_items[0].description")
	assert.Contains(t, skipped[3].Error(), "line_items[0].quantity")
}

func TestLoadedPOLinesAreFullyConfident(t *testing.T) {
	orders, _, err := LoadPurchaseOrders(strings.NewReader(poDatabase), nil)
	require.NoError(t, err)
	for _, po := range orders {
		for _, li := range po.LineItems {
			assert.Equal(t, 1.0, li.ExtractionConfidence, po.PONumber)
		}
	}
}

func TestLoadPurchaseOrdersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "purchase_orders.json")
	require.NoError(t, os.WriteFile(path, []byte(poDatabase), 0o644))

	orders, _, err := LoadPurchaseOrdersFile(path, nil)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	_, _, err = LoadPurchaseOrdersFile(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)

	_, _, err = LoadPurchaseOrders(strings.NewReader(`[1,2,3]`), nil)
	require.Error(t, err)
}

func TestPurchaseOrderRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewPurchaseOrderRepository(db, nil)
	ctx := context.Background()

	orders, _, err := LoadPurchaseOrders(strings.NewReader(poDatabase), nil)
	require.NoError(t, err)

	n, err := repo.UpsertPurchaseOrders(ctx, orders)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := repo.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "PO-2024-001", list[0].PONumber, "store lists by po number")
	assert.Equal(t, orders[1], list[0])

	orders[1].Supplier = "Acme Industrial Supplies"
	orders[1].LineItems = orders[1].LineItems[:1]
	_, err = repo.UpsertPurchaseOrders(ctx, orders[1:])
	require.NoError(t, err)

	got, err := repo.GetPurchaseOrder(ctx, "PO-2024-001")
	require.NoError(t, err)
	assert.Equal(t, "Acme Industrial Supplies", got.Supplier)
	assert.Len(t, got.LineItems, 1)

	_, err = repo.GetPurchaseOrder(ctx, "PO-1999-000")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	n, err = repo.UpsertPurchaseOrders(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListPurchaseOrdersSkipsCorruptRow(t *testing.T) {
	db := openTestDB(t)
	repo := NewPurchaseOrderRepository(db, nil)
	ctx := context.Background()

	orders, _, err := LoadPurchaseOrders(strings.NewReader(poDatabase), nil)
	require.NoError(t, err)
	_, err = repo.UpsertPurchaseOrders(ctx, orders)
	require.NoError(t, err)

	query, args := db.builder().Update(purchaseOrdersTable).
		Set("line_items", "garbage").
		Where(entsql.EQ("po_number", "PO-2024-002")).
		Query()
	require.NoError(t, db.drv.Exec(ctx, query, args, nil))

	list, err := repo.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "PO-2024-001", list[0].PONumber)

	_, err = repo.GetPurchaseOrder(ctx, "PO-2024-002")
	assert.ErrorIs(t, err, common.ErrMalformedPORecord)
}

func TestStoredPOLinesWithoutConfidenceDefaultToOne(t *testing.T) {
	db := openTestDB(t)
	repo := NewPurchaseOrderRepository(db, nil)
	ctx := context.Background()

	_, err := repo.UpsertPurchaseOrders(ctx, []entity.PurchaseOrder{{
		PONumber: "PO-2024-050", Supplier: "Legacy Ltd", Total: 10, Currency: "GBP",
		LineItems: []entity.LineItem{{Description: "Widget", Quantity: 1, UnitPrice: 10, LineTotal: 10}},
	}})
	require.NoError(t, err)

	got, err := repo.GetPurchaseOrder(ctx, "PO-2024-050")
	require.NoError(t, err)
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, 1.0, got.LineItems[0].ExtractionConfidence)
}

func TestResultRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewResultRepository(db, nil)
	ctx := context.Background()

	started := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	mk := func(runID, file string, action constants.Action, at time.Time) pipeline.Result {
		st := entity.NewProcessingState(runID, "/in/"+file, started)
		st.FinishedAt = at
		st.Action = action
		st.RiskLevel = constants.RiskLow
		st.Confidence = 0.9
		return pipeline.Format(st)
	}

	second := mk("run-2", "b.pdf", constants.ActionEscalate, started.Add(2*time.Second))
	first := mk("run-1", "a.pdf", constants.ActionAutoApprove, started.Add(time.Second))
	require.NoError(t, repo.SaveResult(ctx, second))
	require.NoError(t, repo.SaveResult(ctx, first))

	first.ProcessingResults.AgentReasoning = "re-run"
	require.NoError(t, repo.SaveResult(ctx, first))

	got, err := repo.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-1", got[0].RunID)
	assert.Equal(t, "re-run", got[0].ProcessingResults.AgentReasoning)
	assert.Equal(t, constants.ActionEscalate, got[1].ProcessingResults.RecommendedAction)
	assert.Equal(t, "b.pdf", got[1].DocumentInfo.Filename)

	err = repo.SaveResult(ctx, pipeline.Result{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
	assert.Equal(t, "sqlite3", db.Dialect())
}

func TestMemoryPurchaseOrderRepository(t *testing.T) {
	orders, _, err := LoadPurchaseOrders(strings.NewReader(poDatabase), nil)
	require.NoError(t, err)
	repo := NewMemoryPurchaseOrderRepository(orders)
	ctx := context.Background()

	list, err := repo.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "PO-2024-002", list[0].PONumber, "file order is kept")

	updated := orders[1]
	updated.Supplier = "Acme Industrial Supplies Limited"
	n, err := repo.UpsertPurchaseOrders(ctx, []entity.PurchaseOrder{updated, {PONumber: "PO-2024-003", Supplier: "Precision Tools"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := repo.GetPurchaseOrder(ctx, "PO-2024-001")
	require.NoError(t, err)
	assert.Equal(t, "Acme Industrial Supplies Limited", got.Supplier)

	list, err = repo.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, "PO-2024-003", list[2].PONumber)

	_, err = repo.GetPurchaseOrder(ctx, "PO-missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
