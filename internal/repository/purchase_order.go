package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

const purchaseOrdersTable = "purchase_orders"

// poLineConfidence is the extraction confidence given to every PO line.
const poLineConfidence = 1.0

var poColumns = []string{"po_number", "supplier", "po_date", "total", "currency", "line_items", "updated_at"}

type PurchaseOrderRepository interface {
	UpsertPurchaseOrders(ctx context.Context, orders []entity.PurchaseOrder) (int, error)
	ListPurchaseOrders(ctx context.Context) ([]entity.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, poNumber string) (*entity.PurchaseOrder, error)
}

type purchaseOrderRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewPurchaseOrderRepository(db *DB, logger *slog.Logger) PurchaseOrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &purchaseOrderRepository{db: db, logger: logger, now: time.Now}
}

// UpsertPurchaseOrders writes all orders in one transaction, replacing rows with the same PO number.
func (r *purchaseOrderRepository) UpsertPurchaseOrders(ctx context.Context, orders []entity.PurchaseOrder) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}
	tx, err := r.db.drv.Tx(ctx)
	if err != nil {
		return 0, common.WrapError(err, "begin upsert")
	}
	stamp := r.now().UTC().Format(time.RFC3339)
	for _, po := range orders {
		items, err := json.Marshal(po.LineItems)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("encode line items for %s: %w", po.PONumber, err)
		}
		query, args := r.db.builder().Insert(purchaseOrdersTable).
			Columns(poColumns...).
			Values(po.PONumber, po.Supplier, po.Date, po.Total, po.Currency, string(items), stamp).
			OnConflict(entsql.ConflictColumns("po_number"), entsql.ResolveWithNewValues()).
			Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			_ = tx.Rollback()
			r.logger.Error("po.upsert.failed", "po_number", po.PONumber, "error", err)
			return 0, fmt.Errorf("%w: upsert %s: %v", common.ErrDatabase, po.PONumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	r.logger.Info("po.upsert.ok", "count", len(orders))
	return len(orders), nil
}

// ListPurchaseOrders returns every stored order by PO number ascending.
// A row that cannot be decoded is logged and skipped.
func (r *purchaseOrderRepository) ListPurchaseOrders(ctx context.Context) ([]entity.PurchaseOrder, error) {
	q := r.db.builder().Select(poColumns[:6]...).
		From(entsql.Table(purchaseOrdersTable)).
		OrderBy("po_number")
	var (
		out     []entity.PurchaseOrder
		skipped int
	)
	err := r.db.queryRows(ctx, q, func(rows *entsql.Rows) error {
		po, err := scanPurchaseOrder(rows)
		if errors.Is(err, common.ErrMalformedPORecord) {
			skipped++
			r.logger.Warn("po.load.skipped", "po_number", po.PONumber, "error", err)
			return nil
		}
		if err != nil {
			return err
		}
		out = append(out, po)
		return nil
	})
	if err != nil {
		r.logger.Error("po.list.failed", "error", err)
		return nil, fmt.Errorf("%w: list purchase orders: %v", common.ErrDatabase, err)
	}
	if skipped > 0 {
		r.logger.Warn("po.list.partial", "loaded", len(out), "skipped", skipped)
	}
	return out, nil
}

func (r *purchaseOrderRepository) GetPurchaseOrder(ctx context.Context, poNumber string) (*entity.PurchaseOrder, error) {
	q := r.db.builder().Select(poColumns[:6]...).
		From(entsql.Table(purchaseOrdersTable)).
		Where(entsql.EQ("po_number", poNumber))
	var found *entity.PurchaseOrder
	err := r.db.queryRows(ctx, q, func(rows *entsql.Rows) error {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return err
		}
		found = &po
		return nil
	})
	if errors.Is(err, common.ErrMalformedPORecord) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get purchase order: %v", common.ErrDatabase, err)
	}
	if found == nil {
		return nil, fmt.Errorf("purchase order %s: %w", poNumber, common.ErrNotFound)
	}
	return found, nil
}

// scanPurchaseOrder reads one row. Undecodable line items wrap ErrMalformedPORecord;
// any other error comes from the driver.
func scanPurchaseOrder(rows *entsql.Rows) (entity.PurchaseOrder, error) {
	var (
		po    entity.PurchaseOrder
		date  *string
		items string
	)
	if err := rows.Scan(&po.PONumber, &po.Supplier, &date, &po.Total, &po.Currency, &items); err != nil {
		return po, err
	}
	if date != nil {
		po.Date = *date
	}
	if err := json.Unmarshal([]byte(items), &po.LineItems); err != nil {
		return po, fmt.Errorf("%w: %s: line items: %v", common.ErrMalformedPORecord, po.PONumber, err)
	}
	for i := range po.LineItems {
		if po.LineItems[i].ExtractionConfidence == 0 {
			po.LineItems[i].ExtractionConfidence = poLineConfidence
		}
	}
	return po, nil
}
