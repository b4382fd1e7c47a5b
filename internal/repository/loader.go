package repository

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

type poFile struct {
	PurchaseOrders []json.RawMessage `json:"purchase_orders"`
}

type poRecord struct {
	PONumber  string         `json:"po_number"`
	Supplier  string         `json:"supplier"`
	Date      string         `json:"date"`
	Total     json.Number    `json:"total"`
	Currency  string         `json:"currency"`
	LineItems []poLineRecord `json:"line_items"`
}

type poLineRecord struct {
	ItemID      string      `json:"item_id"`
	ItemCode    string      `json:"item_code"`
	Description string      `json:"description"`
	Quantity    json.Number `json:"quantity"`
	Unit        string      `json:"unit"`
	UnitPrice   json.Number `json:"unit_price"`
	LineTotal   json.Number `json:"line_total"`
}

// LoadPurchaseOrdersFile reads a {"purchase_orders": [...]} document from disk.
func LoadPurchaseOrdersFile(path string, logger *slog.Logger) ([]entity.PurchaseOrder, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open po database: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadPurchaseOrders(f, logger)
}

// LoadPurchaseOrders decodes the PO database. A record that fails to decode or
// validate, or repeats an earlier PO number, is skipped and reported in the
// second return value wrapping common.ErrMalformedPORecord; the rest still load.
func LoadPurchaseOrders(r io.Reader, logger *slog.Logger) ([]entity.PurchaseOrder, []error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var doc poFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode po database: %w", err)
	}

	var (
		orders  = make([]entity.PurchaseOrder, 0, len(doc.PurchaseOrders))
		skipped []error
		seen    = map[string]int{}
	)
	for i, raw := range doc.PurchaseOrders {
		po, err := parseRecord(raw)
		if err == nil {
			key := strings.ToUpper(po.PONumber)
			if first, dup := seen[key]; dup {
				err = fmt.Errorf("duplicate po_number %s (first at record %d)", po.PONumber, first)
			} else {
				seen[key] = i
			}
		}
		if err != nil {
			err = fmt.Errorf("%w: record %d: %v", common.ErrMalformedPORecord, i, err)
			logger.Warn("po.load.skipped", "record", i, "error", err)
			skipped = append(skipped, err)
			continue
		}
		orders = append(orders, po)
	}
	logger.Info("po.load.ok", "loaded", len(orders), "skipped", len(skipped))
	return orders, skipped, nil
}

func parseRecord(raw json.RawMessage) (entity.PurchaseOrder, error) {
	var rec poRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return entity.PurchaseOrder{}, err
	}

	po := entity.PurchaseOrder{
		PONumber: strings.TrimSpace(rec.PONumber),
		Supplier: strings.TrimSpace(rec.Supplier),
		Date:     strings.TrimSpace(rec.Date),
		Currency: strings.ToUpper(strings.TrimSpace(rec.Currency)),
	}
	if po.Currency == "" {
		po.Currency = constants.DefaultCurrency
	}
	total, totalErr := rec.Total.Float64()

	v := common.NewValidator().
		Field("po_number", po.PONumber, common.Required).
		Field("supplier", po.Supplier, common.Required).
		Field("currency", po.Currency, common.CurrencyCode)
	if totalErr != nil {
		v.Field("total", rec.Total.String(), notANumber)
	} else {
		v.Field("total", total, common.NonNegative)
	}
	po.Total = total

	for j, li := range rec.LineItems {
		po.LineItems = append(po.LineItems, parseLine(v, fmt.Sprintf("line_items[%d].", j), li))
	}
	return po, v.Error()
}

func parseLine(v *common.Validator, prefix string, li poLineRecord) entity.LineItem {
	code := strings.TrimSpace(li.ItemID)
	if code == "" {
		code = strings.TrimSpace(li.ItemCode)
	}
	unit := strings.TrimSpace(li.Unit)
	if unit == "" {
		unit = "units"
	}
	item := entity.LineItem{
		ItemCode:             code,
		Description:          strings.TrimSpace(li.Description),
		Unit:                 unit,
		ExtractionConfidence: poLineConfidence,
	}

	v.Field(prefix+"description", item.Description, common.Required)
	nums := []struct {
		name string
		raw  json.Number
		dst  *float64
	}{
		{"quantity", li.Quantity, &item.Quantity},
		{"unit_price", li.UnitPrice, &item.UnitPrice},
		{"line_total", li.LineTotal, &item.LineTotal},
	}
	for _, n := range nums {
		f, err := n.raw.Float64()
		if err != nil {
			v.Field(prefix+n.name, n.raw.String(), notANumber)
			continue
		}
		*n.dst = f
		v.Field(prefix+n.name, f, common.NonNegative)
	}
	return item
}

func notANumber(fieldName string, value interface{}) *common.ValidationError {
	return &common.ValidationError{Field: fieldName, Value: value, Message: "must be a number"}
}
