package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/internal/async"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

// Service handles reconciliation requests for the transports. Errors are gRPC
// status errors.
type Service struct {
	proc   async.Processor
	pos    repository.PurchaseOrderRepository
	sink   async.Sink
	data   common.DataConfig
	logger *slog.Logger
}

// NewService wires the service. sink may be nil when results are not kept.
func NewService(proc async.Processor, pos repository.PurchaseOrderRepository, sink async.Sink, data common.DataConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{proc: proc, pos: pos, sink: sink, data: data, logger: logger}
}

// ReconcileRequest names a document either by path or by its name in the
// configured invoice set. Exactly one must be given.
type ReconcileRequest struct {
	Path    string `json:"path"`
	Invoice string `json:"invoice"`
}

// Reconcile runs one document through the pipeline synchronously.
func (s *Service) Reconcile(ctx context.Context, req ReconcileRequest) (pipeline.Result, error) {
	path, err := s.resolve(req)
	if err != nil {
		return pipeline.Result{}, err
	}
	if _, err := os.Stat(path); err != nil {
		s.logger.Warn("reconcile.file_missing", "file", path, "error", err)
		return pipeline.Result{}, common.NotFoundError("invoice document not found: " + path)
	}

	res := pipeline.Format(s.proc.Process(ctx, path))
	if s.sink != nil {
		if err := s.sink.Write(ctx, res); err != nil {
			// the decision stands even if it could not be stored
			s.logger.Error("reconcile.sink_failed", "run_id", res.RunID, "error", err)
		}
	}
	s.logger.Info("reconcile.ok", "file", path, "invoice_id", res.InvoiceID, "action", res.ProcessingResults.RecommendedAction)
	return res, nil
}

func (s *Service) resolve(req ReconcileRequest) (string, error) {
	path := strings.TrimSpace(req.Path)
	name := strings.TrimSpace(req.Invoice)

	v := common.NewValidator()
	if path == "" && name == "" {
		v.Field("path", nil, common.Required)
	}
	if path != "" && name != "" {
		v.Field("invoice", name, func(field string, value interface{}) *common.ValidationError {
			return &common.ValidationError{Field: field, Value: value, Message: "cannot be combined with path"}
		})
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}
	p, ok := s.data.NamedInvoicePath(name)
	if !ok {
		return "", common.InvalidArgumentErrorf("unknown invoice %q (choose from %s)", name, strings.Join(s.data.NamedInvoiceKeys(), ", "))
	}
	return p, nil
}

// ListPurchaseOrders returns the PO database in store order.
func (s *Service) ListPurchaseOrders(ctx context.Context) ([]entity.PurchaseOrder, error) {
	orders, err := s.pos.ListPurchaseOrders(ctx)
	if err != nil {
		s.logger.Error("reconcile.list_pos_failed", "error", err)
		return nil, common.InternalErrorf("list purchase orders: %v", err)
	}
	return orders, nil
}

// GetPurchaseOrder looks one PO up by number.
func (s *Service) GetPurchaseOrder(ctx context.Context, number string) (*entity.PurchaseOrder, error) {
	number = strings.TrimSpace(number)
	v := common.NewValidator()
	v.Field("po_number", number, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	po, err := s.pos.GetPurchaseOrder(ctx, number)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return nil, common.NotFoundError("purchase order not found: " + number)
	case err != nil:
		s.logger.Error("reconcile.get_po_failed", "po_number", number, "error", err)
		return nil, common.InternalErrorf("get purchase order: %v", err)
	}
	return po, nil
}
