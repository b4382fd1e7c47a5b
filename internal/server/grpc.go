package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/services/reconcile"
)

const ServiceName = "reconciler.v1.ReconciliationService"

const (
	reconcileMethod          = "/" + ServiceName + "/Reconcile"
	listPurchaseOrdersMethod = "/" + ServiceName + "/ListPurchaseOrders"
	getPurchaseOrderMethod   = "/" + ServiceName + "/GetPurchaseOrder"
)

// ReconciliationServer is the gRPC surface. Messages are google.protobuf.Struct
// carrying the same JSON documents the HTTP API serves.
type ReconciliationServer interface {
	Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListPurchaseOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetPurchaseOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ReconciliationService adapts the reconcile service to gRPC.
type ReconciliationService struct {
	svc    *reconcile.Service
	logger *slog.Logger
}

func NewReconciliationService(svc *reconcile.Service, logger *slog.Logger) *ReconciliationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconciliationService{svc: svc, logger: logger}
}

// Reconcile expects {"path": "..."} or {"invoice": "1"} and returns the result record.
func (s *ReconciliationService) Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	res, err := s.svc.Reconcile(ctx, reconcile.ReconcileRequest{
		Path:    fields["path"].GetStringValue(),
		Invoice: fields["invoice"].GetStringValue(),
	})
	if err != nil {
		return nil, err
	}
	return toStruct(res)
}

func (s *ReconciliationService) ListPurchaseOrders(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	orders, err := s.svc.ListPurchaseOrders(ctx)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"purchase_orders": orders})
}

// GetPurchaseOrder expects {"po_number": "..."}.
func (s *ReconciliationService) GetPurchaseOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	po, err := s.svc.GetPurchaseOrder(ctx, req.GetFields()["po_number"].GetStringValue())
	if err != nil {
		return nil, err
	}
	return toStruct(po)
}

// toStruct goes through JSON so the wire shape matches the struct tags.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

// FromStruct decodes a response Struct into v.
func FromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ReconciliationServiceDesc is declared by hand; there is no generated stub.
var ReconciliationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReconciliationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reconcile", Handler: unaryHandler(reconcileMethod, ReconciliationServer.Reconcile)},
		{MethodName: "ListPurchaseOrders", Handler: unaryHandler(listPurchaseOrdersMethod, ReconciliationServer.ListPurchaseOrders)},
		{MethodName: "GetPurchaseOrder", Handler: unaryHandler(getPurchaseOrderMethod, ReconciliationServer.GetPurchaseOrder)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reconciler/v1/reconciliation.proto",
}

func RegisterReconciliationServer(s grpc.ServiceRegistrar, srv ReconciliationServer) {
	s.RegisterService(&ReconciliationServiceDesc, srv)
}

type unaryMethod func(ReconciliationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReconciliationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReconciliationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ReconciliationClient calls the service over a client connection.
type ReconciliationClient struct {
	cc grpc.ClientConnInterface
}

func NewReconciliationClient(cc grpc.ClientConnInterface) *ReconciliationClient {
	return &ReconciliationClient{cc: cc}
}

func (c *ReconciliationClient) Reconcile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, reconcileMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReconciliationClient) ListPurchaseOrders(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listPurchaseOrdersMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReconciliationClient) GetPurchaseOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getPurchaseOrderMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// LoggingInterceptor logs every unary call with its status code.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{"method", info.FullMethod, "code", status.Code(err).String(), "elapsed_ms", time.Since(start).Milliseconds()}
		if err != nil {
			logger.Warn("grpc.request.failed", append(attrs, "error", err)...)
		} else {
			logger.Info("grpc.request.ok", attrs...)
		}
		return resp, err
	}
}
