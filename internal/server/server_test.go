package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/export"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
	"github.com/joseph-ayodele/invoice-reconciler/internal/services/reconcile"
)

type approveAll struct{}

func (approveAll) Process(_ context.Context, path string) *entity.ProcessingState {
	st := entity.NewProcessingState("run-"+filepath.Base(path), path, time.Now())
	st.Invoice = &entity.Invoice{InvoiceNumber: "INV-2024-001", SupplierName: "Acme Industrial Supplies Ltd"}
	st.Match = &entity.MatchResult{PONumber: "PO-2024-001", Method: constants.MatchExactReference, Confidence: 1}
	st.Action = constants.ActionAutoApprove
	st.RiskLevel = constants.RiskLow
	st.Confidence = 0.95
	st.FinishedAt = st.StartedAt
	return st
}

type memoryResults struct{ saved []pipeline.Result }

func (m *memoryResults) Write(_ context.Context, res pipeline.Result) error {
	m.saved = append(m.saved, res)
	return nil
}

func (m *memoryResults) SaveResult(ctx context.Context, res pipeline.Result) error {
	return m.Write(ctx, res)
}

func (m *memoryResults) ListResults(context.Context) ([]pipeline.Result, error) { return m.saved, nil }

type fixture struct {
	svc     *reconcile.Service
	results *memoryResults
	invoice string
	data    common.DataConfig
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "invoices"), 0o755))
	invoice := filepath.Join(dir, "invoices", "Invoice_1_Baseline.pdf")
	require.NoError(t, os.WriteFile(invoice, []byte("%PDF"), 0o644))

	pos := repository.NewMemoryPurchaseOrderRepository([]entity.PurchaseOrder{
		{PONumber: "PO-2024-001", Supplier: "Acme Industrial Supplies Ltd", Date: "2024-01-10", Total: 1025, Currency: "GBP"},
		{PONumber: "PO-2024-002", Supplier: "Northern Office Supplies", Date: "2024-01-20", Total: 850, Currency: "GBP"},
	})
	data := common.DataConfig{DataDir: dir, NamedInvoices: common.DefaultNamedInvoices}
	results := &memoryResults{}
	return fixture{
		svc:     reconcile.NewService(approveAll{}, pos, results, data, nil),
		results: results,
		invoice: invoice,
		data:    data,
	}
}

func dialBufconn(t *testing.T, register func(*grpc.Server)) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(nil)))
	register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCReconciliationService(t *testing.T) {
	fx := newFixture(t)
	conn := dialBufconn(t, func(s *grpc.Server) {
		RegisterReconciliationServer(s, NewReconciliationService(fx.svc, nil))
		hs := health.NewServer()
		hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(s, hs)
	})
	client := NewReconciliationClient(conn)
	ctx := context.Background()

	req, err := structpb.NewStruct(map[string]any{"path": fx.invoice})
	require.NoError(t, err)
	out, err := client.Reconcile(ctx, req)
	require.NoError(t, err)

	var res pipeline.Result
	require.NoError(t, FromStruct(out, &res))
	assert.Equal(t, "INV-2024-001", res.InvoiceID)
	assert.Equal(t, constants.ActionAutoApprove, res.ProcessingResults.RecommendedAction)
	assert.Equal(t, "PO-2024-001", res.ProcessingResults.MatchingResults.PONumber)
	assert.Len(t, fx.results.saved, 1)

	named, err := structpb.NewStruct(map[string]any{"invoice": "1"})
	require.NoError(t, err)
	_, err = client.Reconcile(ctx, named)
	require.NoError(t, err)

	list, err := client.ListPurchaseOrders(ctx, &structpb.Struct{})
	require.NoError(t, err)
	assert.Len(t, list.GetFields()["purchase_orders"].GetListValue().GetValues(), 2)

	one, err := client.GetPurchaseOrder(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{"po_number": structpb.NewStringValue("PO-2024-002")}})
	require.NoError(t, err)
	assert.Equal(t, "Northern Office Supplies", one.GetFields()["supplier"].GetStringValue())

	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.GetStatus())
}

func TestGRPCStatusCodes(t *testing.T) {
	fx := newFixture(t)
	conn := dialBufconn(t, func(s *grpc.Server) {
		RegisterReconciliationServer(s, NewReconciliationService(fx.svc, nil))
	})
	client := NewReconciliationClient(conn)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{"empty request", func() error { _, err := client.Reconcile(ctx, &structpb.Struct{}); return err }, codes.InvalidArgument},
		{"unknown named invoice", func() error {
			in, _ := structpb.NewStruct(map[string]any{"invoice": "9"})
			_, err := client.Reconcile(ctx, in)
			return err
		}, codes.InvalidArgument},
		{"path and name", func() error {
			in, _ := structpb.NewStruct(map[string]any{"invoice": "1", "path": fx.invoice})
			_, err := client.Reconcile(ctx, in)
			return err
		}, codes.InvalidArgument},
		{"missing file", func() error {
			in, _ := structpb.NewStruct(map[string]any{"path": filepath.Join(t.TempDir(), "nope.pdf")})
			_, err := client.Reconcile(ctx, in)
			return err
		}, codes.NotFound},
		{"unknown po", func() error {
			in, _ := structpb.NewStruct(map[string]any{"po_number": "PO-404"})
			_, err := client.GetPurchaseOrder(ctx, in)
			return err
		}, codes.NotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.Error(t, err)
			assert.Equal(t, tc.code, status.Code(err))
		})
	}
	assert.Empty(t, fx.results.saved)
}

func newHTTP(t *testing.T, fx fixture, opts HTTPOptions) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewHTTPHandler(fx.svc, opts, nil)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPReconcile(t *testing.T) {
	fx := newFixture(t)
	h := newHTTP(t, fx, HTTPOptions{})

	rec := do(h, http.MethodPost, "/v1/reconcile", `{"path":"`+filepath.ToSlash(fx.invoice)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"recommended_action":"auto_approve"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(h, http.MethodPost, "/v1/reconcile", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/v1/reconcile", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/v1/reconcile", `{"path":"/does/not/exist.pdf"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestHTTPPurchaseOrders(t *testing.T) {
	fx := newFixture(t)
	h := newHTTP(t, fx, HTTPOptions{})

	rec := do(h, http.MethodGet, "/v1/purchase-orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PO-2024-002")

	rec = do(h, http.MethodGet, "/v1/purchase-orders/PO-2024-001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme Industrial Supplies Ltd")

	rec = do(h, http.MethodGet, "/v1/purchase-orders/PO-404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPHealth(t *testing.T) {
	fx := newFixture(t)

	rec := do(newHTTP(t, fx, HTTPOptions{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	down := HTTPOptions{Health: func(context.Context) error { return errors.New("db unreachable") }}
	rec = do(newHTTP(t, fx, down), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db unreachable")
}

func TestHTTPExportResults(t *testing.T) {
	fx := newFixture(t)
	h := newHTTP(t, fx, HTTPOptions{Export: export.NewService(fx.results, nil)})

	require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/v1/reconcile", `{"invoice":"1"}`).Code)

	rec := do(h, http.MethodGet, "/v1/results.xlsx?action=auto_approve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	rows, err := f.GetRows(export.ResultsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/v1/results.xlsx?action=maybe", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/v1/results.xlsx?from_date=03/10/2024", "").Code)

	rec = do(newHTTP(t, fx, HTTPOptions{}), http.MethodGet, "/v1/results.xlsx", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchaseOrderStoreFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "purchase_orders.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"purchase_orders":[
		{"po_number":"PO-1","supplier":"Acme","date":"2024-01-01","total":10,"line_items":[]},
		{"po_number":"","supplier":"Ghost","date":"2024-01-01","total":1,"line_items":[]}
	]}`), 0o644))

	store, err := PurchaseOrderStore(context.Background(), nil, path, nil)
	require.NoError(t, err)
	orders, err := store.ListPurchaseOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "PO-1", orders[0].PONumber)

	_, err = PurchaseOrderStore(context.Background(), nil, filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}

func TestConnectDBAndStore(t *testing.T) {
	db, err := ConnectDB(context.Background(), common.DatabaseConfig{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewPurchaseOrderRepository(db, nil)
	_, err = repo.UpsertPurchaseOrders(context.Background(), []entity.PurchaseOrder{{PONumber: "PO-9", Supplier: "Acme", Date: "2024-01-01", Total: 5, Currency: "GBP"}})
	require.NoError(t, err)

	store, err := PurchaseOrderStore(context.Background(), db, "", nil)
	require.NoError(t, err)
	po, err := store.GetPurchaseOrder(context.Background(), "PO-9")
	require.NoError(t, err)
	assert.Equal(t, "Acme", po.Supplier)
}
