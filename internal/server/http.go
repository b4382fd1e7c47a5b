package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/export"
	"github.com/joseph-ayodele/invoice-reconciler/internal/services/reconcile"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HealthFunc reports whether the daemon's dependencies are reachable.
type HealthFunc func(ctx context.Context) error

type HTTPOptions struct {
	// Export enables GET /v1/results.xlsx when set.
	Export *export.Service
	Health HealthFunc
}

// NewHTTPHandler builds the REST API over the reconcile service.
func NewHTTPHandler(svc *reconcile.Service, opts HTTPOptions, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &httpHandler{svc: svc, opts: opts, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", h.health)
	v1 := r.Group("/v1")
	{
		v1.POST("/reconcile", h.reconcile)
		v1.GET("/purchase-orders", h.listPurchaseOrders)
		v1.GET("/purchase-orders/:number", h.getPurchaseOrder)
		if opts.Export != nil {
			v1.GET("/results.xlsx", h.exportResults)
		}
	}
	return r
}

type httpHandler struct {
	svc    *reconcile.Service
	opts   HTTPOptions
	logger *slog.Logger
}

func (h *httpHandler) health(c *gin.Context) {
	if h.opts.Health != nil {
		if err := h.opts.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) reconcile(c *gin.Context) {
	var req reconcile.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, common.InvalidArgumentErrorf("request body: %v", err))
		return
	}
	res, err := h.svc.Reconcile(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *httpHandler) listPurchaseOrders(c *gin.Context) {
	orders, err := h.svc.ListPurchaseOrders(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchase_orders": orders})
}

func (h *httpHandler) getPurchaseOrder(c *gin.Context) {
	po, err := h.svc.GetPurchaseOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

// exportResults accepts optional action, from_date and to_date (YYYY-MM-DD) query params.
func (h *httpHandler) exportResults(c *gin.Context) {
	var f export.Filter
	if a := c.Query("action"); a != "" {
		action := constants.Action(a)
		if !action.Valid() {
			writeError(c, common.InvalidArgumentErrorf("unknown action %q", a))
			return
		}
		f.Action = action
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from_date", &f.From}, {"to_date", &f.To}} {
		v := c.Query(p.key)
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(c, common.InvalidArgumentErrorf("%s must be YYYY-MM-DD", p.key))
			return
		}
		*p.dst = &t
	}

	b, err := h.opts.Export.ExportResultsXLSX(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("export.xlsx.failed", "error", err)
		writeError(c, common.InternalError("export failed"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="reconciliation_results.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, b)
}

// writeError maps gRPC status codes onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if st, ok := status.FromError(err); ok {
		msg = st.Message()
		switch st.Code() {
		case codes.InvalidArgument:
			code = http.StatusBadRequest
		case codes.NotFound:
			code = http.StatusNotFound
		case codes.DeadlineExceeded:
			code = http.StatusGatewayTimeout
		}
	} else if errors.Is(err, context.DeadlineExceeded) {
		code = http.StatusGatewayTimeout
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), reqID))
		c.Header("X-Request-ID", reqID)

		c.Next()

		logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"request_id", reqID,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}
