package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice-reconciler/internal/async"
	"github.com/joseph-ayodele/invoice-reconciler/internal/bootstrap"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/export"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ingest"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
	"github.com/joseph-ayodele/invoice-reconciler/internal/server"
	"github.com/joseph-ayodele/invoice-reconciler/internal/services/reconcile"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := common.LoadConfig()
	logger := bootstrap.Logger(cfg.Log, os.Stderr)
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("reconciled exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	// Stores
	var (
		db      *repository.DB
		results repository.ResultRepository
		err     error
	)
	if cfg.Database.DSN != "" {
		if db, err = server.ConnectDB(ctx, cfg.Database, logger); err != nil {
			return err
		}
		defer db.Close()
		results = repository.NewResultRepository(db, logger)
	}
	pos, err := server.PurchaseOrderStore(ctx, db, cfg.Data.PODatabasePath, logger)
	if err != nil {
		return err
	}
	orders, err := pos.ListPurchaseOrders(ctx)
	if err != nil {
		return err
	}

	proc, err := bootstrap.Processor(cfg, orders, logger)
	if err != nil {
		return err
	}

	sinks := async.MultiSink{async.DirSink{Dir: cfg.Data.OutputDir}}
	if results != nil {
		sinks = append(sinks, async.RepositorySink{Repo: results})
	}
	svc := reconcile.NewService(proc, pos, sinks, cfg.Data, logger)

	// Inbox watcher feeding the worker queue
	queue := async.NewProcessorQueue(proc, sinks, logger,
		async.WithWorkers(cfg.Worker.Workers),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.InvoiceTimeout),
	)
	if cfg.Data.InboxDir != "" {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Data.InboxDir},
			InitialScan: true,
			SkipHidden:  true,
		}, logger)
		if err != nil {
			return err
		}
		go ingest.Feed(ctx, events, queue, ingest.NewDeduper(), logger)
		go func() {
			for err := range errs {
				logger.Warn("watcher error", "error", err)
			}
		}()
		logger.Info("watching inbox", "dir", cfg.Data.InboxDir)
	}

	// gRPC server
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(server.LoggingInterceptor(logger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)
	server.RegisterReconciliationServer(grpcServer, server.NewReconciliationService(svc, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	// HTTP gateway
	gin.SetMode(gin.ReleaseMode)
	opts := server.HTTPOptions{}
	if results != nil {
		opts.Export = export.NewService(results, logger)
		opts.Health = func(ctx context.Context) error { return server.PingDB(ctx, db, logger, 3*time.Second) }
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewHTTPHandler(svc, opts, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC serving", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("HTTP serving", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		logger.Error("server failed", "error", err)
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
	return err
}
