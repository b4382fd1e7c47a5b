package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

// ConnectDB opens the store behind cfg.DSN, creates its tables and pings it.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := PingDB(ctx, db, logger, cfg.DialTimeout); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		db.Close()
		return nil, err
	}
	logger.Info("successfully connected to database", "dialect", db.Dialect())
	return db, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, db *repository.DB, logger *slog.Logger, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if err := db.HealthCheck(ctx, timeout); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// PurchaseOrderStore picks the PO database: the SQL store when db is set,
// otherwise the JSON file loaded into memory. Malformed records are skipped
// and counted.
func PurchaseOrderStore(ctx context.Context, db *repository.DB, poFile string, logger *slog.Logger) (repository.PurchaseOrderRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if db != nil {
		repo := repository.NewPurchaseOrderRepository(db, logger)
		orders, err := repo.ListPurchaseOrders(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("po.store.sql", "orders", len(orders))
		return repo, nil
	}
	orders, skipped, err := repository.LoadPurchaseOrdersFile(poFile, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("po.store.file", "path", poFile, "orders", len(orders), "skipped", len(skipped))
	return repository.NewMemoryPurchaseOrderRepository(orders), nil
}
