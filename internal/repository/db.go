package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB is an ent SQL driver bound to either a pgx pool or a SQLite handle.
type DB struct {
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// Open connects to Postgres for postgres:// DSNs and to SQLite for anything else
// (a file path, a file: URI, or ":memory:").
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if isPostgres(cfg.DSN) {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(ctx, cfg, logger)
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "invoice-reconciler"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for the ent driver
	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &DB{drv: entsql.OpenDB(dialect.Postgres, db), dialect: dialect.Postgres, pool: pool, logger: logger}, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	logger.Info("opening database", "dialect", dialect.SQLite, "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection also keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	return &DB{drv: entsql.OpenDB(dialect.SQLite, db), dialect: dialect.SQLite, logger: logger}, nil
}

// Dialect returns the ent dialect name in use.
func (d *DB) Dialect() string { return d.dialect }

func (d *DB) builder() *entsql.DialectBuilder { return entsql.Dialect(d.dialect) }

// Migrate creates the tables this service owns when they are missing.
func (d *DB) Migrate(ctx context.Context) error {
	b := d.builder()
	stmts := []entsql.Querier{
		b.CreateTable(purchaseOrdersTable).IfNotExists().
			Columns(
				entsql.Column("po_number").Type("varchar(64)").Attr("NOT NULL"),
				entsql.Column("supplier").Type("text").Attr("NOT NULL"),
				entsql.Column("po_date").Type("varchar(32)"),
				entsql.Column("total").Type("numeric(14,2)").Attr("NOT NULL"),
				entsql.Column("currency").Type("varchar(3)").Attr("NOT NULL"),
				entsql.Column("line_items").Type("text").Attr("NOT NULL"),
				entsql.Column("updated_at").Type("varchar(40)").Attr("NOT NULL"),
			).
			PrimaryKey("po_number"),
		b.CreateTable(resultsTable).IfNotExists().
			Columns(
				entsql.Column("run_id").Type("varchar(64)").Attr("NOT NULL"),
				entsql.Column("invoice_id").Type("text").Attr("NOT NULL"),
				entsql.Column("filename").Type("text").Attr("NOT NULL"),
				entsql.Column("action").Type("varchar(32)").Attr("NOT NULL"),
				entsql.Column("risk_level").Type("varchar(16)").Attr("NOT NULL"),
				entsql.Column("confidence").Type("double precision").Attr("NOT NULL"),
				entsql.Column("processed_at").Type("varchar(40)").Attr("NOT NULL"),
				entsql.Column("payload").Type("text").Attr("NOT NULL"),
			).
			PrimaryKey("run_id"),
	}
	for _, s := range stmts {
		query, args := s.Query()
		if err := d.drv.Exec(ctx, query, args, nil); err != nil {
			d.logger.Error("db.migrate.failed", "query", query, "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	d.logger.Debug("db.migrate.ok", "dialect", d.dialect)
	return nil
}

// Close closes the database connections gracefully
func (d *DB) Close() {
	d.logger.Info("closing database connections")
	if err := d.drv.Close(); err != nil {
		d.logger.Error("failed to close database driver", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
	d.logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if d.pool != nil {
		return d.pool.Ping(ctx)
	}
	return d.drv.DB().PingContext(ctx)
}

func (d *DB) queryRows(ctx context.Context, q entsql.Querier, scan func(*entsql.Rows) error) error {
	query, args := q.Query()
	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
