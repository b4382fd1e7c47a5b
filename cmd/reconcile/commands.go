package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/async"
	"github.com/joseph-ayodele/invoice-reconciler/internal/bootstrap"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/export"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ingest"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
	"github.com/joseph-ayodele/invoice-reconciler/internal/server"
)

// =============================================================================
// RUN COMMAND
// =============================================================================

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Reconcile one or more invoices and write result files",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "file", Aliases: []string{"f"}, Usage: "Invoice document path (repeatable)"},
			&cli.StringSliceFlag{Name: "invoice", Aliases: []string{"i"}, Usage: "Named invoice from the configured set (repeatable)"},
			&cli.BoolFlag{Name: "all", Usage: "Every invoice in the configured named set"},
			&cli.StringFlag{Name: "dir", Usage: "Every supported document under this directory"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (default OUTPUT_DIR)"},
			&cli.StringFlag{Name: "xlsx", Usage: "Also write an XLSX workbook of the batch"},
			&cli.IntFlag{Name: "workers", Usage: "Invoices processed in parallel (default WORKERS)"},
			&cli.DurationFlag{Name: "timeout", Usage: "Per-invoice timeout (default INVOICE_TIMEOUT)"},
		},
		Action: func(c *cli.Context) error {
			cfg := loadConfig(c)
			log := logger()
			ctx := c.Context

			paths, err := resolveTargets(c, cfg)
			if err != nil {
				return err
			}

			db, pos, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}
			orders, err := pos.ListPurchaseOrders(ctx)
			if err != nil {
				return fmt.Errorf("load purchase orders: %w", err)
			}
			proc, err := bootstrap.Processor(cfg, orders, log)
			if err != nil {
				return err
			}

			out := c.String("out")
			if out == "" {
				out = cfg.Data.OutputDir
			}
			sinks := async.MultiSink{async.DirSink{Dir: out}}
			if db != nil {
				sinks = append(sinks, async.RepositorySink{Repo: repository.NewResultRepository(db, log)})
			}

			opts := async.BatchOptions{Workers: cfg.Worker.Workers, InvoiceTimeout: cfg.Worker.InvoiceTimeout, Sink: sinks}
			if c.IsSet("workers") {
				opts.Workers = c.Int("workers")
			}
			if c.IsSet("timeout") {
				opts.InvoiceTimeout = c.Duration("timeout")
			}

			start := time.Now()
			summary := async.RunBatch(ctx, proc, paths, opts, log)
			summaryPath, err := async.WriteSummary(out, summary)
			if err != nil {
				return err
			}

			if x := c.String("xlsx"); x != "" {
				b, err := export.NewService(nil, log).ResultsXLSX(summary.Results)
				if err != nil {
					return err
				}
				if err := writeFile(x, b); err != nil {
					return err
				}
			}

			printSummary(c.App.Writer, summary, time.Since(start))
			fmt.Fprintf(c.App.Writer, "\nResults written to %s\n", summaryPath)
			return nil
		},
	}
}

// resolveTargets turns the run flags into the ordered list of documents.
// Exactly one selection mode is allowed.
func resolveTargets(c *cli.Context, cfg *common.Config) ([]string, error) {
	modes := 0
	for _, set := range []bool{len(c.StringSlice("file")) > 0, len(c.StringSlice("invoice")) > 0, c.Bool("all"), c.String("dir") != ""} {
		if set {
			modes++
		}
	}
	switch {
	case modes == 0:
		return nil, fmt.Errorf("%w: choose --file, --invoice, --all or --dir", common.ErrInvalidInput)
	case modes > 1:
		return nil, fmt.Errorf("%w: --file, --invoice, --all and --dir are mutually exclusive", common.ErrInvalidInput)
	}

	switch {
	case len(c.StringSlice("file")) > 0:
		return c.StringSlice("file"), nil
	case len(c.StringSlice("invoice")) > 0:
		return ingest.ResolveNamed(cfg.Data, c.StringSlice("invoice"))
	case c.Bool("all"):
		return ingest.ResolveAll(cfg.Data), nil
	default:
		paths, _, err := ingest.Discover(c.String("dir"), ingest.DiscoverOptions{
			SkipHidden: true,
			Exclude:    []string{cfg.Data.PODatabasePath},
		}, logger())
		return paths, err
	}
}

// openStores connects the SQL store when a DSN is configured and picks the PO source.
func openStores(ctx context.Context, cfg *common.Config) (*repository.DB, repository.PurchaseOrderRepository, error) {
	var db *repository.DB
	if cfg.Database.DSN != "" {
		var err error
		if db, err = server.ConnectDB(ctx, cfg.Database, logger()); err != nil {
			return nil, nil, err
		}
	}
	pos, err := server.PurchaseOrderStore(ctx, db, cfg.Data.PODatabasePath, logger())
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, err
	}
	return db, pos, nil
}

func writeFile(path string, b []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

// =============================================================================
// PO COMMAND
// =============================================================================

func poCommand() *cli.Command {
	return &cli.Command{
		Name:  "po",
		Usage: "Purchase-order database commands",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Load a PO database JSON file into the SQL store",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "json", Usage: "PO database file", Required: true},
				},
				Action: func(c *cli.Context) error {
					cfg := loadConfig(c)
					if cfg.Database.DSN == "" {
						return fmt.Errorf("%w: po import needs --dsn or DB_URL", common.ErrInvalidInput)
					}
					orders, skipped, err := repository.LoadPurchaseOrdersFile(c.String("json"), logger())
					if err != nil {
						return err
					}
					db, err := server.ConnectDB(c.Context, cfg.Database, logger())
					if err != nil {
						return err
					}
					defer db.Close()

					n, err := repository.NewPurchaseOrderRepository(db, logger()).UpsertPurchaseOrders(c.Context, orders)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Imported %d purchase orders (%d skipped)\n", n, len(skipped))
					for _, e := range skipped {
						fmt.Fprintf(c.App.Writer, "  skipped: %v\n", e)
					}
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "Print the purchase orders the matcher will see",
				Action: func(c *cli.Context) error {
					db, pos, err := openStores(c.Context, loadConfig(c))
					if err != nil {
						return err
					}
					if db != nil {
						defer db.Close()
					}
					orders, err := pos.ListPurchaseOrders(c.Context)
					if err != nil {
						return err
					}
					printPurchaseOrders(c.App.Writer, orders)
					return nil
				},
			},
		},
	}
}

// =============================================================================
// EXTRACT COMMAND
// =============================================================================

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Run only the extraction stage and print the invoice snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Invoice document", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg := loadConfig(c)
			ext, err := bootstrap.Extractor(cfg, logger()).Extract(c.Context, c.String("file"))
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(map[string]any{
				"confidence":       ext.Confidence,
				"document_quality": ext.DocumentQuality,
				"method":           ext.Method,
				"notes":            ext.Notes,
				"errors":           ext.Errors,
				"invoice":          ext.Invoice,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, string(b))
			return nil
		},
	}
}

// =============================================================================
// EXPORT COMMAND
// =============================================================================

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export persisted results to an XLSX workbook",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "reconciliation_results.xlsx", Usage: "Workbook path"},
			&cli.StringFlag{Name: "action", Usage: "Only results with this action"},
			&cli.TimestampFlag{Name: "from", Layout: "2006-01-02", Usage: "From date YYYY-MM-DD"},
			&cli.TimestampFlag{Name: "to", Layout: "2006-01-02", Usage: "To date YYYY-MM-DD"},
		},
		Action: func(c *cli.Context) error {
			cfg := loadConfig(c)
			if cfg.Database.DSN == "" {
				return fmt.Errorf("%w: export needs --dsn or DB_URL", common.ErrInvalidInput)
			}
			f := export.Filter{From: c.Timestamp("from"), To: c.Timestamp("to")}
			if a := c.String("action"); a != "" {
				f.Action = constants.Action(a)
				if !f.Action.Valid() {
					return fmt.Errorf("%w: unknown action %q", common.ErrInvalidInput, a)
				}
			}

			db, err := server.ConnectDB(c.Context, cfg.Database, logger())
			if err != nil {
				return err
			}
			defer db.Close()

			b, err := export.NewService(repository.NewResultRepository(db, logger()), logger()).ExportResultsXLSX(c.Context, f)
			if err != nil {
				return err
			}
			if err := writeFile(c.String("out"), b); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Wrote %s\n", c.String("out"))
			return nil
		},
	}
}
