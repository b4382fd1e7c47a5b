// reconcile matches supplier invoices against the purchase-order database.
//
// Usage:
//
//	reconcile run --invoice 1 --invoice 4
//	reconcile run --all --xlsx outputs/results.xlsx
//	reconcile run --dir ./inbox --workers 8
//	reconcile po import --json data/purchase_orders.json
//	reconcile extract --file data/invoices/Invoice_2_Scanned.pdf
//	reconcile export --out results.xlsx --action escalate_to_human
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/invoice-reconciler/internal/bootstrap"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		if _, werr := fmt.Fprintf(os.Stderr, "Error: %v\n", err); werr != nil {
			fmt.Printf("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "reconcile",
		Usage:     "Reconcile supplier invoices against purchase orders",
		Version:   fmt.Sprintf("%s (commit: %s)", version, commit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (text, json)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "SQL store for purchase orders and results (postgres:// or a SQLite path)",
				EnvVars: []string{"DB_URL"},
			},
			&cli.StringFlag{
				Name:    "po",
				Usage:   "PO database JSON file, used when no SQL store is configured",
				EnvVars: []string{"PO_DATABASE_PATH"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg := loadConfig(c)
			bootstrap.Logger(cfg.Log, stderr)
			return cfg.Validate()
		},
		Commands: []*cli.Command{
			runCommand(),
			poCommand(),
			extractCommand(),
			exportCommand(),
		},
	}
}

// loadConfig reads the environment then applies global flag overrides.
func loadConfig(c *cli.Context) *common.Config {
	cfg := common.LoadConfig()
	cfg.Log.Level = c.String("log-level")
	cfg.Log.Format = c.String("log-format")
	if c.IsSet("dsn") {
		cfg.Database.DSN = c.String("dsn")
	}
	if c.IsSet("po") {
		cfg.Data.PODatabasePath = c.String("po")
	}
	return cfg
}

func logger() *slog.Logger { return slog.Default() }
