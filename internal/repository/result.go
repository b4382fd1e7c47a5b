package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
)

const resultsTable = "reconciliation_results"

var resultColumns = []string{"run_id", "invoice_id", "filename", "action", "risk_level", "confidence", "processed_at", "payload"}

type ResultRepository interface {
	SaveResult(ctx context.Context, res pipeline.Result) error
	ListResults(ctx context.Context) ([]pipeline.Result, error)
}

type resultRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewResultRepository(db *DB, logger *slog.Logger) ResultRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &resultRepository{db: db, logger: logger}
}

// SaveResult upserts one run's result by run id.
func (r *resultRepository) SaveResult(ctx context.Context, res pipeline.Result) error {
	if res.RunID == "" {
		return fmt.Errorf("%w: result has no run id", common.ErrInvalidInput)
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result %s: %w", res.RunID, err)
	}
	pr := res.ProcessingResults
	query, args := r.db.builder().Insert(resultsTable).
		Columns(resultColumns...).
		Values(res.RunID, res.InvoiceID, res.DocumentInfo.Filename, string(pr.RecommendedAction),
			string(pr.RiskLevel), pr.Confidence, res.ProcessingTimestamp, string(payload)).
		OnConflict(entsql.ConflictColumns("run_id"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.db.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("result.save.failed", "run_id", res.RunID, "error", err)
		return fmt.Errorf("%w: save result %s: %v", common.ErrDatabase, res.RunID, err)
	}
	r.logger.Debug("result.save.ok", "run_id", res.RunID, "invoice_id", res.InvoiceID)
	return nil
}

// ListResults returns stored results oldest first.
func (r *resultRepository) ListResults(ctx context.Context) ([]pipeline.Result, error) {
	q := r.db.builder().Select("payload").
		From(entsql.Table(resultsTable)).
		OrderBy("processed_at", "run_id")
	var out []pipeline.Result
	err := r.db.queryRows(ctx, q, func(rows *entsql.Rows) error {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return err
		}
		var res pipeline.Result
		if err := json.Unmarshal([]byte(payload), &res); err != nil {
			return fmt.Errorf("decode stored result: %w", err)
		}
		out = append(out, res)
		return nil
	})
	if err != nil {
		r.logger.Error("result.list.failed", "error", err)
		return nil, fmt.Errorf("%w: list results: %v", common.ErrDatabase, err)
	}
	return out, nil
}
