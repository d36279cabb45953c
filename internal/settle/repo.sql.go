package settle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sharex-union/sharex/internal/platform/db"
	"github.com/sharex-union/sharex/internal/shared"
)

// ErrRunNotFound indicates no settlement run is stored for the period.
var ErrRunNotFound = errors.New("settle: run not found")

// SQLRepository archives settlement runs in Postgres.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewSQLRepository constructs the archive repository.
func NewSQLRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// InsertRun stores a run and supersedes any earlier draft for the same
// period inside one transaction.
func (r *SQLRepository) InsertRun(ctx context.Context, result Result) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("settle repo not initialised")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("settle: marshal run: %w", err)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE settlement_runs SET status = $1 WHERE period = $2 AND status = $3`,
			shared.RunStatusSuperseded, result.Period, shared.RunStatusDraft); err != nil {
			return fmt.Errorf("settle: supersede drafts: %w", err)
		}
		const insert = `
			INSERT INTO settlement_runs (id, period, status, ref_revision, computed_at, payload)
			VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.Exec(ctx, insert,
			result.RunID, result.Period, result.Status, result.RefRevision, result.ComputedAt, payload); err != nil {
			return fmt.Errorf("settle: insert run: %w", err)
		}
		return nil
	})
}

// LatestRun loads the most recent run for the period.
func (r *SQLRepository) LatestRun(ctx context.Context, period string) (Result, error) {
	if r == nil || r.pool == nil {
		return Result{}, fmt.Errorf("settle repo not initialised")
	}
	const query = `
		SELECT payload, status
		FROM settlement_runs
		WHERE period = $1
		ORDER BY computed_at DESC, id DESC
		LIMIT 1`
	var payload []byte
	var status string
	if err := r.pool.QueryRow(ctx, query, period).Scan(&payload, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{}, fmt.Errorf("%w: %s", ErrRunNotFound, period)
		}
		return Result{}, fmt.Errorf("settle: load run for %s: %w", period, err)
	}
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, fmt.Errorf("settle: unmarshal run for %s: %w", period, err)
	}
	// The status column is authoritative; the payload keeps the status the
	// run was stored with.
	result.Status = status
	return result, nil
}

// UpdateStatus transitions a stored run.
func (r *SQLRepository) UpdateStatus(ctx context.Context, runID, status string) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("settle repo not initialised")
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE settlement_runs SET status = $1 WHERE id = $2`, status, runID)
	if err != nil {
		return fmt.Errorf("settle: update run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: run %s", ErrRunNotFound, runID)
	}
	return nil
}
