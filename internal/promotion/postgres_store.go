package promotion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore. It allows pgxmock in tests.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectBestSQL = `SELECT best_run_id, best_loss FROM model_promotions WHERE instrument = $1`

	upsertRunSQL = `INSERT INTO training_runs (instrument, run_id, loss, recorded_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (instrument, run_id) DO UPDATE SET loss = EXCLUDED.loss`

	demoteOthersSQL = `UPDATE training_runs SET promoted = FALSE WHERE instrument = $1 AND run_id <> $2 AND promoted`
	promoteRunSQL   = `UPDATE training_runs SET promoted = TRUE WHERE instrument = $1 AND run_id = $2`

	upsertBestSQL = `INSERT INTO model_promotions (instrument, best_run_id, best_loss, updated_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (instrument) DO UPDATE
	          SET best_run_id = EXCLUDED.best_run_id, best_loss = EXCLUDED.best_loss, updated_at = EXCLUDED.updated_at`

	selectRunsSQL = `SELECT run_id, loss, promoted, recorded_at FROM training_runs
	          WHERE instrument = $1
	          ORDER BY loss ASC NULLS LAST, recorded_at ASC, run_id ASC`
)

// PostgresStore persists promotion history in the training_runs and
// model_promotions tables. A missing loss is stored as NULL.
type PostgresStore struct {
	pool Pool
	now  func() time.Time
}

// NewPostgresStore creates a PostgresStore on an existing pool.
func NewPostgresStore(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Best returns the promoted run of an instrument.
func (s *PostgresStore) Best(ctx context.Context, instrument string) (State, bool, error) {
	var runID string
	var loss *float64
	err := s.pool.QueryRow(ctx, selectBestSQL, instrument).Scan(&runID, &loss)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("failed to select best run: %w", err)
	}
	return State{Instrument: instrument, BestRunID: runID, BestLoss: fromNullable(loss)}, true, nil
}

// Record upserts an observation into training_runs.
func (s *PostgresStore) Record(ctx context.Context, obs Observation) error {
	if _, err := s.pool.Exec(ctx, upsertRunSQL, obs.Instrument, obs.RunID, toNullable(obs.Loss), s.now()); err != nil {
		return fmt.Errorf("failed to upsert training run: %w", err)
	}
	return nil
}

// Promote flips the flags and moves the best pointer in one transaction.
func (s *PostgresStore) Promote(ctx context.Context, instrument, runID string, loss float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin promotion transaction: %w", err)
	}
	if err := s.promoteTx(ctx, tx, instrument, runID, loss); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit promotion: %w", err)
	}
	return nil
}

func (s *PostgresStore) promoteTx(ctx context.Context, tx pgx.Tx, instrument, runID string, loss float64) error {
	// idx_training_runs_promoted は1銘柄1件なので、先に他の実行を降格する
	if _, err := tx.Exec(ctx, demoteOthersSQL, instrument, runID); err != nil {
		return fmt.Errorf("failed to demote runs of %s: %w", instrument, err)
	}
	if _, err := tx.Exec(ctx, promoteRunSQL, instrument, runID); err != nil {
		return fmt.Errorf("failed to promote run %s: %w", runID, err)
	}
	if _, err := tx.Exec(ctx, upsertBestSQL, instrument, runID, toNullable(loss), s.now()); err != nil {
		return fmt.Errorf("failed to update best run: %w", err)
	}
	return nil
}

// Runs lists an instrument's runs, lowest loss first.
func (s *PostgresStore) Runs(ctx context.Context, instrument string) ([]Run, error) {
	rows, err := s.pool.Query(ctx, selectRunsSQL, instrument)
	if err != nil {
		return nil, fmt.Errorf("failed to query training runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var r Run
		var loss *float64
		if err := rows.Scan(&r.RunID, &loss, &r.Promoted, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training run: %w", err)
		}
		r.Instrument = instrument
		r.Loss = fromNullable(loss)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func toNullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func fromNullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
