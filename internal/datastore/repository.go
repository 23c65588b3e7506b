package datastore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/your-org/price-horizon-learner/internal/series"
)

// DBPool is the subset of *pgxpool.Pool the repository needs.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	selectClosesSQL = `
        SELECT date, close
        FROM daily_closes
        WHERE symbol = $1 AND date >= $2 AND date <= $3
        ORDER BY date ASC;
    `
	deleteClosesSQL = `
        DELETE FROM daily_closes
        WHERE symbol = $1 AND date >= $2 AND date <= $3;
    `
)

// Repository reads and writes the daily_closes table. It implements SeriesProvider.
type Repository struct {
	db DBPool
}

// NewRepository creates a new Repository.
func NewRepository(db DBPool) *Repository {
	return &Repository{db: db}
}

// FetchCloses returns closes of symbol between from and to. A NULL close is NaN.
func (r *Repository) FetchCloses(ctx context.Context, symbol string, from, to time.Time) ([]series.PricePoint, error) {
	rows, err := r.db.Query(ctx, selectClosesSQL, symbol, series.Day(from), series.Day(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily closes: %w", err)
	}
	defer rows.Close()

	points := make([]series.PricePoint, 0, 256)
	for rows.Next() {
		var d time.Time
		var c decimal.NullDecimal
		if err := rows.Scan(&d, &c); err != nil {
			return nil, fmt.Errorf("failed to scan daily close: %w", err)
		}
		v := math.NaN()
		if c.Valid {
			v = c.Decimal.InexactFloat64()
		}
		points = append(points, series.PricePoint{Date: series.Day(d), Close: v})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return points, nil
}

// ReplaceCloses overwrites the stored closes of symbol over the span of
// points, which must be in date order, in one transaction.
func (r *Repository) ReplaceCloses(ctx context.Context, symbol string, points []series.PricePoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	n, err := replaceCloses(ctx, tx, symbol, points)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit daily closes: %w", err)
	}
	return n, nil
}

func replaceCloses(ctx context.Context, tx pgx.Tx, symbol string, points []series.PricePoint) (int64, error) {
	from, to := series.Day(points[0].Date), series.Day(points[len(points)-1].Date)
	if _, err := tx.Exec(ctx, deleteClosesSQL, symbol, from, to); err != nil {
		return 0, fmt.Errorf("failed to delete daily closes: %w", err)
	}

	n, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"daily_closes"},
		[]string{"symbol", "date", "close"},
		pgx.CopyFromSlice(len(points), func(i int) ([]any, error) {
			var c decimal.NullDecimal
			if !series.IsMissing(points[i].Close) {
				c = decimal.NewNullDecimal(decimal.NewFromFloat(points[i].Close))
			}
			return []any{symbol, series.Day(points[i].Date), c}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy daily closes: %w", err)
	}
	return n, nil
}

var (
	_ SeriesProvider = (*Repository)(nil)
	_ SeriesProvider = (*CSVProvider)(nil)
	_ SeriesProvider = (*InMemProvider)(nil)
)
