// Package main exports the training dataset of an instrument as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/config"
	"github.com/your-org/price-horizon-learner/internal/csvwriter"
	"github.com/your-org/price-horizon-learner/internal/dataset"
	"github.com/your-org/price-horizon-learner/internal/datastore"
	"github.com/your-org/price-horizon-learner/internal/series"
	"github.com/your-org/price-horizon-learner/pkg/logger"
)

func main() {
	// --- Argument Parsing ---
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	ticker := flag.String("ticker", "", "Instrument to export")
	period := flag.String("period", "", "History period (1mo, 3mo, 6mo, 1y, 2y, 5y)")
	outPath := flag.String("out", "", "Output file (default stdout)")
	flag.Parse()

	if *ticker == "" {
		fmt.Fprintln(os.Stderr, "--ticker is required")
		os.Exit(2)
	}

	// --- Config and Logger Setup ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	zl := logger.SetGlobalLogLevel(cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	provider, closeFn, err := openProvider(ctx, cfg, zl)
	if err != nil {
		logger.Fatalf("Failed to open data source: %v", err)
	}
	defer closeFn()

	if *period == "" {
		*period = cfg.Training.DefaultPeriod
	}
	ds, err := buildDataset(ctx, provider, strings.ToUpper(*ticker), *period, cfg, time.Now())
	if err != nil {
		logger.Fatalf("Failed to build dataset: %v", err)
	}

	var out io.Writer = os.Stdout
	w := csvwriter.NewWriter(out, zl)
	if *outPath != "" {
		w, err = csvwriter.NewFileWriter(*outPath, zl)
		if err != nil {
			logger.Fatalf("%v", err)
		}
	}
	n, err := w.WriteDataset(ds)
	if err != nil {
		logger.Fatalf("Failed to write dataset: %v", err)
	}
	if err := w.Close(); err != nil {
		logger.Fatalf("Failed to close output: %v", err)
	}
	logger.Infof("Exported %d examples of %s over %s", n, strings.ToUpper(*ticker), *period)
}

func openProvider(ctx context.Context, cfg *config.Config, log *zap.Logger) (datastore.SeriesProvider, func(), error) {
	if cfg.Data.Source != "postgres" {
		return datastore.NewCSVProvider(cfg.Data.CSVDir, log), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.Database.DatabaseURL())
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return datastore.NewRepository(pool), pool.Close, nil
}

// buildDataset fetches the instrument and the volatility index and builds the
// training examples.
func buildDataset(ctx context.Context, provider datastore.SeriesProvider, ticker, period string, cfg *config.Config, now time.Time) (dataset.Dataset, error) {
	from, err := datastore.ParsePeriod(period, now)
	if err != nil {
		return dataset.Dataset{}, err
	}
	prices, err := provider.FetchCloses(ctx, ticker, from, now)
	if err != nil {
		return dataset.Dataset{}, err
	}
	index, err := provider.FetchCloses(ctx, cfg.Data.VolatilitySymbol, from, now)
	if err != nil {
		return dataset.Dataset{}, err
	}
	return dataset.BuildTrainingExamples(prices, series.AsVolatilityIndex(index), cfg.Dataset)
}
