// Package main loads daily closes from CSV files into the daily_closes table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/config"
	"github.com/your-org/price-horizon-learner/internal/datastore"
	"github.com/your-org/price-horizon-learner/internal/series"
	"github.com/your-org/price-horizon-learner/pkg/logger"
)

// CloseWriter replaces the stored closes of a symbol.
type CloseWriter interface {
	ReplaceCloses(ctx context.Context, symbol string, points []series.PricePoint) (int64, error)
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	dir := flag.String("dir", "", "Directory holding <SYMBOL>.csv files (default data.csv_dir)")
	symbols := flag.String("symbols", "", "Comma separated symbols to load, e.g. AAPL,^VIX")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	zl := logger.SetGlobalLogLevel(cfg.LogLevel)
	defer logger.Sync()

	dsn := cfg.Database.DatabaseURL()
	if dsn == "" {
		logger.Fatalf("database.host must be configured")
	}
	if cfg.Database.AutoMigrate {
		if err := datastore.Migrate(dsn, zl); err != nil {
			logger.Fatalf("Migration failed: %v", err)
		}
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if *dir == "" {
		*dir = cfg.Data.CSVDir
	}
	list := splitSymbols(*symbols)
	if len(list) == 0 {
		list = []string{cfg.Data.VolatilitySymbol}
	}

	total, err := ingest(ctx, datastore.NewRepository(pool), *dir, list, zl)
	if err != nil {
		logger.Fatalf("Ingest failed: %v", err)
	}
	logger.Infof("Loaded %d closes for %d symbols", total, len(list))
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ingest reads <dir>/<FileName(symbol)> for each symbol and replaces its closes.
func ingest(ctx context.Context, repo CloseWriter, dir string, symbols []string, log *zap.Logger) (int64, error) {
	var total int64
	for _, symbol := range symbols {
		path := filepath.Join(dir, datastore.FileName(symbol))
		f, err := os.Open(path)
		if err != nil {
			return total, fmt.Errorf("open %s: %w", path, err)
		}
		points, err := datastore.ReadCloses(ctx, f, log)
		f.Close()
		if err != nil {
			return total, fmt.Errorf("read %s: %w", path, err)
		}
		if err := series.ValidatePrices(points); err != nil {
			return total, fmt.Errorf("%s: %w", path, err)
		}
		n, err := repo.ReplaceCloses(ctx, symbol, points)
		if err != nil {
			return total, fmt.Errorf("store %s: %w", symbol, err)
		}
		log.Info("Closes loaded", zap.String("symbol", symbol), zap.Int64("rows", n))
		total += n
	}
	return total, nil
}
