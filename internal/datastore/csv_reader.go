package datastore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/series"
)

// CSVProvider reads one <SYMBOL>.csv file per symbol from a directory. Each
// file has a header and the columns date,close. An empty close is missing.
type CSVProvider struct {
	dir    string
	logger *zap.Logger
}

// NewCSVProvider creates a CSVProvider rooted at dir.
func NewCSVProvider(dir string, logger *zap.Logger) *CSVProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVProvider{dir: dir, logger: logger}
}

// FileName returns the file a symbol is read from. Index symbols drop the
// leading caret, so ^VIX is read from VIX.csv.
func FileName(symbol string) string {
	return strings.ToUpper(strings.TrimPrefix(symbol, "^")) + ".csv"
}

// FetchCloses reads the symbol's file and keeps rows between from and to.
func (p *CSVProvider) FetchCloses(ctx context.Context, symbol string, from, to time.Time) ([]series.PricePoint, error) {
	path := filepath.Join(p.dir, FileName(symbol))
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnknownSymbol, symbol, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer file.Close()

	points, err := ReadCloses(ctx, file, p.logger.With(zap.String("symbol", symbol)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	out := points[:0]
	for _, pt := range points {
		if inRange(pt.Date, from, to) {
			out = append(out, pt)
		}
	}
	p.logger.Debug("Loaded closes from csv", zap.String("symbol", symbol), zap.Int("rows", len(out)))
	return out, nil
}

// ReadCloses parses a date,close CSV stream. Rows with the wrong number of
// columns or an unparsable date are skipped with a warning.
func ReadCloses(ctx context.Context, r io.Reader, logger *zap.Logger) ([]series.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// Read the header row
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []series.PricePoint{}, nil // Empty file is okay
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	points := make([]series.PricePoint, 0, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}

		if len(record) != 2 {
			logger.Warn("Skipping record due to invalid number of columns", zap.Int("expected", 2), zap.Int("got", len(record)))
			continue
		}

		date, err := parseDate(record[0])
		if err != nil {
			logger.Warn("Skipping record due to date parse error", zap.Error(err))
			continue
		}

		value := math.NaN()
		if s := strings.TrimSpace(record[1]); s != "" {
			value, err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: close %q on %s", series.ErrMalformedInput, record[1], record[0])
			}
		}
		points = append(points, series.PricePoint{Date: date, Close: value})
	}
	return points, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return series.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date '%s' with any known format", s)
}
