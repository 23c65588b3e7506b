package csvwriter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/dataset"
)

func sampleDataset() dataset.Dataset {
	return dataset.Dataset{
		Lookback: 3,
		Horizon:  2,
		Examples: []dataset.TrainingExample{{
			BuyDate:            time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
			CurrentPrice:       101.5,
			RealizedVolatility: 0.25,
			VIXValue:           14,
			LaggedCloses:       []float64{99, 98.25},
		}},
		Labels: []dataset.LabelVector{{Closes: []float64{102, 103.75}}},
	}
}

func TestHeader(t *testing.T) {
	assert.Equal(t, []string{
		"buy_date", "current_stock_price", "realized_volatility", "vix_value",
		"close_lag_3", "close_lag_2", "label_1", "label_2",
	}, Header(3, 2))
}

func TestWriteDataset(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, zap.NewNop())

	n, err := w.WriteDataset(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	// ラグは古い順に並ぶ
	assert.Equal(t, "2024-03-04,101.5,0.25,14,98.25,99,102,103.75", lines[1])
	assert.NoError(t, w.Close())
}

func TestNewFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aapl.csv")
	w, err := NewFileWriter(path, nil)
	require.NoError(t, err)
	_, err = w.WriteDataset(dataset.Dataset{Lookback: 2, Horizon: 1})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "buy_date,current_stock_price,realized_volatility,vix_value,close_lag_2,label_1\n", string(b))

	_, err = NewFileWriter(filepath.Join(t.TempDir(), "missing", "x.csv"), nil)
	assert.Error(t, err)
}
