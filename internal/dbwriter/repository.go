package dbwriter

import (
	"time"

	"github.com/your-org/price-horizon-learner/internal/dataset"
)

// ExampleRow はtraining_examplesテーブルの1行です。
type ExampleRow struct {
	RunID              string    `db:"run_id"`
	Instrument         string    `db:"instrument"`
	BuyDate            time.Time `db:"buy_date"`
	CurrentPrice       float64   `db:"current_price"`
	RealizedVolatility float64   `db:"realized_volatility"`
	VIXValue           float64   `db:"vix_value"`
	LaggedCloses       []float64 `db:"lagged_closes"`
	LabelCloses        []float64 `db:"label_closes"`
}

var exampleColumns = []string{
	"run_id", "instrument", "buy_date", "current_price",
	"realized_volatility", "vix_value", "lagged_closes", "label_closes",
}

// ExampleRows flattens a dataset into table rows.
func ExampleRows(runID, instrument string, ds dataset.Dataset) []ExampleRow {
	rows := make([]ExampleRow, len(ds.Examples))
	for i, e := range ds.Examples {
		rows[i] = ExampleRow{
			RunID:              runID,
			Instrument:         instrument,
			BuyDate:            e.BuyDate,
			CurrentPrice:       e.CurrentPrice,
			RealizedVolatility: e.RealizedVolatility,
			VIXValue:           e.VIXValue,
			LaggedCloses:       append([]float64(nil), e.LaggedCloses...),
		}
		if i < len(ds.Labels) {
			rows[i].LabelCloses = append([]float64(nil), ds.Labels[i].Closes...)
		}
	}
	return rows
}

func toExampleInterfaces(rows []ExampleRow) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		out[i] = []interface{}{r.RunID, r.Instrument, r.BuyDate, r.CurrentPrice, r.RealizedVolatility, r.VIXValue, r.LaggedCloses, r.LabelCloses}
	}
	return out
}
