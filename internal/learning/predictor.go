package learning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/dataset"
	"github.com/your-org/price-horizon-learner/internal/datastore"
	"github.com/your-org/price-horizon-learner/internal/promotion"
	"github.com/your-org/price-horizon-learner/internal/series"
)

var (
	// ErrNoPromotedModel is returned when an instrument has no promoted run.
	ErrNoPromotedModel = errors.New("learning: no promoted model")
	// ErrModelNotLoaded is returned when the promoted run is not in the registry,
	// e.g. it was trained by another process.
	ErrModelNotLoaded = errors.New("learning: promoted model not loaded")
)

// Prediction is the forecast of the promoted model from the latest window.
type Prediction struct {
	Instrument string                  `json:"instrument"`
	RunID      string                  `json:"run_id"`
	Model      string                  `json:"model"`
	Example    dataset.TrainingExample `json:"example"`
	Dates      []time.Time             `json:"dates"`
	Closes     []float64               `json:"predicted_closes"`
}

// Predictor serves forecasts from promoted runs.
type Predictor struct {
	provider  datastore.SeriesProvider
	volSymbol string
	params    dataset.Params
	registry  *ModelRegistry
	tracker   *promotion.Tracker
	logger    *zap.Logger
	now       func() time.Time
}

// NewPredictor creates a Predictor.
func NewPredictor(provider datastore.SeriesProvider, volSymbol string, params dataset.Params, registry *ModelRegistry, tracker *promotion.Tracker, logger *zap.Logger) *Predictor {
	if volSymbol == "" {
		volSymbol = datastore.DefaultVolatilitySymbol
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{
		provider:  provider,
		volSymbol: volSymbol,
		params:    params,
		registry:  registry,
		tracker:   tracker,
		logger:    logger,
		now:       time.Now,
	}
}

// PredictLatest predicts the next horizon closes of instrument.
func (p *Predictor) PredictLatest(ctx context.Context, instrument string) (Prediction, error) {
	instrument = strings.ToUpper(strings.TrimSpace(instrument))
	state, found, err := p.tracker.Current(ctx, instrument)
	if err != nil {
		return Prediction{}, err
	}
	if !found {
		return Prediction{}, fmt.Errorf("%w for %s", ErrNoPromotedModel, instrument)
	}
	model, ok := p.registry.Get(state.BestRunID)
	if !ok {
		return Prediction{}, fmt.Errorf("%w: run %s", ErrModelNotLoaded, state.BestRunID)
	}

	to := p.now()
	from := series.Day(to).AddDate(0, 0, -p.params.LatestHistoryDays())
	prices, index, err := fetchSeries(ctx, p.provider, instrument, p.volSymbol, from, to)
	if err != nil {
		return Prediction{}, err
	}

	example, err := dataset.BuildLatestExample(prices, index, p.params)
	if err != nil {
		return Prediction{}, fmt.Errorf("build latest example for %s: %w", instrument, err)
	}
	closes, err := model.Predict(example.Vector())
	if err != nil {
		return Prediction{}, fmt.Errorf("predict %s with %s: %w", instrument, state.BestRunID, err)
	}
	p.logger.Debug("Predicted latest window",
		zap.String("instrument", instrument),
		zap.String("runID", state.BestRunID),
		zap.Time("buyDate", example.BuyDate))

	return Prediction{
		Instrument: instrument,
		RunID:      state.BestRunID,
		Model:      model.Kind(),
		Example:    example,
		Dates:      nextBusinessDays(example.BuyDate, len(closes)),
		Closes:     closes,
	}, nil
}

// nextBusinessDays returns the n weekdays following d. Exchange holidays are
// not known here.
func nextBusinessDays(d time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for len(out) < n {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}
