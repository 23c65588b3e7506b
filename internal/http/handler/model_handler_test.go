package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/datastore"
	"github.com/your-org/price-horizon-learner/internal/learning"
	"github.com/your-org/price-horizon-learner/internal/metrics"
	"github.com/your-org/price-horizon-learner/internal/promotion"
	"github.com/your-org/price-horizon-learner/internal/series"
)

// MockPromotionReader is a mock for the PromotionReader interface.
type MockPromotionReader struct {
	mock.Mock
}

func (m *MockPromotionReader) Current(ctx context.Context, instrument string) (promotion.State, bool, error) {
	args := m.Called(ctx, instrument)
	return args.Get(0).(promotion.State), args.Bool(1), args.Error(2)
}

func (m *MockPromotionReader) Runs(ctx context.Context, instrument string) ([]promotion.Run, error) {
	args := m.Called(ctx, instrument)
	runs, _ := args.Get(0).([]promotion.Run)
	return runs, args.Error(1)
}

// MockPredictor is a mock for the Predictor interface.
type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) PredictLatest(ctx context.Context, instrument string) (learning.Prediction, error) {
	args := m.Called(ctx, instrument)
	return args.Get(0).(learning.Prediction), args.Error(1)
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestGetPromoted(t *testing.T) {
	promotions := new(MockPromotionReader)
	h := NewRouter(Routes{Models: NewModelHandler(promotions, nil, zap.NewNop())})

	promotions.On("Current", mock.Anything, "AAPL").
		Return(promotion.State{Instrument: "AAPL", BestRunID: "run2", BestLoss: 0.25}, true, nil).Once()
	promotions.On("Current", mock.Anything, "MSFT").
		Return(promotion.State{Instrument: "MSFT", BestRunID: "m1", BestLoss: math.NaN()}, true, nil).Once()
	promotions.On("Current", mock.Anything, "NVDA").Return(promotion.State{}, false, nil).Once()
	promotions.On("Current", mock.Anything, "TSLA").Return(promotion.State{}, false, errors.New("db down")).Once()

	rec := serve(h, http.MethodGet, "/models/aapl")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"instrument":"AAPL","best_run_id":"run2","best_loss":0.25}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/models/MSFT")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"instrument":"MSFT","best_run_id":"m1","best_loss":null}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/models/NVDA").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodGet, "/models/TSLA").Code)
	promotions.AssertExpectations(t)
}

func TestListRuns(t *testing.T) {
	promotions := new(MockPromotionReader)
	h := NewRouter(Routes{Models: NewModelHandler(promotions, nil, zap.NewNop())})
	at := time.Date(2024, time.June, 28, 0, 0, 0, 0, time.UTC)

	promotions.On("Runs", mock.Anything, "AAPL").Return([]promotion.Run{
		{Instrument: "AAPL", RunID: "run2", Loss: 0.3, Promoted: true, RecordedAt: at},
		{Instrument: "AAPL", RunID: "run9", Loss: math.NaN(), RecordedAt: at},
	}, nil).Once()

	rec := serve(h, http.MethodGet, "/models/AAPL/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"run_id":"run2","loss":0.3,"promoted":true,"recorded_at":"2024-06-28T00:00:00Z"},
		{"run_id":"run9","loss":null,"promoted":false,"recorded_at":"2024-06-28T00:00:00Z"}
	]`, rec.Body.String())
}

func TestPredict(t *testing.T) {
	predictor := new(MockPredictor)
	h := NewRouter(Routes{Models: NewModelHandler(new(MockPromotionReader), predictor, zap.NewNop())})

	predictor.On("PredictLatest", mock.Anything, "AAPL").Return(learning.Prediction{
		Instrument: "AAPL",
		RunID:      "run2",
		Closes:     []float64{101, 102},
	}, nil).Once()
	predictor.On("PredictLatest", mock.Anything, "MSFT").Return(learning.Prediction{}, learning.ErrNoPromotedModel).Once()
	predictor.On("PredictLatest", mock.Anything, "NVDA").Return(learning.Prediction{}, series.ErrInsufficientData).Once()
	predictor.On("PredictLatest", mock.Anything, "TSLA").Return(learning.Prediction{}, errors.New("boom")).Once()

	rec := serve(h, http.MethodGet, "/predict/aapl")
	require.Equal(t, http.StatusOK, rec.Code)
	var pred learning.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pred))
	assert.Equal(t, []float64{101, 102}, pred.Closes)

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/predict/MSFT").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, serve(h, http.MethodGet, "/predict/NVDA").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodGet, "/predict/TSLA").Code)
	predictor.AssertExpectations(t)
}

func TestGetStockData(t *testing.T) {
	provider := datastore.NewInMemProvider()
	provider.Seed("AAPL", []series.PricePoint{
		{Date: time.Date(2024, time.June, 26, 0, 0, 0, 0, time.UTC), Close: 210.5},
		{Date: time.Date(2024, time.June, 27, 0, 0, 0, 0, time.UTC), Close: math.NaN()},
		{Date: time.Date(2024, time.June, 28, 0, 0, 0, 0, time.UTC), Close: 212},
	})
	stock := NewStockHandler(provider, "", zap.NewNop())
	stock.now = func() time.Time { return time.Date(2024, time.June, 28, 18, 0, 0, 0, time.UTC) }
	h := NewRouter(Routes{Stock: stock})

	rec := serve(h, http.MethodGet, "/stock-data?ticker=aapl&period=1mo")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"ticker":"AAPL","period":"1mo",
		"dates":["2024-06-26","2024-06-27","2024-06-28"],
		"prices":[210.5,null,212],
		"hurst":null
	}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/stock-data").Code)

	var trend []series.PricePoint
	for i := 0; i < 60; i++ {
		trend = append(trend, series.PricePoint{
			Date:  time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Close: 100 * math.Exp(0.0001*float64(i*i)),
		})
	}
	provider.Seed("NVDA", trend)
	rec = serve(h, http.MethodGet, "/stock-data?ticker=NVDA&period=3mo")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp stockDataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Hurst)
	assert.Equal(t, "trending", resp.Regime)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/stock-data?ticker=AAPL&period=7d").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/stock-data?ticker=ZZZZ").Code)
}

func TestMetricsRoute(t *testing.T) {
	recorder := metrics.New(nil)
	recorder.RecordJob("AAPL", "succeeded", 1.5)
	h := NewRouter(Routes{Recorder: recorder})

	rec := serve(h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `learner_jobs_total{status="succeeded"} 1`)
}
