package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/learning"
	"github.com/your-org/price-horizon-learner/internal/promotion"
	"github.com/your-org/price-horizon-learner/internal/series"
)

// PromotionReader reads promotion state. promotion.Tracker implements it.
type PromotionReader interface {
	Current(ctx context.Context, instrument string) (promotion.State, bool, error)
	Runs(ctx context.Context, instrument string) ([]promotion.Run, error)
}

// Predictor serves forecasts. learning.Predictor implements it.
type Predictor interface {
	PredictLatest(ctx context.Context, instrument string) (learning.Prediction, error)
}

// ModelHandler はモデルと予測のHTTPリクエストを処理します。
type ModelHandler struct {
	promotions PromotionReader
	predictor  Predictor
	logger     *zap.Logger
}

// NewModelHandler は新しいModelHandlerを作成します。
func NewModelHandler(promotions PromotionReader, predictor Predictor, logger *zap.Logger) *ModelHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelHandler{promotions: promotions, predictor: predictor, logger: logger}
}

// RegisterRoutes はchiルーターにモデル関連のルートを登録します。
func (h *ModelHandler) RegisterRoutes(r chi.Router) {
	r.Get("/models/{instrument}", h.GetPromoted)
	r.Get("/models/{instrument}/runs", h.ListRuns)
	r.Get("/predict/{instrument}", h.Predict)
}

type promotedResponse struct {
	Instrument string   `json:"instrument"`
	BestRunID  string   `json:"best_run_id"`
	BestLoss   *float64 `json:"best_loss"`
}

type runResponse struct {
	RunID      string    `json:"run_id"`
	Loss       *float64  `json:"loss"`
	Promoted   bool      `json:"promoted"`
	RecordedAt time.Time `json:"recorded_at"`
}

func instrumentParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "instrument")))
}

// GetPromoted returns the promoted run of an instrument.
func (h *ModelHandler) GetPromoted(w http.ResponseWriter, r *http.Request) {
	instrument := instrumentParam(r)
	state, found, err := h.promotions.Current(r.Context(), instrument)
	if err != nil {
		h.logger.Error("Failed to fetch promoted run", zap.String("instrument", instrument), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch promoted run")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no promoted run for %s", instrument))
		return
	}
	writeJSON(w, http.StatusOK, promotedResponse{
		Instrument: state.Instrument,
		BestRunID:  state.BestRunID,
		BestLoss:   nullableLoss(state.BestLoss),
	})
}

// ListRuns returns the recorded runs of an instrument, lowest loss first.
func (h *ModelHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	instrument := instrumentParam(r)
	runs, err := h.promotions.Runs(r.Context(), instrument)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.String("instrument", instrument), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			RunID:      run.RunID,
			Loss:       nullableLoss(run.Loss),
			Promoted:   run.Promoted,
			RecordedAt: run.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Predict forecasts the next closes with the promoted model.
func (h *ModelHandler) Predict(w http.ResponseWriter, r *http.Request) {
	instrument := instrumentParam(r)
	pred, err := h.predictor.PredictLatest(r.Context(), instrument)
	switch {
	case errors.Is(err, learning.ErrNoPromotedModel), errors.Is(err, learning.ErrModelNotLoaded):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, series.ErrInsufficientData), errors.Is(err, series.ErrEmptyResult):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.logger.Error("Prediction failed", zap.String("instrument", instrument), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}
	writeJSON(w, http.StatusOK, pred)
}
