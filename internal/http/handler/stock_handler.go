package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/datastore"
	"github.com/your-org/price-horizon-learner/internal/indicator"
	"github.com/your-org/price-horizon-learner/internal/series"
)

// regimeBand is the distance from 0.5 within which a series counts as a random walk.
const regimeBand = 0.05

// StockHandler serves raw close series from the configured provider.
type StockHandler struct {
	provider      datastore.SeriesProvider
	defaultPeriod string
	logger        *zap.Logger
	now           func() time.Time
}

// NewStockHandler creates a StockHandler.
func NewStockHandler(provider datastore.SeriesProvider, defaultPeriod string, logger *zap.Logger) *StockHandler {
	if defaultPeriod == "" {
		defaultPeriod = datastore.DefaultPeriod
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockHandler{provider: provider, defaultPeriod: defaultPeriod, logger: logger, now: time.Now}
}

// RegisterRoutes registers the close series route.
func (h *StockHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stock-data", h.GetStockData)
}

type stockDataResponse struct {
	Ticker string     `json:"ticker"`
	Period string     `json:"period"`
	Dates  []string   `json:"dates"`
	Prices []*float64 `json:"prices"`
	Hurst  *float64   `json:"hurst"`
	Regime string     `json:"regime,omitempty"`
}

// GetStockData returns the closes of ?ticker= over ?period= with the Hurst
// exponent of the series when there is enough history.
func (h *StockHandler) GetStockData(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("ticker")))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = h.defaultPeriod
	}

	now := h.now()
	from, err := datastore.ParsePeriod(period, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, err := h.provider.FetchCloses(r.Context(), ticker, from, now)
	switch {
	case errors.Is(err, datastore.ErrUnknownSymbol):
		writeError(w, http.StatusNotFound, fmt.Sprintf("no data for %s", ticker))
		return
	case err != nil:
		h.logger.Error("Failed to fetch closes", zap.String("ticker", ticker), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch closes")
		return
	}

	resp := stockDataResponse{
		Ticker: ticker,
		Period: period,
		Dates:  make([]string, 0, len(points)),
		Prices: make([]*float64, 0, len(points)),
	}
	for _, p := range points {
		resp.Dates = append(resp.Dates, p.Date.Format("2006-01-02"))
		if series.IsMissing(p.Close) {
			resp.Prices = append(resp.Prices, nil)
			continue
		}
		v := p.Close
		resp.Prices = append(resp.Prices, &v)
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	if h, err := indicator.HurstExponent(closes, indicator.DefaultHurstMinLag, indicator.DefaultHurstMaxLag); err == nil {
		resp.Hurst = &h
		resp.Regime = string(indicator.ClassifyRegime(h, regimeBand))
	}
	writeJSON(w, http.StatusOK, resp)
}
