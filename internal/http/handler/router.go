package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/metrics"
)

// Routes are the handlers mounted by NewRouter. Nil handlers are skipped.
type Routes struct {
	Jobs     JobQueue
	Train    *TrainHandler
	Models   *ModelHandler
	Stock    *StockHandler
	Recorder *metrics.Recorder
	Logger   *zap.Logger
}

// NewRouter builds the API router.
func NewRouter(rt Routes) http.Handler {
	logger := rt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", HealthCheckHandler(rt.Jobs))
	if rt.Train != nil {
		rt.Train.RegisterRoutes(r)
	}
	if rt.Models != nil {
		rt.Models.RegisterRoutes(r)
	}
	if rt.Stock != nil {
		rt.Stock.RegisterRoutes(r)
	}
	if rt.Recorder != nil {
		r.Method(http.MethodGet, "/metrics", rt.Recorder.Handler())
	}
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("requestID", middleware.GetReqID(r.Context())))
		})
	}
}
