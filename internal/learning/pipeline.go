package learning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/price-horizon-learner/internal/alert"
	"github.com/your-org/price-horizon-learner/internal/dataset"
	"github.com/your-org/price-horizon-learner/internal/datastore"
	"github.com/your-org/price-horizon-learner/internal/dbwriter"
	"github.com/your-org/price-horizon-learner/internal/metrics"
	"github.com/your-org/price-horizon-learner/internal/promotion"
	"github.com/your-org/price-horizon-learner/internal/series"
)

// TrainRequest is the payload of a training job.
type TrainRequest struct {
	Ticker string `json:"ticker" validate:"required,max=32"`
	Period string `json:"period" validate:"omitempty,oneof=1mo 3mo 6mo 1y 2y 5y"`
	Epochs int    `json:"epochs" validate:"omitempty,gt=0,lte=100000"`
}

// TrainOutcome summarises a finished training run.
type TrainOutcome struct {
	RunID      string             `json:"run_id"`
	Instrument string             `json:"instrument"`
	Trainer    string             `json:"trainer"`
	Loss       float64            `json:"loss"`
	Examples   int                `json:"examples"`
	Saved      int64              `json:"saved_examples"`
	Decision   promotion.Decision `json:"decision"`
	TrainedAt  time.Time          `json:"trained_at"`
}

// PipelineDeps are the collaborators of a Pipeline. Writer, Recorder,
// Notifier and Logger may be nil.
type PipelineDeps struct {
	Provider         datastore.SeriesProvider
	Trainer          Trainer
	Registry         *ModelRegistry
	Tracker          *promotion.Tracker
	Writer           dbwriter.DBWriter
	Recorder         *metrics.Recorder
	Notifier         alert.Notifier
	Logger           *zap.Logger
	VolatilitySymbol string
}

// PipelineConfig holds the run defaults.
type PipelineConfig struct {
	Params        dataset.Params
	DefaultPeriod string
	DefaultEpochs int
	LearningRate  float64
	SaveDataset   bool
}

// Pipelineは価格取得から学習、昇格判定までの1回の学習ジョブを実行します。
type Pipeline struct {
	cfg  PipelineConfig
	deps PipelineDeps
	now  func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig, deps PipelineDeps) *Pipeline {
	if cfg.DefaultPeriod == "" {
		cfg.DefaultPeriod = datastore.DefaultPeriod
	}
	if cfg.DefaultEpochs < 1 {
		cfg.DefaultEpochs = 1
	}
	if deps.VolatilitySymbol == "" {
		deps.VolatilitySymbol = datastore.DefaultVolatilitySymbol
	}
	if deps.Registry == nil {
		deps.Registry = NewModelRegistry()
	}
	if deps.Notifier == nil {
		deps.Notifier = alert.NewNoOpNotifier()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Writer == nil {
		deps.Writer = dbwriter.NewDummyWriter(deps.Logger)
	}
	return &Pipeline{cfg: cfg, deps: deps, now: time.Now}
}

// Registry returns the registry trained models are stored in.
func (p *Pipeline) Registry() *ModelRegistry {
	return p.deps.Registry
}

// Normalize fills request defaults and upper-cases the ticker.
func (p *Pipeline) Normalize(req TrainRequest) TrainRequest {
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if req.Period == "" {
		req.Period = p.cfg.DefaultPeriod
	}
	if req.Epochs == 0 {
		req.Epochs = p.cfg.DefaultEpochs
	}
	return req
}

// Run fetches the instrument and volatility index closes, builds the
// training set, trains a model and submits the run for promotion.
func (p *Pipeline) Run(ctx context.Context, req TrainRequest) (TrainOutcome, error) {
	req = p.Normalize(req)
	if req.Ticker == "" {
		return TrainOutcome{}, fmt.Errorf("%w: empty ticker", series.ErrInvalidParameters)
	}
	log := p.deps.Logger.With(zap.String("instrument", req.Ticker), zap.String("period", req.Period))

	now := p.now()
	from, err := datastore.ParsePeriod(req.Period, now)
	if err != nil {
		return TrainOutcome{}, err
	}

	prices, vix, err := fetchSeries(ctx, p.deps.Provider, req.Ticker, p.deps.VolatilitySymbol, from, now)
	if err != nil {
		return TrainOutcome{}, err
	}
	log.Debug("Fetched closes", zap.Int("prices", len(prices)), zap.Int("vix", len(vix)))

	ds, err := dataset.BuildTrainingExamples(prices, vix, p.cfg.Params)
	if err != nil {
		return TrainOutcome{}, fmt.Errorf("build training examples for %s: %w", req.Ticker, err)
	}
	if ds.Len() == 0 {
		return TrainOutcome{}, fmt.Errorf("%w: no training examples for %s over %s", series.ErrInsufficientData, req.Ticker, req.Period)
	}
	p.deps.Recorder.RecordExamples(req.Ticker, ds.Len())

	result, err := p.deps.Trainer.Train(ctx, req.Ticker, ds, Hyperparameters{Epochs: req.Epochs, LearningRate: p.cfg.LearningRate})
	if err != nil {
		return TrainOutcome{}, fmt.Errorf("train %s: %w", req.Ticker, err)
	}
	p.deps.Registry.Put(result.RunID, result.Model)
	log = log.With(zap.String("runID", result.RunID))
	log.Info("Model trained", zap.Float64("loss", result.Loss), zap.Int("examples", result.Examples))

	outcome := TrainOutcome{
		RunID:      result.RunID,
		Instrument: req.Ticker,
		Trainer:    result.Model.Kind(),
		Loss:       result.Loss,
		Examples:   result.Examples,
		TrainedAt:  result.TrainedAt,
	}

	if p.cfg.SaveDataset {
		saved, err := p.deps.Writer.SaveDataset(ctx, result.RunID, req.Ticker, ds)
		if err != nil {
			// 学習結果は有効なので、保存失敗は警告に留める
			log.Warn("Failed to save training examples", zap.Error(err))
		}
		outcome.Saved = saved
	}

	decision, err := p.deps.Tracker.Evaluate(ctx, promotion.Observation{
		Instrument: req.Ticker,
		RunID:      result.RunID,
		Loss:       result.Loss,
	})
	if err != nil {
		return outcome, fmt.Errorf("evaluate run %s: %w", result.RunID, err)
	}
	outcome.Decision = decision
	p.deps.Recorder.RecordPromotion(req.Ticker, string(decision.Reason), decision.Promoted, result.Loss)

	if decision.Promoted && decision.Reason != promotion.ReasonAlreadyBest {
		msg := alert.PromotionAlert{
			Instrument: req.Ticker,
			RunID:      result.RunID,
			Reason:     string(decision.Reason),
			Loss:       result.Loss,
			Demoted:    decision.Demoted,
		}.String()
		if err := p.deps.Notifier.Send(msg); err != nil {
			log.Warn("Failed to send promotion alert", zap.Error(err))
		}
	}
	return outcome, nil
}

// fetchSeries loads the instrument and the volatility index concurrently.
func fetchSeries(ctx context.Context, provider datastore.SeriesProvider, ticker, volSymbol string, from, to time.Time) ([]series.PricePoint, []series.VolatilityIndexPoint, error) {
	var prices, index []series.PricePoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prices, err = provider.FetchCloses(gctx, ticker, from, to)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ticker, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		index, err = provider.FetchCloses(gctx, volSymbol, from, to)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", volSymbol, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return prices, series.AsVolatilityIndex(index), nil
}
