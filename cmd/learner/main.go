// Package main is the entry point of the price horizon learner service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/config"
	"github.com/your-org/price-horizon-learner/internal/datastore"
	"github.com/your-org/price-horizon-learner/internal/http/handler"
	"github.com/your-org/price-horizon-learner/internal/learning"
	"github.com/your-org/price-horizon-learner/internal/metrics"
	"github.com/your-org/price-horizon-learner/internal/promotion"
	"github.com/your-org/price-horizon-learner/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.ReloadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	zl := logger.SetGlobalLogLevel(cfg.LogLevel)
	defer logger.Sync()
	logger.Infof("Loaded configuration from: %s", *configPath)

	// --- Signal Handling ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		logger.Fatalf("Learner exited with error: %v", err)
	}
	logger.Info("Learner shut down gracefully.")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// --- Database (Optional) ---
	var pool *pgxpool.Pool
	if dsn := cfg.Database.DatabaseURL(); dsn != "" {
		if cfg.Database.AutoMigrate {
			if err := datastore.Migrate(dsn, log); err != nil {
				return err
			}
		}
		var err error
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("unable to connect to database: %w", err)
		}
		defer pool.Close()
		log.Info("Connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.Name))
	}

	provider, err := newProvider(cfg, pool, log)
	if err != nil {
		return err
	}

	// --- Promotion ---
	locker, closeLocker, err := newLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLocker()
	policy, err := promotion.ParseStoreErrorPolicy(cfg.Promotion.StoreErrorPolicy)
	if err != nil {
		return err
	}
	tracker := promotion.NewTracker(newStore(pool), locker, policy, log.Named("promotion"))

	// --- Supporting Services ---
	writer := newWriter(cfg, pool, log)
	defer writer.Close()
	notifier := newNotifier(cfg, log)
	defer notifier.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(reg)

	// --- Training ---
	trainer, err := newTrainer(cfg)
	if err != nil {
		return err
	}
	registry := learning.NewModelRegistry()
	pipeline := learning.NewPipeline(learning.PipelineConfig{
		Params:        cfg.Dataset,
		DefaultPeriod: cfg.Training.DefaultPeriod,
		DefaultEpochs: cfg.Training.DefaultEpochs,
		LearningRate:  cfg.Training.LearningRate,
		SaveDataset:   bool(cfg.Training.SaveDataset),
	}, learning.PipelineDeps{
		Provider:         provider,
		Trainer:          trainer,
		Registry:         registry,
		Tracker:          tracker,
		Writer:           writer,
		Recorder:         recorder,
		Notifier:         notifier,
		Logger:           log.Named("pipeline"),
		VolatilitySymbol: cfg.Data.VolatilitySymbol,
	})

	events := learning.NewJobEventStream(cfg.Training.EventBufferLen)
	queue := learning.NewJobQueue(pipeline, learning.QueueConfig{
		Workers:    cfg.Training.Workers,
		QueueSize:  cfg.Training.QueueSize,
		JobTimeout: cfg.Training.JobTimeout,
	}, events, recorder, log.Named("jobs"))
	// 実行中のジョブはシャットダウンのタイムアウトまで継続させる
	queue.Start(context.Background())

	predictor := learning.NewPredictor(provider, cfg.Data.VolatilitySymbol, cfg.Dataset, registry, tracker, log.Named("predictor"))

	// --- HTTP Server ---
	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: handler.NewRouter(handler.Routes{
			Jobs:     queue,
			Train:    handler.NewTrainHandler(queue, events, log.Named("http")),
			Models:   handler.NewModelHandler(tracker, predictor, log.Named("http")),
			Stock:    handler.NewStockHandler(provider, cfg.Training.DefaultPeriod, log.Named("http")),
			Recorder: recorder,
			Logger:   log.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case serveErr = <-errCh:
		log.Error("HTTP server failed", zap.Error(serveErr))
	}

	// --- Graceful Shutdown ---
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Warn("Running jobs were cancelled", zap.Error(err))
	}
	return serveErr
}

