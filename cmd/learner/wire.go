package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/alert"
	"github.com/your-org/price-horizon-learner/internal/config"
	"github.com/your-org/price-horizon-learner/internal/datastore"
	"github.com/your-org/price-horizon-learner/internal/dbwriter"
	"github.com/your-org/price-horizon-learner/internal/learning"
	"github.com/your-org/price-horizon-learner/internal/promotion"
)

func newProvider(cfg *config.Config, pool *pgxpool.Pool, log *zap.Logger) (datastore.SeriesProvider, error) {
	switch cfg.Data.Source {
	case "csv":
		log.Info("Reading closes from CSV files", zap.String("dir", cfg.Data.CSVDir))
		return datastore.NewCSVProvider(cfg.Data.CSVDir, log.Named("csv")), nil
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("data.source postgres needs a database connection")
		}
		return datastore.NewRepository(pool), nil
	case "memory":
		log.Warn("Using an empty in-memory provider; training requests will fail until it is seeded")
		return datastore.NewInMemProvider(), nil
	}
	return nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
}

func newStore(pool *pgxpool.Pool) promotion.Store {
	if pool == nil {
		return promotion.NewMemStore()
	}
	return promotion.NewPostgresStore(pool)
}

func newWriter(cfg *config.Config, pool *pgxpool.Pool, log *zap.Logger) dbwriter.DBWriter {
	if pool == nil {
		return dbwriter.NewDummyWriter(log)
	}
	return dbwriter.NewDatasetWriter(pool, cfg.DBWriter, log.Named("dbwriter"))
}

func newTrainer(cfg *config.Config) (learning.Trainer, error) {
	switch cfg.Training.Trainer {
	case "linear":
		return learning.NewLinearTrainer(cfg.Training.LearningRate), nil
	case "persistence":
		return learning.NewPersistenceTrainer(), nil
	}
	return nil, fmt.Errorf("unknown trainer %q", cfg.Training.Trainer)
}

// newLocker returns the promotion locker and a function releasing its resources.
func newLocker(ctx context.Context, cfg *config.Config, log *zap.Logger) (promotion.Locker, func(), error) {
	if !cfg.Promotion.UseRedisLock {
		return promotion.NewLocalLocker(), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("unable to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	log.Info("Using Redis promotion lock", zap.String("addr", cfg.Redis.Addr))
	return promotion.NewRedisLocker(rdb, cfg.Promotion.LockTTL, 0), func() { _ = rdb.Close() }, nil
}

func newNotifier(cfg *config.Config, log *zap.Logger) alert.Notifier {
	if !cfg.Alert.Discord.Enabled {
		return alert.NewNoOpNotifier()
	}
	n, err := alert.NewDiscordNotifier(cfg.Alert.Discord, log.Named("discord"))
	if err != nil {
		log.Warn("Discord notifier disabled", zap.Error(err))
		return alert.NewNoOpNotifier()
	}
	return n
}
