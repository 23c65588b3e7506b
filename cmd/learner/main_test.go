package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/alert"
	"github.com/your-org/price-horizon-learner/internal/config"
	"github.com/your-org/price-horizon-learner/internal/dataset"
	"github.com/your-org/price-horizon-learner/internal/datastore"
	"github.com/your-org/price-horizon-learner/internal/learning"
	"github.com/your-org/price-horizon-learner/internal/promotion"
)

func TestNewProvider(t *testing.T) {
	cfg := config.Default()
	log := zap.NewNop()

	t.Run("csv", func(t *testing.T) {
		p, err := newProvider(cfg, nil, log)
		require.NoError(t, err)
		assert.IsType(t, &datastore.CSVProvider{}, p)
	})

	t.Run("memory", func(t *testing.T) {
		c := *cfg
		c.Data.Source = "memory"
		p, err := newProvider(&c, nil, log)
		require.NoError(t, err)
		assert.IsType(t, &datastore.InMemProvider{}, p)
	})

	t.Run("postgres without pool", func(t *testing.T) {
		c := *cfg
		c.Data.Source = "postgres"
		_, err := newProvider(&c, nil, log)
		assert.Error(t, err)
	})
}

func TestNewTrainer(t *testing.T) {
	cfg := config.Default()
	tr, err := newTrainer(cfg)
	require.NoError(t, err)
	assert.IsType(t, &learning.LinearTrainer{}, tr)

	cfg.Training.Trainer = "persistence"
	tr, err = newTrainer(cfg)
	require.NoError(t, err)
	assert.IsType(t, &learning.PersistenceTrainer{}, tr)

	cfg.Training.Trainer = "lstm"
	_, err = newTrainer(cfg)
	assert.Error(t, err)
}

func TestNewStoreAndWriterWithoutDatabase(t *testing.T) {
	cfg := config.Default()
	assert.IsType(t, &promotion.MemStore{}, newStore(nil))

	w := newWriter(cfg, nil, zap.NewNop())
	n, err := w.SaveDataset(context.Background(), "run", "AAPL", dataset.Dataset{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewLocker(t *testing.T) {
	cfg := config.Default()
	l, closeFn, err := newLocker(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &promotion.LocalLocker{}, l)

	cfg.Promotion.UseRedisLock = true
	cfg.Redis.Addr = "127.0.0.1:1"
	_, _, err = newLocker(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err, "unreachable redis must fail at startup")
}

func TestNewNotifier(t *testing.T) {
	cfg := config.Default()
	assert.IsType(t, &alert.NoOpNotifier{}, newNotifier(cfg, zap.NewNop()))

	// トークン未設定なら無効化される
	cfg.Alert.Discord.Enabled = true
	assert.IsType(t, &alert.NoOpNotifier{}, newNotifier(cfg, zap.NewNop()))
}
