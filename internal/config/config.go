// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/your-org/price-horizon-learner/internal/dataset"
)

// Config defines the structure for all application configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	HTTP      HTTPConfig      `yaml:"http"`
	Dataset   dataset.Params  `yaml:"dataset"`
	Training  TrainingConfig  `yaml:"training"`
	Promotion PromotionConfig `yaml:"promotion"`
	Data      DataConfig      `yaml:"data"`
	Database  DatabaseConfig  `yaml:"database"`
	DBWriter  DBWriterConfig  `yaml:"db_writer"`
	Redis     RedisConfig     `yaml:"redis"`
	Alert     AlertConfig     `yaml:"alert"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TrainingConfig configures trainers and the job queue.
type TrainingConfig struct {
	Trainer        string        `yaml:"trainer"` // "linear" or "persistence"
	DefaultEpochs  int           `yaml:"default_epochs"`
	LearningRate   float64       `yaml:"learning_rate"`
	DefaultPeriod  string        `yaml:"default_period"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	JobTimeout     time.Duration `yaml:"job_timeout"`
	SaveDataset    FlexBool      `yaml:"save_dataset"`
	EventBufferLen int           `yaml:"event_buffer_len"`
}

// PromotionConfig configures the promotion tracker.
type PromotionConfig struct {
	StoreErrorPolicy string        `yaml:"store_error_policy"`
	UseRedisLock     FlexBool      `yaml:"use_redis_lock"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
}

// DataConfig selects where close series come from.
type DataConfig struct {
	Source           string `yaml:"source"` // "csv", "postgres" or "memory"
	CSVDir           string `yaml:"csv_dir"`
	VolatilitySymbol string `yaml:"volatility_symbol"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	User        string   `yaml:"user"`
	Password    string   `yaml:"-"` // Loaded from env
	Name        string   `yaml:"name"`
	SSLMode     string   `yaml:"sslmode"`
	AutoMigrate FlexBool `yaml:"auto_migrate"`
}

// DBWriterConfig configures dataset persistence.
type DBWriterConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// RedisConfig holds Redis connection settings used for distributed locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"` // Loaded from env
	DB       int    `yaml:"db"`
}

// AlertConfig configures promotion notifications.
type AlertConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

// DiscordConfig holds the Discord bot settings.
type DiscordConfig struct {
	Enabled               FlexBool `yaml:"enabled"`
	BotToken              string   `yaml:"-"` // Loaded from env
	UserID                string   `yaml:"user_id"`
	BufferIntervalMinutes int      `yaml:"buffer_interval_minutes"`
}

// Default returns the configuration used when the file omits a value.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Dataset: dataset.DefaultParams(),
		Training: TrainingConfig{
			Trainer:        "linear",
			DefaultEpochs:  50,
			LearningRate:   0.05,
			DefaultPeriod:  "6mo",
			Workers:        2,
			QueueSize:      16,
			JobTimeout:     10 * time.Minute,
			SaveDataset:    true,
			EventBufferLen: 64,
		},
		Promotion: PromotionConfig{
			StoreErrorPolicy: "abort",
			LockTTL:          30 * time.Second,
		},
		Data: DataConfig{
			Source:           "csv",
			CSVDir:           "data",
			VolatilitySymbol: "^VIX",
		},
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "disable",
		},
		DBWriter: DBWriterConfig{BatchSize: 500},
		Alert: AlertConfig{
			Discord: DiscordConfig{BufferIntervalMinutes: 1},
		},
	}
}

// LoadConfig loads configuration from the specified YAML file path, a .env
// file next to the working directory when present, and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Default()

	// Read YAML file
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv loads secrets and overrides from environment variables.
func applyEnv(cfg *Config) error {
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		port, err := strconv.Atoi(dbPort)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", dbPort, err)
		}
		cfg.Database.Port = port
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		cfg.Database.Password = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.Name = dbName
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if src := os.Getenv("DATA_SOURCE"); src != "" {
		cfg.Data.Source = src
	}
	if dir := os.Getenv("DATA_CSV_DIR"); dir != "" {
		cfg.Data.CSVDir = dir
	}
	if token := os.Getenv("DISCORD_BOT_TOKEN"); token != "" {
		cfg.Alert.Discord.BotToken = token
	}
	return nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Dataset.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Training.Trainer {
	case "linear", "persistence":
	default:
		errs = append(errs, fmt.Errorf("training.trainer must be linear or persistence, got %q", c.Training.Trainer))
	}
	if c.Training.Workers < 1 {
		errs = append(errs, errors.New("training.workers must be at least 1"))
	}
	if c.Training.QueueSize < 1 {
		errs = append(errs, errors.New("training.queue_size must be at least 1"))
	}
	if c.Training.DefaultEpochs < 1 {
		errs = append(errs, errors.New("training.default_epochs must be at least 1"))
	}
	switch c.Promotion.StoreErrorPolicy {
	case "", "abort", "treat_as_first":
	default:
		errs = append(errs, fmt.Errorf("promotion.store_error_policy must be abort or treat_as_first, got %q", c.Promotion.StoreErrorPolicy))
	}
	switch c.Data.Source {
	case "csv", "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, errors.New("data.source postgres requires database.host and database.name"))
		}
	default:
		errs = append(errs, fmt.Errorf("data.source must be csv, postgres or memory, got %q", c.Data.Source))
	}
	if bool(c.Promotion.UseRedisLock) && c.Redis.Addr == "" {
		errs = append(errs, errors.New("promotion.use_redis_lock requires redis.addr"))
	}
	return errors.Join(errs...)
}

// DatabaseURL builds a postgres:// connection string. It is empty when no
// database host is configured.
func (d DatabaseConfig) DatabaseURL() string {
	if d.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

var current atomic.Pointer[Config]

// ReloadConfig loads the file and replaces the process-wide configuration.
func ReloadConfig(configPath string) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	current.Store(cfg)
	return cfg, nil
}

// GetConfig returns the configuration last stored by ReloadConfig, or the
// defaults when nothing was loaded.
func GetConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	return Default()
}
