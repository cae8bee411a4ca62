// Package config loads compengine settings from config.yaml, .env and
// COMPENG_* environment variables, and builds the global logger.
package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// StoreConfig selects and configures the backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// EngineConfig tunes compensation and report behavior.
type EngineConfig struct {
	// Kept as a string so the multiplier is exact.
	ExpectedCollectionsPerWRVU string `yaml:"expected_collections_per_wrvu" mapstructure:"expected_collections_per_wrvu"`
	CompensationMetric         string `yaml:"compensation_metric" mapstructure:"compensation_metric"`
	ProductivityMetric         string `yaml:"productivity_metric" mapstructure:"productivity_metric"`
	BatchConcurrency           int    `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
}

// ExpectedCollections parses ExpectedCollectionsPerWRVU.
func (e EngineConfig) ExpectedCollections() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(e.ExpectedCollectionsPerWRVU))
	if err != nil {
		return decimal.Zero, eris.Wrap(err, "config: engine.expected_collections_per_wrvu")
	}
	if !d.IsPositive() {
		return decimal.Zero, eris.New("config: engine.expected_collections_per_wrvu must be positive")
	}
	return d, nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COMPENG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "compensation.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("engine.expected_collections_per_wrvu", "55")
	v.SetDefault("engine.compensation_metric", "compensation")
	v.SetDefault("engine.productivity_metric", "wrvus")
	v.SetDefault("engine.batch_concurrency", 4)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
