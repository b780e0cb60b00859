// Package config loads application configuration from file and environment
// and bootstraps the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Taxonomy  TaxonomyConfig  `yaml:"taxonomy" mapstructure:"taxonomy"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings for the quality scorer.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// IngestConfig configures pipeline behavior.
type IngestConfig struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`
	ChunkSize      int  `yaml:"chunk_size" mapstructure:"chunk_size"`
	Workers        int  `yaml:"workers" mapstructure:"workers"`
	RateLimitMs    int  `yaml:"rate_limit_ms" mapstructure:"rate_limit_ms"`
	ScoringEnabled bool `yaml:"scoring_enabled" mapstructure:"scoring_enabled"`
	HeadWords      int  `yaml:"head_words" mapstructure:"head_words"`

	// Difficulty heuristic thresholds: at or below both easy counts means
	// easy, at or above either hard count means hard, otherwise medium.
	EasyMaxIngredients int `yaml:"easy_max_ingredients" mapstructure:"easy_max_ingredients"`
	EasyMaxSteps       int `yaml:"easy_max_steps" mapstructure:"easy_max_steps"`
	HardMinIngredients int `yaml:"hard_min_ingredients" mapstructure:"hard_min_ingredients"`
	HardMinSteps       int `yaml:"hard_min_steps" mapstructure:"hard_min_steps"`
}

// SourcesConfig holds per-adapter settings.
type SourcesConfig struct {
	CSVPath        string `yaml:"csv_path" mapstructure:"csv_path"`
	JSONPath       string `yaml:"json_path" mapstructure:"json_path"`
	APIBaseURL     string `yaml:"api_base_url" mapstructure:"api_base_url"`
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	APIDelayMs     int    `yaml:"api_delay_ms" mapstructure:"api_delay_ms"`
	APITimeoutSecs int    `yaml:"api_timeout_secs" mapstructure:"api_timeout_secs"`
}

// TaxonomyConfig configures the tag taxonomy source.
type TaxonomyConfig struct {
	// Path to a YAML taxonomy file; empty means the embedded default table.
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECIPES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("anthropic.timeout_secs", 10)
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("ingest.batch_size", 500)
	v.SetDefault("ingest.chunk_size", 100)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.rate_limit_ms", 500)
	v.SetDefault("ingest.scoring_enabled", true)
	v.SetDefault("ingest.head_words", 5)
	v.SetDefault("ingest.easy_max_ingredients", 5)
	v.SetDefault("ingest.easy_max_steps", 5)
	v.SetDefault("ingest.hard_min_ingredients", 12)
	v.SetDefault("ingest.hard_min_steps", 10)
	v.SetDefault("sources.api_delay_ms", 2000)
	v.SetDefault("sources.api_timeout_secs", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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
