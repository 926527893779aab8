// Package config loads runtime settings from an optional YAML file, a .env
// file, and ASSESSOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "ASSESSOR"

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type OracleConfig struct {
	Transport string        `mapstructure:"transport"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	GRPCAddr  string        `mapstructure:"grpc_addr"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RecommendConfig struct {
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MergeConfig struct {
	WeightOld float64 `mapstructure:"weight_old"`
	WeightNew float64 `mapstructure:"weight_new"`
}

type HistoryConfig struct {
	MaxContextTurns int `mapstructure:"max_context_turns"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// Config is the full runtime configuration.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Merge     MergeConfig     `mapstructure:"merge"`
	History   HistoryConfig   `mapstructure:"history"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "assessment.db")

	v.SetDefault("oracle.transport", "openai")
	v.SetDefault("oracle.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.model", "deepseek-chat")
	v.SetDefault("oracle.grpc_addr", "localhost:50051")
	v.SetDefault("oracle.timeout", "30s")

	v.SetDefault("recommend.model", "")
	v.SetDefault("recommend.timeout", "60s")

	v.SetDefault("merge.weight_old", 0.7)
	v.SetDefault("merge.weight_new", 0.3)

	v.SetDefault("history.max_context_turns", 0) // unbounded

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("catalog.path", "")
}

// Load reads configuration. configPath may be empty, in which case
// ./assessor.yaml is used when present and defaults otherwise.
func Load(configPath string) (*Config, error) {
	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("assessor")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// store.driver becomes ASSESSOR_STORE_DRIVER
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("oracle.api_key", EnvPrefix+"_ORACLE_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if cfg.Recommend.Model == "" {
		cfg.Recommend.Model = cfg.Oracle.Model
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	switch c.Oracle.Transport {
	case "openai":
		if c.Oracle.Model == "" {
			return errors.New("oracle.model is required")
		}
	case "grpc":
		if c.Oracle.GRPCAddr == "" {
			return errors.New("oracle.grpc_addr is required for the grpc transport")
		}
	default:
		return fmt.Errorf("unknown oracle.transport %q", c.Oracle.Transport)
	}

	if c.Oracle.Timeout <= 0 {
		return errors.New("oracle.timeout must be positive")
	}
	if c.Recommend.Timeout <= 0 {
		return errors.New("recommend.timeout must be positive")
	}
	if c.Merge.WeightOld < 0 || c.Merge.WeightNew < 0 {
		return errors.New("merge weights must be non-negative")
	}
	if math.Abs(c.Merge.WeightOld+c.Merge.WeightNew-1) > 1e-9 {
		return fmt.Errorf("merge weights must sum to 1, got %.4f", c.Merge.WeightOld+c.Merge.WeightNew)
	}
	if c.History.MaxContextTurns < 0 {
		return errors.New("history.max_context_turns must be >= 0")
	}
	return nil
}
