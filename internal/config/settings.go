// Package config resolves settings, secrets and intent files once at
// process start.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Bidon15/popbatch/internal/batch"
	"github.com/Bidon15/popbatch/internal/chains"
)

// EnvPrefix prefixes every environment variable viper reads.
const EnvPrefix = "POPBATCH"

// Settings is the resolved runtime configuration.
type Settings struct {
	Environment  chains.Environment `mapstructure:"environment" validate:"required,oneof=testnet mainnet"`
	APIURL       string             `mapstructure:"api_url" validate:"required,url"`
	TRPCURL      string             `mapstructure:"trpc_url" validate:"required,url"`
	EnvFile      string             `mapstructure:"env_file" validate:"required"`
	Sponsored    bool               `mapstructure:"sponsored"`
	SwapDeadline time.Duration      `mapstructure:"swap_deadline" validate:"gt=0"`
	ListenAddr   string             `mapstructure:"listen_addr" validate:"required"`
	LogLevel     string             `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	// Planning API only.
	CORSOrigins []string `mapstructure:"cors_origins" validate:"dive,url"`
	RedisURL    string   `mapstructure:"redis_url" validate:"omitempty,url"`
	RateLimit   int      `mapstructure:"rate_limit" validate:"gte=0"`
}

// NewViper returns a viper instance with defaults, POPBATCH_* environment
// binding and the config file at cfgFile (default ~/.popbatch.yaml).
func NewViper(cfgFile string) *viper.Viper {
	v := viper.New()

	v.SetDefault("environment", string(chains.Testnet))
	v.SetDefault("api_url", chains.DefaultAPIURL)
	v.SetDefault("trpc_url", chains.DefaultAPIURL+"/api/trpc")
	v.SetDefault("env_file", ".env")
	v.SetDefault("sponsored", true)
	v.SetDefault("swap_deadline", batch.DefaultSwapDeadline)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("rate_limit", 10)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".popbatch")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file (a missing file is fine) and returns
// validated settings.
func Load(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	s.Environment = chains.Environment(strings.ToLower(string(s.Environment)))
	s.LogLevel = strings.ToLower(s.LogLevel)

	if err := validator.New().Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Deployment returns the chain table entry for the configured environment.
func (s *Settings) Deployment() (chains.Deployment, error) {
	return chains.ForEnvironment(s.Environment)
}

// Level maps LogLevel to a slog level.
func (s *Settings) Level() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FilePath returns the default config file path.
func FilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".popbatch.yaml"
	}
	return filepath.Join(home, ".popbatch.yaml")
}
