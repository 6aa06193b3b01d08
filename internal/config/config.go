package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete server configuration. Values come from an optional
// config.yaml, overridden by WALKIE_-prefixed environment variables, with
// sensible defaults underneath.
type Config struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	Dev            bool          `mapstructure:"dev"`
	LogLevel       string        `mapstructure:"log_level"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	StatsInterval  time.Duration `mapstructure:"stats_interval"`
	MediaDir       string        `mapstructure:"media_dir"`
	MediaRetention time.Duration `mapstructure:"media_retention"`
	UploadsEnabled bool          `mapstructure:"uploads_enabled"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("WALKIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("dev", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_grace", "10s")
	v.SetDefault("sweep_interval", "60s")
	v.SetDefault("stats_interval", "300s")
	v.SetDefault("media_dir", "./uploads")
	v.SetDefault("media_retention", "24h")
	v.SetDefault("uploads_enabled", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
