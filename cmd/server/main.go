package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ChileCris2011/Walkie-Server/internal/config"
	"github.com/ChileCris2011/Walkie-Server/internal/otelutil"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level")
	}
	logger = logger.Level(lvl)
	if cfg.Dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := otelutil.Init(); err != nil {
		logger.Debug().Err(err).Msg("tracing disabled")
	}
	defer otelutil.Flush()

	srv, err := NewServer(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}
