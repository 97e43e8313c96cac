package main

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/trunov/framehub/internal/app"
	"github.com/trunov/framehub/internal/config"
)

const file = "config.json"

func initSentry(cfg *config.SentryConfig, version string) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     version,
	})
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.NewConfig()
	if err := cfg.Read(file); err != nil {
		log.Fatal().Err(err).Msg("failed to read config")
	}

	if err := initSentry(&cfg.Sentry, "v1"); err != nil {
		log.Fatal().Err(err).Msg("sentry.Init failed")
	}

	// Flush buffered events before the program terminates.
	defer sentry.Flush(2 * time.Second)

	app, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize app")
	}

	if err := app.Run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
