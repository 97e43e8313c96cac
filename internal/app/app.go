package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trunov/framehub/cmd/migrate"
	"github.com/trunov/framehub/internal/config"
	"github.com/trunov/framehub/internal/device"
	"github.com/trunov/framehub/internal/processor"
	"github.com/trunov/framehub/internal/redisholder"
	"github.com/trunov/framehub/internal/registry"
	"github.com/trunov/framehub/internal/repository/storage"
	"github.com/trunov/framehub/internal/transcoder"
	"github.com/trunov/framehub/internal/transport/handler"
	"github.com/trunov/framehub/internal/transport/router"
	use_case "github.com/trunov/framehub/internal/use-case"
)

type App struct {
	HttpServer *http.Server
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	err := migrate.Migrate(cfg.Database.DSN, migrate.Migrations)
	if err != nil {
		return nil, err
	}

	imgProcessor := processor.New()

	repo, err := storage.New(ctx, cfg.Database.DSN, imgProcessor)
	if err != nil {
		return nil, err
	}
	if err := repo.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	holder, err := redisholder.Build(ctx, &cfg.Redis)
	if err != nil {
		return nil, err
	}
	devices := registry.New(holder.Get(), cfg.Device.RegistryPrefix)

	trans := transcoder.New(repo, imgProcessor,
		&http.Client{Timeout: cfg.Device.RequestTimeout},
		cfg.Device.MaxRemoteFetchMB<<20,
	)
	devClient := device.NewClient(trans, cfg.Device.RequestTimeout, cfg.Device.ControlTimeout)

	uc := use_case.New(repo, imgProcessor, devices, devClient)

	h := handler.New(uc, devices, cfg)
	r := router.NewRouter(h)

	s := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout * time.Second,
	}

	return &App{
		HttpServer: s,
	}, nil
}

func (a *App) Run() error {
	log.Info().Str("addr", a.HttpServer.Addr).Msg("starting server")
	return a.HttpServer.ListenAndServe()
}
