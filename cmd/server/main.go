package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/movie-of-the-day/internal/app"
	"github.com/Clark-Hu/movie-of-the-day/internal/config"
	httpserver "github.com/Clark-Hu/movie-of-the-day/internal/http"
	motdlog "github.com/Clark-Hu/movie-of-the-day/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("config error")
	}
	motdlog.Configure(motdlog.Config{Level: cfg.LogLevel, Service: "motd-api"})
	logger := app.Logger()

	container, err := app.Wire(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("wire services")
	}
	defer container.Close()

	server := httpserver.New(cfg, httpserver.Deps{
		Store:    container.Store,
		Backend:  container.Backend,
		Catalog:  container.TMDB,
		Repo:     container.Repo,
		Engine:   container.Engine,
		Details:  container.Details,
		Settings: container.Settings,
		Notify:   container.Notify,
		Cache:    container.Cache,
		Logger:   motdlog.WithComponent("http"),
	})

	container.Platform.Start()
	defer container.Platform.Stop()
	if _, err := container.Notify.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("restore daily notification failed")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return container.Engine.Run(gctx)
	})
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := server.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}
