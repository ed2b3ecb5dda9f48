// Package app is the composition root shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-of-the-day/internal/cache"
	"github.com/Clark-Hu/movie-of-the-day/internal/calendar"
	"github.com/Clark-Hu/movie-of-the-day/internal/config"
	"github.com/Clark-Hu/movie-of-the-day/internal/details"
	"github.com/Clark-Hu/movie-of-the-day/internal/kvstore"
	motdlog "github.com/Clark-Hu/movie-of-the-day/internal/log"
	"github.com/Clark-Hu/movie-of-the-day/internal/notify"
	"github.com/Clark-Hu/movie-of-the-day/internal/repository"
	"github.com/Clark-Hu/movie-of-the-day/internal/selection"
	"github.com/Clark-Hu/movie-of-the-day/internal/settings"
	"github.com/Clark-Hu/movie-of-the-day/internal/store"
	"github.com/Clark-Hu/movie-of-the-day/internal/tmdb"
)

// Container holds the wired services.
type Container struct {
	Config   config.Config
	Calendar calendar.Calendar
	Store    *store.Store
	Repo     *repository.Repository
	Backend  kvstore.Backend
	Cache    *cache.Cache
	TMDB     *tmdb.HTTPClient
	Engine   *selection.Engine
	Details  *details.Service
	Settings *settings.Store
	Platform *notify.CronPlatform
	Notify   *notify.Service
}

// Wire builds the full dependency graph. Close releases it.
func Wire(ctx context.Context, cfg config.Config) (*Container, error) {
	cal, err := calendar.Load(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	st, err := store.New(ctx, cfg.DBURL, StoreOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := st.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		Logger().Warn().Err(err).Msg("register pool metrics")
	}

	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	client, err := NewTMDBClient(cfg)
	if err != nil {
		_ = backend.Close()
		st.Close()
		return nil, err
	}

	clock := calendar.SystemClock{}
	c := cache.New(backend, clock, motdlog.WithComponent("cache"))
	repo := repository.New(st)

	engine := selection.New(client, repo.Archive, c, selection.Options{
		Clock:            clock,
		Calendar:         cal,
		Window:           cfg.SelectionWindow,
		RolloverInterval: cfg.RolloverInterval(),
		Logger:           motdlog.WithComponent("selection"),
	})

	var deliverer notify.Deliverer = notify.LogDeliverer{Logger: motdlog.WithComponent("notify")}
	if cfg.NotifyWebhookURL != "" {
		deliverer = notify.NewWebhookDeliverer(cfg.NotifyWebhookURL, 5*time.Second)
	}
	platform := notify.NewCronPlatform(cal.Location(), deliverer, motdlog.WithComponent("notify"))

	return &Container{
		Config:   cfg,
		Calendar: cal,
		Store:    st,
		Repo:     repo,
		Backend:  backend,
		Cache:    c,
		TMDB:     client,
		Engine:   engine,
		Details:  details.New(client, c, motdlog.WithComponent("details")),
		Settings: settings.New(backend, motdlog.WithComponent("settings")),
		Platform: platform,
		Notify: notify.New(platform, notify.Options{
			Hour:       cfg.NotifyHour,
			Minute:     cfg.NotifyMinute,
			Retries:    cfg.NotifyRetries,
			RetryDelay: cfg.NotifyRetryDelay(),
			Store:      backend,
			Logger:     motdlog.WithComponent("notify"),
		}),
	}, nil
}

// Close releases the store and the key-value backend.
func (c *Container) Close() {
	if c.Backend != nil {
		if err := c.Backend.Close(); err != nil {
			motdlog.WithComponent("bootstrap").Warn().Err(err).Msg("close kv backend")
		}
	}
	if c.Store != nil {
		c.Store.Close()
	}
}

// StoreOptions maps the DB_* settings onto store.Options.
func StoreOptions(cfg config.Config) store.Options {
	return store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		ConnectAttempts:        cfg.DBConnectAttempts,
		ConnectBackoff:         time.Duration(cfg.DBConnectBackoffSecs) * time.Second,
		Logger:                 motdlog.WithComponent("store"),
	}
}

// OpenBackend opens the key-value backend named by KV_BACKEND.
func OpenBackend(ctx context.Context, cfg config.Config) (kvstore.Backend, error) {
	logger := motdlog.WithComponent("kvstore")
	switch cfg.KVBackend {
	case config.KVBackendMemory:
		logger.Warn().Msg("using in-memory kv backend; cache and settings are lost on restart")
		return kvstore.NewMemory(), nil
	case config.KVBackendRedis:
		backend, err := kvstore.NewRedis(ctx, kvstore.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open redis kv backend: %w", err)
		}
		return backend, nil
	default:
		backend, err := kvstore.OpenSQLite(cfg.KVSQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite kv backend: %w", err)
		}
		logger.Info().Str("path", cfg.KVSQLitePath).Msg("sqlite kv backend ready")
		return backend, nil
	}
}

// NewTMDBClient builds the metadata client from TMDB_* settings.
func NewTMDBClient(cfg config.Config) (*tmdb.HTTPClient, error) {
	client, err := tmdb.NewHTTPClient(cfg.TMDBURL, cfg.TMDBAPIKey, tmdb.Options{
		Timeout:       time.Duration(cfg.TMDBTimeoutSecs) * time.Second,
		RatePerSecond: cfg.TMDBRatePerSec,
		Burst:         int(cfg.TMDBRatePerSec) + 1,
		Logger:        motdlog.WithComponent("tmdb"),
	})
	if err != nil {
		return nil, fmt.Errorf("init tmdb client: %w", err)
	}
	return client, nil
}

// Logger returns the bootstrap logger.
func Logger() zerolog.Logger {
	return motdlog.WithComponent("bootstrap")
}
