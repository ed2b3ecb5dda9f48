package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-of-the-day/internal/cache"
	"github.com/Clark-Hu/movie-of-the-day/internal/calendar"
	"github.com/Clark-Hu/movie-of-the-day/internal/config"
	"github.com/Clark-Hu/movie-of-the-day/internal/details"
	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
	"github.com/Clark-Hu/movie-of-the-day/internal/kvstore"
	"github.com/Clark-Hu/movie-of-the-day/internal/notify"
	"github.com/Clark-Hu/movie-of-the-day/internal/repository"
	"github.com/Clark-Hu/movie-of-the-day/internal/selection"
	"github.com/Clark-Hu/movie-of-the-day/internal/settings"
	"github.com/Clark-Hu/movie-of-the-day/internal/store"
)

// Catalog is the metadata lookup surface behind search and genre listing.
type Catalog interface {
	SearchMovies(ctx context.Context, query string, page int) ([]domain.MovieSummary, error)
	Genres(ctx context.Context) ([]domain.Genre, error)
}

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Store    *store.Store
	Backend  kvstore.Backend
	Catalog  Catalog
	Repo     *repository.Repository
	Engine   *selection.Engine
	Details  *details.Service
	Settings *settings.Store
	Notify   *notify.Service
	Cache    *cache.Cache
	Clock    calendar.Clock
	Logger   zerolog.Logger
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	store    *store.Store
	backend  kvstore.Backend
	catalog  Catalog
	repo     *repository.Repository
	engine   *selection.Engine
	details  *details.Service
	settings *settings.Store
	notify   *notify.Service
	cache    *cache.Cache
	clock    calendar.Clock
	logger   zerolog.Logger
	router   chi.Router
	httpSrv  *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	clock := deps.Clock
	if clock == nil {
		clock = calendar.SystemClock{}
	}

	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		backend:  deps.Backend,
		catalog:  deps.Catalog,
		repo:     deps.Repo,
		engine:   deps.Engine,
		details:  deps.Details,
		settings: deps.Settings,
		notify:   deps.Notify,
		cache:    deps.Cache,
		clock:    clock,
		logger:   deps.Logger,
		router:   r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/movie-of-the-day", func(r chi.Router) {
		r.Get("/", s.handleMovieOfTheDay)
		r.With(httprate.LimitByIP(10, time.Minute)).Post("/refresh", s.handleRefreshMovieOfTheDay)
	})
	s.router.Route("/movies/{id}", func(r chi.Router) {
		r.Get("/", s.handleMovieDetails)
		r.Get("/rating", s.handleGetRating)
		r.Put("/rating", s.handlePutRating)
	})
	s.router.Get("/archive", s.handleListArchive)
	s.router.Get("/archive/{id}", s.handleGetArchived)
	s.router.With(httprate.LimitByIP(30, time.Minute)).Get("/search", s.handleSearch)
	s.router.Get("/genres", s.handleGenres)

	s.router.Route("/settings", func(r chi.Router) {
		r.Get("/", s.handleGetSettings)
		r.Put("/", s.handlePutSettings)
		r.Delete("/", s.handleResetSettings)
	})
	s.router.Route("/notifications", func(r chi.Router) {
		r.Get("/", s.handleNotificationStatus)
		r.Post("/enable", s.handleEnableNotifications)
		r.Post("/disable", s.handleDisableNotifications)
		r.Post("/test", s.handleTestNotification)
	})
	s.router.With(httprate.LimitByIP(5, time.Minute), s.requireAdmin).Delete("/cache", s.handleClearCache)

	s.router.Post("/sessions/anonymous", s.handleAnonymousSession)
	s.router.Route("/watchlist", func(r chi.Router) {
		r.Get("/", s.handleListWatchlist)
		r.Put("/{id}", s.handleAddToWatchlist)
		r.Delete("/{id}", s.handleRemoveFromWatchlist)
	})
}

// Start boots the HTTP server asynchronously.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.store != nil {
		if err := s.store.HealthCheck(ctx); err != nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
	}
	if hc, ok := s.backend.(interface{ HealthCheck(context.Context) error }); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("kv backend health check failed")
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// requireAdmin guards operator endpoints when AUTH_TOKEN is configured.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken != "" && !s.verifyBearer(r.Header.Get("Authorization")) {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
			return
		}
		next.ServeHTTP(w, r)
	})
}
