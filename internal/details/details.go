// Package details assembles the movie details view: full metadata, watch
// providers for one country and credits, each cached through the expiring cache.
package details

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/movie-of-the-day/internal/cache"
	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
	motdlog "github.com/Clark-Hu/movie-of-the-day/internal/log"
)

// DefaultCountry is used when the caller has no country preference.
const DefaultCountry = "US"

// MetadataClient is the subset of the metadata API the details view needs.
type MetadataClient interface {
	GetDetails(ctx context.Context, movieID int64) (domain.Movie, error)
	GetCredits(ctx context.Context, movieID int64) (domain.Credits, error)
	GetWatchProviders(ctx context.Context, movieID int64) (domain.WatchProviders, error)
}

// View is everything the details screen renders for one movie.
type View struct {
	Movie     domain.Movie             `json:"movie"`
	Country   string                   `json:"country"`
	Providers *domain.CountryProviders `json:"providers,omitempty"`
	Credits   domain.Credits           `json:"credits"`
}

// Service loads details views.
type Service struct {
	client MetadataClient
	cache  *cache.Cache
	logger zerolog.Logger
}

// New constructs a Service.
func New(client MetadataClient, c *cache.Cache, logger zerolog.Logger) *Service {
	return &Service{client: client, cache: c, logger: logger}
}

// Get fetches details, watch providers and credits concurrently. Any part
// failing fails the whole view.
func (s *Service) Get(ctx context.Context, movieID int64, country string) (View, error) {
	country = NormalizeCountry(country)

	var (
		movie     domain.Movie
		providers domain.WatchProviders
		credits   domain.Credits
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		movie, err = through(gctx, s, cache.MovieDetailsKey(movieID), cache.MovieDetailsMaxAge, func(ctx context.Context) (domain.Movie, error) {
			return s.client.GetDetails(ctx, movieID)
		})
		return err
	})
	g.Go(func() error {
		var err error
		providers, err = through(gctx, s, cache.WatchProvidersKey(movieID), cache.WatchProvidersMaxAge, func(ctx context.Context) (domain.WatchProviders, error) {
			return s.client.GetWatchProviders(ctx, movieID)
		})
		return err
	})
	g.Go(func() error {
		var err error
		credits, err = through(gctx, s, cache.MovieCreditsKey(movieID), cache.MovieCreditsMaxAge, func(ctx context.Context) (domain.Credits, error) {
			return s.client.GetCredits(ctx, movieID)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return View{}, fmt.Errorf("load details for %d: %w", movieID, err)
	}

	view := View{Movie: movie, Country: country, Credits: credits}
	if offers, ok := providers.ForCountry(country); ok {
		view.Providers = &offers
	}
	return view, nil
}

func through[T any](ctx context.Context, s *Service, key string, maxAge time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var value T
	hit, err := s.cache.Get(ctx, key, maxAge, &value)
	if err != nil {
		s.logger.Warn().Err(err).Str(motdlog.FieldCacheKey, key).Msg("cache read failed")
	}
	if hit {
		return value, nil
	}

	value, err = fetch(ctx)
	if err != nil {
		return value, err
	}
	if err := s.cache.Set(ctx, key, value, maxAge); err != nil {
		s.logger.Warn().Err(err).Str(motdlog.FieldCacheKey, key).Msg("cache write failed")
	}
	return value, nil
}

// NormalizeCountry upper-cases an ISO 3166-1 code, defaulting to US.
func NormalizeCountry(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return DefaultCountry
	}
	return country
}
