// Package settings persists the user's preferences in the local key-value store.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
	"github.com/Clark-Hu/movie-of-the-day/internal/kvstore"
)

// Key is where settings live. It sits outside the cache namespaces so clearing
// the app cache leaves it alone.
const Key = "motd:settings"

// ErrInvalidCountry is returned by Save for a malformed country code.
var ErrInvalidCountry = errors.New("settings: country must be a two-letter ISO 3166-1 code")

// Defaults are the settings of a fresh install.
func Defaults() domain.Settings {
	return domain.Settings{DarkMode: false, Country: "US"}
}

// Store loads and saves settings.
type Store struct {
	backend kvstore.Backend
	logger  zerolog.Logger
}

// New constructs a Store over backend.
func New(backend kvstore.Backend, logger zerolog.Logger) *Store {
	return &Store{backend: backend, logger: logger}
}

// Load returns the saved settings, or Defaults when none are saved. A corrupt
// record is reported and replaced by defaults in the result.
func (s *Store) Load(ctx context.Context) (domain.Settings, error) {
	raw, err := s.backend.Get(ctx, Key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return Defaults(), err
	}
	out := Defaults()
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Warn().Err(err).Msg("ignoring undecodable settings")
		return Defaults(), nil
	}
	if out.Country == "" {
		out.Country = Defaults().Country
	}
	return out, nil
}

// Save validates and persists settings.
func (s *Store) Save(ctx context.Context, in domain.Settings) (domain.Settings, error) {
	country := strings.ToUpper(strings.TrimSpace(in.Country))
	if country == "" {
		country = Defaults().Country
	}
	if !validCountry(country) {
		return domain.Settings{}, ErrInvalidCountry
	}
	in.Country = country

	payload, err := json.Marshal(in)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	if err := s.backend.Set(ctx, Key, payload); err != nil {
		return domain.Settings{}, err
	}
	s.logger.Info().Bool("dark_mode", in.DarkMode).Str("country", in.Country).Msg("settings saved")
	return in, nil
}

// Reset deletes saved settings so Load returns defaults.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.backend.Delete(ctx, Key); err != nil {
		return err
	}
	s.logger.Info().Msg("settings reset")
	return nil
}

// validCountry accepts assigned ISO 3166-1 alpha-2 country codes only.
func validCountry(code string) bool {
	if len(code) != 2 {
		return false
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return false
	}
	return region.IsCountry() && region.String() == code
}
