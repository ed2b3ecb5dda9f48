// Package cache implements the expiring key-value cache used by the daily
// selection engine and the detail screens.
//
// Entries carry only their creation timestamp. Validity is decided by the
// max-age the reader passes to Get, and expired entries are deleted by the
// read that finds them; there is no background sweep.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-of-the-day/internal/calendar"
	"github.com/Clark-Hu/movie-of-the-day/internal/kvstore"
	"github.com/Clark-Hu/movie-of-the-day/internal/metrics"
)

// Standard max-ages for the namespaced entries.
const (
	MovieDetailsMaxAge   = 7 * 24 * time.Hour
	WatchProvidersMaxAge = 24 * time.Hour
	MovieCreditsMaxAge   = 7 * 24 * time.Hour
	ArchivedMoviesMaxAge = time.Hour
	GenresMaxAge         = 7 * 24 * time.Hour
)

// ErrInvalidMaxAge is returned for non-positive max-ages.
var ErrInvalidMaxAge = errors.New("cache: max age must be positive")

// Entry is the persisted envelope around a cached value.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds at write time
}

// Cache is an expiring key-value cache over a kvstore.Backend.
type Cache struct {
	backend kvstore.Backend
	clock   calendar.Clock
	logger  zerolog.Logger
}

// New constructs a Cache. A nil clock uses the system clock.
func New(backend kvstore.Backend, clock calendar.Clock, logger zerolog.Logger) *Cache {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	return &Cache{backend: backend, clock: clock, logger: logger}
}

// Set stores value under key stamped with the current instant. maxAge is the
// writer's intended lifetime; it is validated but not persisted.
func (c *Cache) Set(ctx context.Context, key string, value any, maxAge time.Duration) error {
	if maxAge <= 0 {
		return ErrInvalidMaxAge
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	payload, err := json.Marshal(Entry{Data: data, Timestamp: c.clock.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("cache: encode entry %q: %w", key, err)
	}
	if err := c.backend.Set(ctx, key, payload); err != nil {
		return err
	}
	c.logger.Debug().Str("cache_key", key).Dur("max_age", maxAge).Msg("cache entry written")
	return nil
}

// Get decodes the value under key into dest when it is younger than maxAge
// (inclusive). An expired entry is removed and reported as absent.
func (c *Cache) Get(ctx context.Context, key string, maxAge time.Duration, dest any) (bool, error) {
	ns := namespaceOf(key)
	raw, err := c.backend.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		metrics.CacheLookupsTotal.WithLabelValues(ns, "miss").Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("dropping undecodable cache entry")
		metrics.CacheLookupsTotal.WithLabelValues(ns, "miss").Inc()
		return false, c.backend.Delete(ctx, key)
	}

	age := c.clock.Now().Sub(time.UnixMilli(entry.Timestamp))
	if age > maxAge {
		metrics.CacheLookupsTotal.WithLabelValues(ns, "expired").Inc()
		if err := c.backend.Delete(ctx, key); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := json.Unmarshal(entry.Data, dest); err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("cached value does not match requested type")
		metrics.CacheLookupsTotal.WithLabelValues(ns, "miss").Inc()
		return false, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues(ns, "hit").Inc()
	return true, nil
}

// Remove unconditionally evicts key.
func (c *Cache) Remove(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, key)
}

// ClearAll removes every key in the app cache namespaces and nothing else.
// It returns the number of keys removed.
func (c *Cache) ClearAll(ctx context.Context) (int, error) {
	removed := 0
	for _, ns := range namespaces {
		n, err := c.RemoveNamespace(ctx, ns)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	c.logger.Info().Int("removed", removed).Msg("app cache cleared")
	return removed, nil
}

// RemoveNamespace evicts every key under ns and returns how many were removed.
func (c *Cache) RemoveNamespace(ctx context.Context, ns string) (int, error) {
	keys, err := c.backend.Keys(ctx, ns)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, k := range keys {
		if err := c.backend.Delete(ctx, k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
