// Package selection implements the daily selection engine: one movie per
// local calendar day, cached for same-day reuse and archived once.
package selection

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-of-the-day/internal/cache"
	"github.com/Clark-Hu/movie-of-the-day/internal/calendar"
	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
	motdlog "github.com/Clark-Hu/movie-of-the-day/internal/log"
	"github.com/Clark-Hu/movie-of-the-day/internal/metrics"
	"github.com/Clark-Hu/movie-of-the-day/internal/tmdb"
)

// DefaultWindow is the number of top eligible candidates the daily pick is drawn from.
const DefaultWindow = 20

// DefaultRolloverInterval is how often Run checks for a new calendar day.
const DefaultRolloverInterval = 60 * time.Second

var (
	// ErrNoEligibleCandidates is returned when discovery yields nothing showable.
	ErrNoEligibleCandidates = errors.New("selection: no eligible candidates")
	// ErrInProgress is returned when a selection run is already in flight.
	ErrInProgress = errors.New("selection: run already in progress")
)

// MetadataClient is the subset of the metadata API the engine needs.
type MetadataClient interface {
	Discover(ctx context.Context, criteria tmdb.Criteria) ([]domain.MovieSummary, error)
	GetDetails(ctx context.Context, movieID int64) (domain.Movie, error)
}

// Archiver records a movie as displayed on a given instant.
type Archiver interface {
	Upsert(ctx context.Context, movie domain.Movie, displayedOn time.Time) error
}

// Rand draws a uniform integer in [0, n).
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Ticker is the periodic trigger used by Run.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker { return timeTicker{t: time.NewTicker(d)} }

// Options configures an Engine. Zero values fall back to production defaults.
type Options struct {
	Clock            calendar.Clock
	Calendar         calendar.Calendar
	Window           int
	RolloverInterval time.Duration
	Rand             Rand
	NewTicker        func(time.Duration) Ticker
	// SameDay compares two day keys; defaults to string equality.
	SameDay func(a, b string) bool
	Logger  zerolog.Logger
}

// Phase is the engine's per-day lifecycle state.
type Phase string

const (
	PhaseUnset   Phase = "unset"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// State is a point-in-time snapshot of the engine.
type State struct {
	Phase   Phase         `json:"status"`
	DateKey string        `json:"dateKey"`
	Movie   *domain.Movie `json:"movie,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Engine produces today's movie. It is safe for concurrent use; overlapping
// runs are rejected with ErrInProgress rather than queued.
type Engine struct {
	metadata MetadataClient
	archive  Archiver
	cache    *cache.Cache

	clock     calendar.Clock
	cal       calendar.Calendar
	window    int
	interval  time.Duration
	rnd       Rand
	newTicker func(time.Duration) Ticker
	sameDay   func(a, b string) bool
	logger    zerolog.Logger

	mu      sync.Mutex
	lastKey string
	movie   *domain.Movie
	err     error
	loading bool
}

// New constructs an Engine.
func New(metadata MetadataClient, archive Archiver, c *cache.Cache, opts Options) *Engine {
	e := &Engine{
		metadata:  metadata,
		archive:   archive,
		cache:     c,
		clock:     opts.Clock,
		cal:       opts.Calendar,
		window:    opts.Window,
		interval:  opts.RolloverInterval,
		rnd:       opts.Rand,
		newTicker: opts.NewTicker,
		sameDay:   opts.SameDay,
		logger:    opts.Logger,
	}
	if e.clock == nil {
		e.clock = calendar.SystemClock{}
	}
	if e.window < 1 {
		e.window = DefaultWindow
	}
	if e.interval <= 0 {
		e.interval = DefaultRolloverInterval
	}
	if e.rnd == nil {
		e.rnd = globalRand{}
	}
	if e.newTicker == nil {
		e.newTicker = NewTimeTicker
	}
	if e.sameDay == nil {
		e.sameDay = func(a, b string) bool { return a == b }
	}
	return e
}

// EnsureTodaysSelection returns today's movie, selecting it when needed.
// Repeated calls within one calendar day return the same movie without I/O.
func (e *Engine) EnsureTodaysSelection(ctx context.Context) (domain.Movie, error) {
	now := e.clock.Now()
	dateKey := e.cal.TodayKey(now)

	e.mu.Lock()
	if e.movie != nil && e.sameDay(dateKey, e.lastKey) {
		movie := *e.movie
		e.mu.Unlock()
		return movie, nil
	}
	if e.loading {
		e.mu.Unlock()
		return domain.Movie{}, ErrInProgress
	}
	e.loading = true
	e.mu.Unlock()

	movie, outcome, err := e.run(ctx, now, dateKey)
	metrics.SelectionRunsTotal.WithLabelValues(outcome).Inc()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = false
	if err != nil {
		e.err = err
		return domain.Movie{}, err
	}
	e.movie = &movie
	e.lastKey = dateKey
	e.err = nil
	metrics.SelectionReady.Set(1)
	return movie, nil
}

func (e *Engine) run(ctx context.Context, now time.Time, dateKey string) (domain.Movie, string, error) {
	logger := e.logger.With().Str(motdlog.FieldDateKey, dateKey).Logger()
	cacheKey := cache.MovieOfTheDayKey(dateKey)

	// Any entry under today's key was written today, so it stays valid for the whole day.
	var cached domain.Movie
	hit, err := e.cache.Get(ctx, cacheKey, e.cal.DayLength(now), &cached)
	if err != nil {
		logger.Warn().Err(err).Str(motdlog.FieldCacheKey, cacheKey).Msg("cache read failed, selecting afresh")
	}
	if hit {
		logger.Debug().Int64(motdlog.FieldMovieID, cached.ID).Msg("serving cached movie of the day")
		return cached, "cache_hit", nil
	}

	pool, err := e.metadata.Discover(ctx, tmdb.DailyCriteria(now.In(e.cal.Location())))
	if err != nil {
		logger.Error().Err(err).Msg("discover failed")
		return domain.Movie{}, "failed", fmt.Errorf("discover candidates: %w", err)
	}

	eligible := Eligible(pool)
	if len(eligible) == 0 {
		logger.Warn().Int("pool", len(pool)).Msg("no eligible candidates")
		return domain.Movie{}, "no_candidates", ErrNoEligibleCandidates
	}

	pick := Choose(eligible, e.window, e.rnd)
	movie, err := e.metadata.GetDetails(ctx, pick.ID)
	if err != nil {
		logger.Error().Err(err).Int64(motdlog.FieldMovieID, pick.ID).Msg("fetch details failed")
		return domain.Movie{}, "failed", fmt.Errorf("fetch details for %d: %w", pick.ID, err)
	}

	if err := e.cache.Set(ctx, cacheKey, movie, e.cal.UntilEndOfDay(now)); err != nil {
		logger.Error().Err(err).Str(motdlog.FieldCacheKey, cacheKey).Msg("cache write failed")
		return domain.Movie{}, "failed", fmt.Errorf("cache movie of the day: %w", err)
	}

	if e.archive != nil {
		if err := e.archive.Upsert(ctx, movie, now); err != nil {
			metrics.ArchiveFailuresTotal.Inc()
			logger.Warn().Err(err).Int64(motdlog.FieldMovieID, movie.ID).Msg("archive upsert failed")
		} else if _, err := e.cache.RemoveNamespace(ctx, cache.NamespaceArchivedMovies); err != nil {
			logger.Warn().Err(err).Msg("archive listing cache invalidation failed")
		}
	}

	logger.Info().
		Int64(motdlog.FieldMovieID, movie.ID).
		Str("title", movie.Title).
		Int("eligible", len(eligible)).
		Msg("movie of the day selected")
	return movie, "selected", nil
}

// CheckForDayRollover runs a selection when the calendar day has changed since
// the last successful one. It reports whether a run was triggered.
func (e *Engine) CheckForDayRollover(ctx context.Context) (bool, error) {
	dateKey := e.cal.TodayKey(e.clock.Now())

	e.mu.Lock()
	unchanged := e.sameDay(dateKey, e.lastKey)
	busy := e.loading
	e.mu.Unlock()

	if unchanged || busy {
		return false, nil
	}

	metrics.RolloversTotal.Inc()
	metrics.SelectionReady.Set(0)
	e.logger.Info().Str(motdlog.FieldDateKey, dateKey).Msg("day rollover detected")
	if _, err := e.EnsureTodaysSelection(ctx); err != nil {
		if errors.Is(err, ErrInProgress) {
			return false, nil
		}
		return true, err
	}
	return true, nil
}

// ForceRefresh retries today's selection. It does not bypass the cache: a
// valid entry for today is surfaced again instead of re-rolling the pick.
func (e *Engine) ForceRefresh(ctx context.Context) (domain.Movie, error) {
	e.mu.Lock()
	e.lastKey = ""
	e.err = nil
	e.mu.Unlock()
	return e.EnsureTodaysSelection(ctx)
}

// State returns a snapshot of the engine.
func (e *Engine) State() State {
	dateKey := e.cal.TodayKey(e.clock.Now())

	e.mu.Lock()
	defer e.mu.Unlock()

	st := State{DateKey: dateKey}
	if e.movie != nil {
		movie := *e.movie
		st.Movie = &movie
	}
	switch {
	case e.loading:
		st.Phase = PhaseLoading
	case e.movie != nil && e.sameDay(dateKey, e.lastKey):
		st.Phase = PhaseReady
	case e.err != nil:
		st.Phase = PhaseFailed
	default:
		st.Phase = PhaseUnset
	}
	if e.err != nil {
		st.Error = e.err.Error()
	}
	return st
}

// Run selects today's movie and then checks for day rollover on every tick
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.EnsureTodaysSelection(ctx); err != nil && !errors.Is(err, ErrInProgress) {
		e.logger.Warn().Err(err).Msg("initial selection failed")
	}

	ticker := e.newTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if _, err := e.CheckForDayRollover(ctx); err != nil {
				e.logger.Warn().Err(err).Msg("rollover selection failed")
			}
		}
	}
}

// Eligible keeps the summaries that have both a poster and a synopsis,
// preserving upstream order.
func Eligible(pool []domain.MovieSummary) []domain.MovieSummary {
	out := make([]domain.MovieSummary, 0, len(pool))
	for _, s := range pool {
		if s.Eligible() {
			out = append(out, s)
		}
	}
	return out
}

// Choose picks uniformly among the first window entries of eligible.
// eligible must be non-empty.
func Choose(eligible []domain.MovieSummary, window int, rnd Rand) domain.MovieSummary {
	n := len(eligible)
	if window > 0 && window < n {
		n = window
	}
	return eligible[rnd.IntN(n)]
}
