// Package notify schedules the daily "movie of the day" reminder.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-of-the-day/internal/kvstore"
	motdlog "github.com/Clark-Hu/movie-of-the-day/internal/log"
	"github.com/Clark-Hu/movie-of-the-day/internal/metrics"
)

// Defaults for Options.
const (
	DefaultHour       = 9
	DefaultMinute     = 0
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
)

// StateKey holds whether the daily reminder is on. Like the settings record it
// lives outside the cache namespaces.
const StateKey = "motd:notifications"

// DailyNotification is the reminder scheduled by Enable.
var DailyNotification = Notification{
	Title: "Today's Movie is Ready! 🎬",
	Body:  "Check out today's featured movie in the app!",
	Data:  map[string]string{"type": "movie_of_the_day"},
}

// TestNotification is delivered by SendTest.
var TestNotification = Notification{
	Title: "Test Notification",
	Body:  "This is a test notification from Movie of the Day",
}

// Options configures a Service.
type Options struct {
	Hour       int
	Minute     int
	Retries    int
	RetryDelay time.Duration
	// Store keeps the enabled flag across restarts. Nil keeps it in memory.
	Store  kvstore.Backend
	Logger zerolog.Logger
}

// Status reports whether the daily reminder is on and when it fires.
type Status struct {
	Enabled bool `json:"enabled"`
	Hour    int  `json:"hour"`
	Minute  int  `json:"minute"`
}

type state struct {
	Enabled bool `json:"enabled"`
}

// Service enables, disables and tests the daily reminder.
type Service struct {
	platform Platform
	store    kvstore.Backend
	enabled  atomic.Bool
	trigger  Trigger
	retries  int
	delay    time.Duration
	logger   zerolog.Logger
}

// New constructs a Service. Non-positive Retries and RetryDelay take defaults.
func New(platform Platform, opts Options) *Service {
	s := &Service{
		platform: platform,
		store:    opts.Store,
		trigger:  Trigger{Hour: opts.Hour, Minute: opts.Minute},
		retries:  opts.Retries,
		delay:    opts.RetryDelay,
		logger:   opts.Logger,
	}
	if s.retries <= 0 {
		s.retries = DefaultRetries
	}
	if s.delay <= 0 {
		s.delay = DefaultRetryDelay
	}
	return s
}

// Enable replaces any existing schedule with one daily reminder. Scheduling
// is attempted up to the configured number of times with a fixed delay; the
// last error is returned when every attempt fails.
func (s *Service) Enable(ctx context.Context) error {
	if err := s.schedule(ctx); err != nil {
		return err
	}
	return s.saveState(ctx, true)
}

func (s *Service) schedule(ctx context.Context) error {
	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		if err := s.platform.CancelAll(ctx); err != nil {
			return struct{}{}, fmt.Errorf("cancel scheduled notifications: %w", err)
		}
		trigger := s.trigger
		if err := s.platform.Schedule(ctx, DailyNotification, &trigger); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}
	notify := func(err error, next time.Duration) {
		metrics.NotificationScheduleAttemptsTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Int(motdlog.FieldAttempt, attempt).Dur("retry_in", next).Msg("scheduling daily notification failed")
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(s.delay)),
		backoff.WithMaxTries(uint(s.retries)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		metrics.NotificationScheduleAttemptsTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Int(motdlog.FieldAttempt, attempt).Msg("giving up on daily notification")
		return fmt.Errorf("schedule daily notification: %w", err)
	}
	metrics.NotificationScheduleAttemptsTotal.WithLabelValues("ok").Inc()
	s.logger.Info().
		Int("hour", s.trigger.Hour).
		Int("minute", s.trigger.Minute).
		Int(motdlog.FieldAttempt, attempt).
		Msg("daily notification scheduled")
	return nil
}

// Disable cancels every scheduled notification.
func (s *Service) Disable(ctx context.Context) error {
	if err := s.platform.CancelAll(ctx); err != nil {
		return fmt.Errorf("cancel scheduled notifications: %w", err)
	}
	if err := s.saveState(ctx, false); err != nil {
		return err
	}
	s.logger.Info().Msg("daily notification disabled")
	return nil
}

// Status reports the persisted enabled flag and the configured fire time.
func (s *Service) Status(ctx context.Context) (Status, error) {
	enabled, err := s.loadState(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Enabled: enabled, Hour: s.trigger.Hour, Minute: s.trigger.Minute}, nil
}

// Restore reschedules the daily reminder when it was enabled before the last
// shutdown. It reports whether a schedule was created.
func (s *Service) Restore(ctx context.Context) (bool, error) {
	enabled, err := s.loadState(ctx)
	if err != nil || !enabled {
		return false, err
	}
	if err := s.schedule(ctx); err != nil {
		return false, err
	}
	s.logger.Info().Msg("daily notification restored")
	return true, nil
}

func (s *Service) loadState(ctx context.Context) (bool, error) {
	if s.store == nil {
		return s.enabled.Load(), nil
	}
	raw, err := s.store.Get(ctx, StateKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load notification state: %w", err)
	}
	var st state
	if err := json.Unmarshal(raw, &st); err != nil {
		s.logger.Warn().Err(err).Msg("ignoring undecodable notification state")
		return false, nil
	}
	return st.Enabled, nil
}

func (s *Service) saveState(ctx context.Context, enabled bool) error {
	s.enabled.Store(enabled)
	if s.store == nil {
		return nil
	}
	payload, err := json.Marshal(state{Enabled: enabled})
	if err != nil {
		return fmt.Errorf("encode notification state: %w", err)
	}
	if err := s.store.Set(ctx, StateKey, payload); err != nil {
		return fmt.Errorf("save notification state: %w", err)
	}
	return nil
}

// SendTest delivers a test notification immediately.
func (s *Service) SendTest(ctx context.Context) error {
	return s.platform.Schedule(ctx, TestNotification, nil)
}
