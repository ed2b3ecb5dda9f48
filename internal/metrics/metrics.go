// Package metrics exposes Prometheus collectors for the daily selection service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SelectionRunsTotal counts selection runs by outcome (cache_hit, selected, failed, no_candidates).
	SelectionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "motd_selection_runs_total",
		Help: "Total number of movie-of-the-day selection runs, by outcome.",
	}, []string{"outcome"})

	// ArchiveFailuresTotal counts best-effort archive writes that failed.
	ArchiveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "motd_archive_failures_total",
		Help: "Total number of failed archive upserts after a successful selection.",
	})

	// RolloversTotal counts detected calendar-day changes.
	RolloversTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "motd_day_rollovers_total",
		Help: "Total number of day rollovers detected by the periodic check.",
	})

	// CacheLookupsTotal counts cache reads by namespace and result (hit, miss, expired).
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "motd_cache_lookups_total",
		Help: "Total number of expiring cache lookups, by namespace and result.",
	}, []string{"namespace", "result"})

	// UpstreamRequestsTotal counts metadata API calls by operation and status class.
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "motd_upstream_requests_total",
		Help: "Total number of metadata API requests, by operation and result.",
	}, []string{"op", "result"})

	// NotificationScheduleAttemptsTotal counts scheduling attempts by result.
	NotificationScheduleAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "motd_notification_schedule_attempts_total",
		Help: "Total number of daily notification scheduling attempts, by result.",
	}, []string{"result"})

	// SelectionReady is 1 while a movie is held for the current day.
	SelectionReady = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "motd_selection_ready",
		Help: "1 when today's movie has been selected, 0 otherwise.",
	})
)
