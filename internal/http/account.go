package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/movie-of-the-day/internal/cache"
	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
	"github.com/Clark-Hu/movie-of-the-day/internal/repository"
	"github.com/Clark-Hu/movie-of-the-day/internal/settings"
)

type archiveQuery struct {
	Offset  int
	Limit   int
	Refresh bool
}

type settingsRequest struct {
	DarkMode *bool   `json:"darkMode"`
	Country  *string `json:"country"`
}

type watchlistRequest struct {
	Notes *string `json:"notes"`
}

type watchlistItemResponse struct {
	MovieID int64     `json:"movieId"`
	AddedAt time.Time `json:"addedAt"`
	Notes   *string   `json:"notes,omitempty"`
}

type watchlistResponse struct {
	Items []watchlistItemResponse `json:"items"`
}

type sessionResponse struct {
	UserID string `json:"userId"`
}

type clearCacheResponse struct {
	Removed int `json:"removed"`
}

func parseArchiveQuery(query url.Values) (archiveQuery, error) {
	var q archiveQuery
	if val := strings.TrimSpace(query.Get("offset")); val != "" {
		offset, err := strconv.Atoi(val)
		if err != nil || offset < 0 {
			return q, fmt.Errorf("invalid offset value")
		}
		q.Offset = offset
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit < 0 {
			return q, fmt.Errorf("invalid limit value")
		}
		q.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("refresh")); val != "" {
		refresh, err := strconv.ParseBool(val)
		if err != nil {
			return q, fmt.Errorf("invalid refresh value")
		}
		q.Refresh = refresh
	}
	q.Offset, q.Limit = repository.NormalizePage(q.Offset, q.Limit)
	return q, nil
}

func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	q, err := parseArchiveQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	key := cache.ArchivedMoviesKey(q.Offset, q.Limit)
	if !q.Refresh && s.cache != nil {
		var page domain.ArchivePage
		hit, err := s.cache.Get(r.Context(), key, cache.ArchivedMoviesMaxAge, &page)
		if err != nil {
			s.logger.Warn().Err(err).Str("cache_key", key).Msg("archive cache read failed")
		}
		if hit {
			s.respondJSON(w, http.StatusOK, page)
			return
		}
	}

	page, err := s.repo.Archive.List(r.Context(), q.Offset, q.Limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list archive error")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list archived movies")
		return
	}
	if page.Items == nil {
		page.Items = []domain.ArchivedMovie{}
	}
	if s.cache != nil {
		if err := s.cache.Set(r.Context(), key, page, cache.ArchivedMoviesMaxAge); err != nil {
			s.logger.Warn().Err(err).Str("cache_key", key).Msg("archive cache write failed")
		}
	}
	s.respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetArchived(w http.ResponseWriter, r *http.Request) {
	movieID, err := parseMovieID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	movie, err := s.repo.Archive.Get(r.Context(), movieID)
	if err != nil {
		s.respondRepositoryError(w, err, "Failed to load archived movie")
		return
	}
	s.respondJSON(w, http.StatusOK, movie)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.settings.Load(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load settings error")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load settings")
		return
	}
	s.respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	prefs, err := s.settings.Load(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load settings error")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save settings")
		return
	}
	if req.DarkMode != nil {
		prefs.DarkMode = *req.DarkMode
	}
	if req.Country != nil {
		prefs.Country = *req.Country
	}

	saved, err := s.settings.Save(r.Context(), prefs)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidCountry) {
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("save settings error")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save settings")
		return
	}
	s.respondJSON(w, http.StatusOK, saved)
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := s.settings.Reset(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("reset settings error")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset settings")
		return
	}
	s.respondJSON(w, http.StatusOK, settings.Defaults())
}

func (s *Server) handleNotificationStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.notify.Status(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("notification status error")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load notification status")
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleEnableNotifications(w http.ResponseWriter, r *http.Request) {
	if err := s.notify.Enable(r.Context()); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "NOTIFICATION_ERROR", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisableNotifications(w http.ResponseWriter, r *http.Request) {
	if err := s.notify.Disable(r.Context()); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "NOTIFICATION_ERROR", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.notify.SendTest(r.Context()); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "NOTIFICATION_ERROR", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	removed, err := s.cache.ClearAll(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Int("removed", removed).Msg("clear cache error")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clear cache")
		return
	}
	s.respondJSON(w, http.StatusOK, clearCacheResponse{Removed: removed})
}

func (s *Server) handleAnonymousSession(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusCreated, sessionResponse{UserID: uuid.NewString()})
}

func (s *Server) handleListWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := s.repo.Watchlist.List(r.Context(), r.Header.Get(userIDHeader))
	if err != nil {
		s.respondRepositoryError(w, err, "Failed to list watchlist")
		return
	}
	resp := watchlistResponse{Items: make([]watchlistItemResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, watchlistItemResponse{MovieID: item.MovieID, AddedAt: item.AddedAt, Notes: item.Notes})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	movieID, err := parseMovieID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req watchlistRequest
	if r.ContentLength > 0 {
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.respondDecodeError(w, err)
			return
		}
	}

	if err := s.repo.Watchlist.Add(r.Context(), r.Header.Get(userIDHeader), movieID, normalizeStringPtr(req.Notes)); err != nil {
		s.respondRepositoryError(w, err, "Failed to update watchlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	movieID, err := parseMovieID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if err := s.repo.Watchlist.Remove(r.Context(), r.Header.Get(userIDHeader), movieID); err != nil {
		s.respondRepositoryError(w, err, "Failed to update watchlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
