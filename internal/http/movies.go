package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-of-the-day/internal/details"
	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
	"github.com/Clark-Hu/movie-of-the-day/internal/facts"
	"github.com/Clark-Hu/movie-of-the-day/internal/repository"
	"github.com/Clark-Hu/movie-of-the-day/internal/selection"
	"github.com/Clark-Hu/movie-of-the-day/internal/tmdb"
)

const (
	maxRequestBody = 1 << 20 // 1 MiB
	posterSize     = "w500"
	userIDHeader   = "X-User-Id"
)

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type movieOfTheDayResponse struct {
	Status    selection.Phase `json:"status"`
	DateKey   string          `json:"dateKey"`
	Movie     *domain.Movie   `json:"movie,omitempty"`
	PosterURL string          `json:"posterUrl,omitempty"`
	FunFact   string          `json:"funFact,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type movieDetailsResponse struct {
	details.View
	PosterURL   string                   `json:"posterUrl,omitempty"`
	Rating      *ratingAggregateResponse `json:"userRating,omitempty"`
	InWatchlist *bool                    `json:"inWatchlist,omitempty"`
}

type ratingRequest struct {
	Rating float32 `json:"rating"`
	Review *string `json:"review"`
}

type ratingResponse struct {
	MovieID   int64     `json:"movieId"`
	UserID    string    `json:"userId"`
	Rating    float32   `json:"rating"`
	Review    *string   `json:"review,omitempty"`
	WatchedAt time.Time `json:"watchedAt"`
}

type ratingAggregateResponse struct {
	Average float32         `json:"average"`
	Count   int64           `json:"count"`
	Mine    *ratingResponse `json:"mine,omitempty"`
}

func (s *Server) handleMovieOfTheDay(w http.ResponseWriter, r *http.Request) {
	_, err := s.engine.EnsureTodaysSelection(r.Context())
	s.respondSelection(w, err)
}

func (s *Server) handleRefreshMovieOfTheDay(w http.ResponseWriter, r *http.Request) {
	_, err := s.engine.ForceRefresh(r.Context())
	s.respondSelection(w, err)
}

func (s *Server) respondSelection(w http.ResponseWriter, err error) {
	state := s.engine.State()
	resp := movieOfTheDayResponse{
		Status:  state.Phase,
		DateKey: state.DateKey,
		Movie:   state.Movie,
		Error:   state.Error,
	}
	if state.Movie != nil {
		resp.PosterURL = tmdb.PosterURL(s.cfg.TMDBImageBaseURL, posterSize, state.Movie.PosterPath)
		resp.FunFact = facts.Random(*state.Movie, s.clock.Now(), nil)
	}

	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, selection.ErrInProgress):
		status = http.StatusAccepted
	default:
		s.logger.Warn().Err(err).Msg("movie of the day unavailable")
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) handleMovieDetails(w http.ResponseWriter, r *http.Request) {
	movieID, err := parseMovieID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	country := strings.TrimSpace(r.URL.Query().Get("country"))
	if country == "" && s.settings != nil {
		prefs, err := s.settings.Load(r.Context())
		if err != nil {
			s.logger.Warn().Err(err).Msg("load settings for details failed")
		}
		country = prefs.Country
	}

	view, err := s.details.Get(r.Context(), movieID, country)
	if err != nil {
		s.respondUpstreamError(w, err, "Failed to load movie details")
		return
	}

	resp := movieDetailsResponse{
		View:      view,
		PosterURL: tmdb.PosterURL(s.cfg.TMDBImageBaseURL, posterSize, view.Movie.PosterPath),
	}
	if s.repo != nil {
		agg, err := s.repo.Ratings.Aggregate(r.Context(), movieID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("movie_id", movieID).Msg("aggregate rating failed")
		} else if agg.Count > 0 {
			resp.Rating = &ratingAggregateResponse{Average: roundToOneDecimal(agg.Average), Count: agg.Count}
		}
		if userID := strings.TrimSpace(r.Header.Get(userIDHeader)); userID != "" {
			saved, err := s.repo.Watchlist.Contains(r.Context(), userID, movieID)
			if err != nil {
				s.logger.Warn().Err(err).Int64("movie_id", movieID).Msg("watchlist lookup failed")
			} else {
				resp.InWatchlist = &saved
			}
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutRating(w http.ResponseWriter, r *http.Request) {
	movieID, err := parseMovieID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	userID := strings.TrimSpace(r.Header.Get(userIDHeader))
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req ratingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if !repository.ValidRating(req.Rating) {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating must be one of {0.5, 1.0, ..., 5.0}")
		return
	}

	rating, inserted, err := s.repo.Ratings.Upsert(r.Context(), repository.RatingUpsertParams{
		MovieID: movieID,
		UserID:  userID,
		Value:   req.Rating,
		Review:  normalizeStringPtr(req.Review),
	})
	if err != nil {
		s.respondRepositoryError(w, err, "Failed to process rating")
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, toRatingResponse(rating))
}

func (s *Server) handleGetRating(w http.ResponseWriter, r *http.Request) {
	movieID, err := parseMovieID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	agg, err := s.repo.Ratings.Aggregate(r.Context(), movieID)
	if err != nil {
		s.logger.Error().Err(err).Msg("aggregate rating error")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch rating")
		return
	}

	resp := ratingAggregateResponse{
		Average: roundToOneDecimal(agg.Average),
		Count:   agg.Count,
	}
	if userID := strings.TrimSpace(r.Header.Get(userIDHeader)); userID != "" {
		mine, err := s.repo.Ratings.Get(r.Context(), userID, movieID)
		switch {
		case err == nil:
			m := toRatingResponse(mine)
			resp.Mine = &m
		case errors.Is(err, repository.ErrNotFound):
		default:
			s.respondRepositoryError(w, err, "Failed to fetch rating")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func toRatingResponse(rating domain.Rating) ratingResponse {
	return ratingResponse{
		MovieID:   rating.MovieID,
		UserID:    rating.UserID,
		Rating:    rating.Value,
		Review:    rating.Review,
		WatchedAt: rating.WatchedAt,
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

// respondUpstreamError maps metadata API failures onto the error envelope.
func (s *Server) respondUpstreamError(w http.ResponseWriter, err error, message string) {
	var fetchErr *tmdb.FetchError
	switch {
	case errors.Is(err, tmdb.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.As(err, &fetchErr):
		s.logger.Warn().Err(err).Msg("upstream request failed")
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", message)
	default:
		s.logger.Error().Err(err).Msg(message)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
	}
}

func (s *Server) respondRepositoryError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, repository.ErrNotAuthenticated):
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
	case errors.Is(err, repository.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, repository.ErrInvalidRating):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
	default:
		s.logger.Error().Err(err).Msg(message)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
	}
}

func normalizeStringPtr(ptr *string) *string {
	if ptr == nil {
		return nil
	}
	val := strings.TrimSpace(*ptr)
	if val == "" {
		return nil
	}
	return &val
}

func parseMovieID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, fmt.Errorf("missing movie id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid movie id")
	}
	return id, nil
}

func (s *Server) verifyBearer(header string) bool {
	if header == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token == s.cfg.AuthToken
}

func roundToOneDecimal(value float32) float32 {
	return float32(math.Round(float64(value)*10) / 10.0)
}
