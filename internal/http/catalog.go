package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Clark-Hu/movie-of-the-day/internal/cache"
	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
	"github.com/Clark-Hu/movie-of-the-day/internal/tmdb"
)

const maxSearchQuery = 200

type searchResponse struct {
	Query   string               `json:"query"`
	Page    int                  `json:"page"`
	Results []searchItemResponse `json:"results"`
}

type searchItemResponse struct {
	domain.MovieSummary
	PosterURL string `json:"posterUrl,omitempty"`
}

type genresResponse struct {
	Genres []domain.Genre `json:"genres"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" || len(query) > maxSearchQuery {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "query must be 1-200 characters")
		return
	}
	page := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid page value")
			return
		}
		page = p
	}

	results, err := s.catalog.SearchMovies(r.Context(), query, page)
	if err != nil {
		s.respondUpstreamError(w, err, "Failed to search movies")
		return
	}

	resp := searchResponse{Query: query, Page: page, Results: make([]searchItemResponse, 0, len(results))}
	for _, m := range results {
		resp.Results = append(resp.Results, searchItemResponse{
			MovieSummary: m,
			PosterURL:    tmdb.PosterURL(s.cfg.TMDBImageBaseURL, posterSize, m.PosterPath),
		})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	key := cache.GenresKey()
	if s.cache != nil {
		var genres []domain.Genre
		hit, err := s.cache.Get(r.Context(), key, cache.GenresMaxAge, &genres)
		if err != nil {
			s.logger.Warn().Err(err).Str("cache_key", key).Msg("genres cache read failed")
		}
		if hit {
			s.respondJSON(w, http.StatusOK, genresResponse{Genres: genres})
			return
		}
	}

	genres, err := s.catalog.Genres(r.Context())
	if err != nil {
		s.respondUpstreamError(w, err, "Failed to list genres")
		return
	}
	if genres == nil {
		genres = []domain.Genre{}
	}
	if s.cache != nil {
		if err := s.cache.Set(r.Context(), key, genres, cache.GenresMaxAge); err != nil {
			s.logger.Warn().Err(err).Str("cache_key", key).Msg("genres cache write failed")
		}
	}
	s.respondJSON(w, http.StatusOK, genresResponse{Genres: genres})
}
