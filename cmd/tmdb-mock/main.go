package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
)

type fixture struct {
	Movies    []domain.Movie                   `json:"movies"`
	Credits   map[string]domain.Credits        `json:"credits"`
	Providers map[string]domain.WatchProviders `json:"providers"`
}

func (f fixture) summaries() []domain.MovieSummary {
	out := make([]domain.MovieSummary, 0, len(f.Movies))
	for _, m := range f.Movies {
		out = append(out, domain.MovieSummary{
			ID:               m.ID,
			Title:            m.Title,
			Overview:         m.Overview,
			PosterPath:       m.PosterPath,
			ReleaseDate:      m.ReleaseDate,
			VoteAverage:      m.VoteAverage,
			VoteCount:        m.VoteCount,
			OriginalLanguage: m.OriginalLanguage,
		})
	}
	return out
}

func (f fixture) movie(id string) (domain.Movie, bool) {
	for _, m := range f.Movies {
		if strconv.FormatInt(m.ID, 10) == id {
			return m, true
		}
	}
	return domain.Movie{}, false
}

func main() {
	var (
		port    = flag.String("port", "9098", "port to listen on")
		data    = flag.String("data", "mock-tmdb.json", "path to mock data file")
		apiKey  = flag.String("api-key", "", "reject requests without this api_key (empty accepts any)")
		logReqs = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read mock data: %v", err)
	}

	var payload fixture
	if err := json.Unmarshal(file, &payload); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
	paged := func(results []domain.MovieSummary) map[string]any {
		return map[string]any{"page": 1, "results": results, "total_pages": 1, "total_results": len(results)}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /discover/movie", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, paged(payload.summaries()))
	})
	mux.HandleFunc("GET /search/movie", func(w http.ResponseWriter, r *http.Request) {
		query := strings.ToLower(r.URL.Query().Get("query"))
		var hits []domain.MovieSummary
		for _, s := range payload.summaries() {
			if strings.Contains(strings.ToLower(s.Title), query) {
				hits = append(hits, s)
			}
		}
		writeJSON(w, paged(hits))
	})
	mux.HandleFunc("GET /genre/movie/list", func(w http.ResponseWriter, r *http.Request) {
		seen := map[int64]domain.Genre{}
		for _, m := range payload.Movies {
			for _, g := range m.Genres {
				seen[g.ID] = g
			}
		}
		genres := make([]domain.Genre, 0, len(seen))
		for _, g := range seen {
			genres = append(genres, g)
		}
		writeJSON(w, map[string]any{"genres": genres})
	})
	mux.HandleFunc("GET /movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		movie, ok := payload.movie(r.PathValue("id"))
		if !ok {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		writeJSON(w, movie)
	})
	mux.HandleFunc("GET /movie/{id}/credits", func(w http.ResponseWriter, r *http.Request) {
		credits, ok := payload.Credits[r.PathValue("id")]
		if !ok {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		writeJSON(w, credits)
	})
	mux.HandleFunc("GET /movie/{id}/watch/providers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, payload.Providers[r.PathValue("id")])
	})

	var handler http.Handler = mux
	handler = requireKey(*apiKey, handler)
	if *logReqs {
		next := handler
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	addr := ":" + *port
	log.Printf("mock tmdb listening on %s with %d movies", addr, len(payload.Movies))
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func requireKey(key string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key != "" && r.URL.Query().Get("api_key") != key {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
