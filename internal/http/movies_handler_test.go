package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
)

func TestHandlePutRating_AuthValidation(t *testing.T) {
	srv := buildTestServer(t)

	body := `{"rating":4.0}`
	req := httptest.NewRequest(http.MethodPut, "/movies/10/rating", bytes.NewBufferString(body))
	req = attachIDParam(req, "10")
	rec := httptest.NewRecorder()

	srv.handlePutRating(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/movies/10/rating", bytes.NewBufferString(body))
	req.Header.Set(userIDHeader, "not-a-session")
	req = attachIDParam(req, "10")
	rec = httptest.NewRecorder()
	srv.handlePutRating(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for malformed session", rec.Code)
	}
}

func TestHandlePutRating_InvalidRating(t *testing.T) {
	srv := buildTestServer(t)

	payload, _ := json.Marshal(map[string]float32{"rating": 6.0})
	req := httptest.NewRequest(http.MethodPut, "/movies/10/rating", bytes.NewBuffer(payload))
	req.Header.Set(userIDHeader, uuid.NewString())
	req = attachIDParam(req, "10")
	rec := httptest.NewRecorder()

	srv.handlePutRating(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHandlePutRating_InvalidPayload(t *testing.T) {
	srv := buildTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/movies/10/rating", bytes.NewBufferString("invalid json"))
	req.Header.Set(userIDHeader, uuid.NewString())
	req = attachIDParam(req, "10")
	rec := httptest.NewRecorder()
	srv.handlePutRating(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (invalid json)", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodPut, "/movies/10/rating", bytes.NewBufferString(""))
	req2.Header.Set(userIDHeader, uuid.NewString())
	req2 = attachIDParam(req2, "10")
	rec2 := httptest.NewRecorder()
	srv.handlePutRating(rec2, req2)
	if rec2.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (empty body)", rec2.Code)
	}
}

func TestHandleRatingRoundTrip(t *testing.T) {
	srv := buildTestServer(t)
	user := uuid.NewString()

	put := func(value string) int {
		req := httptest.NewRequest(http.MethodPut, "/movies/77/rating", bytes.NewBufferString(`{"rating":`+value+`,"review":" great "}`))
		req.Header.Set(userIDHeader, user)
		return serve(srv, req).Code
	}
	if code := put("4.5"); code != http.StatusCreated {
		t.Fatalf("first put = %d, want 201", code)
	}
	if code := put("3.5"); code != http.StatusOK {
		t.Fatalf("second put = %d, want 200", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/movies/77/rating", nil)
	req.Header.Set(userIDHeader, user)
	rec := serve(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var agg ratingAggregateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &agg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if agg.Count != 1 || agg.Average != 3.5 {
		t.Fatalf("aggregate = %+v, want 3.5 x1", agg)
	}
	if agg.Mine == nil || agg.Mine.Review == nil || *agg.Mine.Review != "great" {
		t.Fatalf("own rating = %+v", agg.Mine)
	}
}

func TestHandleGetRating_Empty(t *testing.T) {
	srv := buildTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/movies/999/rating", nil)
	req = attachIDParam(req, "999")
	rec := httptest.NewRecorder()

	srv.handleGetRating(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var agg ratingAggregateResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &agg)
	if agg.Count != 0 || agg.Mine != nil {
		t.Fatalf("aggregate = %+v, want empty", agg)
	}
}

func TestHandleArchive_SelectionIsArchivedAndCached(t *testing.T) {
	srv := buildTestServer(t)

	if rec := serve(srv, httptest.NewRequest(http.MethodGet, "/movie-of-the-day", nil)); rec.Code != http.StatusOK {
		t.Fatalf("movie of the day status = %d", rec.Code)
	}

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/archive?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("archive status = %d: %s", rec.Code, rec.Body.String())
	}
	var page domain.ArchivePage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].MovieID != 1 || !page.HasMore {
		t.Fatalf("page = %+v, want movie 1 with hasMore at limit", page)
	}

	// A movie archived after the first read is hidden by the cache until refresh.
	movie, _ := srv.metadata.GetDetails(context.Background(), 2)
	if err := srv.repo.Archive.Upsert(context.Background(), movie, srv.clock.Now().Add(time.Hour)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/archive?limit=1", nil))
	_ = json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Items[0].MovieID != 1 {
		t.Fatalf("expected cached page, got movie %d", page.Items[0].MovieID)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/archive?limit=1&refresh=true", nil))
	_ = json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Items[0].MovieID != 2 {
		t.Fatalf("refresh should bypass cache, got movie %d", page.Items[0].MovieID)
	}
}

func TestHandleArchive_InvalidQuery(t *testing.T) {
	srv := buildLightServer(t, nil)
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/archive?offset=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleWatchlist(t *testing.T) {
	srv := buildTestServer(t)
	user := uuid.NewString()

	req := httptest.NewRequest(http.MethodPut, "/watchlist/5", bytes.NewBufferString(`{"notes":"with friends"}`))
	req.Header.Set(userIDHeader, user)
	if rec := serve(srv, req); rec.Code != http.StatusNoContent {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPut, "/watchlist/6", nil)
	if rec := serve(srv, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous add status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/watchlist", nil)
	req.Header.Set(userIDHeader, user)
	rec := serve(srv, req)
	var list watchlistResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if rec.Code != http.StatusOK || len(list.Items) != 1 || list.Items[0].MovieID != 5 {
		t.Fatalf("list = %d %+v", rec.Code, list)
	}

	req = httptest.NewRequest(http.MethodDelete, "/watchlist/5", nil)
	req.Header.Set(userIDHeader, user)
	if rec := serve(srv, req); rec.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d", rec.Code)
	}
	req = httptest.NewRequest(http.MethodDelete, "/watchlist/5", nil)
	req.Header.Set(userIDHeader, user)
	if rec := serve(srv, req); rec.Code != http.StatusNotFound {
		t.Fatalf("second remove status = %d, want 404", rec.Code)
	}
}

func TestHandleArchivedMovie(t *testing.T) {
	srv := buildTestServer(t)

	if rec := serve(srv, httptest.NewRequest(http.MethodGet, "/movie-of-the-day", nil)); rec.Code != http.StatusOK {
		t.Fatalf("movie of the day status = %d", rec.Code)
	}

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/archive/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("archived status = %d: %s", rec.Code, rec.Body.String())
	}
	var movie domain.ArchivedMovie
	if err := json.Unmarshal(rec.Body.Bytes(), &movie); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if movie.MovieID != 1 || movie.Title != "Movie 1" {
		t.Fatalf("archived movie = %+v", movie)
	}

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/archive/2", http.StatusNotFound},
		{"/archive/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := serve(srv, httptest.NewRequest(http.MethodGet, tt.path, nil)); rec.Code != tt.wantStatus {
			t.Fatalf("%s status = %d, want %d", tt.path, rec.Code, tt.wantStatus)
		}
	}
}

func TestHandleMovieDetails_InWatchlist(t *testing.T) {
	srv := buildTestServer(t)
	user := uuid.NewString()

	details := func(userID string) movieDetailsResponse {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/movies/5?country=us", nil)
		if userID != "" {
			req.Header.Set(userIDHeader, userID)
		}
		rec := serve(srv, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("details status = %d: %s", rec.Code, rec.Body.String())
		}
		var resp movieDetailsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp
	}

	if resp := details(""); resp.InWatchlist != nil {
		t.Fatalf("anonymous inWatchlist = %v, want omitted", *resp.InWatchlist)
	}
	if resp := details(user); resp.InWatchlist == nil || *resp.InWatchlist {
		t.Fatalf("inWatchlist before add = %v, want false", resp.InWatchlist)
	}

	req := httptest.NewRequest(http.MethodPut, "/watchlist/5", nil)
	req.Header.Set(userIDHeader, user)
	if rec := serve(srv, req); rec.Code != http.StatusNoContent {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}
	if resp := details(user); resp.InWatchlist == nil || !*resp.InWatchlist {
		t.Fatalf("inWatchlist after add = %v, want true", resp.InWatchlist)
	}
}
