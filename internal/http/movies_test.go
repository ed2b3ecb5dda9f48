package httpserver

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Clark-Hu/movie-of-the-day/internal/selection"
	"github.com/Clark-Hu/movie-of-the-day/internal/tmdb"
)

func TestRoundToOneDecimal(t *testing.T) {
	tests := []struct {
		name  string
		value float32
		want  float32
	}{
		{"zero", 0, 0},
		{"round-up", 3.75, 3.8},
		{"round-down", 2.74, 2.7},
		{"exact", 4.5, 4.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundToOneDecimal(tt.value)
			if math.Abs(float64(got-tt.want)) > 0.0001 {
				t.Fatalf("roundToOneDecimal(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseMovieID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"603", 603, false},
		{"", 0, true},
		{"0", 0, true},
		{"-7", 0, true},
		{"tt0133093", 0, true},
	}
	for _, tt := range tests {
		req := attachIDParam(httptest.NewRequest(http.MethodGet, "/movies/x", nil), tt.raw)
		got, err := parseMovieID(req)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseMovieID(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("parseMovieID(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeStringPtr(t *testing.T) {
	blank := "   "
	padded := "  loved it "
	if normalizeStringPtr(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	if normalizeStringPtr(&blank) != nil {
		t.Fatal("blank should collapse to nil")
	}
	if got := normalizeStringPtr(&padded); got == nil || *got != "loved it" {
		t.Fatalf("padded = %v", got)
	}
}

func TestRespondUpstreamErrorStatus(t *testing.T) {
	srv := buildLightServer(t, nil)
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", tmdb.ErrNotFound, http.StatusNotFound},
		{"fetch", &tmdb.FetchError{Op: "details", StatusCode: http.StatusBadGateway}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.respondUpstreamError(rec, tt.err, "failed")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRespondSelectionInProgress(t *testing.T) {
	srv := buildLightServer(t, nil)
	rec := httptest.NewRecorder()
	srv.respondSelection(rec, selection.ErrInProgress)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}
