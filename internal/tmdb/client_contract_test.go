package tmdb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// TestHTTPClientSmoke checks a live (or mock) upstream when TMDB_URL is set.
func TestHTTPClientSmoke(t *testing.T) {
	baseURL := os.Getenv("TMDB_URL")
	if baseURL == "" {
		t.Skip("TMDB_URL not provided")
	}
	client, err := NewHTTPClient(baseURL, os.Getenv("TMDB_API_KEY"), Options{Timeout: 3 * time.Second, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("create http client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := client.Discover(ctx, DailyCriteria(time.Now()))
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one discovery result")
	}
}
