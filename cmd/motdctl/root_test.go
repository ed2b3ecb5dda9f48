package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
)

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("DB_URL", "postgres://unused")
	t.Setenv("TMDB_API_KEY", "test-key")
	t.Setenv("KV_BACKEND", "sqlite")
	t.Setenv("KV_SQLITE_PATH", filepath.Join(dir, "kv.db"))
	t.Setenv("TIMEZONE", "UTC")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func showSettings(t *testing.T) domain.Settings {
	t.Helper()
	out, err := execute(t, "settings", "show")
	if err != nil {
		t.Fatalf("settings show: %v", err)
	}
	var prefs domain.Settings
	if err := json.Unmarshal([]byte(out), &prefs); err != nil {
		t.Fatalf("decode settings %q: %v", out, err)
	}
	return prefs
}

func TestSettingsRoundTrip(t *testing.T) {
	setupEnv(t)

	if got := showSettings(t); got != (domain.Settings{Country: "US"}) {
		t.Fatalf("expected defaults, got %+v", got)
	}

	if _, err := execute(t, "settings", "set", "--country", "de", "--dark-mode", "true"); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	if got := showSettings(t); got != (domain.Settings{DarkMode: true, Country: "DE"}) {
		t.Fatalf("unexpected settings after set: %+v", got)
	}

	if _, err := execute(t, "settings", "reset"); err != nil {
		t.Fatalf("settings reset: %v", err)
	}
	if got := showSettings(t); got != (domain.Settings{Country: "US"}) {
		t.Fatalf("expected defaults after reset, got %+v", got)
	}
}

func TestSettingsSetValidation(t *testing.T) {
	setupEnv(t)

	cases := []struct {
		name string
		args []string
	}{
		{"no flags", []string{"settings", "set"}},
		{"bad country", []string{"settings", "set", "--country", "usa"}},
		{"bad dark mode", []string{"settings", "set", "--dark-mode", "sometimes"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := execute(t, tc.args...); err == nil {
				t.Fatalf("expected error for %v", tc.args)
			}
		})
	}
}

func TestCacheClearKeepsSettings(t *testing.T) {
	setupEnv(t)

	if _, err := execute(t, "settings", "set", "--country", "FR"); err != nil {
		t.Fatalf("settings set: %v", err)
	}

	out, err := execute(t, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if !strings.Contains(out, `"removed": 0`) {
		t.Fatalf("unexpected output %q", out)
	}

	if got := showSettings(t); got.Country != "FR" {
		t.Fatalf("settings lost after cache clear: %+v", got)
	}
}

func TestFactsRejectsBadID(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "facts", "abc")
	if err == nil || !strings.Contains(err.Error(), "invalid movie id") {
		t.Fatalf("expected invalid movie id error, got %v", err)
	}
}

func TestConfigErrorsSurface(t *testing.T) {
	cases := []struct {
		name    string
		unset   string
		args    []string
		wantErr string
	}{
		{"facts without api key", "TMDB_API_KEY", []string{"facts", "27205"}, "TMDB_API_KEY"},
		{"today without database", "DB_URL", []string{"today"}, "DB_URL"},
		{"archive without api key", "TMDB_API_KEY", []string{"archive"}, "TMDB_API_KEY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setupEnv(t)
			t.Setenv(tc.unset, "")

			_, err := execute(t, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected %s config error, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLocalCommandsRunWithoutCredentials(t *testing.T) {
	setupEnv(t)
	t.Setenv("DB_URL", "")
	t.Setenv("TMDB_API_KEY", "")

	if _, err := execute(t, "settings", "set", "--country", "JP"); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	if got := showSettings(t); got.Country != "JP" {
		t.Fatalf("settings = %+v, want JP", got)
	}
	if _, err := execute(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
}
