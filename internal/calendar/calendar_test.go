package calendar

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) Calendar {
	t.Helper()
	cal, err := Load(name)
	if err != nil {
		t.Skipf("timezone %s unavailable: %v", name, err)
	}
	return cal
}

func TestTodayKeyUsesLocalZone(t *testing.T) {
	cal := mustLoad(t, "America/New_York")
	// 03:30 UTC on Jan 2 is still Jan 1 in New York.
	instant := time.Date(2024, time.January, 2, 3, 30, 0, 0, time.UTC)
	if got := cal.TodayKey(instant); got != "2024-01-01" {
		t.Fatalf("TodayKey = %s, want 2024-01-01", got)
	}
}

func TestUntilEndOfDay(t *testing.T) {
	cal := New(time.UTC)
	instant := time.Date(2024, time.March, 5, 14, 0, 0, 0, time.UTC)
	if got := cal.UntilEndOfDay(instant); got != 10*time.Hour {
		t.Fatalf("UntilEndOfDay = %s, want 10h", got)
	}
	if got := cal.DayLength(instant); got != 24*time.Hour {
		t.Fatalf("DayLength = %s, want 24h", got)
	}
}

func TestDSTDayLengths(t *testing.T) {
	cal := mustLoad(t, "America/New_York")
	tests := []struct {
		name string
		day  time.Time
		want time.Duration
	}{
		{"spring forward", time.Date(2024, time.March, 10, 12, 0, 0, 0, cal.Location()), 23 * time.Hour},
		{"fall back", time.Date(2024, time.November, 3, 12, 0, 0, 0, cal.Location()), 25 * time.Hour},
		{"regular", time.Date(2024, time.June, 1, 12, 0, 0, 0, cal.Location()), 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.DayLength(tt.day); got != tt.want {
				t.Fatalf("DayLength = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load("Not/AZone"); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
	if _, err := Load(""); err != nil {
		t.Fatalf("empty zone should resolve to Local: %v", err)
	}
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2024, time.January, 1, 23, 59, 0, 0, time.UTC)
	clk := NewFakeClock(start)
	clk.Advance(2 * time.Minute)
	if got := New(time.UTC).TodayKey(clk.Now()); got != "2024-01-02" {
		t.Fatalf("TodayKey after advance = %s", got)
	}
}
