package facts

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
)

var now = time.Date(2024, time.August, 1, 12, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	movie := domain.Movie{
		ReleaseDate:      "2019-05-30",
		Budget:           11_400_000,
		Revenue:          257_000_000,
		Runtime:          132,
		VoteCount:        18_500,
		VoteAverage:      8.5,
		OriginalLanguage: "ko",
	}
	want := []string{
		"This movie was released 5 years ago in May 2019",
		"The movie had a budget of $11.4 million",
		"The movie made a profit of $245.6 million at the box office",
		"This movie has been rated by over 18.5k people",
		"With a rating of 8.5/10, this movie is very highly rated!",
		"This movie was originally made in Korean",
	}
	if diff := cmp.Diff(want, Generate(movie, now)); diff != "" {
		t.Fatalf("facts mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateRuntimeBands(t *testing.T) {
	long := Generate(domain.Movie{Runtime: 201}, now)
	short := Generate(domain.Movie{Runtime: 85}, now)
	if len(long) != 1 || !strings.Contains(long[0], "grab some snacks") {
		t.Fatalf("long movie facts = %v", long)
	}
	if len(short) != 1 || !strings.Contains(short[0], "relatively short") {
		t.Fatalf("short movie facts = %v", short)
	}
}

func TestNoProfitFactOnLoss(t *testing.T) {
	for _, fact := range Generate(domain.Movie{Budget: 100_000_000, Revenue: 50_000_000, Runtime: 100}, now) {
		if strings.Contains(fact, "profit") {
			t.Fatalf("unexpected profit fact: %s", fact)
		}
	}
}

func TestRandomFallsBackToRuntime(t *testing.T) {
	got := Random(domain.Movie{Runtime: 120, OriginalLanguage: "en"}, now, rand.New(rand.NewPCG(1, 1)))
	if got != "This movie is 120 minutes long" {
		t.Fatalf("Random = %q", got)
	}
}

func TestRandomReturnsApplicableFact(t *testing.T) {
	movie := domain.Movie{Runtime: 200, VoteAverage: 9.1, OriginalLanguage: "ja"}
	all := Generate(movie, now)
	rnd := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 50; i++ {
		got := Random(movie, now, rnd)
		found := false
		for _, f := range all {
			if f == got {
				found = true
			}
		}
		if !found {
			t.Fatalf("Random returned %q not in %v", got, all)
		}
	}
}

func TestLanguageName(t *testing.T) {
	tests := map[string]string{"fr": "French", "ja": "Japanese", "hi": "Hindi", "zz": "ZZ", "???": "???"}
	for code, want := range tests {
		if got := LanguageName(code); got != want {
			t.Fatalf("LanguageName(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestYearsBetween(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"anniversary after leap day", day(2020, time.March, 1), day(2021, time.March, 1), 1},
		{"day before anniversary", day(2020, time.March, 1), day(2021, time.February, 28), 0},
		{"leap day release", day(2020, time.February, 29), day(2024, time.February, 29), 4},
		{"leap day release, non-leap year", day(2020, time.February, 29), day(2023, time.February, 28), 2},
		{"same month later day", day(2019, time.May, 30), day(2024, time.May, 31), 5},
		{"future release", day(2030, time.January, 1), day(2024, time.January, 1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := yearsBetween(tt.from, tt.to); got != tt.want {
				t.Fatalf("yearsBetween(%s, %s) = %d, want %d", tt.from.Format("2006-01-02"), tt.to.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestGenerateAgeAcrossLeapYear(t *testing.T) {
	facts := Generate(domain.Movie{ReleaseDate: "2020-03-01"}, time.Date(2021, time.March, 1, 9, 0, 0, 0, time.UTC))
	if len(facts) == 0 || facts[0] != "This movie was released 1 years ago in March 2020" {
		t.Fatalf("age fact = %v", facts)
	}
}
