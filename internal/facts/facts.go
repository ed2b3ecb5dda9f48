// Package facts derives short trivia lines about a movie.
package facts

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
)

// Rand draws a uniform integer in [0, n).
type Rand interface {
	IntN(n int) int
}

// Generate lists every fact that applies to movie as of now.
func Generate(movie domain.Movie, now time.Time) []string {
	var out []string

	if released, ok := movie.Released(); ok {
		out = append(out, fmt.Sprintf("This movie was released %d years ago in %s",
			yearsBetween(released, now), released.Format("January 2006")))
	}

	if movie.Budget > 0 {
		out = append(out, fmt.Sprintf("The movie had a budget of $%.1f million", millions(movie.Budget)))
		if profit := movie.Revenue - movie.Budget; movie.Revenue > 0 && profit > 0 {
			out = append(out, fmt.Sprintf("The movie made a profit of $%.1f million at the box office", millions(profit)))
		}
	}

	switch {
	case movie.Runtime > 180:
		out = append(out, fmt.Sprintf("At %d minutes, this is quite a long movie - make sure to grab some snacks!", movie.Runtime))
	case movie.Runtime > 0 && movie.Runtime < 90:
		out = append(out, fmt.Sprintf("With a runtime of %d minutes, this is a relatively short movie", movie.Runtime))
	}

	if movie.VoteCount > 10000 {
		out = append(out, fmt.Sprintf("This movie has been rated by over %.1fk people", float64(movie.VoteCount)/1000))
	}
	if movie.VoteAverage >= 8 {
		out = append(out, fmt.Sprintf("With a rating of %.1f/10, this movie is very highly rated!", movie.VoteAverage))
	}
	if movie.OriginalLanguage != "" && movie.OriginalLanguage != "en" {
		out = append(out, fmt.Sprintf("This movie was originally made in %s", LanguageName(movie.OriginalLanguage)))
	}
	return out
}

// Random picks one applicable fact, falling back to the runtime. A nil rnd
// uses the global source.
func Random(movie domain.Movie, now time.Time, rnd Rand) string {
	all := Generate(movie, now)
	if len(all) == 0 {
		return fmt.Sprintf("This movie is %d minutes long", movie.Runtime)
	}
	if rnd == nil {
		return all[rand.IntN(len(all))]
	}
	return all[rnd.IntN(len(all))]
}

// LanguageName returns the English name of an ISO 639-1 code, or the
// upper-cased code when it is unknown.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToUpper(code)
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(code)
}

func millions(v int64) float64 { return float64(v) / 1_000_000 }

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
