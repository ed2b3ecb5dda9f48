package cache

import (
	"fmt"
	"strings"
)

// Namespaces of the app cache. Every cached key starts with one of these.
const (
	NamespaceMovieOfTheDay  = "motd:movieOfTheDay:"
	NamespaceMovieDetails   = "motd:movieDetails:"
	NamespaceWatchProviders = "motd:watchProviders:"
	NamespaceMovieCredits   = "motd:movieCredits:"
	NamespaceArchivedMovies = "motd:archivedMovies:"
	NamespaceGenres         = "motd:genres:"
)

var namespaces = []string{
	NamespaceMovieOfTheDay,
	NamespaceMovieDetails,
	NamespaceWatchProviders,
	NamespaceMovieCredits,
	NamespaceArchivedMovies,
	NamespaceGenres,
}

func MovieOfTheDayKey(dateKey string) string { return NamespaceMovieOfTheDay + dateKey }

func MovieDetailsKey(movieID int64) string {
	return fmt.Sprintf("%s%d", NamespaceMovieDetails, movieID)
}

func WatchProvidersKey(movieID int64) string {
	return fmt.Sprintf("%s%d", NamespaceWatchProviders, movieID)
}

func MovieCreditsKey(movieID int64) string {
	return fmt.Sprintf("%s%d", NamespaceMovieCredits, movieID)
}

func ArchivedMoviesKey(offset, limit int) string {
	return fmt.Sprintf("%s%d:%d", NamespaceArchivedMovies, offset, limit)
}

func GenresKey() string { return NamespaceGenres + "movie" }

func namespaceOf(key string) string {
	for _, ns := range namespaces {
		if strings.HasPrefix(key, ns) {
			return strings.TrimSuffix(strings.TrimPrefix(ns, "motd:"), ":")
		}
	}
	return "other"
}
