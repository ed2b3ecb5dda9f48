package domain

import "time"

// Genre is a metadata genre tag.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MovieSummary is a discovery result; it lacks runtime, budget and genres.
type MovieSummary struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int64   `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	OriginalLanguage string  `json:"original_language"`
}

// Eligible reports whether the summary can be shown as a movie of the day.
func (s MovieSummary) Eligible() bool {
	return s.PosterPath != "" && s.Overview != ""
}

// Movie is the full metadata record. It is never mutated after fetch.
type Movie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int64   `json:"vote_count"`
	Genres           []Genre `json:"genres"`
	Runtime          int     `json:"runtime"`
	Budget           int64   `json:"budget"`
	Revenue          int64   `json:"revenue"`
	OriginalLanguage string  `json:"original_language"`
}

// Released parses ReleaseDate; ok is false when it is empty or malformed.
func (m Movie) Released() (time.Time, bool) {
	if m.ReleaseDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", m.ReleaseDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ArchivedMovie is a snapshot of a movie as it was shown on a given day.
type ArchivedMovie struct {
	MovieID     int64     `json:"movieId"`
	Title       string    `json:"title"`
	PosterPath  string    `json:"posterPath"`
	ReleaseDate string    `json:"releaseDate"`
	Synopsis    string    `json:"synopsis"`
	Rating      float64   `json:"rating"`
	VoteCount   int64     `json:"voteCount"`
	Genres      []Genre   `json:"genres"`
	Runtime     int       `json:"runtime"`
	Budget      int64     `json:"budget"`
	Revenue     int64     `json:"revenue"`
	Language    string    `json:"language"`
	DisplayedOn time.Time `json:"displayedOn"`
}

// ArchivePage is one page of the archive listing.
type ArchivePage struct {
	Items   []ArchivedMovie `json:"items"`
	HasMore bool            `json:"hasMore"`
}
