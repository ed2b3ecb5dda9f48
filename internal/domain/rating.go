package domain

import "time"

// Rating is one user's rating of a movie.
type Rating struct {
	MovieID   int64
	UserID    string
	Value     float32
	Review    *string
	WatchedAt time.Time
}

// WatchlistItem is a movie a user saved for later.
type WatchlistItem struct {
	MovieID int64
	UserID  string
	AddedAt time.Time
	Notes   *string
}

// RatingAggregate provides average and count for a movie's ratings.
type RatingAggregate struct {
	Average float32
	Count   int64
}
