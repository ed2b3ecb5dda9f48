package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
)

// ErrInvalidRating is returned for values outside 0.5..5.0 in half steps.
var ErrInvalidRating = errors.New("repository: rating must be one of {0.5, 1.0, ..., 5.0}")

var allowedRatings = map[float32]struct{}{
	0.5: {}, 1.0: {}, 1.5: {}, 2.0: {}, 2.5: {},
	3.0: {}, 3.5: {}, 4.0: {}, 4.5: {}, 5.0: {},
}

// ValidRating reports whether value is an allowed rating.
func ValidRating(value float32) bool {
	_, ok := allowedRatings[value]
	return ok
}

// RatingsRepository provides helpers for user movie ratings.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

// RatingUpsertParams captures the payload required to upsert a rating.
type RatingUpsertParams struct {
	MovieID int64
	UserID  string
	Value   float32
	Review  *string
}

// Upsert inserts or updates a rating and indicates whether it was newly created.
func (r *RatingsRepository) Upsert(ctx context.Context, params RatingUpsertParams) (domain.Rating, bool, error) {
	userID, err := sessionUser(params.UserID)
	if err != nil {
		return domain.Rating{}, false, err
	}
	if !ValidRating(params.Value) {
		return domain.Rating{}, false, ErrInvalidRating
	}

	const query = `
        INSERT INTO user_ratings (movie_id, user_id, rating, review, watched_at)
        VALUES ($1,$2,$3,$4,now())
        ON CONFLICT (movie_id, user_id)
        DO UPDATE SET rating = EXCLUDED.rating, review = EXCLUDED.review, watched_at = now()
        RETURNING movie_id, user_id::text, rating, review, watched_at, (xmax = 0) AS inserted
    `

	var rating domain.Rating
	var inserted bool
	err = r.pool.QueryRow(ctx, query, params.MovieID, userID.String(), params.Value, params.Review).Scan(
		&rating.MovieID,
		&rating.UserID,
		&rating.Value,
		&rating.Review,
		&rating.WatchedAt,
		&inserted,
	)
	if err != nil {
		return domain.Rating{}, false, err
	}
	return rating, inserted, nil
}

// Get retrieves the caller's rating for a movie.
func (r *RatingsRepository) Get(ctx context.Context, userID string, movieID int64) (domain.Rating, error) {
	id, err := sessionUser(userID)
	if err != nil {
		return domain.Rating{}, err
	}

	const query = `
        SELECT movie_id, user_id::text, rating, review, watched_at
        FROM user_ratings
        WHERE movie_id = $1 AND user_id = $2
    `
	var rating domain.Rating
	err = r.pool.QueryRow(ctx, query, movieID, id.String()).Scan(
		&rating.MovieID,
		&rating.UserID,
		&rating.Value,
		&rating.Review,
		&rating.WatchedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, err
	}
	return rating, nil
}

// Aggregate returns the rating average and count for a movie.
func (r *RatingsRepository) Aggregate(ctx context.Context, movieID int64) (domain.RatingAggregate, error) {
	const query = `
        SELECT COALESCE(ROUND(AVG(rating)::numeric, 1), 0)::float4 AS average,
               COUNT(*)::int8 AS count
        FROM user_ratings
        WHERE movie_id = $1
    `

	var agg domain.RatingAggregate
	if err := r.pool.QueryRow(ctx, query, movieID).Scan(&agg.Average, &agg.Count); err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("aggregate ratings: %w", err)
	}
	return agg, nil
}
