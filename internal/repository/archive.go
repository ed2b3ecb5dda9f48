package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
)

// Archive listing bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ArchiveRepository persists the movies that were shown as movie of the day.
type ArchiveRepository struct {
	pool *pgxpool.Pool
}

const archiveColumns = `
    movie_id,
    title,
    poster_url,
    release_date,
    synopsis,
    rating,
    vote_count,
    genres,
    runtime,
    budget,
    revenue,
    language,
    displayed_on
`

// Upsert snapshots movie keyed by its identifier. Showing the same movie on a
// later day overwrites the row instead of adding another.
func (r *ArchiveRepository) Upsert(ctx context.Context, movie domain.Movie, displayedOn time.Time) error {
	genres := movie.Genres
	if genres == nil {
		genres = []domain.Genre{}
	}
	genresJSON, err := json.Marshal(genres)
	if err != nil {
		return fmt.Errorf("encode genres: %w", err)
	}

	const query = `
        INSERT INTO archived_movies (movie_id, title, poster_url, release_date, synopsis, rating, vote_count,
                                     genres, runtime, budget, revenue, language, displayed_on)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT (movie_id)
        DO UPDATE SET title = EXCLUDED.title,
                      poster_url = EXCLUDED.poster_url,
                      release_date = EXCLUDED.release_date,
                      synopsis = EXCLUDED.synopsis,
                      rating = EXCLUDED.rating,
                      vote_count = EXCLUDED.vote_count,
                      genres = EXCLUDED.genres,
                      runtime = EXCLUDED.runtime,
                      budget = EXCLUDED.budget,
                      revenue = EXCLUDED.revenue,
                      language = EXCLUDED.language,
                      displayed_on = EXCLUDED.displayed_on
    `
	_, err = r.pool.Exec(ctx, query,
		movie.ID, movie.Title, movie.PosterPath, movie.ReleaseDate, movie.Overview,
		movie.VoteAverage, movie.VoteCount, genresJSON, movie.Runtime, movie.Budget,
		movie.Revenue, movie.OriginalLanguage, displayedOn.UTC())
	if err != nil {
		return fmt.Errorf("upsert archived movie %d: %w", movie.ID, err)
	}
	return nil
}

// Get fetches one archived movie.
func (r *ArchiveRepository) Get(ctx context.Context, movieID int64) (domain.ArchivedMovie, error) {
	query := fmt.Sprintf(`SELECT %s FROM archived_movies WHERE movie_id = $1`, archiveColumns)
	movie, err := scanArchived(r.pool.QueryRow(ctx, query, movieID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ArchivedMovie{}, ErrNotFound
		}
		return domain.ArchivedMovie{}, err
	}
	return movie, nil
}

// NormalizePage clamps offset and limit to the listing bounds.
func NormalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	} else if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return offset, limit
}

// List returns archived movies, most recently displayed first. HasMore is set
// when the page came back full.
func (r *ArchiveRepository) List(ctx context.Context, offset, limit int) (domain.ArchivePage, error) {
	offset, limit = NormalizePage(offset, limit)

	query := fmt.Sprintf(`SELECT %s FROM archived_movies ORDER BY displayed_on DESC, movie_id DESC LIMIT $1 OFFSET $2`, archiveColumns)
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return domain.ArchivePage{}, err
	}
	defer rows.Close()

	items := make([]domain.ArchivedMovie, 0, limit)
	for rows.Next() {
		movie, err := scanArchived(rows)
		if err != nil {
			return domain.ArchivePage{}, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return domain.ArchivePage{}, err
	}

	return domain.ArchivePage{Items: items, HasMore: len(items) == limit}, nil
}

func scanArchived(row pgx.Row) (domain.ArchivedMovie, error) {
	var (
		movie      domain.ArchivedMovie
		genresJSON []byte
	)
	err := row.Scan(
		&movie.MovieID,
		&movie.Title,
		&movie.PosterPath,
		&movie.ReleaseDate,
		&movie.Synopsis,
		&movie.Rating,
		&movie.VoteCount,
		&genresJSON,
		&movie.Runtime,
		&movie.Budget,
		&movie.Revenue,
		&movie.Language,
		&movie.DisplayedOn,
	)
	if err != nil {
		return domain.ArchivedMovie{}, err
	}
	if len(genresJSON) > 0 {
		if err := json.Unmarshal(genresJSON, &movie.Genres); err != nil {
			return domain.ArchivedMovie{}, err
		}
	}
	return movie, nil
}
