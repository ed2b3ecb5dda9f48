package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
)

// WatchlistRepository stores movies users saved for later.
type WatchlistRepository struct {
	pool *pgxpool.Pool
}

// Add saves movieID to the caller's watchlist, refreshing notes if already present.
func (r *WatchlistRepository) Add(ctx context.Context, userID string, movieID int64, notes *string) error {
	id, err := sessionUser(userID)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO watchlist (movie_id, user_id, added_at, notes)
        VALUES ($1,$2,now(),$3)
        ON CONFLICT (movie_id, user_id)
        DO UPDATE SET added_at = now(), notes = EXCLUDED.notes
    `
	if _, err := r.pool.Exec(ctx, query, movieID, id.String(), notes); err != nil {
		return fmt.Errorf("add to watchlist: %w", err)
	}
	return nil
}

// Remove deletes movieID from the caller's watchlist.
func (r *WatchlistRepository) Remove(ctx context.Context, userID string, movieID int64) error {
	id, err := sessionUser(userID)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM watchlist WHERE movie_id = $1 AND user_id = $2`, movieID, id.String())
	if err != nil {
		return fmt.Errorf("remove from watchlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the caller's watchlist, newest first. Anonymous callers get an empty list.
func (r *WatchlistRepository) List(ctx context.Context, userID string) ([]domain.WatchlistItem, error) {
	id, err := sessionUser(userID)
	if err != nil {
		return []domain.WatchlistItem{}, nil
	}
	rows, err := r.pool.Query(ctx, `
        SELECT movie_id, user_id::text, added_at, notes
        FROM watchlist
        WHERE user_id = $1
        ORDER BY added_at DESC, movie_id DESC
    `, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.WatchlistItem, 0)
	for rows.Next() {
		var item domain.WatchlistItem
		if err := rows.Scan(&item.MovieID, &item.UserID, &item.AddedAt, &item.Notes); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Contains reports whether movieID is on the caller's watchlist.
func (r *WatchlistRepository) Contains(ctx context.Context, userID string, movieID int64) (bool, error) {
	id, err := sessionUser(userID)
	if err != nil {
		return false, nil
	}
	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM watchlist WHERE movie_id = $1 AND user_id = $2)`,
		movieID, id.String()).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
