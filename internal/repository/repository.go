package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-of-the-day/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrNotAuthenticated is returned by user-scoped writes made without a session.
	ErrNotAuthenticated = errors.New("repository: not authenticated")
)

// Repository aggregates the backend tables.
type Repository struct {
	Archive   *ArchiveRepository
	Ratings   *RatingsRepository
	Watchlist *WatchlistRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Archive:   &ArchiveRepository{pool: pool},
		Ratings:   &RatingsRepository{pool: pool},
		Watchlist: &WatchlistRepository{pool: pool},
	}
}

// sessionUser validates the caller's anonymous session id.
func sessionUser(userID string) (uuid.UUID, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return uuid.Nil, ErrNotAuthenticated
	}
	id, err := uuid.Parse(userID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrNotAuthenticated
	}
	return id, nil
}
