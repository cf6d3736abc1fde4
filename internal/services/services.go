// package services defines clients for the HTTP APIs the application consumes
//
// Account backend (favorites, sessions), TMDB catalog
package services

import (
	"context"

	"github.com/desertthunder/vidx/internal/models"
)

// Catalog defines read-only access to the movie metadata provider.
type Catalog interface {
	// Popular retrieves a page of popular movies.
	Popular(ctx context.Context, page int) ([]models.Video, error)

	// Search retrieves movies matching a query, optionally filtered by genre id.
	Search(ctx context.Context, query string, genre, page int) ([]models.Video, error)

	// Details retrieves full metadata for a single movie.
	Details(ctx context.Context, tmdbID int) (*models.Video, error)

	// TrailerKey returns the YouTube key of the movie's trailer, if any.
	TrailerKey(ctx context.Context, tmdbID int) (string, error)

	// Name returns the name of the catalog provider (e.g. "TMDB").
	Name() string
}

// Favorites defines the per-user favorite mutations the backend brokers.
type Favorites interface {
	AddFavorite(ctx context.Context, userID, videoID string) error
	RemoveFavorite(ctx context.Context, userID, videoID string) error
	ListFavorites(ctx context.Context, userID string) ([]models.FavoriteEdge, error)
}

// History defines the watch-history pass-throughs.
type History interface {
	AddWatchEvent(ctx context.Context, videoID string) error
	WatchHistory(ctx context.Context) ([]models.WatchEvent, error)
}
