package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/vidx/internal/shared"
	"github.com/urfave/cli/v3"
)

// FavoritesToggle flips the favorite state of a movie.
func (r *Runner) FavoritesToggle(ctx context.Context, cmd *cli.Command) error {
	videoID := cmd.StringArg("id")
	if videoID == "" {
		return fmt.Errorf("%w: movie id is required", shared.ErrMissingArgument)
	}

	if err := r.favorites.Toggle(ctx, videoID); err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			return fmt.Errorf("%w: run 'vidx auth login' first", shared.ErrNotAuthenticated)
		}
		return err
	}

	if r.favorites.IsFavorited(videoID) {
		return r.writePlain("♥ Added %s to favorites\n", videoID)
	}
	return r.writePlain("✓ Removed %s from favorites\n", videoID)
}

// FavoritesList prints the effective favorite set.
func (r *Runner) FavoritesList(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("sync") {
		if err := r.favorites.Sync(ctx); err != nil {
			if errors.Is(err, shared.ErrNotAuthenticated) {
				return fmt.Errorf("%w: run 'vidx auth login' first", shared.ErrNotAuthenticated)
			}
			r.logger.Warn("favorites sync failed, showing local view", "error", err)
		}
	}

	edges := r.favorites.Edges()

	if cmd.Bool("json") {
		return r.writeJSON(edges, true)
	}

	if len(edges) == 0 {
		return r.writePlain("No favorites yet\n")
	}

	r.writePlainHeader(fmt.Sprintf("Favorites (%d)", len(edges)))
	for i, edge := range edges {
		r.writePlain("%d. %s (added %s)\n", i+1, edge.VideoID, edge.AddedAt.Format("2006-01-02"))
	}
	return nil
}
