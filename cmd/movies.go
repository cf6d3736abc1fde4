package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/urfave/cli/v3"
)

// MoviesPopular lists a page of popular movies.
func (r *Runner) MoviesPopular(ctx context.Context, cmd *cli.Command) error {
	page := int(cmd.Int("page"))

	r.logger.Info("fetching popular movies", "page", page)

	videos, err := r.catalog.Popular(ctx, page)
	if err != nil {
		return fmt.Errorf("failed to fetch popular movies: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(videos, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Popular on %s (page %d)", r.catalog.Name(), page))
	r.printVideos(videos)
	return nil
}

// MoviesSearch searches the catalog by title.
func (r *Runner) MoviesSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}

	genre := int(cmd.Int("genre"))
	page := int(cmd.Int("page"))

	r.logger.Info("searching catalog", "query", query, "page", page)

	videos, err := r.catalog.Search(ctx, query, genre, page)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(videos, cmd.Bool("pretty"))
	}

	if len(videos) == 0 {
		return r.writePlain("No movies found for %q\n", query)
	}

	r.writePlainHeader(fmt.Sprintf("Results for %q", query))
	r.printVideos(videos)
	return nil
}

// MoviesShow prints full details for a movie, optionally with its trailer link.
func (r *Runner) MoviesShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	tmdbID, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("%w: %q is not a valid movie id", shared.ErrInvalidArgument, id)
	}

	video, err := r.catalog.Details(ctx, tmdbID)
	if err != nil {
		return fmt.Errorf("failed to fetch details: %w", err)
	}

	if cmd.Bool("trailer") {
		key, err := r.catalog.TrailerKey(ctx, tmdbID)
		if err != nil {
			r.logger.Warn("failed to fetch trailer", "error", err)
		} else {
			video.TrailerKey = key
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(video, true)
	}

	r.writePlain("%s\n", video.Title)
	if year := shared.ReleaseYear(video.ReleaseDate); year != "" {
		r.writePlain("Released: %s\n", video.ReleaseDate)
	}
	r.writePlain("Rating: %s\n", shared.FormatRating(video.Rating))
	if r.favorites.IsFavorited(video.ID) {
		r.writePlain("Favorite: ♥\n")
	}
	if video.Overview != "" {
		r.writePlain("\n%s\n", video.Overview)
	}
	if video.TrailerKey != "" {
		r.writePlain("\nTrailer: https://www.youtube.com/watch?v=%s\n", video.TrailerKey)
	}
	return nil
}

func (r *Runner) printVideos(videos []models.Video) {
	for i, v := range videos {
		marker := " "
		if r.favorites.IsFavorited(v.ID) {
			marker = "♥"
		}
		year := shared.ReleaseYear(v.ReleaseDate)
		if year != "" {
			year = fmt.Sprintf(" (%s)", year)
		}
		r.writePlain("%s %d. %s%s [%s] (id %s)\n", marker, i+1, v.Title, year, shared.FormatRating(v.Rating), v.ID)
	}
}
