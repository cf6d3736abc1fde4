package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/vidx/internal/formatter"
	"github.com/desertthunder/vidx/internal/repositories"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// LibraryShow assembles and prints the enriched library.
func (r *Runner) LibraryShow(ctx context.Context, cmd *cli.Command) error {
	result, err := r.buildLibrary(ctx)
	if err != nil {
		return err
	}

	lib := result.Library
	r.writePlainHeader(fmt.Sprintf("%s's Library", lib.User.DisplayName()))
	if len(lib.Entries) == 0 {
		return r.writePlain("No favorites yet\n")
	}

	for i, entry := range lib.Entries {
		if entry.Video == nil {
			r.writePlain("%d. (unavailable) [id %s]\n", i+1, entry.Edge.VideoID)
			continue
		}
		year := shared.ReleaseYear(entry.Video.ReleaseDate)
		if year != "" {
			year = fmt.Sprintf(" (%s)", year)
		}
		r.writePlain("%d. %s%s [%s]\n", i+1, entry.Video.Title, year, shared.FormatRating(entry.Video.Rating))
	}

	if result.FailedCount > 0 {
		r.writePlainln("⚠ %d entries could not be enriched", result.FailedCount)
	}
	return nil
}

// LibraryExport writes the library to disk in the requested format.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	output := cmd.String("output")

	result, err := r.buildLibrary(ctx)
	if err != nil {
		return err
	}

	switch format {
	case "csv":
		exported, err := formatter.WriteCSVExport(result.Library, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Library exported\n")
		r.writePlain("  Entries: %s\n", exported.EntriesFile)
		r.writePlain("  Metadata: %s\n", exported.MetadataFile)
	case "markdown", "md":
		exported, err := formatter.WriteMarkdownExport(result.Library, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Library exported to %s\n", exported.Directory)
		for _, f := range exported.Files {
			r.writePlain("  %s\n", f)
		}
	case "text", "txt":
		path, err := formatter.WriteTextExport(result.Library, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Library exported to %s\n", path)
	default:
		return fmt.Errorf("%w: unknown format %q (want csv, markdown, or text)", shared.ErrInvalidFlag, format)
	}

	return nil
}

// HistoryLog records a watch event for a movie.
func (r *Runner) HistoryLog(ctx context.Context, cmd *cli.Command) error {
	videoID := cmd.StringArg("id")
	if videoID == "" {
		return fmt.Errorf("%w: movie id is required", shared.ErrMissingArgument)
	}

	if r.rec.CurrentUser() == nil {
		return fmt.Errorf("%w: run 'vidx auth login' first", shared.ErrNotAuthenticated)
	}

	if err := r.backend.AddWatchEvent(ctx, videoID); err != nil {
		return fmt.Errorf("failed to record watch event: %w", err)
	}

	return r.writePlain("✓ Logged watch event for %s\n", videoID)
}

// HistoryList fetches and prints the watch history, optionally mirroring it locally.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	if r.rec.CurrentUser() == nil {
		return fmt.Errorf("%w: run 'vidx auth login' first", shared.ErrNotAuthenticated)
	}

	engine := r.engine
	if cmd.Bool("mirror") {
		if db, err := shared.NewDatabase(r.config.Database.Path); err == nil {
			defer db.Close()
			engine.SetHistoryMirror(repositories.NewHistoryRepository(db))
		} else {
			r.logger.Warn("local mirror unavailable", "error", err)
		}
	}

	result, err := engine.SyncHistory(ctx, nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result.Events, true)
	}

	if len(result.Events) == 0 {
		return r.writePlain("No watch history yet\n")
	}

	r.writePlainHeader(fmt.Sprintf("Watch History (%d)", len(result.Events)))
	for i, event := range result.Events {
		r.writePlain("%d. %s (watched %s)\n", i+1, event.VideoID, event.WatchedAt.Format("2006-01-02 15:04"))
	}

	if cmd.Bool("mirror") {
		r.writePlainln("Mirrored %d events locally (%d skipped)", result.Mirrored, result.Skipped)
	}
	return nil
}

// buildLibrary runs the engine with progress echoed through the logger.
func (r *Runner) buildLibrary(ctx context.Context) (*tasks.BuildResult, error) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Debug("library build", "phase", update.Phase.String(), "message", update.Message)
		}
	}()

	result, err := r.engine.Build(ctx, progress)
	close(progress)
	<-done

	if err != nil {
		return nil, fmt.Errorf("library build failed: %w", err)
	}
	return result, nil
}
