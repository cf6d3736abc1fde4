// package tasks implements library assembly and history mirroring.
//
// The core abstraction is LibraryEngine, which orchestrates favorites sync,
// catalog enrichment, and watch-history mirroring. Operations emit progress
// updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/services"
	"github.com/desertthunder/vidx/internal/shared"
)

// BuildResult contains all data from a full library build.
type BuildResult struct {
	Library       *models.Library // Assembled library
	EnrichedCount int             // Entries with catalog metadata
	FailedCount   int             // Entries whose catalog lookup failed
	TotalEntries  int             // Total favorite edges processed
}

// HistorySyncResult contains the outcome of a watch-history mirror.
type HistorySyncResult struct {
	Events   []models.WatchEvent // Events fetched from the backend
	Mirrored int                 // Events persisted locally
	Skipped  int                 // Events that failed to persist
}

// FavoriteSource is the optimistic favorites view the engine builds from.
type FavoriteSource interface {
	Sync(ctx context.Context) error
	Edges() []models.FavoriteEdge
}

// Identity exposes the currently signed-in user.
type Identity interface {
	CurrentUser() *models.User
}

// VideoCacher enables optional catalog persistence during enrichment.
// This abstraction allows for easier testing and decoupling from repositories.
type VideoCacher interface {
	CacheVideo(video models.Video) error
}

// HistoryMirror persists watch events locally.
type HistoryMirror interface {
	Create(entry *models.HistoryEntry) error
}

// LibraryEngine defines operations for assembling and mirroring the library.
type LibraryEngine interface {
	// Build syncs favorites, enriches them with catalog metadata, and returns the assembled library.
	Build(ctx context.Context, progress chan<- ProgressUpdate) (*BuildResult, error)

	// SyncHistory fetches the backend's watch history and mirrors it locally.
	SyncHistory(ctx context.Context, progress chan<- ProgressUpdate) (*HistorySyncResult, error)
}

// Engine implements LibraryEngine.
// Contains dependencies on the favorites controller, catalog, and history API.
type Engine struct {
	identity  Identity
	favorites FavoriteSource
	catalog   services.Catalog
	history   services.History
	cacher    VideoCacher   // optional
	mirror    HistoryMirror // optional
}

// NewEngine creates a new Engine with the provided dependencies.
func NewEngine(identity Identity, favorites FavoriteSource, catalog services.Catalog, history services.History) *Engine {
	return &Engine{
		identity:  identity,
		favorites: favorites,
		catalog:   catalog,
		history:   history,
	}
}

// SetVideoCacher enables catalog persistence during enrichment.
func (e *Engine) SetVideoCacher(cacher VideoCacher) { e.cacher = cacher }

// SetHistoryMirror enables local persistence of watch events.
func (e *Engine) SetHistoryMirror(mirror HistoryMirror) { e.mirror = mirror }

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Build assembles the current user's library.
//
// A failed catalog lookup does not abort the build: the entry is kept with
// nil metadata so the favorite itself is never silently dropped.
func (e *Engine) Build(ctx context.Context, progress chan<- ProgressUpdate) (*BuildResult, error) {
	user := e.identity.CurrentUser()
	if user == nil {
		return nil, fmt.Errorf("%w: sign in to build the library", shared.ErrNotAuthenticated)
	}
	if e.favorites == nil {
		return nil, fmt.Errorf("%w: favorites controller not initialized", shared.ErrServiceUnavailable)
	}
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, syncFavoritesUpdate(1, 1))
	if err := e.favorites.Sync(ctx); err != nil {
		return nil, fmt.Errorf("failed to sync favorites: %w", err)
	}

	edges := e.favorites.Edges()
	total := len(edges)
	e.sendProgress(progress, favoritesSyncedUpdate(1, 1, total))

	result := &BuildResult{
		Library: &models.Library{
			User:    *user,
			Entries: make([]models.LibraryEntry, 0, total),
		},
		TotalEntries: total,
	}

	for i, edge := range edges {
		e.sendProgress(progress, enrichUpdate(i+1, total, nil))

		video, err := e.lookup(ctx, edge.VideoID)
		if err != nil {
			result.FailedCount++
			e.sendProgress(progress, enrichFailedUpdate(i+1, total, edge.VideoID, err))
		} else {
			result.EnrichedCount++
			e.sendProgress(progress, enrichUpdate(i+1, total, video))
			if e.cacher != nil {
				// Cache failures never disrupt a build.
				_ = e.cacher.CacheVideo(*video)
			}
		}

		result.Library.Entries = append(result.Library.Entries, models.LibraryEntry{
			Edge:  edge,
			Video: video,
		})
	}

	return result, nil
}

// SyncHistory mirrors the backend's watch history locally.
func (e *Engine) SyncHistory(ctx context.Context, progress chan<- ProgressUpdate) (*HistorySyncResult, error) {
	user := e.identity.CurrentUser()
	if user == nil {
		return nil, fmt.Errorf("%w: sign in to sync history", shared.ErrNotAuthenticated)
	}
	if e.history == nil {
		return nil, fmt.Errorf("%w: history service not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, fetchHistoryUpdate(1, 2))

	events, err := e.history.WatchHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch watch history: %w", err)
	}

	result := &HistorySyncResult{Events: events}

	if e.mirror == nil {
		return result, nil
	}

	e.sendProgress(progress, mirrorHistoryUpdate(2, 2))
	for _, event := range events {
		entry := models.NewHistoryEntry(0, event.UserID, event.VideoID, event.WatchedAt)
		if err := e.mirror.Create(entry); err != nil {
			result.Skipped++
			continue
		}
		result.Mirrored++
	}

	return result, nil
}

// lookup resolves a backend video id against the catalog.
func (e *Engine) lookup(ctx context.Context, videoID string) (*models.Video, error) {
	tmdbID, err := strconv.Atoi(videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: video id %q is not a catalog id", shared.ErrVideoNotFound, videoID)
	}
	return e.catalog.Details(ctx, tmdbID)
}
