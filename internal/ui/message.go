package ui

import (
	"github.com/desertthunder/vidx/internal/auth"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/tasks"
)

// moviesFetchedMsg carries a page of catalog results.
type moviesFetchedMsg struct {
	videos []models.Video
	err    error
}

// detailFetchedMsg carries full metadata for one movie.
type detailFetchedMsg struct {
	video *models.Video
	err   error
}

// favoriteToggledMsg reports the outcome of an optimistic toggle.
type favoriteToggledMsg struct {
	videoID string
	err     error
}

// libraryBuiltMsg carries a finished library build.
type libraryBuiltMsg struct {
	result *tasks.BuildResult
	err    error
}

// authUpdateMsg carries a reconciler state change for the footer.
type authUpdateMsg auth.Update

// favoritesTickMsg signals the favorite set changed and lists should re-render.
type favoritesTickMsg struct{}
