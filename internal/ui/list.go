package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

var (
	_ list.Item = movieItem{}
	_ list.Item = libraryItem{}
)

// movieItem wraps [models.Video] to implement [list.Item].
//
// The favorited flag reflects the optimistic view at render time.
type movieItem struct {
	video     models.Video
	favorited bool
}

func (i movieItem) FilterValue() string { return i.video.Title }
func (i movieItem) Title() string {
	if i.favorited {
		return "♥ " + i.video.Title
	}
	return i.video.Title
}
func (i movieItem) Description() string {
	desc := shared.FormatRating(i.video.Rating)
	if year := shared.ReleaseYear(i.video.ReleaseDate); year != "" {
		desc = fmt.Sprintf("%s • %s", year, desc)
	}
	return desc
}

// libraryItem wraps [models.LibraryEntry] to implement [list.Item].
type libraryItem struct {
	entry models.LibraryEntry
}

func (i libraryItem) FilterValue() string {
	if i.entry.Video == nil {
		return i.entry.Edge.VideoID
	}
	return i.entry.Video.Title
}

func (i libraryItem) Title() string {
	if i.entry.Video == nil {
		return fmt.Sprintf("(unavailable) %s", i.entry.Edge.VideoID)
	}
	return i.entry.Video.Title
}

func (i libraryItem) Description() string {
	desc := fmt.Sprintf("added %s", i.entry.Edge.AddedAt.Format("2006-01-02"))
	if i.entry.Edge.Pending != models.PendingConfirmed {
		desc = fmt.Sprintf("%s • syncing", desc)
	}
	return desc
}
