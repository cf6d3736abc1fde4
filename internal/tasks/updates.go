package tasks

import (
	"fmt"

	"github.com/desertthunder/vidx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	SyncFavorites Phase = iota
	EnrichEntries
	FetchHistory
	MirrorHistory
)

func (p Phase) String() string {
	switch p {
	case SyncFavorites:
		return "sync_favorites"
	case EnrichEntries:
		return "enrich_entries"
	case FetchHistory:
		return "fetch_history"
	case MirrorHistory:
		return "mirror_history"
	default:
		return ""
	}
}

func syncFavoritesUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncFavorites,
		Step:    step,
		Total:   total,
		Message: "Syncing favorites with backend...",
	}
}

func favoritesSyncedUpdate(step, total, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncFavorites,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Found %d favorites", count),
	}
}

func enrichUpdate(step, total int, video *models.Video) ProgressUpdate {
	if video == nil {
		return ProgressUpdate{
			Phase:   EnrichEntries,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] Fetching metadata...", step, total),
		}
	}
	return ProgressUpdate{
		Phase:   EnrichEntries,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, video.Title),
		Data:    video,
	}
}

func enrichFailedUpdate(step, total int, videoID string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnrichEntries,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, videoID, err),
	}
}

func fetchHistoryUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchHistory,
		Step:    step,
		Total:   total,
		Message: "Fetching watch history...",
	}
}

func mirrorHistoryUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MirrorHistory,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Saving watch events...", step, total),
	}
}
