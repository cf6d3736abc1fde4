package models

import (
	"fmt"
	"time"
)

// Video represents a catalog entry from the metadata provider.
type Video struct {
	ID          string  `json:"id"` // Backend video identifier (stringified TMDB id)
	TMDBID      int     `json:"tmdb_id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview,omitempty"`
	PosterPath  string  `json:"poster_path,omitempty"`
	Rating      float64 `json:"rating"`
	ReleaseDate string  `json:"release_date,omitempty"`
	TrailerKey  string  `json:"trailer_key,omitempty"`
}

// LibraryEntry pairs a favorited edge with its catalog metadata.
type LibraryEntry struct {
	Edge  FavoriteEdge `json:"edge"`
	Video *Video       `json:"video,omitempty"` // nil when catalog lookup failed
}

// Library is a user's favorites enriched with catalog metadata.
type Library struct {
	User    User           `json:"user"`
	Entries []LibraryEntry `json:"entries"`
}

// WatchEvent is one watch-history record as returned by the backend.
type WatchEvent struct {
	UserID    string    `json:"userId"`
	VideoID   string    `json:"videoId"`
	WatchedAt time.Time `json:"watchedAt"`
}

// CachedVideo is the persisted form of a catalog entry.
type CachedVideo struct {
	id        string
	sequence  int
	video     Video
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewCachedVideo creates a CachedVideo wrapping the given catalog entry.
func NewCachedVideo(sequence int, video Video) *CachedVideo {
	now := time.Now()
	return &CachedVideo{
		sequence:  sequence,
		video:     video,
		createdAt: now,
		updatedAt: now,
	}
}

func (c *CachedVideo) ID() string           { return c.id }
func (c *CachedVideo) Sequence() int        { return c.sequence }
func (c *CachedVideo) Video() Video         { return c.video }
func (c *CachedVideo) CreatedAt() time.Time { return c.createdAt }
func (c *CachedVideo) UpdatedAt() time.Time { return c.updatedAt }
func (c *CachedVideo) DeletedAt() *time.Time {
	return c.deletedAt
}

func (c *CachedVideo) SetID(id string)           { c.id = id }
func (c *CachedVideo) SetUpdatedAt(t time.Time)  { c.updatedAt = t }
func (c *CachedVideo) SetDeletedAt(t *time.Time) { c.deletedAt = t }
func (c *CachedVideo) SetVideo(v Video)          { c.video = v }

// Validate checks the cached entry has a catalog identity and title.
func (c *CachedVideo) Validate() error {
	if c.video.TMDBID == 0 {
		return fmt.Errorf("cached video requires a tmdb id")
	}
	if c.video.Title == "" {
		return fmt.Errorf("cached video requires a title")
	}
	return nil
}

// HistoryEntry is a persisted watch-history record.
type HistoryEntry struct {
	id        string
	sequence  int
	userID    string
	videoID   string
	watchedAt time.Time
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewHistoryEntry creates a HistoryEntry for the given user and video.
func NewHistoryEntry(sequence int, userID, videoID string, watchedAt time.Time) *HistoryEntry {
	now := time.Now()
	if watchedAt.IsZero() {
		watchedAt = now
	}
	return &HistoryEntry{
		sequence:  sequence,
		userID:    userID,
		videoID:   videoID,
		watchedAt: watchedAt,
		createdAt: now,
		updatedAt: now,
	}
}

func (h *HistoryEntry) ID() string            { return h.id }
func (h *HistoryEntry) Sequence() int         { return h.sequence }
func (h *HistoryEntry) UserID() string        { return h.userID }
func (h *HistoryEntry) VideoID() string       { return h.videoID }
func (h *HistoryEntry) WatchedAt() time.Time  { return h.watchedAt }
func (h *HistoryEntry) CreatedAt() time.Time  { return h.createdAt }
func (h *HistoryEntry) UpdatedAt() time.Time  { return h.updatedAt }
func (h *HistoryEntry) DeletedAt() *time.Time { return h.deletedAt }

func (h *HistoryEntry) SetID(id string)           { h.id = id }
func (h *HistoryEntry) SetUpdatedAt(t time.Time)  { h.updatedAt = t }
func (h *HistoryEntry) SetDeletedAt(t *time.Time) { h.deletedAt = t }
func (h *HistoryEntry) SetWatchedAt(t time.Time)  { h.watchedAt = t }

// Validate checks the entry references both a user and a video.
func (h *HistoryEntry) Validate() error {
	if h.userID == "" {
		return fmt.Errorf("history entry requires a user id")
	}
	if h.videoID == "" {
		return fmt.Errorf("history entry requires a video id")
	}
	return nil
}
