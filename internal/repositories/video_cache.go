package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// VideoCacheRepository implements models.Repository[*models.CachedVideo].
//
// Catalog entries are cached on every fetch so browsing and library export
// keep working when the metadata provider is unreachable. Entries are
// deduplicated by TMDB id.
type VideoCacheRepository struct {
	db *sql.DB
}

// NewVideoCacheRepository creates a new VideoCacheRepository with the given database connection
func NewVideoCacheRepository(db *sql.DB) *VideoCacheRepository {
	return &VideoCacheRepository{db: db}
}

// Create inserts a new [models.CachedVideo] with generated ID and sequence
func (r *VideoCacheRepository) Create(video *models.CachedVideo) error {
	sequence, err := NextSequence(r.db, "cached_videos")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	video.SetID(id)

	if err := video.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	v := video.Video()
	query := `
		INSERT INTO cached_videos (id, sequence, tmdb_id, title, overview, poster_path, rating, release_date, trailer_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		v.TMDBID,
		v.Title,
		v.Overview,
		v.PosterPath,
		v.Rating,
		v.ReleaseDate,
		v.TrailerKey,
		video.CreatedAt(),
		video.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cached video: %w", err)
	}

	return nil
}

// Get retrieves a cached video by ID, excluding soft-deleted entries
func (r *VideoCacheRepository) Get(id string) (*models.CachedVideo, error) {
	query := `
		SELECT id, sequence, tmdb_id, title, overview, poster_path, rating, release_date, trailer_key, created_at, updated_at, deleted_at
		FROM cached_videos
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByTMDBID retrieves a cached video by its catalog identity
func (r *VideoCacheRepository) GetByTMDBID(tmdbID int) (*models.CachedVideo, error) {
	query := `
		SELECT id, sequence, tmdb_id, title, overview, poster_path, rating, release_date, trailer_key, created_at, updated_at, deleted_at
		FROM cached_videos
		WHERE tmdb_id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, tmdbID))
}

// Update modifies an existing cached video
func (r *VideoCacheRepository) Update(video *models.CachedVideo) error {
	if err := video.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	video.SetUpdatedAt(now)

	v := video.Video()
	query := `
		UPDATE cached_videos
		SET title = ?, overview = ?, poster_path = ?, rating = ?, release_date = ?, trailer_key = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		v.Title,
		v.Overview,
		v.PosterPath,
		v.Rating,
		v.ReleaseDate,
		v.TrailerKey,
		now,
		video.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update cached video: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("cached video not found or already deleted: %s", video.ID())
	}

	return nil
}

// Delete soft-deletes a cached video by ID
func (r *VideoCacheRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE cached_videos
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete cached video: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("cached video not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves cached videos matching the given criteria, excluding soft-deleted entries
func (r *VideoCacheRepository) List(criteria map[string]any) ([]*models.CachedVideo, error) {
	query := `
		SELECT id, sequence, tmdb_id, title, overview, poster_path, rating, release_date, trailer_key, created_at, updated_at, deleted_at
		FROM cached_videos
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if title, ok := criteria["title"].(string); ok && title != "" {
		query += " AND title LIKE ?"
		args = append(args, "%"+title+"%")
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached videos: %w", err)
	}
	defer rows.Close()

	var videos []*models.CachedVideo
	for rows.Next() {
		video, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return videos, nil
}

func (r *VideoCacheRepository) scanOne(row *sql.Row) (*models.CachedVideo, error) {
	var (
		id          string
		sequence    int
		tmdbID      int
		title       string
		overview    sql.NullString
		posterPath  sql.NullString
		rating      sql.NullFloat64
		releaseDate sql.NullString
		trailerKey  sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &tmdbID, &title, &overview, &posterPath, &rating, &releaseDate, &trailerKey, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cached video not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cached video: %w", err)
	}

	return buildCachedVideo(id, sequence, tmdbID, title, overview, posterPath, rating, releaseDate, trailerKey, updatedAt, deletedAt), nil
}

func (r *VideoCacheRepository) scanRow(rows *sql.Rows) (*models.CachedVideo, error) {
	var (
		id          string
		sequence    int
		tmdbID      int
		title       string
		overview    sql.NullString
		posterPath  sql.NullString
		rating      sql.NullFloat64
		releaseDate sql.NullString
		trailerKey  sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &tmdbID, &title, &overview, &posterPath, &rating, &releaseDate, &trailerKey, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan cached video: %w", err)
	}

	return buildCachedVideo(id, sequence, tmdbID, title, overview, posterPath, rating, releaseDate, trailerKey, updatedAt, deletedAt), nil
}

func buildCachedVideo(id string, sequence, tmdbID int, title string, overview, posterPath sql.NullString, rating sql.NullFloat64, releaseDate, trailerKey sql.NullString, updatedAt time.Time, deletedAt sql.NullTime) *models.CachedVideo {
	dto := models.Video{
		ID:          fmt.Sprintf("%d", tmdbID),
		TMDBID:      tmdbID,
		Title:       title,
		Overview:    overview.String,
		PosterPath:  posterPath.String,
		Rating:      rating.Float64,
		ReleaseDate: releaseDate.String,
		TrailerKey:  trailerKey.String,
	}

	video := models.NewCachedVideo(sequence, dto)
	video.SetID(id)
	video.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		video.SetDeletedAt(&deletedAt.Time)
	}

	return video
}

// VideoCacheAdapter implements tasks.VideoCacher using VideoCacheRepository.
//
// Duplicate entries are refreshed in place; UNIQUE constraint violations on
// tmdb_id are treated as an update, not a failure.
type VideoCacheAdapter struct {
	repo *VideoCacheRepository
}

// NewVideoCacheAdapter creates a new VideoCacheAdapter with the given repository
func NewVideoCacheAdapter(repo *VideoCacheRepository) *VideoCacheAdapter {
	return &VideoCacheAdapter{repo: repo}
}

// CacheVideo caches a catalog entry, updating the stored copy when the entry
// already exists.
func (a *VideoCacheAdapter) CacheVideo(video models.Video) error {
	existing, err := a.repo.GetByTMDBID(video.TMDBID)
	if err == nil && existing != nil {
		existing.SetVideo(video)
		if err := a.repo.Update(existing); err != nil {
			return fmt.Errorf("failed to refresh cached video: %w", err)
		}
		return nil
	}

	cached := models.NewCachedVideo(0, video)
	if err := a.repo.Create(cached); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to cache video: %w", err)
	}

	return nil
}
