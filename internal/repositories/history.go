package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// HistoryRepository implements models.Repository[*models.HistoryEntry].
//
// Mirrors the backend's watch history locally so the `history` command works
// offline with the last synced view.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create inserts a new [models.HistoryEntry] with generated ID and sequence
func (r *HistoryRepository) Create(entry *models.HistoryEntry) error {
	sequence, err := NextSequence(r.db, "watch_history")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	entry.SetID(id)

	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO watch_history (id, sequence, user_id, video_id, watched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		entry.UserID(),
		entry.VideoID(),
		entry.WatchedAt(),
		entry.CreatedAt(),
		entry.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	return nil
}

// Get retrieves a history entry by ID, excluding soft-deleted entries
func (r *HistoryRepository) Get(id string) (*models.HistoryEntry, error) {
	query := `
		SELECT id, sequence, user_id, video_id, watched_at, created_at, updated_at, deleted_at
		FROM watch_history
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// Update modifies an existing history entry
func (r *HistoryRepository) Update(entry *models.HistoryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	entry.SetUpdatedAt(now)

	query := `
		UPDATE watch_history
		SET watched_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, entry.WatchedAt(), now, entry.ID())
	if err != nil {
		return fmt.Errorf("failed to update history entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("history entry not found or already deleted: %s", entry.ID())
	}

	return nil
}

// Delete soft-deletes a history entry by ID
func (r *HistoryRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE watch_history
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("history entry not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves history entries matching the given criteria, newest first
func (r *HistoryRepository) List(criteria map[string]any) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, sequence, user_id, video_id, watched_at, created_at, updated_at, deleted_at
		FROM watch_history
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	if videoID, ok := criteria["video_id"].(string); ok && videoID != "" {
		query += " AND video_id = ?"
		args = append(args, videoID)
	}

	query += " ORDER BY watched_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query watch history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		entry, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

func (r *HistoryRepository) scanOne(row *sql.Row) (*models.HistoryEntry, error) {
	var (
		id        string
		sequence  int
		userID    string
		videoID   string
		watchedAt time.Time
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &userID, &videoID, &watchedAt, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("history entry not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	entry := models.NewHistoryEntry(sequence, userID, videoID, watchedAt)
	entry.SetID(id)
	entry.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		entry.SetDeletedAt(&deletedAt.Time)
	}

	return entry, nil
}

func (r *HistoryRepository) scanRow(rows *sql.Rows) (*models.HistoryEntry, error) {
	var (
		id        string
		sequence  int
		userID    string
		videoID   string
		watchedAt time.Time
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &userID, &videoID, &watchedAt, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	entry := models.NewHistoryEntry(sequence, userID, videoID, watchedAt)
	entry.SetID(id)
	entry.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		entry.SetDeletedAt(&deletedAt.Time)
	}

	return entry, nil
}
