package session

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/vidx/internal/models"
)

// SQLiteStore persists the session snapshot in a single-row sqlite table so
// it survives process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a [SQLiteStore] backed by the given database connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load retrieves the stored snapshot. Returns (nil, nil) when no session is stored.
func (s *SQLiteStore) Load() (*Snapshot, error) {
	query := `
		SELECT access_token, refresh_token, expires_at, source,
		       user_id, email, first_name, last_name, provider
		FROM session_snapshot
		WHERE id = 1
	`

	var (
		accessToken  string
		refreshToken string
		expiresAt    sql.NullTime
		source       string
		userID       string
		email        string
		firstName    sql.NullString
		lastName     sql.NullString
		provider     string
	)

	err := s.db.QueryRow(query).Scan(
		&accessToken, &refreshToken, &expiresAt, &source,
		&userID, &email, &firstName, &lastName, &provider,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}

	snap := &Snapshot{
		Session: models.Session{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			Source:       models.SessionSource(source),
		},
		User: models.User{
			ID:        userID,
			Email:     email,
			FirstName: firstName.String,
			LastName:  lastName.String,
			Provider:  provider,
		},
	}
	if expiresAt.Valid {
		snap.Session.ExpiresAt = expiresAt.Time
	}

	return snap, nil
}

// Save replaces the stored snapshot. Delete and insert run in one transaction
// so a reader never observes tokens without the user snapshot.
func (s *SQLiteStore) Save(snap Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM session_snapshot WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to clear previous snapshot: %w", err)
	}

	query := `
		INSERT INTO session_snapshot
			(id, access_token, refresh_token, expires_at, source,
			 user_id, email, first_name, last_name, provider, saved_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var expiresAt any
	if !snap.Session.ExpiresAt.IsZero() {
		expiresAt = snap.Session.ExpiresAt
	}

	_, err = tx.Exec(query,
		snap.Session.AccessToken,
		snap.Session.RefreshToken,
		expiresAt,
		string(snap.Session.Source),
		snap.User.ID,
		snap.User.Email,
		snap.User.FirstName,
		snap.User.LastName,
		snap.User.Provider,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}

	return tx.Commit()
}

// Clear removes the stored snapshot.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM session_snapshot WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to clear session snapshot: %w", err)
	}
	return nil
}
