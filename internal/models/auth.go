package models

import "time"

// SessionSource identifies which credential flow produced the canonical session.
type SessionSource string

const (
	SourceLocal SessionSource = "local"
	SourceOAuth SessionSource = "oauth"
	SourceNone  SessionSource = "none"
)

// Session is the canonical credential pair issued by the account backend.
//
// Tokens are opaque bearer strings; the client never inspects them.
type Session struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Source       SessionSource `json:"source"`
}

// Complete reports whether both tokens of the pair are present.
func (s Session) Complete() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// User is the identity resolved from whichever credential source last succeeded.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Provider  string `json:"provider"` // "local" or "google"
}

// DisplayName returns the user's name, falling back to the email address.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// PendingState tracks where a favorite mutation stands between the local flip
// and server acknowledgment.
type PendingState string

const (
	PendingConfirmed PendingState = "confirmed"
	PendingAdd       PendingState = "optimistic-add"
	PendingRemove    PendingState = "optimistic-remove"
)

// FavoriteEdge links a user to a favorited video.
type FavoriteEdge struct {
	UserID  string       `json:"userId"`
	VideoID string       `json:"videoId"`
	AddedAt time.Time    `json:"addedAt"`
	Pending PendingState `json:"pendingState"`
}
