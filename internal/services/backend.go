// Account backend client
//
// Request and response shapes follow the backend's user routes: login,
// register, google-login, refresh, favorites, watch-history.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/auth"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/session"
	"github.com/desertthunder/vidx/internal/shared"
)

// sessionPayload mirrors the backend's session object.
type sessionPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
}

// userPayload mirrors the backend's user object.
type userPayload struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Name      string `json:"name"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"user_metadata"`
}

// authResponse is the envelope of every auth endpoint.
type authResponse struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message"`
	User    *userPayload    `json:"user"`
	Session *sessionPayload `json:"session"`
}

// favoritesResponse is the envelope of the favorites listing endpoint.
type favoritesResponse struct {
	OK   bool                  `json:"ok"`
	Data []favoriteEdgePayload `json:"data"`
}

type favoriteEdgePayload struct {
	UserID  string    `json:"userId"`
	VideoID string    `json:"videoId"`
	AddedAt time.Time `json:"addedAt"`
}

type historyResponse struct {
	OK   bool                `json:"ok"`
	Data []watchEventPayload `json:"data"`
}

type watchEventPayload struct {
	UserID    string    `json:"userId"`
	VideoID   string    `json:"videoId"`
	WatchedAt time.Time `json:"watchedAt"`
}

// BackendService talks to the account backend through the [Gateway].
//
// Implements [auth.AccountAPI], [auth.RefreshAPI], [Favorites] and [History].
type BackendService struct {
	gw     *Gateway
	logger *log.Logger
}

var (
	_ auth.AccountAPI = (*BackendService)(nil)
	_ auth.RefreshAPI = (*BackendService)(nil)
	_ Favorites       = (*BackendService)(nil)
	_ History         = (*BackendService)(nil)
)

// NewBackendService creates a BackendService over the given gateway.
func NewBackendService(gw *Gateway, logger *log.Logger) *BackendService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &BackendService{gw: gw, logger: logger.With("component", "backend")}
}

// Login authenticates with email and password.
func (b *BackendService) Login(ctx context.Context, email, password string) (*session.Snapshot, error) {
	body := map[string]string{"Email": email, "password": password}

	var resp authResponse
	if err := b.gw.DoPublic(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return nil, err
	}

	return snapshotFromResponse(&resp, "local")
}

// Register creates an account and signs in.
func (b *BackendService) Register(ctx context.Context, params auth.RegisterParams) (*session.Snapshot, error) {
	body := map[string]string{
		"FirstName": params.FirstName,
		"LastName":  params.LastName,
		"Email":     params.Email,
		"password":  params.Password,
	}

	var resp authResponse
	if err := b.gw.DoPublic(ctx, http.MethodPost, "/register", body, &resp); err != nil {
		return nil, err
	}

	return snapshotFromResponse(&resp, "local")
}

// GoogleLogin exchanges an external provider access token for a local session.
func (b *BackendService) GoogleLogin(ctx context.Context, accessToken string) (*session.Snapshot, error) {
	body := map[string]string{"token": accessToken}

	var resp authResponse
	if err := b.gw.DoPublic(ctx, http.MethodPost, "/google-login", body, &resp); err != nil {
		return nil, err
	}

	return snapshotFromResponse(&resp, "google")
}

// Refresh exchanges a refresh token for a new session pair.
func (b *BackendService) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var resp authResponse
	if err := b.gw.DoPublic(ctx, http.MethodPost, "/refresh", body, &resp); err != nil {
		return nil, err
	}
	if resp.Session == nil {
		return nil, fmt.Errorf("%w: refresh response missing session", shared.ErrRefreshFailed)
	}

	sess := sessionFromPayload(resp.Session)
	return &sess, nil
}

// AddFavorite adds a video to a user's favorites.
//
// Adding an already-favorited video is not an error: the backend's conflict
// response is treated as an acknowledgment.
func (b *BackendService) AddFavorite(ctx context.Context, userID, videoID string) error {
	body := map[string]string{"userId": userID, "videoId": videoID}

	err := b.gw.Do(ctx, http.MethodPost, "/favorites", body, nil)
	if errors.Is(err, shared.ErrAlreadyFavorited) {
		b.logger.Debug("favorite already present", "video", videoID)
		return nil
	}
	return err
}

// RemoveFavorite removes a video from a user's favorites.
func (b *BackendService) RemoveFavorite(ctx context.Context, userID, videoID string) error {
	path := fmt.Sprintf("/favorites/%s/%s", userID, videoID)
	return b.gw.Do(ctx, http.MethodDelete, path, nil, nil)
}

// ListFavorites retrieves a user's confirmed favorites.
func (b *BackendService) ListFavorites(ctx context.Context, userID string) ([]models.FavoriteEdge, error) {
	var resp favoritesResponse
	if err := b.gw.Do(ctx, http.MethodGet, "/favorites/"+userID, nil, &resp); err != nil {
		return nil, err
	}

	edges := make([]models.FavoriteEdge, 0, len(resp.Data))
	for _, e := range resp.Data {
		edges = append(edges, models.FavoriteEdge{
			UserID:  e.UserID,
			VideoID: e.VideoID,
			AddedAt: e.AddedAt,
			Pending: models.PendingConfirmed,
		})
	}

	return edges, nil
}

// AddWatchEvent records that the current user played a video.
func (b *BackendService) AddWatchEvent(ctx context.Context, videoID string) error {
	return b.gw.Do(ctx, http.MethodPost, "/watch-history", map[string]string{"videoId": videoID}, nil)
}

// WatchHistory retrieves the current user's watch history.
func (b *BackendService) WatchHistory(ctx context.Context) ([]models.WatchEvent, error) {
	var resp historyResponse
	if err := b.gw.Do(ctx, http.MethodGet, "/watch-history", nil, &resp); err != nil {
		return nil, err
	}

	events := make([]models.WatchEvent, 0, len(resp.Data))
	for _, e := range resp.Data {
		events = append(events, models.WatchEvent{
			UserID:    e.UserID,
			VideoID:   e.VideoID,
			WatchedAt: e.WatchedAt,
		})
	}

	return events, nil
}

// snapshotFromResponse validates and converts an auth envelope.
//
// A response missing either the user or the session never yields a partial
// snapshot; the reconciler treats the error as a failed authentication.
func snapshotFromResponse(resp *authResponse, provider string) (*session.Snapshot, error) {
	if !resp.OK {
		msg := resp.Message
		if msg == "" {
			msg = "authentication rejected"
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrAuthFailed, msg)
	}
	if resp.User == nil || resp.Session == nil {
		return nil, fmt.Errorf("%w: response missing user or session", shared.ErrAuthFailed)
	}

	firstName := resp.User.UserMetadata.FirstName
	lastName := resp.User.UserMetadata.LastName
	if firstName == "" && resp.User.UserMetadata.Name != "" {
		firstName, lastName = splitName(resp.User.UserMetadata.Name)
	}

	return &session.Snapshot{
		Session: sessionFromPayload(resp.Session),
		User: models.User{
			ID:        resp.User.ID,
			Email:     resp.User.Email,
			FirstName: firstName,
			LastName:  lastName,
			Provider:  provider,
		},
	}, nil
}

func sessionFromPayload(p *sessionPayload) models.Session {
	sess := models.Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
	if p.ExpiresAt > 0 {
		sess.ExpiresAt = time.Unix(p.ExpiresAt, 0)
	}
	return sess
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
