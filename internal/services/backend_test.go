package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/vidx/internal/auth"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
	json "github.com/goccy/go-json"
)

const authOKBody = `{
	"ok": true,
	"message": "welcome",
	"user": {
		"id": "user-1",
		"email": "test@example.com",
		"user_metadata": {"first_name": "Test", "last_name": "User"}
	},
	"session": {
		"access_token": "access-1",
		"refresh_token": "refresh-1",
		"expires_at": 1735689600
	}
}`

func backendFor(t *testing.T, handler http.HandlerFunc) *BackendService {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw := NewGateway(srv.URL, srv.Client(), nil)
	gw.SetTokenSource(&fakeTokenSource{token: "tok-1", refreshed: "tok-1"})
	return NewBackendService(gw, nil)
}

func TestBackendServiceAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("Login", func(t *testing.T) {
		var gotPath string
		var gotBody map[string]string
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &gotBody)
			fmt.Fprint(w, authOKBody)
		})

		snap, err := backend.Login(ctx, "test@example.com", "password")
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}

		if gotPath != "/login" {
			t.Errorf("expected /login, got %s", gotPath)
		}
		// The backend expects these exact key casings.
		if gotBody["Email"] != "test@example.com" || gotBody["password"] != "password" {
			t.Errorf("unexpected request body: %v", gotBody)
		}

		if snap.User.ID != "user-1" || snap.User.FirstName != "Test" {
			t.Errorf("unexpected user: %+v", snap.User)
		}
		if snap.User.Provider != "local" {
			t.Errorf("expected provider local, got %s", snap.User.Provider)
		}
		if snap.Session.AccessToken != "access-1" {
			t.Errorf("unexpected access token: %s", snap.Session.AccessToken)
		}
		if want := time.Unix(1735689600, 0); !snap.Session.ExpiresAt.Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, snap.Session.ExpiresAt)
		}
	})

	t.Run("Register", func(t *testing.T) {
		var gotBody map[string]string
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &gotBody)
			fmt.Fprint(w, authOKBody)
		})

		_, err := backend.Register(ctx, auth.RegisterParams{
			FirstName: "Test",
			LastName:  "User",
			Email:     "test@example.com",
			Password:  "password",
		})
		if err != nil {
			t.Fatalf("register failed: %v", err)
		}

		if gotBody["FirstName"] != "Test" || gotBody["LastName"] != "User" {
			t.Errorf("unexpected request body: %v", gotBody)
		}
	})

	t.Run("GoogleLogin", func(t *testing.T) {
		var gotBody map[string]string
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &gotBody)
			fmt.Fprint(w, authOKBody)
		})

		snap, err := backend.GoogleLogin(ctx, "google-access")
		if err != nil {
			t.Fatalf("google login failed: %v", err)
		}
		if gotBody["token"] != "google-access" {
			t.Errorf("unexpected request body: %v", gotBody)
		}
		if snap.User.Provider != "google" {
			t.Errorf("expected provider google, got %s", snap.User.Provider)
		}
	})

	t.Run("RejectedEnvelope", func(t *testing.T) {
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"ok":false,"message":"invalid credentials"}`)
		})

		_, err := backend.Login(ctx, "test@example.com", "wrong")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("MissingSessionRejected", func(t *testing.T) {
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"ok":true,"user":{"id":"user-1","email":"t@e.com"}}`)
		})

		_, err := backend.Login(ctx, "test@example.com", "password")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("a half-populated envelope must fail, got %v", err)
		}
	})

	t.Run("SplitsFullNameMetadata", func(t *testing.T) {
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"ok": true,
				"user": {"id": "user-2", "email": "g@e.com", "user_metadata": {"name": "Ada Lovelace King"}},
				"session": {"access_token": "a", "refresh_token": "r", "expires_at": 1735689600}
			}`)
		})

		snap, err := backend.GoogleLogin(ctx, "tok")
		if err != nil {
			t.Fatalf("google login failed: %v", err)
		}
		if snap.User.FirstName != "Ada" || snap.User.LastName != "Lovelace King" {
			t.Errorf("unexpected name split: %q %q", snap.User.FirstName, snap.User.LastName)
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		var gotBody map[string]string
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &gotBody)
			fmt.Fprint(w, `{"ok":true,"session":{"access_token":"access-2","refresh_token":"refresh-2","expires_at":1735693200}}`)
		})

		sess, err := backend.Refresh(ctx, "refresh-1")
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if gotBody["refresh_token"] != "refresh-1" {
			t.Errorf("unexpected request body: %v", gotBody)
		}
		if sess.AccessToken != "access-2" || sess.RefreshToken != "refresh-2" {
			t.Errorf("unexpected session: %+v", sess)
		}
	})

	t.Run("RefreshMissingSession", func(t *testing.T) {
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"ok":true}`)
		})

		_, err := backend.Refresh(ctx, "refresh-1")
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})
}

func TestBackendServiceFavorites(t *testing.T) {
	ctx := context.Background()

	t.Run("AddFavorite", func(t *testing.T) {
		var gotMethod, gotPath string
		var gotBody map[string]string
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			gotMethod, gotPath = r.Method, r.URL.Path
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &gotBody)
			fmt.Fprint(w, `{"ok":true}`)
		})

		if err := backend.AddFavorite(ctx, "user-1", "603"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if gotMethod != http.MethodPost || gotPath != "/favorites" {
			t.Errorf("expected POST /favorites, got %s %s", gotMethod, gotPath)
		}
		if gotBody["userId"] != "user-1" || gotBody["videoId"] != "603" {
			t.Errorf("unexpected request body: %v", gotBody)
		}
	})

	t.Run("AddFavoriteConflictIsBenign", func(t *testing.T) {
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"ok":false,"message":"already favorited"}`)
		})

		if err := backend.AddFavorite(ctx, "user-1", "603"); err != nil {
			t.Errorf("conflict should be an acknowledgment, got %v", err)
		}
	})

	t.Run("RemoveFavorite", func(t *testing.T) {
		var gotMethod, gotPath string
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			gotMethod, gotPath = r.Method, r.URL.Path
			fmt.Fprint(w, `{"ok":true}`)
		})

		if err := backend.RemoveFavorite(ctx, "user-1", "603"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if gotMethod != http.MethodDelete || gotPath != "/favorites/user-1/603" {
			t.Errorf("expected DELETE /favorites/user-1/603, got %s %s", gotMethod, gotPath)
		}
	})

	t.Run("ListFavorites", func(t *testing.T) {
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/favorites/user-1" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			fmt.Fprint(w, `{"ok":true,"data":[
				{"userId":"user-1","videoId":"603","addedAt":"2026-01-02T10:00:00Z"},
				{"userId":"user-1","videoId":"604","addedAt":"2026-01-03T10:00:00Z"}
			]}`)
		})

		edges, err := backend.ListFavorites(ctx, "user-1")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(edges) != 2 {
			t.Fatalf("expected 2 edges, got %d", len(edges))
		}
		if edges[0].VideoID != "603" || edges[0].Pending != models.PendingConfirmed {
			t.Errorf("unexpected edge: %+v", edges[0])
		}
	})
}

func TestBackendServiceHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("AddWatchEvent", func(t *testing.T) {
		var gotBody map[string]string
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/watch-history" {
				t.Errorf("expected POST /watch-history, got %s %s", r.Method, r.URL.Path)
			}
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &gotBody)
			fmt.Fprint(w, `{"ok":true}`)
		})

		if err := backend.AddWatchEvent(ctx, "603"); err != nil {
			t.Fatalf("add watch event failed: %v", err)
		}
		if gotBody["videoId"] != "603" {
			t.Errorf("unexpected request body: %v", gotBody)
		}
	})

	t.Run("WatchHistory", func(t *testing.T) {
		backend := backendFor(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"ok":true,"data":[{"userId":"user-1","videoId":"603","watchedAt":"2026-02-01T20:00:00Z"}]}`)
		})

		events, err := backend.WatchHistory(ctx)
		if err != nil {
			t.Fatalf("watch history failed: %v", err)
		}
		if len(events) != 1 || events[0].VideoID != "603" {
			t.Errorf("unexpected events: %+v", events)
		}
	})
}
