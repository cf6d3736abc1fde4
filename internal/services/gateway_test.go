package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/vidx/internal/shared"
)

// fakeTokenSource scripts the gateway's refresh dependency.
type fakeTokenSource struct {
	token        string
	refreshed    string
	refreshErr   error
	refreshCalls atomic.Int64
}

func (f *fakeTokenSource) AccessToken() string { return f.token }

func (f *fakeTokenSource) EnsureValidToken(ctx context.Context) (string, error) {
	f.refreshCalls.Add(1)
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.token = f.refreshed
	return f.refreshed, nil
}

func TestGatewayDo(t *testing.T) {
	ctx := context.Background()

	t.Run("AttachesBearerToken", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			fmt.Fprint(w, `{"ok":true}`)
		}))
		defer srv.Close()

		gw := NewGateway(srv.URL, srv.Client(), nil)
		gw.SetTokenSource(&fakeTokenSource{token: "tok-1"})

		if err := gw.Do(ctx, http.MethodGet, "/ping", nil, nil); err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if gotAuth != "Bearer tok-1" {
			t.Errorf("expected bearer header, got %q", gotAuth)
		}
	})

	t.Run("ReplaysOnceAfterRefresh", func(t *testing.T) {
		var requests atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			if r.Header.Get("Authorization") != "Bearer tok-2" {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"ok":false,"message":"token expired"}`)
				return
			}
			fmt.Fprint(w, `{"ok":true,"value":42}`)
		}))
		defer srv.Close()

		tokens := &fakeTokenSource{token: "tok-1", refreshed: "tok-2"}
		gw := NewGateway(srv.URL, srv.Client(), nil)
		gw.SetTokenSource(tokens)

		var out struct {
			Value int `json:"value"`
		}
		if err := gw.Do(ctx, http.MethodGet, "/data", nil, &out); err != nil {
			t.Fatalf("request failed: %v", err)
		}

		if out.Value != 42 {
			t.Errorf("expected decoded value 42, got %d", out.Value)
		}
		if requests.Load() != 2 {
			t.Errorf("expected original + one replay, got %d requests", requests.Load())
		}
		if tokens.refreshCalls.Load() != 1 {
			t.Errorf("expected one refresh, got %d", tokens.refreshCalls.Load())
		}
	})

	t.Run("SecondUnauthorizedSurfaces", func(t *testing.T) {
		var requests atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"ok":false,"message":"still no"}`)
		}))
		defer srv.Close()

		gw := NewGateway(srv.URL, srv.Client(), nil)
		gw.SetTokenSource(&fakeTokenSource{token: "tok-1", refreshed: "tok-2"})

		err := gw.Do(ctx, http.MethodGet, "/data", nil, nil)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		if requests.Load() != 2 {
			t.Errorf("replay must happen at most once, got %d requests", requests.Load())
		}
	})

	t.Run("RefreshFailureShortCircuits", func(t *testing.T) {
		var requests atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		gw := NewGateway(srv.URL, srv.Client(), nil)
		gw.SetTokenSource(&fakeTokenSource{token: "tok-1", refreshErr: shared.ErrRefreshFailed})

		err := gw.Do(ctx, http.MethodGet, "/data", nil, nil)
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Fatalf("expected ErrRefreshFailed, got %v", err)
		}
		if requests.Load() != 1 {
			t.Errorf("failed refresh must not replay, got %d requests", requests.Load())
		}
	})

	t.Run("ErrorTaxonomy", func(t *testing.T) {
		cases := []struct {
			status int
			want   error
		}{
			{http.StatusBadRequest, shared.ErrValidation},
			{http.StatusUnprocessableEntity, shared.ErrValidation},
			{http.StatusForbidden, shared.ErrAuthFailed},
			{http.StatusNotFound, shared.ErrVideoNotFound},
			{http.StatusConflict, shared.ErrAlreadyFavorited},
			{http.StatusInternalServerError, shared.ErrAPIRequest},
		}

		for _, tc := range cases {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"ok":false,"message":"nope"}`)
			}))

			gw := NewGateway(srv.URL, srv.Client(), nil)
			err := gw.DoPublic(ctx, http.MethodGet, "/x", nil, nil)
			if !errors.Is(err, tc.want) {
				t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, err)
			}
			srv.Close()
		}
	})

	t.Run("PublicRequestsSkipInterception", func(t *testing.T) {
		var requests atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			if r.Header.Get("Authorization") != "" {
				t.Error("public request must not carry a token")
			}
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"ok":false,"message":"bad credentials"}`)
		}))
		defer srv.Close()

		tokens := &fakeTokenSource{token: "tok-1", refreshed: "tok-2"}
		gw := NewGateway(srv.URL, srv.Client(), nil)
		gw.SetTokenSource(tokens)

		err := gw.DoPublic(ctx, http.MethodPost, "/login", map[string]string{"Email": "a"}, nil)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected mapped 401 error, got %v", err)
		}
		if tokens.refreshCalls.Load() != 0 {
			t.Error("a public 401 must not trigger a refresh")
		}
		if requests.Load() != 1 {
			t.Errorf("public requests are never replayed, got %d", requests.Load())
		}
	})

	t.Run("NetworkError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // connection refused

		gw := NewGateway(srv.URL, nil, nil)
		err := gw.DoPublic(ctx, http.MethodGet, "/x", nil, nil)
		if !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
	})
}
