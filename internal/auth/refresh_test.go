package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/session"
	"github.com/desertthunder/vidx/internal/shared"
)

// fakeRefreshAPI scripts the refresh exchange. A non-nil gate blocks each
// call until closed, so tests can pile up concurrent callers.
type fakeRefreshAPI struct {
	sess  *models.Session
	err   error
	gate  chan struct{}
	calls atomic.Int64
}

func (f *fakeRefreshAPI) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

func refreshedSession() *models.Session {
	return &models.Session{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

// authenticatedReconciler returns a reconciler holding a live session, plus
// its backing store.
func authenticatedReconciler(t *testing.T) (*Reconciler, session.Store) {
	t.Helper()

	store := session.NewMemoryStore()
	rec := NewReconciler(store, &fakeAccountAPI{snap: validSnapshot()}, nil)
	if _, err := rec.Login(context.Background(), "test@example.com", "password"); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return rec, store
}

func TestCoordinatorRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("RotatesTokenPair", func(t *testing.T) {
		rec, store := authenticatedReconciler(t)
		coord := NewCoordinator(rec, &fakeRefreshAPI{sess: refreshedSession()}, nil)

		token, err := coord.EnsureValidToken(ctx)
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if token != "access-2" {
			t.Errorf("expected access-2, got %s", token)
		}
		if rec.State() != StateAuthenticated {
			t.Errorf("expected authenticated after refresh, got %s", rec.State())
		}

		// The rotated pair is persisted before callers are released.
		snap, err := store.Load()
		if err != nil || snap == nil {
			t.Fatal("refreshed session should be persisted")
		}
		if snap.Session.RefreshToken != "refresh-2" {
			t.Errorf("expected persisted refresh-2, got %s", snap.Session.RefreshToken)
		}
		if snap.Session.Source != models.SourceLocal {
			t.Errorf("refresh should preserve the session source, got %s", snap.Session.Source)
		}
	})

	t.Run("NoRefreshToken", func(t *testing.T) {
		rec := NewReconciler(session.NewMemoryStore(), &fakeAccountAPI{}, nil)
		coord := NewCoordinator(rec, &fakeRefreshAPI{sess: refreshedSession()}, nil)

		if _, err := coord.EnsureValidToken(ctx); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})

	t.Run("FailureForcesLogout", func(t *testing.T) {
		rec, store := authenticatedReconciler(t)
		api := &fakeRefreshAPI{err: errors.New("refresh token revoked")}
		coord := NewCoordinator(rec, api, nil)

		if _, err := coord.EnsureValidToken(ctx); !errors.Is(err, shared.ErrRefreshFailed) {
			t.Fatalf("expected ErrRefreshFailed, got %v", err)
		}

		if rec.CurrentUser() != nil || rec.CurrentSession() != nil {
			t.Error("failed refresh must clear the canonical pair")
		}
		if rec.State() != StateUnauthenticated {
			t.Errorf("expected unauthenticated, got %s", rec.State())
		}
		if snap, _ := store.Load(); snap != nil {
			t.Error("failed refresh must clear the store")
		}
	})

	t.Run("IncompleteResponseForcesLogout", func(t *testing.T) {
		rec, _ := authenticatedReconciler(t)
		api := &fakeRefreshAPI{sess: &models.Session{AccessToken: "only-half"}}
		coord := NewCoordinator(rec, api, nil)

		if _, err := coord.EnsureValidToken(ctx); !errors.Is(err, shared.ErrRefreshFailed) {
			t.Fatalf("expected ErrRefreshFailed, got %v", err)
		}
		if rec.CurrentUser() != nil {
			t.Error("incomplete refresh response must clear the canonical pair")
		}
	})

	t.Run("SignedOutDuringRefresh", func(t *testing.T) {
		rec, _ := authenticatedReconciler(t)
		gate := make(chan struct{})
		api := &fakeRefreshAPI{sess: refreshedSession(), gate: gate}
		coord := NewCoordinator(rec, api, nil)

		result := make(chan error, 1)
		go func() {
			_, err := coord.EnsureValidToken(ctx)
			result <- err
		}()

		deadline := time.After(2 * time.Second)
		for api.calls.Load() == 0 {
			select {
			case <-deadline:
				t.Fatal("refresh never started")
			default:
				time.Sleep(time.Millisecond)
			}
		}

		rec.Logout()
		close(gate)

		if err := <-result; !errors.Is(err, shared.ErrSignedOut) {
			t.Fatalf("refresh completing after sign-out should be discarded, got %v", err)
		}
		if rec.CurrentSession() != nil {
			t.Error("discarded refresh must not resurrect the session")
		}
	})
}

func TestCoordinatorSingleFlight(t *testing.T) {
	ctx := context.Background()
	rec, _ := authenticatedReconciler(t)

	gate := make(chan struct{})
	api := &fakeRefreshAPI{sess: refreshedSession(), gate: gate}
	coord := NewCoordinator(rec, api, nil)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = coord.EnsureValidToken(ctx)
		}(i)
	}

	// Let every caller reach the coordinator while the exchange is blocked.
	deadline := time.After(2 * time.Second)
	for api.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("refresh never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := api.calls.Load(); got != 1 {
		t.Errorf("expected exactly one refresh call, got %d", got)
	}
	for i := range callers {
		if errs[i] != nil {
			t.Errorf("caller %d failed: %v", i, errs[i])
		}
		if tokens[i] != "access-2" {
			t.Errorf("caller %d got token %s, want access-2", i, tokens[i])
		}
	}
}
