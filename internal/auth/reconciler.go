package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/session"
	"github.com/desertthunder/vidx/internal/shared"
)

// State enumerates the reconciler's auth states.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateError:
		return "error"
	default:
		return ""
	}
}

// RegisterParams carries the fields of a registration request.
type RegisterParams struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AccountAPI is the slice of the backend surface the reconciler drives.
type AccountAPI interface {
	Login(ctx context.Context, email, password string) (*session.Snapshot, error)
	Register(ctx context.Context, params RegisterParams) (*session.Snapshot, error)
	GoogleLogin(ctx context.Context, accessToken string) (*session.Snapshot, error)
}

// Update is pushed to subscribers on every state transition.
type Update struct {
	State State
	User  *models.User
}

// Reconciler merges the local credential flow and the external provider's
// events into one canonical (user, session) pair.
//
// Invariant: user and session are set together and cleared together; no
// observable state has one without the other. Each sign-in attempt is tagged
// with a monotonic counter, and a result is applied only if its counter is
// still current; a sign-out (or newer attempt) bumps the counter so stale
// exchange results are discarded rather than applied.
type Reconciler struct {
	mu      sync.Mutex
	state   State
	session *models.Session
	user    *models.User
	attempt uint64

	store  session.Store
	api    AccountAPI
	logger *log.Logger
	subs   []chan Update
}

// NewReconciler creates a Reconciler over the given store and backend API.
func NewReconciler(store session.Store, api AccountAPI, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reconciler{
		state:  StateUnauthenticated,
		store:  store,
		api:    api,
		logger: logger.With("component", "reconciler"),
	}
}

// Bootstrap establishes the initial session exactly once at process start.
//
// Precedence: a live provider session wins; otherwise whatever the store
// holds is adopted as authoritative until a later provider event contradicts
// it. Storage and provider failures log and resolve to unauthenticated.
func (r *Reconciler) Bootstrap(ctx context.Context, provider Provider) {
	if provider != nil {
		ev, err := provider.CurrentSession(ctx)
		if err != nil {
			r.logger.Warn("identity provider unreachable, falling back to stored session", "error", err)
		} else if ev != nil && ev.Kind == SignedIn {
			if err := r.HandleEvent(ctx, *ev); err != nil {
				r.logger.Warn("provider session rejected", "error", err)
			}
			return
		}
	}

	snap, err := r.store.Load()
	if err != nil {
		r.logger.Warn("failed to load stored session", "error", err)
		return
	}
	if snap == nil {
		return
	}
	if !snap.Session.Complete() || snap.User.ID == "" {
		r.logger.Warn("stored session incomplete, discarding")
		_ = r.store.Clear()
		return
	}

	r.mu.Lock()
	sess, user := snap.Session, snap.User
	r.session, r.user = &sess, &user
	r.setStateLocked(StateAuthenticated)
	r.mu.Unlock()
}

// Listen consumes provider events until the context is cancelled or the
// event stream closes.
func (r *Reconciler) Listen(ctx context.Context, provider Provider) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-provider.Events():
			if !ok {
				return
			}
			if err := r.HandleEvent(ctx, ev); err != nil {
				r.logger.Warn("provider event not applied", "event", ev.Kind, "error", err)
			}
		}
	}
}

// Login authenticates with the local email/password flow.
func (r *Reconciler) Login(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", shared.ErrValidation)
	}

	attempt := r.beginAttempt()
	snap, err := r.api.Login(ctx, email, password)
	if err != nil {
		r.abandonAttempt(attempt)
		return nil, err
	}
	return r.commit(attempt, snap, models.SourceLocal)
}

// Register creates an account with the local flow and signs in.
func (r *Reconciler) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	if params.Email == "" || params.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", shared.ErrValidation)
	}

	attempt := r.beginAttempt()
	snap, err := r.api.Register(ctx, params)
	if err != nil {
		r.abandonAttempt(attempt)
		return nil, err
	}
	return r.commit(attempt, snap, models.SourceLocal)
}

// HandleEvent applies one external provider event.
//
// SignedOut always wins: it clears the canonical pair unconditionally, even
// while an exchange for an earlier SignedIn is still in flight; that
// exchange's result will be discarded when it arrives.
func (r *Reconciler) HandleEvent(ctx context.Context, ev SessionEvent) error {
	switch ev.Kind {
	case SignedOut:
		r.Logout()
		return nil
	case SignedIn:
		return r.handleSignedIn(ctx, ev)
	default:
		return fmt.Errorf("%w: unknown provider event", shared.ErrInvalidInput)
	}
}

func (r *Reconciler) handleSignedIn(ctx context.Context, ev SessionEvent) error {
	attempt := r.beginAttempt()

	// OAuth wins on ambiguity: an access token takes the exchange path even
	// if an embedded session is also present.
	if ev.AccessToken != "" {
		snap, err := r.api.GoogleLogin(ctx, ev.AccessToken)
		if err != nil {
			r.abandonAttempt(attempt)
			return err
		}
		_, err = r.commit(attempt, snap, models.SourceOAuth)
		return err
	}

	if ev.Session == nil {
		r.abandonAttempt(attempt)
		return fmt.Errorf("%w: provider event carried neither token nor session", shared.ErrInvalidInput)
	}

	// Bare provider session: derive the user from the embedded identity
	// fields without a backend round trip.
	snap := &session.Snapshot{
		Session: models.Session{
			AccessToken:  ev.Session.AccessToken,
			RefreshToken: ev.Session.RefreshToken,
			ExpiresAt:    ev.Session.ExpiresAt,
		},
		User: models.User{
			ID:        ev.Session.UserID,
			Email:     ev.Session.Email,
			FirstName: ev.Session.FirstName,
			LastName:  ev.Session.LastName,
			Provider:  "google",
		},
	}
	_, err := r.commit(attempt, snap, models.SourceOAuth)
	return err
}

// Logout clears the canonical pair and the store unconditionally.
func (r *Reconciler) Logout() {
	r.mu.Lock()
	r.attempt++
	r.clearLocked()
	r.mu.Unlock()
}

// beginAttempt opens a new sign-in attempt and returns its counter value.
func (r *Reconciler) beginAttempt() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt++
	r.setStateLocked(StateAuthenticating)
	return r.attempt
}

// abandonAttempt resolves a failed attempt back to unauthenticated, unless a
// newer attempt or sign-out has already superseded it.
func (r *Reconciler) abandonAttempt(attempt uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempt != attempt || r.state != StateAuthenticating {
		return
	}
	// A failed re-login leaves any previous session untouched.
	if r.user != nil {
		r.setStateLocked(StateAuthenticated)
		return
	}
	r.setStateLocked(StateUnauthenticated)
}

// commit applies a resolved credential snapshot for the given attempt.
//
// The snapshot is persisted and adopted only if the attempt is still current.
// A snapshot missing either half resolves through StateError to
// unauthenticated, never to a half-populated pair.
func (r *Reconciler) commit(attempt uint64, snap *session.Snapshot, source models.SessionSource) (*models.User, error) {
	r.mu.Lock()

	if r.attempt != attempt {
		r.mu.Unlock()
		return nil, shared.ErrSignedOut
	}

	if snap == nil || !snap.Session.Complete() || snap.User.ID == "" {
		r.setStateLocked(StateError)
		r.clearLocked()
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: response missing user or session", shared.ErrAuthFailed)
	}

	sess := snap.Session
	sess.Source = source
	user := snap.User

	if err := r.store.Save(session.Snapshot{Session: sess, User: user}); err != nil {
		r.logger.Warn("failed to persist session", "error", err)
	}

	r.session, r.user = &sess, &user
	r.setStateLocked(StateAuthenticated)
	r.mu.Unlock()

	u := user
	return &u, nil
}

// State returns the current auth state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CurrentUser returns a copy of the resolved user, or nil when unauthenticated.
func (r *Reconciler) CurrentUser() *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user == nil {
		return nil
	}
	u := *r.user
	return &u
}

// CurrentSession returns a copy of the canonical session, or nil.
func (r *Reconciler) CurrentSession() *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	s := *r.session
	return &s
}

// AccessToken returns the current bearer token, or empty when unauthenticated.
func (r *Reconciler) AccessToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return ""
	}
	return r.session.AccessToken
}

// Subscribe returns a channel receiving every state transition.
//
// Delivery is best-effort: a full channel drops updates rather than blocking
// the reconciler.
func (r *Reconciler) Subscribe() <-chan Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan Update, 16)
	r.subs = append(r.subs, ch)
	return ch
}

// BeginRefresh marks the session as refreshing and returns the refresh token.
// Called by the [Coordinator] while it holds the single-flight ticket.
func (r *Reconciler) BeginRefresh() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil || r.session.RefreshToken == "" {
		return "", shared.ErrNoRefreshToken
	}
	r.setStateLocked(StateRefreshing)
	return r.session.RefreshToken, nil
}

// CompleteRefresh adopts a refreshed token pair. The store write happens
// before this method returns, so requests blocked on the refresh ticket are
// released strictly after the new credentials are persisted.
func (r *Reconciler) CompleteRefresh(sess models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.user == nil {
		// Signed out while the refresh was in flight; discard the result.
		return shared.ErrSignedOut
	}

	if sess.Source == "" || sess.Source == models.SourceNone {
		sess.Source = r.session.Source
	}

	if err := r.store.Save(session.Snapshot{Session: sess, User: *r.user}); err != nil {
		r.logger.Warn("failed to persist refreshed session", "error", err)
	}

	r.session = &sess
	r.setStateLocked(StateAuthenticated)
	return nil
}

// FailRefresh forces a complete logout after a failed refresh: credentials
// are wiped before any caller observes the failure.
func (r *Reconciler) FailRefresh() {
	r.mu.Lock()
	r.attempt++
	r.clearLocked()
	r.mu.Unlock()
}

// clearLocked wipes the canonical pair, the store, and resolves to
// unauthenticated. Caller holds the lock.
func (r *Reconciler) clearLocked() {
	r.session = nil
	r.user = nil
	if err := r.store.Clear(); err != nil {
		r.logger.Warn("failed to clear session store", "error", err)
	}
	r.setStateLocked(StateUnauthenticated)
}

// setStateLocked transitions state and notifies subscribers. Caller holds the lock.
func (r *Reconciler) setStateLocked(next State) {
	if r.state == next {
		return
	}
	r.state = next

	update := Update{State: next}
	if r.user != nil {
		u := *r.user
		update.User = &u
	}
	for _, ch := range r.subs {
		select {
		case ch <- update:
		default:
			// Subscriber fell behind, drop the update
		}
	}
}
