// package favorites keeps an optimistic, client-side view of the user's
// favorite set and reconciles it against the backend.
//
// Every toggle flips the local view immediately, tags the mutation with an
// intent number, and fires the network call in the background of the lock.
// When the call returns, its result is applied only if no newer toggle has
// superseded it; a failed call rolls the edge back to the snapshot taken
// before the flip.
package favorites

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/services"
	"github.com/desertthunder/vidx/internal/shared"
)

// Identity exposes the currently signed-in user, nil when signed out.
type Identity interface {
	CurrentUser() *models.User
}

// edge is the controller's internal record for one (user, video) pair.
type edge struct {
	confirmed bool
	pending   models.PendingState
	intent    uint64
	addedAt   time.Time
}

// effective is the state the UI should show: the optimistic target when a
// mutation is in flight, the confirmed state otherwise.
func (e *edge) effective() bool {
	switch e.pending {
	case models.PendingAdd:
		return true
	case models.PendingRemove:
		return false
	default:
		return e.confirmed
	}
}

// Controller owns the favorite set for whoever is signed in.
type Controller struct {
	mu       sync.Mutex
	edges    map[string]*edge
	identity Identity
	api      services.Favorites
	logger   *log.Logger
	subs     []chan struct{}
}

// NewController creates a Controller over the given identity and API.
func NewController(identity Identity, api services.Favorites, logger *log.Logger) *Controller {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Controller{
		edges:    make(map[string]*edge),
		identity: identity,
		api:      api,
		logger:   logger.With("component", "favorites"),
	}
}

// Toggle flips the favorite state of a video for the current user.
//
// Signed-out callers get [shared.ErrNotAuthenticated] without any local or
// network side effect. The local flip is visible before the network call
// starts; a failure restores the exact prior state, and a result that arrives
// after a newer toggle on the same video is discarded.
func (c *Controller) Toggle(ctx context.Context, videoID string) error {
	user := c.identity.CurrentUser()
	if user == nil {
		return fmt.Errorf("%w: sign in to manage favorites", shared.ErrNotAuthenticated)
	}

	c.mu.Lock()
	key := edgeKey(user.ID, videoID)
	e, ok := c.edges[key]
	if !ok {
		e = &edge{pending: models.PendingConfirmed}
		c.edges[key] = e
	}

	prior := *e
	target := !e.effective()
	if target {
		e.pending = models.PendingAdd
		if e.addedAt.IsZero() {
			e.addedAt = time.Now()
		}
	} else {
		e.pending = models.PendingRemove
	}
	e.intent++
	myIntent := e.intent
	c.mu.Unlock()

	c.notify()

	var err error
	if target {
		err = c.api.AddFavorite(ctx, user.ID, videoID)
	} else {
		err = c.api.RemoveFavorite(ctx, user.ID, videoID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok = c.edges[key]
	if !ok || e.intent != myIntent {
		// A newer toggle or a sign-out superseded this mutation.
		c.logger.Debug("discarding stale favorite result", "video", videoID)
		return nil
	}

	if err != nil {
		*e = prior
		c.notifyLocked()
		return fmt.Errorf("favorite toggle failed: %w", err)
	}

	e.confirmed = target
	e.pending = models.PendingConfirmed
	c.notifyLocked()
	return nil
}

// IsFavorited reports the effective favorite state of a video.
func (c *Controller) IsFavorited(videoID string) bool {
	user := c.identity.CurrentUser()
	if user == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.edges[edgeKey(user.ID, videoID)]
	return ok && e.effective()
}

// Edges returns the effective favorite edges for the current user, oldest
// first.
func (c *Controller) Edges() []models.FavoriteEdge {
	user := c.identity.CurrentUser()
	if user == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := user.ID + "\x00"
	out := make([]models.FavoriteEdge, 0, len(c.edges))
	for key, e := range c.edges {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if !e.effective() {
			continue
		}
		out = append(out, models.FavoriteEdge{
			UserID:  user.ID,
			VideoID: key[len(prefix):],
			AddedAt: e.addedAt,
			Pending: e.pending,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out
}

// Sync rebuilds the confirmed edge set from the backend.
//
// Edges with an in-flight mutation keep their optimistic state; everything
// else is replaced by the server's view.
func (c *Controller) Sync(ctx context.Context) error {
	user := c.identity.CurrentUser()
	if user == nil {
		return fmt.Errorf("%w: sign in to sync favorites", shared.ErrNotAuthenticated)
	}

	remote, err := c.api.ListFavorites(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("favorites sync failed: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := user.ID + "\x00"
	for key, e := range c.edges {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if e.pending == models.PendingConfirmed {
			delete(c.edges, key)
		}
	}

	for _, r := range remote {
		key := edgeKey(user.ID, r.VideoID)
		if existing, ok := c.edges[key]; ok && existing.pending != models.PendingConfirmed {
			continue
		}
		c.edges[key] = &edge{
			confirmed: true,
			pending:   models.PendingConfirmed,
			addedAt:   r.AddedAt,
		}
	}

	c.logger.Debug("favorites synced", "count", len(remote))
	c.notifyLocked()
	return nil
}

// Reset drops all local favorite state. Called on sign-out so the next
// user's view starts clean.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.edges = make(map[string]*edge)
	c.mu.Unlock()
	c.notify()
}

// Subscribe returns a channel that receives a tick whenever the favorite set
// changes. Slow consumers miss ticks rather than block mutations.
func (c *Controller) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

func (c *Controller) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyLocked()
}

func (c *Controller) notifyLocked() {
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func edgeKey(userID, videoID string) string {
	return userID + "\x00" + videoID
}
