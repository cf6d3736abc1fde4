package auth

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
	"golang.org/x/sync/singleflight"
)

// RefreshAPI exchanges a refresh token for a new session pair.
type RefreshAPI interface {
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
}

// Sink is the reconciler surface the coordinator drives during a refresh.
type Sink interface {
	AccessToken() string
	BeginRefresh() (string, error)
	CompleteRefresh(sess models.Session) error
	FailRefresh()
}

// Coordinator serializes token refresh: any number of concurrent callers
// hitting an expired token collapse into exactly one refresh call, and every
// caller shares its outcome.
//
// Callers blocked on an in-flight refresh are released only after the new
// pair has been persisted (CompleteRefresh returns before the shared result
// does), so no replayed request races ahead of the credential update.
type Coordinator struct {
	group  singleflight.Group
	sink   Sink
	api    RefreshAPI
	logger *log.Logger
}

// NewCoordinator creates a refresh Coordinator over the given sink and API.
func NewCoordinator(sink Sink, api RefreshAPI, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Coordinator{
		sink:   sink,
		api:    api,
		logger: logger.With("component", "refresh"),
	}
}

// AccessToken returns the current bearer token without refreshing.
func (c *Coordinator) AccessToken() string {
	return c.sink.AccessToken()
}

// EnsureValidToken refreshes the session and returns the new access token.
//
// Invoked after a request observed a 401. Single-flight: overlapping calls
// share one refresh operation. A failed refresh forces a complete logout
// before the error is surfaced.
func (c *Coordinator) EnsureValidToken(ctx context.Context) (string, error) {
	token, err, joined := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	if joined {
		c.logger.Debug("refresh result shared with concurrent caller")
	}
	return token.(string), nil
}

func (c *Coordinator) refresh(ctx context.Context) (string, error) {
	refreshToken, err := c.sink.BeginRefresh()
	if err != nil {
		return "", err
	}

	sess, err := c.api.Refresh(ctx, refreshToken)
	if err != nil {
		c.logger.Warn("token refresh failed, forcing logout", "error", err)
		c.sink.FailRefresh()
		return "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if sess == nil || !sess.Complete() {
		c.sink.FailRefresh()
		return "", fmt.Errorf("%w: refresh response missing token pair", shared.ErrRefreshFailed)
	}

	if err := c.sink.CompleteRefresh(*sess); err != nil {
		return "", err
	}

	return sess.AccessToken, nil
}
