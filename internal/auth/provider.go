// Package auth reconciles two credential sources into one canonical session.
//
// The account backend issues a local token pair on login/register, while an
// external identity provider (Google) emits sign-in/sign-out events of its
// own. The [Reconciler] is the single writer of the canonical (user, session)
// pair; every other component reads it or requests transitions through the
// reconciler's methods. The [Coordinator] owns token refresh and guarantees
// it is single-flight.
package auth

import (
	"context"
	"time"
)

// EventKind enumerates external identity provider events.
type EventKind int

const (
	SignedIn EventKind = iota
	SignedOut
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "SIGNED_IN"
	case SignedOut:
		return "SIGNED_OUT"
	default:
		return ""
	}
}

// ProviderSession is an identity session embedded in a provider event.
//
// Emitted for email/password-style provider sessions that carry the resolved
// identity directly, with no backend exchange required.
type ProviderSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	Email        string
	FirstName    string
	LastName     string
}

// SessionEvent is one event from the external identity provider.
//
// A SignedIn event carries either an OAuth access token (to be exchanged with
// the backend for a local session) or an embedded [ProviderSession]. When both
// are present the access token wins and the exchange path is taken.
type SessionEvent struct {
	Kind        EventKind
	AccessToken string
	Session     *ProviderSession
}

// Provider is the consumed contract of the external identity provider: a
// one-shot session query used at startup and an event stream thereafter.
type Provider interface {
	CurrentSession(ctx context.Context) (*SessionEvent, error) // nil event when no provider session exists
	Events() <-chan SessionEvent
}
