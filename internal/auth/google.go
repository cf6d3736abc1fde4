package auth

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleProvider is the external OAuth identity provider.
//
// The CLI drives the authorization code flow through a temporary local
// callback server; the resulting token is emitted as a session event so the
// reconciler can exchange it with the backend. Google keeps no local session
// of its own, so CurrentSession always reports nothing.
type GoogleProvider struct {
	config *oauth2.Config
	events chan SessionEvent
}

var _ Provider = (*GoogleProvider)(nil)

// NewGoogleProvider creates a GoogleProvider with the given OAuth client.
func NewGoogleProvider(clientID, clientSecret, redirectURI string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		events: make(chan SessionEvent, 4),
	}
}

// Config returns the OAuth2 configuration for the callback handler.
func (p *GoogleProvider) Config() *oauth2.Config {
	return p.config
}

// AuthURL returns the authorization URL for the given state token.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// CurrentSession reports no session; the provider only speaks through events.
func (p *GoogleProvider) CurrentSession(ctx context.Context) (*SessionEvent, error) {
	return nil, nil
}

// Events returns the provider's session event stream.
func (p *GoogleProvider) Events() <-chan SessionEvent {
	return p.events
}

// EmitSignedIn publishes a sign-in event carrying the provider access token.
func (p *GoogleProvider) EmitSignedIn(token *oauth2.Token) {
	p.events <- SessionEvent{
		Kind:        SignedIn,
		AccessToken: token.AccessToken,
	}
}

// EmitSignedOut publishes a sign-out event.
func (p *GoogleProvider) EmitSignedOut() {
	p.events <- SessionEvent{Kind: SignedOut}
}
