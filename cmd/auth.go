package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/vidx/internal/auth"
	"github.com/desertthunder/vidx/internal/server"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin signs in with email and password.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	email := cmd.String("email")
	password := cmd.String("password")

	r.logger.Info("signing in", "email", email)

	user, err := r.rec.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	return r.writePlain("✓ Signed in as %s\n", user.DisplayName())
}

// AuthRegister creates an account and signs in.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	params := auth.RegisterParams{
		FirstName: cmd.String("first-name"),
		LastName:  cmd.String("last-name"),
		Email:     cmd.String("email"),
		Password:  cmd.String("password"),
	}

	r.logger.Info("registering account", "email", params.Email)

	user, err := r.rec.Register(ctx, params)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	return r.writePlain("✓ Account created, signed in as %s\n", user.DisplayName())
}

// AuthGoogle runs the Google OAuth2 flow and exchanges the token with the backend.
func (r *Runner) AuthGoogle(ctx context.Context, cmd *cli.Command) error {
	if r.config.Credentials.Google.ClientID == "" {
		return fmt.Errorf("%w: google client credentials not configured", shared.ErrMissingCredentials)
	}

	token, err := r.doOAuth(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("exchanging provider token with backend")
	if err := r.rec.HandleEvent(ctx, auth.SessionEvent{
		Kind:        auth.SignedIn,
		AccessToken: token.AccessToken,
	}); err != nil {
		return fmt.Errorf("google sign-in failed: %w", err)
	}

	user := r.rec.CurrentUser()
	if user == nil {
		return fmt.Errorf("%w: no user after google sign-in", shared.ErrAuthFailed)
	}

	return r.writePlain("✓ Signed in with Google as %s\n", user.DisplayName())
}

// AuthLogout signs out and clears the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	r.rec.Logout()
	r.favorites.Reset()
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus shows the current authentication state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	state := r.rec.State()
	user := r.rec.CurrentUser()
	sess := r.rec.CurrentSession()

	r.writePlain("State: %s\n", state)

	if user == nil {
		return r.writePlain("Authentication: ✗ Not signed in\n")
	}

	r.writePlain("Authentication: ✓ Signed in\n")
	r.writePlain("User: %s <%s>\n", user.DisplayName(), user.Email)
	r.writePlain("Provider: %s\n", user.Provider)
	if sess != nil && !sess.ExpiresAt.IsZero() {
		r.writePlain("Token expires: %s\n", sess.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := r.google.AuthURL(state)
	oauthHandler := server.NewOAuthHandler(r.google.Config(), state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Google sign-in...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}
