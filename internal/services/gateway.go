package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/shared"
	json "github.com/goccy/go-json"
)

// defaultTimeout bounds every backend request; a request past it is treated
// as failed for rollback and refresh purposes.
const defaultTimeout = 15 * time.Second

// TokenSource supplies the bearer token for authenticated requests and
// refreshes it when a request comes back 401.
type TokenSource interface {
	AccessToken() string
	EnsureValidToken(ctx context.Context) (string, error)
}

// Gateway is the single HTTP client for the account backend.
//
// It attaches the current access token to every authenticated request and
// intercepts 401 responses centrally: the failed request is replayed at most
// once after a successful token refresh. Callers never see a raw 401.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *log.Logger
}

// NewGateway creates a Gateway for the backend at baseURL.
func NewGateway(baseURL string, client *http.Client, logger *log.Logger) *Gateway {
	if baseURL == "" {
		baseURL = "http://localhost:3000/vlms/user"
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Gateway{
		baseURL:    baseURL,
		httpClient: client,
		logger:     logger.With("component", "gateway"),
	}
}

// SetTokenSource wires the token source after construction; the refresh
// coordinator depends on a backend client that itself needs the gateway.
func (g *Gateway) SetTokenSource(tokens TokenSource) {
	g.tokens = tokens
}

// Do performs an authenticated JSON request, decoding the response into out.
//
// On a 401 the gateway asks the token source for a valid token (which
// collapses concurrent refreshes into one) and replays the request exactly
// once with the new token. A second 401 surfaces as an error.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	token := ""
	if g.tokens != nil {
		token = g.tokens.AccessToken()
	}

	status, payload, err := g.send(ctx, method, path, token, body)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && g.tokens != nil {
		newToken, refreshErr := g.tokens.EnsureValidToken(ctx)
		if refreshErr != nil {
			return refreshErr
		}

		g.logger.Debug("replaying request after refresh", "method", method, "path", path)
		status, payload, err = g.send(ctx, method, path, newToken, body)
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		return g.decodeError(status, payload)
	}

	return decodeInto(payload, out)
}

// DoPublic performs an unauthenticated JSON request (login, register,
// refresh). No token is attached and 401 responses are not intercepted.
func (g *Gateway) DoPublic(ctx context.Context, method, path string, body, out any) error {
	status, payload, err := g.send(ctx, method, path, "", body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return g.decodeError(status, payload)
	}
	return decodeInto(payload, out)
}

// send issues one HTTP round trip and returns the status and raw body.
func (g *Gateway) send(ctx context.Context, method, path, token string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrNetwork, err)
	}

	return resp.StatusCode, payload, nil
}

// errorPayload is the backend's error envelope.
type errorPayload struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

// decodeError maps a non-2xx response onto the sentinel error taxonomy.
func (g *Gateway) decodeError(status int, payload []byte) error {
	msg := "request failed"
	var envelope errorPayload
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Message != "" {
		msg = envelope.Message
	}

	var sentinel error
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = shared.ErrValidation
	case http.StatusUnauthorized:
		sentinel = shared.ErrTokenExpired
	case http.StatusForbidden:
		sentinel = shared.ErrAuthFailed
	case http.StatusNotFound:
		sentinel = shared.ErrVideoNotFound
	case http.StatusConflict:
		sentinel = shared.ErrAlreadyFavorited
	default:
		sentinel = shared.ErrAPIRequest
	}

	return fmt.Errorf("%w: %s (status %d)", sentinel, msg, status)
}

func decodeInto(payload []byte, out any) error {
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
