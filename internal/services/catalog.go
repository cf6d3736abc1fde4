package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	tmdbDefaultBaseURL = "https://api.themoviedb.org/3"
	tmdbRequestsPerSec = 10
	tmdbMaxRetries     = 3
)

// movieResult is a TMDB movie object.
type movieResult struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	ReleaseDate string  `json:"release_date"`
}

// moviePage is a TMDB paginated listing.
type moviePage struct {
	Page         int           `json:"page"`
	Results      []movieResult `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// videoListing is the TMDB /movie/{id}/videos response.
type videoListing struct {
	Results []struct {
		Key  string `json:"key"`
		Site string `json:"site"`
		Type string `json:"type"`
	} `json:"results"`
}

// CatalogService is the TMDB client.
//
// Requests pass through a rate limiter and a circuit breaker; transient
// failures (5xx, network) are retried with exponential backoff, client errors
// are not. An open breaker surfaces as [shared.ErrServiceUnavailable] so the
// caller can fall back to the local video cache.
type CatalogService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *log.Logger
}

var _ Catalog = (*CatalogService)(nil)

// NewCatalogService creates a TMDB catalog client.
func NewCatalogService(apiKey, baseURL string, client *http.Client, logger *log.Logger) *CatalogService {
	if baseURL == "" {
		baseURL = tmdbDefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = logger.With("component", "catalog")

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name: "tmdb",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &CatalogService{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(tmdbRequestsPerSec), 1),
		breaker:    breaker,
		logger:     logger,
	}
}

// Name returns the catalog provider name.
func (c *CatalogService) Name() string { return "TMDB" }

// Popular retrieves a page of popular movies.
func (c *CatalogService) Popular(ctx context.Context, page int) ([]models.Video, error) {
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	payload, err := c.get(ctx, "/movie/popular", params)
	if err != nil {
		return nil, err
	}

	var listing moviePage
	if err := json.Unmarshal(payload, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode popular movies: %w", err)
	}

	return videosFromResults(listing.Results), nil
}

// Search retrieves movies matching a query. A non-zero genre filters the
// results after the fact; TMDB's search endpoint does not accept one.
func (c *CatalogService) Search(ctx context.Context, query string, genre, page int) ([]models.Video, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	if genre > 0 {
		params.Set("with_genres", strconv.Itoa(genre))
	}

	payload, err := c.get(ctx, "/search/movie", params)
	if err != nil {
		return nil, err
	}

	var listing moviePage
	if err := json.Unmarshal(payload, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	return videosFromResults(listing.Results), nil
}

// Details retrieves full metadata for a single movie.
func (c *CatalogService) Details(ctx context.Context, tmdbID int) (*models.Video, error) {
	payload, err := c.get(ctx, "/movie/"+strconv.Itoa(tmdbID), nil)
	if err != nil {
		return nil, err
	}

	var result movieResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode movie details: %w", err)
	}

	video := videoFromResult(result)
	return &video, nil
}

// TrailerKey returns the YouTube key of the movie's first trailer.
func (c *CatalogService) TrailerKey(ctx context.Context, tmdbID int) (string, error) {
	payload, err := c.get(ctx, fmt.Sprintf("/movie/%d/videos", tmdbID), nil)
	if err != nil {
		return "", err
	}

	var listing videoListing
	if err := json.Unmarshal(payload, &listing); err != nil {
		return "", fmt.Errorf("failed to decode video listing: %w", err)
	}

	for _, v := range listing.Results {
		if v.Site == "YouTube" && v.Type == "Trailer" {
			return v.Key, nil
		}
	}

	return "", nil
}

// get performs a rate-limited GET through the circuit breaker, retrying
// transient failures with exponential backoff.
func (c *CatalogService) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	payload, err := c.breaker.Execute(func() ([]byte, error) {
		operation := func() ([]byte, error) {
			return c.fetch(ctx, path, params)
		}

		expBackoff := backoff.NewExponentialBackOff()
		expBackoff.InitialInterval = 200 * time.Millisecond

		return backoff.Retry(ctx, operation,
			backoff.WithBackOff(expBackoff),
			backoff.WithMaxTries(tmdbMaxRetries),
			backoff.WithNotify(func(err error, next time.Duration) {
				c.logger.Debug("retrying catalog request", "path", path, "in", next, "error", err)
			}),
		)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: catalog circuit open", shared.ErrServiceUnavailable)
		}
		return nil, err
	}

	return payload, nil
}

// fetch performs one round trip. 5xx responses are returned as retryable
// errors, 4xx responses as permanent ones.
func (c *CatalogService) fetch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: catalog returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", shared.ErrVideoNotFound, path))
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, backoff.Permanent(fmt.Errorf("%w: catalog rejected api key", shared.ErrInvalidCredentials))
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(fmt.Errorf("%w: catalog returned status %d", shared.ErrAPIRequest, resp.StatusCode))
	}

	return payload, nil
}

func videosFromResults(results []movieResult) []models.Video {
	videos := make([]models.Video, 0, len(results))
	for _, r := range results {
		videos = append(videos, videoFromResult(r))
	}
	return videos
}

func videoFromResult(r movieResult) models.Video {
	return models.Video{
		ID:          strconv.Itoa(r.ID),
		TMDBID:      r.ID,
		Title:       r.Title,
		Overview:    r.Overview,
		PosterPath:  r.PosterPath,
		Rating:      r.VoteAverage,
		ReleaseDate: r.ReleaseDate,
	}
}
