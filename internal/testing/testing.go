// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/vidx/internal/models"
)

// MockCatalog is a test double for [services.Catalog]
type MockCatalog struct {
	Videos []models.Video
	Detail *models.Video
	Err    error
}

func (m *MockCatalog) Popular(ctx context.Context, page int) ([]models.Video, error) {
	return m.Videos, m.Err
}

func (m *MockCatalog) Search(ctx context.Context, query string, genre, page int) ([]models.Video, error) {
	return m.Videos, m.Err
}

func (m *MockCatalog) Details(ctx context.Context, tmdbID int) (*models.Video, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Detail, nil
}

func (m *MockCatalog) TrailerKey(ctx context.Context, tmdbID int) (string, error) {
	return "", m.Err
}

func (m *MockCatalog) Name() string { return "mock" }

// MockFavorites is a test double for [services.Favorites] recording calls.
type MockFavorites struct {
	Added   []string
	Removed []string
	Listed  []models.FavoriteEdge
	Err     error
}

func (m *MockFavorites) AddFavorite(ctx context.Context, userID, videoID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Added = append(m.Added, videoID)
	return nil
}

func (m *MockFavorites) RemoveFavorite(ctx context.Context, userID, videoID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Removed = append(m.Removed, videoID)
	return nil
}

func (m *MockFavorites) ListFavorites(ctx context.Context, userID string) ([]models.FavoriteEdge, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Listed, nil
}

// StaticIdentity returns a fixed user, nil when signed out.
type StaticIdentity struct {
	User *models.User
}

func (s *StaticIdentity) CurrentUser() *models.User { return s.User }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
