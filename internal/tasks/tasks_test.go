package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
	vtest "github.com/desertthunder/vidx/internal/testing"
)

// fakeFavorites serves scripted edges and records sync calls.
type fakeFavorites struct {
	edges   []models.FavoriteEdge
	syncErr error
	synced  int
}

func (f *fakeFavorites) Sync(ctx context.Context) error {
	f.synced++
	return f.syncErr
}

func (f *fakeFavorites) Edges() []models.FavoriteEdge { return f.edges }

// fakeHistory serves scripted watch events.
type fakeHistory struct {
	events []models.WatchEvent
	err    error
	logged []string
}

func (f *fakeHistory) AddWatchEvent(ctx context.Context, videoID string) error {
	f.logged = append(f.logged, videoID)
	return f.err
}

func (f *fakeHistory) WatchHistory(ctx context.Context) ([]models.WatchEvent, error) {
	return f.events, f.err
}

// recordingCacher collects cached videos, optionally failing.
type recordingCacher struct {
	cached []models.Video
	err    error
}

func (r *recordingCacher) CacheVideo(video models.Video) error {
	if r.err != nil {
		return r.err
	}
	r.cached = append(r.cached, video)
	return nil
}

// recordingMirror collects mirrored history entries.
type recordingMirror struct {
	entries []*models.HistoryEntry
	err     error
}

func (r *recordingMirror) Create(entry *models.HistoryEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func identity() *vtest.StaticIdentity {
	return &vtest.StaticIdentity{User: &models.User{ID: "user-1", FirstName: "Test"}}
}

func sampleEdges() []models.FavoriteEdge {
	return []models.FavoriteEdge{
		{UserID: "user-1", VideoID: "603", AddedAt: time.Now().Add(-2 * time.Hour)},
		{UserID: "user-1", VideoID: "604", AddedAt: time.Now().Add(-time.Hour)},
	}
}

func TestEngineBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("AssemblesLibrary", func(t *testing.T) {
		favorites := &fakeFavorites{edges: sampleEdges()}
		catalog := &vtest.MockCatalog{Detail: &models.Video{ID: "603", TMDBID: 603, Title: "The Matrix"}}
		engine := NewEngine(identity(), favorites, catalog, &fakeHistory{})

		result, err := engine.Build(ctx, nil)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}

		if favorites.synced != 1 {
			t.Errorf("expected one favorites sync, got %d", favorites.synced)
		}
		if result.TotalEntries != 2 || result.EnrichedCount != 2 || result.FailedCount != 0 {
			t.Errorf("unexpected counts: %+v", result)
		}
		if result.Library.User.ID != "user-1" {
			t.Errorf("unexpected library user: %+v", result.Library.User)
		}
		if len(result.Library.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(result.Library.Entries))
		}
		if result.Library.Entries[0].Video == nil {
			t.Error("expected enriched entry")
		}
	})

	t.Run("SignedOutGuard", func(t *testing.T) {
		engine := NewEngine(&vtest.StaticIdentity{}, &fakeFavorites{}, &vtest.MockCatalog{}, &fakeHistory{})

		if _, err := engine.Build(ctx, nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("SyncFailureAborts", func(t *testing.T) {
		favorites := &fakeFavorites{syncErr: shared.ErrNetwork}
		engine := NewEngine(identity(), favorites, &vtest.MockCatalog{}, &fakeHistory{})

		if _, err := engine.Build(ctx, nil); !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected sync error to surface, got %v", err)
		}
	})

	t.Run("FailedLookupKeepsEntry", func(t *testing.T) {
		favorites := &fakeFavorites{edges: sampleEdges()}
		catalog := &vtest.MockCatalog{Err: shared.ErrVideoNotFound}
		engine := NewEngine(identity(), favorites, catalog, &fakeHistory{})

		result, err := engine.Build(ctx, nil)
		if err != nil {
			t.Fatalf("build should not abort on lookup failures: %v", err)
		}

		if result.FailedCount != 2 || result.EnrichedCount != 0 {
			t.Errorf("unexpected counts: %+v", result)
		}
		if len(result.Library.Entries) != 2 {
			t.Fatalf("failed lookups must not drop entries, got %d", len(result.Library.Entries))
		}
		for _, entry := range result.Library.Entries {
			if entry.Video != nil {
				t.Error("expected nil metadata for failed lookup")
			}
			if entry.Edge.VideoID == "" {
				t.Error("edge must survive a failed lookup")
			}
		}
	})

	t.Run("NonNumericIDFailsLookup", func(t *testing.T) {
		favorites := &fakeFavorites{edges: []models.FavoriteEdge{{UserID: "user-1", VideoID: "not-a-number"}}}
		catalog := &vtest.MockCatalog{Detail: &models.Video{ID: "603", Title: "The Matrix"}}
		engine := NewEngine(identity(), favorites, catalog, &fakeHistory{})

		result, err := engine.Build(ctx, nil)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if result.FailedCount != 1 {
			t.Errorf("expected one failed lookup, got %d", result.FailedCount)
		}
	})

	t.Run("CachesEnrichedVideos", func(t *testing.T) {
		favorites := &fakeFavorites{edges: sampleEdges()}
		catalog := &vtest.MockCatalog{Detail: &models.Video{ID: "603", TMDBID: 603, Title: "The Matrix"}}
		cacher := &recordingCacher{}

		engine := NewEngine(identity(), favorites, catalog, &fakeHistory{})
		engine.SetVideoCacher(cacher)

		if _, err := engine.Build(ctx, nil); err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if len(cacher.cached) != 2 {
			t.Errorf("expected 2 cached videos, got %d", len(cacher.cached))
		}
	})

	t.Run("CacheFailureIgnored", func(t *testing.T) {
		favorites := &fakeFavorites{edges: sampleEdges()}
		catalog := &vtest.MockCatalog{Detail: &models.Video{ID: "603", TMDBID: 603, Title: "The Matrix"}}

		engine := NewEngine(identity(), favorites, catalog, &fakeHistory{})
		engine.SetVideoCacher(&recordingCacher{err: shared.ErrStorageUnavailable})

		result, err := engine.Build(ctx, nil)
		if err != nil {
			t.Fatalf("cache failures must not disrupt a build: %v", err)
		}
		if result.EnrichedCount != 2 {
			t.Errorf("expected 2 enriched entries, got %d", result.EnrichedCount)
		}
	})

	t.Run("EmitsProgress", func(t *testing.T) {
		favorites := &fakeFavorites{edges: sampleEdges()}
		catalog := &vtest.MockCatalog{Detail: &models.Video{ID: "603", TMDBID: 603, Title: "The Matrix"}}
		engine := NewEngine(identity(), favorites, catalog, &fakeHistory{})

		progress := make(chan ProgressUpdate, 32)
		if _, err := engine.Build(ctx, progress); err != nil {
			t.Fatalf("build failed: %v", err)
		}
		close(progress)

		var phases []Phase
		for update := range progress {
			phases = append(phases, update.Phase)
		}
		if len(phases) == 0 {
			t.Fatal("expected progress updates")
		}
		if phases[0] != SyncFavorites {
			t.Errorf("expected first update in sync phase, got %s", phases[0])
		}
	})
}

func TestEngineSyncHistory(t *testing.T) {
	ctx := context.Background()

	events := []models.WatchEvent{
		{UserID: "user-1", VideoID: "603", WatchedAt: time.Now().Add(-time.Hour)},
		{UserID: "user-1", VideoID: "604", WatchedAt: time.Now()},
	}

	t.Run("FetchesWithoutMirror", func(t *testing.T) {
		engine := NewEngine(identity(), &fakeFavorites{}, &vtest.MockCatalog{}, &fakeHistory{events: events})

		result, err := engine.SyncHistory(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if len(result.Events) != 2 || result.Mirrored != 0 {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("MirrorsLocally", func(t *testing.T) {
		mirror := &recordingMirror{}
		engine := NewEngine(identity(), &fakeFavorites{}, &vtest.MockCatalog{}, &fakeHistory{events: events})
		engine.SetHistoryMirror(mirror)

		result, err := engine.SyncHistory(ctx, nil)
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if result.Mirrored != 2 || result.Skipped != 0 {
			t.Errorf("unexpected result: %+v", result)
		}
		if len(mirror.entries) != 2 || mirror.entries[0].VideoID() != "603" {
			t.Errorf("unexpected mirrored entries: %d", len(mirror.entries))
		}
	})

	t.Run("CountsSkippedEntries", func(t *testing.T) {
		engine := NewEngine(identity(), &fakeFavorites{}, &vtest.MockCatalog{}, &fakeHistory{events: events})
		engine.SetHistoryMirror(&recordingMirror{err: shared.ErrStorageUnavailable})

		result, err := engine.SyncHistory(ctx, nil)
		if err != nil {
			t.Fatalf("persist failures must not abort the sync: %v", err)
		}
		if result.Skipped != 2 || result.Mirrored != 0 {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("SignedOutGuard", func(t *testing.T) {
		engine := NewEngine(&vtest.StaticIdentity{}, &fakeFavorites{}, &vtest.MockCatalog{}, &fakeHistory{})

		if _, err := engine.SyncHistory(ctx, nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("FetchFailureSurfaces", func(t *testing.T) {
		engine := NewEngine(identity(), &fakeFavorites{}, &vtest.MockCatalog{}, &fakeHistory{err: shared.ErrNetwork})

		if _, err := engine.SyncHistory(ctx, nil); !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected fetch error, got %v", err)
		}
	})
}
