package repositories

import (
	"database/sql"
	"testing"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func sampleVideo() models.Video {
	return models.Video{
		ID:          "603",
		TMDBID:      603,
		Title:       "The Matrix",
		Overview:    "A hacker discovers reality is a simulation.",
		PosterPath:  "/matrix.jpg",
		Rating:      8.2,
		ReleaseDate: "1999-03-30",
		TrailerKey:  "vKQi3bBA1y8",
	}
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	first, err := NextSequence(db, "cached_videos")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}
	second, err := NextSequence(db, "cached_videos")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}

	if second != first+1 {
		t.Errorf("expected sequence to increment, got %d then %d", first, second)
	}

	// Sequences are tracked per table.
	other, err := NextSequence(db, "watch_history")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}
	if other != 1 {
		t.Errorf("expected independent sequence for watch_history, got %d", other)
	}
}

func TestVideoCacheRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewVideoCacheRepository(db)
		video := models.NewCachedVideo(0, sampleVideo())

		if err := repo.Create(video); err != nil {
			t.Fatalf("failed to create cached video: %v", err)
		}
		if video.ID() == "" {
			t.Error("expected a generated ID")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewVideoCacheRepository(db)
		video := models.NewCachedVideo(0, sampleVideo())
		if err := repo.Create(video); err != nil {
			t.Fatalf("failed to create cached video: %v", err)
		}

		got, err := repo.Get(video.ID())
		if err != nil {
			t.Fatalf("failed to get cached video: %v", err)
		}

		v := got.Video()
		if v.Title != "The Matrix" || v.TMDBID != 603 {
			t.Errorf("unexpected video: %+v", v)
		}
		if v.Overview == "" || v.TrailerKey != "vKQi3bBA1y8" {
			t.Errorf("expected full metadata, got %+v", v)
		}
	})

	t.Run("GetByTMDBID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewVideoCacheRepository(db)
		if err := repo.Create(models.NewCachedVideo(0, sampleVideo())); err != nil {
			t.Fatalf("failed to create cached video: %v", err)
		}

		got, err := repo.GetByTMDBID(603)
		if err != nil {
			t.Fatalf("failed to get by tmdb id: %v", err)
		}
		if got.Video().Title != "The Matrix" {
			t.Errorf("unexpected video: %+v", got.Video())
		}

		if _, err := repo.GetByTMDBID(999999); err == nil {
			t.Error("expected error for unknown tmdb id")
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewVideoCacheRepository(db)
		video := models.NewCachedVideo(0, sampleVideo())
		if err := repo.Create(video); err != nil {
			t.Fatalf("failed to create cached video: %v", err)
		}

		updated := sampleVideo()
		updated.Rating = 8.7
		video.SetVideo(updated)

		if err := repo.Update(video); err != nil {
			t.Fatalf("failed to update cached video: %v", err)
		}

		got, err := repo.Get(video.ID())
		if err != nil {
			t.Fatalf("failed to get cached video: %v", err)
		}
		if got.Video().Rating != 8.7 {
			t.Errorf("expected rating 8.7, got %f", got.Video().Rating)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewVideoCacheRepository(db)
		video := models.NewCachedVideo(0, sampleVideo())
		if err := repo.Create(video); err != nil {
			t.Fatalf("failed to create cached video: %v", err)
		}

		if err := repo.Delete(video.ID()); err != nil {
			t.Fatalf("failed to delete cached video: %v", err)
		}

		if _, err := repo.Get(video.ID()); err == nil {
			t.Error("soft-deleted video should not be retrievable")
		}
		if err := repo.Delete(video.ID()); err == nil {
			t.Error("expected error deleting an already-deleted video")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewVideoCacheRepository(db)
		for i, title := range []string{"The Matrix", "The Matrix Reloaded", "Inception"} {
			v := sampleVideo()
			v.Title = title
			v.TMDBID += i
			if err := repo.Create(models.NewCachedVideo(0, v)); err != nil {
				t.Fatalf("failed to create cached video: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 videos, got %d", len(all))
		}

		matches, err := repo.List(map[string]any{"title": "Matrix"})
		if err != nil {
			t.Fatalf("failed to list with filter: %v", err)
		}
		if len(matches) != 2 {
			t.Errorf("expected 2 matches for Matrix, got %d", len(matches))
		}
	})
}

func TestVideoCacheAdapter(t *testing.T) {
	t.Run("CachesNewVideo", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewVideoCacheRepository(db)
		adapter := NewVideoCacheAdapter(repo)

		if err := adapter.CacheVideo(sampleVideo()); err != nil {
			t.Fatalf("failed to cache video: %v", err)
		}

		got, err := repo.GetByTMDBID(603)
		if err != nil {
			t.Fatalf("cached video not found: %v", err)
		}
		if got.Video().Title != "The Matrix" {
			t.Errorf("unexpected video: %+v", got.Video())
		}
	})

	t.Run("RefreshesExistingEntry", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewVideoCacheRepository(db)
		adapter := NewVideoCacheAdapter(repo)

		if err := adapter.CacheVideo(sampleVideo()); err != nil {
			t.Fatalf("failed to cache video: %v", err)
		}

		refreshed := sampleVideo()
		refreshed.Rating = 9.0
		if err := adapter.CacheVideo(refreshed); err != nil {
			t.Fatalf("failed to refresh cached video: %v", err)
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected one deduplicated entry, got %d", len(all))
		}
		if all[0].Video().Rating != 9.0 {
			t.Errorf("expected refreshed rating, got %f", all[0].Video().Rating)
		}
	})
}

func TestHistoryRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		entry := models.NewHistoryEntry(0, "user-1", "603", time.Now())

		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create history entry: %v", err)
		}
		if entry.ID() == "" {
			t.Error("expected a generated ID")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		watched := time.Now().Add(-time.Hour).Truncate(time.Second)
		entry := models.NewHistoryEntry(0, "user-1", "603", watched)
		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create history entry: %v", err)
		}

		got, err := repo.Get(entry.ID())
		if err != nil {
			t.Fatalf("failed to get history entry: %v", err)
		}
		if got.UserID() != "user-1" || got.VideoID() != "603" {
			t.Errorf("unexpected entry: user=%s video=%s", got.UserID(), got.VideoID())
		}
		if !got.WatchedAt().Equal(watched) {
			t.Errorf("expected watched at %v, got %v", watched, got.WatchedAt())
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		entry := models.NewHistoryEntry(0, "user-1", "603", time.Now().Add(-time.Hour))
		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create history entry: %v", err)
		}

		rewatched := time.Now().Truncate(time.Second)
		entry.SetWatchedAt(rewatched)
		if err := repo.Update(entry); err != nil {
			t.Fatalf("failed to update history entry: %v", err)
		}

		got, err := repo.Get(entry.ID())
		if err != nil {
			t.Fatalf("failed to get history entry: %v", err)
		}
		if !got.WatchedAt().Equal(rewatched) {
			t.Errorf("expected watched at %v, got %v", rewatched, got.WatchedAt())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		entry := models.NewHistoryEntry(0, "user-1", "603", time.Now())
		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create history entry: %v", err)
		}

		if err := repo.Delete(entry.ID()); err != nil {
			t.Fatalf("failed to delete history entry: %v", err)
		}
		if _, err := repo.Get(entry.ID()); err == nil {
			t.Error("soft-deleted entry should not be retrievable")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		base := time.Now().Truncate(time.Second)

		events := []struct {
			user, video string
			at          time.Time
		}{
			{"user-1", "603", base.Add(-3 * time.Hour)},
			{"user-1", "604", base.Add(-time.Hour)},
			{"user-2", "603", base.Add(-2 * time.Hour)},
		}
		for _, ev := range events {
			if err := repo.Create(models.NewHistoryEntry(0, ev.user, ev.video, ev.at)); err != nil {
				t.Fatalf("failed to create history entry: %v", err)
			}
		}

		mine, err := repo.List(map[string]any{"user_id": "user-1"})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(mine) != 2 {
			t.Fatalf("expected 2 entries for user-1, got %d", len(mine))
		}
		// Newest first.
		if mine[0].VideoID() != "604" || mine[1].VideoID() != "603" {
			t.Errorf("unexpected order: %s then %s", mine[0].VideoID(), mine[1].VideoID())
		}

		byVideo, err := repo.List(map[string]any{"video_id": "603"})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(byVideo) != 2 {
			t.Errorf("expected 2 entries for video 603, got %d", len(byVideo))
		}
	})
}
