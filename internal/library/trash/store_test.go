package trash

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediatheque/mediatheque/internal/database"
	"github.com/mediatheque/mediatheque/internal/library/movies"
	"github.com/mediatheque/mediatheque/internal/library/tv"
)

type fixture struct {
	trash  *Store
	movies *movies.Store
	tv     *tv.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	movieStore := movies.NewStore(db, zerolog.Nop())
	tvStore := tv.NewStore(db, zerolog.Nop())
	return &fixture{
		trash:  NewStore(db, movieStore, tvStore, zerolog.Nop()),
		movies: movieStore,
		tv:     tvStore,
	}
}

func TestStore_RestoreMovie(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	movie, err := fx.movies.Save(ctx, &movies.Movie{Title: "Heat", Year: 1995})
	if err != nil {
		t.Fatalf("save movie: %v", err)
	}
	if err := fx.movies.SoftDeleteToTrash(ctx, movie.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	items, err := fx.trash.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 1 || items[0].EntityType != EntityMovie || items[0].OriginalID != movie.ID {
		t.Fatalf("List() = %+v, want one movie item", items)
	}

	if err := fx.trash.Restore(ctx, items[0].ID); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	restored, err := fx.movies.GetByID(ctx, movie.ID)
	if err != nil {
		t.Fatalf("movie not restored: %v", err)
	}
	if restored.Title != "Heat" || restored.Year != 1995 {
		t.Errorf("restored = %+v, want the original movie", restored)
	}

	items, err = fx.trash.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("trash not emptied after restore: %d items", len(items))
	}
}

func TestStore_RestoreSeriesWithEpisodes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	series, err := fx.tv.SaveSeries(ctx, &tv.Series{Title: "Rome", Year: 2005})
	if err != nil {
		t.Fatalf("save series: %v", err)
	}
	for episode := 1; episode <= 2; episode++ {
		if _, err := fx.tv.SaveEpisode(ctx, &tv.Episode{SeriesID: series.ID, SeasonNumber: 1, EpisodeNumber: episode}); err != nil {
			t.Fatalf("save episode: %v", err)
		}
	}
	if err := fx.tv.SoftDeleteSeriesToTrash(ctx, series.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	items, err := fx.trash.List(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("List() = (%v, %v), want one item", items, err)
	}
	if err := fx.trash.Restore(ctx, items[0].ID); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	if _, err := fx.tv.GetSeriesByID(ctx, series.ID); err != nil {
		t.Fatalf("series not restored: %v", err)
	}
	episodes, err := fx.tv.ListEpisodes(ctx, series.ID)
	if err != nil {
		t.Fatalf("ListEpisodes() error = %v", err)
	}
	if len(episodes) != 2 {
		t.Errorf("restored %d episodes, want 2", len(episodes))
	}
}

func TestStore_RestoreEpisode(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	series, err := fx.tv.SaveSeries(ctx, &tv.Series{Title: "Justified", Year: 2010})
	if err != nil {
		t.Fatalf("save series: %v", err)
	}
	episode, err := fx.tv.SaveEpisode(ctx, &tv.Episode{SeriesID: series.ID, SeasonNumber: 1, EpisodeNumber: 1, Title: "Fire in the Hole"})
	if err != nil {
		t.Fatalf("save episode: %v", err)
	}
	if err := fx.tv.SoftDeleteEpisodeToTrash(ctx, episode.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	items, err := fx.trash.List(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("List() = (%v, %v), want one item", items, err)
	}
	if items[0].EntityType != EntityEpisode {
		t.Fatalf("EntityType = %q, want %q", items[0].EntityType, EntityEpisode)
	}

	if err := fx.trash.Restore(ctx, items[0].ID); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	restored, err := fx.tv.GetEpisodeByID(ctx, episode.ID)
	if err != nil {
		t.Fatalf("episode not restored: %v", err)
	}
	if restored.Title != "Fire in the Hole" {
		t.Errorf("restored = %+v, want the original episode", restored)
	}
}

func TestStore_Restore_NotFound(t *testing.T) {
	fx := newFixture(t)

	if err := fx.trash.Restore(context.Background(), 42); !errors.Is(err, ErrTrashItemNotFound) {
		t.Errorf("Restore() error = %v, want ErrTrashItemNotFound", err)
	}
}

func TestStore_Delete_Permanent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	movie, err := fx.movies.Save(ctx, &movies.Movie{Title: "Gone"})
	if err != nil {
		t.Fatalf("save movie: %v", err)
	}
	if err := fx.movies.SoftDeleteToTrash(ctx, movie.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	items, _ := fx.trash.List(ctx)
	if err := fx.trash.Delete(ctx, items[0].ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if err := fx.trash.Restore(ctx, items[0].ID); !errors.Is(err, ErrTrashItemNotFound) {
		t.Errorf("Restore() after permanent delete error = %v, want ErrTrashItemNotFound", err)
	}
	if _, err := fx.movies.GetByID(ctx, movie.ID); !errors.Is(err, movies.ErrMovieNotFound) {
		t.Errorf("movie should stay deleted, got %v", err)
	}
}

func TestStore_Purge(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"Old", "Fresh"} {
		movie, err := fx.movies.Save(ctx, &movies.Movie{Title: title})
		if err != nil {
			t.Fatalf("save movie: %v", err)
		}
		if err := fx.movies.SoftDeleteToTrash(ctx, movie.ID); err != nil {
			t.Fatalf("soft delete: %v", err)
		}
	}

	// Backdate one item past the retention window.
	old := time.Now().UTC().Add(-40 * 24 * time.Hour).Format(time.RFC3339Nano)
	if _, err := fx.trash.conn.Exec(`UPDATE trash_items SET deleted_at = ? WHERE id = (SELECT MIN(id) FROM trash_items)`, old); err != nil {
		t.Fatalf("backdate trash item: %v", err)
	}

	purged, err := fx.trash.Purge(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if purged != 1 {
		t.Errorf("Purge() = %d, want 1", purged)
	}

	items, err := fx.trash.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("List() after purge = %d items, want 1", len(items))
	}
}
