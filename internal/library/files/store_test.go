package files

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mediatheque/mediatheque/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db, zerolog.Nop())
}

func TestStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, &VideoFile{
		Path:             "/staging/The.Matrix.1999.1080p.mkv",
		SizeBytes:        4_800_000_000,
		FileHash:         "deadbeef01234567",
		ResolutionWidth:  1920,
		ResolutionHeight: 1080,
		ResolutionLabel:  "1080p",
		VideoCodec:       "x264",
		AudioCodecs:      []string{"DTS"},
		AudioChannels:    "5.1",
		AudioLanguages:   []string{"en"},
		DurationSeconds:  8160.4,
		Container:        "mkv",
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("Save() did not assign an id")
	}
	if saved.Filename != "The.Matrix.1999.1080p.mkv" {
		t.Errorf("Filename = %q, want it derived from the path", saved.Filename)
	}

	got, err := store.GetByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Path != saved.Path || got.SizeBytes != 4_800_000_000 {
		t.Errorf("got %+v, want the saved location fields", got)
	}
	if got.DurationSeconds != 8160.4 {
		t.Errorf("DurationSeconds = %v, want 8160.4", got.DurationSeconds)
	}
	if len(got.AudioCodecs) != 1 || got.AudioCodecs[0] != "DTS" {
		t.Errorf("AudioCodecs = %v, want [DTS]", got.AudioCodecs)
	}
}

func TestStore_Save_UpsertByPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, &VideoFile{Path: "/staging/show.s01e01.mkv", SizeBytes: 100})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Rescan hits the same path with a zero id and fresh probe data.
	second, err := store.Save(ctx, &VideoFile{Path: "/staging/show.s01e01.mkv", SizeBytes: 200, FileHash: "cafe0123"})
	if err != nil {
		t.Fatalf("Save() rescan error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("path upsert: id = %d, want %d", second.ID, first.ID)
	}
	if second.SizeBytes != 200 || second.FileHash != "cafe0123" {
		t.Errorf("rescan did not refresh the row: %+v", second)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("List() returned %d rows, want 1", len(all))
	}
}

func TestStore_Save_Invalid(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Save(context.Background(), &VideoFile{}); !errors.Is(err, ErrInvalidVideoFile) {
		t.Errorf("Save() without path error = %v, want ErrInvalidVideoFile", err)
	}
}

func TestStore_GetByPathAndHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, &VideoFile{Path: "/staging/film.mkv", SizeBytes: 1, FileHash: "0011223344556677"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	byPath, err := store.GetByPath(ctx, "/staging/film.mkv")
	if err != nil || byPath.ID != saved.ID {
		t.Errorf("GetByPath() = (%v, %v), want id %d", byPath, err, saved.ID)
	}
	byHash, err := store.GetByHash(ctx, "0011223344556677")
	if err != nil || byHash.ID != saved.ID {
		t.Errorf("GetByHash() = (%v, %v), want id %d", byHash, err, saved.ID)
	}

	if _, err := store.GetByPath(ctx, "/staging/other.mkv"); !errors.Is(err, ErrVideoFileNotFound) {
		t.Errorf("GetByPath() error = %v, want ErrVideoFileNotFound", err)
	}
	if _, err := store.GetByHash(ctx, "ffff"); !errors.Is(err, ErrVideoFileNotFound) {
		t.Errorf("GetByHash() error = %v, want ErrVideoFileNotFound", err)
	}
}

func TestStore_UpdatePath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, &VideoFile{Path: "/staging/film.mkv", SizeBytes: 1})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.UpdatePath(ctx, saved.ID, "/library/Films/F/Film (2020)/Film (2020).mkv"); err != nil {
		t.Fatalf("UpdatePath() error = %v", err)
	}

	got, err := store.GetByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Path != "/library/Films/F/Film (2020)/Film (2020).mkv" {
		t.Errorf("Path = %q, want the new location", got.Path)
	}
	if got.Filename != "Film (2020).mkv" {
		t.Errorf("Filename = %q, want it refreshed from the new path", got.Filename)
	}

	if err := store.UpdatePath(ctx, 999, "/elsewhere.mkv"); !errors.Is(err, ErrVideoFileNotFound) {
		t.Errorf("UpdatePath() on missing id error = %v, want ErrVideoFileNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, &VideoFile{Path: "/staging/gone.mkv", SizeBytes: 1})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.GetByID(ctx, saved.ID); !errors.Is(err, ErrVideoFileNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrVideoFileNotFound", err)
	}
	if err := store.Delete(ctx, saved.ID); !errors.Is(err, ErrVideoFileNotFound) {
		t.Errorf("second Delete() error = %v, want ErrVideoFileNotFound", err)
	}
}

func TestStore_IntegrityScan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	present := filepath.Join(dir, "present.mkv")
	if err := os.WriteFile(present, []byte("data"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := store.Save(ctx, &VideoFile{Path: present, SizeBytes: 4}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	missing, err := store.Save(ctx, &VideoFile{Path: filepath.Join(dir, "missing.mkv"), SizeBytes: 4})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// A movie pointing at a vanished storage path is reported too.
	_, err = store.conn.Exec(
		`INSERT INTO movies (title, sort_title, file_path, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"Ghost Film", "ghost film", filepath.Join(dir, "ghost.mkv"), "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z",
	)
	if err != nil {
		t.Fatalf("insert movie row: %v", err)
	}

	ghosts, err := store.IntegrityScan(ctx)
	if err != nil {
		t.Fatalf("IntegrityScan() error = %v", err)
	}
	if len(ghosts) != 2 {
		t.Fatalf("IntegrityScan() = %v, want 2 ghosts", ghosts)
	}

	byEntity := make(map[string]Ghost)
	for _, ghost := range ghosts {
		byEntity[ghost.Entity] = ghost
	}
	if ghost, ok := byEntity["video_file"]; !ok || ghost.ID != missing.ID {
		t.Errorf("video_file ghost = %+v, want id %d", ghost, missing.ID)
	}
	if _, ok := byEntity["movie"]; !ok {
		t.Error("movie ghost not reported")
	}
}
