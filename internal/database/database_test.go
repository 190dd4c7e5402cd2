package database_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mediatheque/mediatheque/internal/database"
)

func mustOpen(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := mustOpen(t)

	tables := []string{
		"video_files",
		"movies",
		"series",
		"episodes",
		"pending_validations",
		"confirmed_associations",
		"trash_items",
	}
	for _, table := range tables {
		var name string
		err := db.Conn().QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migration: %v", table, err)
		}
	}

	// Columns added by later migrations must be present.
	for _, q := range []string{
		`SELECT tmdb_id FROM series LIMIT 1`,
		`SELECT watched, personal_rating FROM movies LIMIT 1`,
		`SELECT watched, personal_rating FROM series LIMIT 1`,
	} {
		rows, err := db.Conn().Query(q)
		if err != nil {
			t.Errorf("query %q failed: %v", q, err)
			continue
		}
		rows.Close()
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	db.Close()

	db, err = database.Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	db.Close()
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := mustOpen(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO trash_items (entity_type, original_id, payload, deleted_at) VALUES ('movie', 1, '{}', '2024-01-01T00:00:00Z')`,
		); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want %v", err, boom)
	}

	var count int
	if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM trash_items`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("trash_items count = %d after rollback, want 0", count)
	}
}
