package trash

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediatheque/mediatheque/internal/database"
	"github.com/mediatheque/mediatheque/internal/library/movies"
	"github.com/mediatheque/mediatheque/internal/library/tv"
)

var ErrTrashItemNotFound = errors.New("trash item not found")

const itemColumns = "id, entity_type, original_id, payload, deleted_at"

// Store lists, restores and purges trashed catalog rows. The entity
// stores write trash items themselves on soft delete; this store owns
// the reverse direction.
type Store struct {
	db     *database.DB
	conn   *sql.DB
	movies *movies.Store
	tv     *tv.Store
	logger zerolog.Logger
}

// NewStore creates a trash store.
func NewStore(db *database.DB, movieStore *movies.Store, tvStore *tv.Store, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		conn:   db.Conn(),
		movies: movieStore,
		tv:     tvStore,
		logger: logger.With().Str("component", "trash").Logger(),
	}
}

// List returns trash items, most recently deleted first.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+itemColumns+` FROM trash_items ORDER BY deleted_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list trash items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trash item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trash items: %w", err)
	}
	return items, nil
}

// GetByID fetches a trash item by id.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM trash_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTrashItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trash item: %w", err)
	}
	return item, nil
}

// Restore reinserts the trashed entity under its original id and drops
// the trash item, atomically. A trashed episode needs its parent series
// present; restore the series first when both were deleted.
func (s *Store) Restore(ctx context.Context, id int64) error {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		switch item.EntityType {
		case EntityMovie:
			var movie movies.Movie
			if err := json.Unmarshal(item.Payload, &movie); err != nil {
				return fmt.Errorf("decode movie payload: %w", err)
			}
			if err := s.movies.RestoreTx(ctx, tx, &movie); err != nil {
				return err
			}
		case EntitySeries:
			var payload tv.SeriesTrashPayload
			if err := json.Unmarshal(item.Payload, &payload); err != nil {
				return fmt.Errorf("decode series payload: %w", err)
			}
			if err := s.tv.RestoreSeriesTx(ctx, tx, &payload); err != nil {
				return err
			}
		case EntityEpisode:
			var episode tv.Episode
			if err := json.Unmarshal(item.Payload, &episode); err != nil {
				return fmt.Errorf("decode episode payload: %w", err)
			}
			if err := s.tv.RestoreEpisodeTx(ctx, tx, &episode); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown trash entity type %q", item.EntityType)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM trash_items WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete trash item: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("entityType", item.EntityType).
		Int64("originalId", item.OriginalID).
		Msg("Restored from trash")
	return nil
}

// Delete removes a trash item permanently. The entity is gone for good.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM trash_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trash item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTrashItemNotFound
	}
	return nil
}

// Purge permanently removes items deleted more than olderThan ago and
// returns how many were dropped.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	items, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	purged := 0
	for _, item := range items {
		if !item.DeletedAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(ctx, item.ID); err != nil {
			return purged, err
		}
		purged++
	}

	if purged > 0 {
		s.logger.Info().Int("count", purged).Msg("Purged trash items")
	}
	return purged, nil
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item       Item
		payload    string
		deletedRaw string
	)
	if err := scanner.Scan(&item.ID, &item.EntityType, &item.OriginalID, &payload, &deletedRaw); err != nil {
		return nil, err
	}
	item.Payload = json.RawMessage(payload)
	if deleted, err := parseTimeString(deletedRaw); err == nil {
		item.DeletedAt = deleted
	}
	return &item, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
