package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediatheque/mediatheque/internal/database"
)

var (
	ErrConfirmationNotFound = errors.New("confirmed association not found")
	ErrInvalidConfirmation  = errors.New("invalid confirmed association")
)

// ConfirmedAssociation records the operator's blessing of an
// association. Confirmed entities are excluded from suspicion scans.
type ConfirmedAssociation struct {
	ID          int64      `json:"id"`
	EntityType  EntityType `json:"entityType"`
	EntityID    int64      `json:"entityId"`
	ConfirmedAt time.Time  `json:"confirmedAt"`
}

const confirmedColumns = "id, entity_type, entity_id, confirmed_at"

// ConfirmedStore persists operator confirmations.
type ConfirmedStore struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// NewConfirmedStore creates a confirmation store.
func NewConfirmedStore(db *database.DB, logger zerolog.Logger) *ConfirmedStore {
	return &ConfirmedStore{
		conn:   db.Conn(),
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Confirm records a confirmation. Re-confirming an already confirmed
// entity refreshes its timestamp.
func (s *ConfirmedStore) Confirm(ctx context.Context, entityType EntityType, entityID int64) (*ConfirmedAssociation, error) {
	if !ValidEntityType(entityType) || entityID <= 0 {
		return nil, ErrInvalidConfirmation
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.conn.ExecContext(
		ctx,
		`INSERT INTO confirmed_associations (entity_type, entity_id, confirmed_at)
         VALUES (?, ?, ?)
         ON CONFLICT(entity_type, entity_id) DO UPDATE SET confirmed_at = excluded.confirmed_at`,
		string(entityType),
		entityID,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("confirm association: %w", err)
	}
	return s.Get(ctx, entityType, entityID)
}

// Get fetches the confirmation for an entity.
func (s *ConfirmedStore) Get(ctx context.Context, entityType EntityType, entityID int64) (*ConfirmedAssociation, error) {
	row := s.conn.QueryRowContext(
		ctx,
		`SELECT `+confirmedColumns+` FROM confirmed_associations WHERE entity_type = ? AND entity_id = ?`,
		string(entityType),
		entityID,
	)
	confirmed, err := scanConfirmed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConfirmationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get confirmed association: %w", err)
	}
	return confirmed, nil
}

// IsConfirmed reports whether the entity carries a confirmation.
func (s *ConfirmedStore) IsConfirmed(ctx context.Context, entityType EntityType, entityID int64) (bool, error) {
	_, err := s.Get(ctx, entityType, entityID)
	if errors.Is(err, ErrConfirmationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all confirmations, newest first.
func (s *ConfirmedStore) List(ctx context.Context) ([]*ConfirmedAssociation, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+confirmedColumns+` FROM confirmed_associations ORDER BY confirmed_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list confirmed associations: %w", err)
	}
	defer rows.Close()

	var result []*ConfirmedAssociation
	for rows.Next() {
		confirmed, err := scanConfirmed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan confirmed association: %w", err)
		}
		result = append(result, confirmed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate confirmed associations: %w", err)
	}
	return result, nil
}

// Revoke removes a confirmation so the entity rejoins future scans.
func (s *ConfirmedStore) Revoke(ctx context.Context, entityType EntityType, entityID int64) error {
	res, err := s.conn.ExecContext(
		ctx,
		`DELETE FROM confirmed_associations WHERE entity_type = ? AND entity_id = ?`,
		string(entityType),
		entityID,
	)
	if err != nil {
		return fmt.Errorf("revoke confirmed association: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrConfirmationNotFound
	}
	return nil
}

func scanConfirmed(scanner interface{ Scan(dest ...any) error }) (*ConfirmedAssociation, error) {
	var (
		c           ConfirmedAssociation
		entityType  string
		confirmedAt string
	)
	if err := scanner.Scan(&c.ID, &entityType, &c.EntityID, &confirmedAt); err != nil {
		return nil, err
	}
	c.EntityType = EntityType(entityType)
	if parsed, err := time.Parse(time.RFC3339Nano, confirmedAt); err == nil {
		c.ConfirmedAt = parsed
	}
	return &c, nil
}
