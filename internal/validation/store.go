package validation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediatheque/mediatheque/internal/database"
	"github.com/mediatheque/mediatheque/internal/library/scanner"
)

var (
	ErrPendingNotFound = errors.New("pending validation not found")
	ErrInvalidPending  = errors.New("invalid pending validation data")
)

const pendingColumns = "id, video_file_id, media_type, parsed_title, parsed_year, parsed_season, parsed_episode, parsed_episode_end, status, auto_validated, selected_candidate_id, candidates, cascade_root_id, created_at, updated_at"

// Store provides pending validation persistence.
type Store struct {
	db     *database.DB
	conn   *sql.DB
	logger zerolog.Logger
}

// NewStore creates a pending validation store.
func NewStore(db *database.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		conn:   db.Conn(),
		logger: logger.With().Str("component", "validation").Logger(),
	}
}

// Save inserts or updates a pending validation. A zero id inserts;
// the video_file_id unique index means one pending per file.
func (s *Store) Save(ctx context.Context, pending *PendingValidation) (*PendingValidation, error) {
	if pending == nil || pending.VideoFileID == 0 || pending.ParsedTitle == "" {
		return nil, ErrInvalidPending
	}
	if pending.MediaType != scanner.MediaTypeMovie && pending.MediaType != scanner.MediaTypeSeries {
		return nil, ErrInvalidPending
	}
	if pending.Status == "" {
		pending.Status = StatusPending
	}
	if !validStatus(pending.Status) {
		return nil, ErrInvalidPending
	}

	candidates, err := marshalCandidates(pending.Candidates)
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	if pending.ID == 0 {
		res, err := s.conn.ExecContext(
			ctx,
			`INSERT INTO pending_validations (
                video_file_id, media_type, parsed_title, parsed_year, parsed_season,
                parsed_episode, parsed_episode_end, status, auto_validated,
                selected_candidate_id, candidates, cascade_root_id, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			pending.VideoFileID,
			string(pending.MediaType),
			pending.ParsedTitle,
			nullableInt(pending.ParsedYear),
			nullableInt(pending.ParsedSeason),
			nullableInt(pending.ParsedEpisode),
			nullableInt(pending.ParsedEpisodeEnd),
			string(pending.Status),
			boolToInt(pending.AutoValidated),
			nullableString(pending.SelectedCandidateID),
			candidates,
			nullableInt64(pending.CascadeRootID),
			timestamp,
			timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert pending validation: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		pending.ID = id
	} else {
		res, err := s.conn.ExecContext(
			ctx,
			`UPDATE pending_validations SET
                video_file_id = ?, media_type = ?, parsed_title = ?, parsed_year = ?,
                parsed_season = ?, parsed_episode = ?, parsed_episode_end = ?, status = ?,
                auto_validated = ?, selected_candidate_id = ?, candidates = ?,
                cascade_root_id = ?, updated_at = ?
            WHERE id = ?`,
			pending.VideoFileID,
			string(pending.MediaType),
			pending.ParsedTitle,
			nullableInt(pending.ParsedYear),
			nullableInt(pending.ParsedSeason),
			nullableInt(pending.ParsedEpisode),
			nullableInt(pending.ParsedEpisodeEnd),
			string(pending.Status),
			boolToInt(pending.AutoValidated),
			nullableString(pending.SelectedCandidateID),
			candidates,
			nullableInt64(pending.CascadeRootID),
			timestamp,
			pending.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update pending validation: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, ErrPendingNotFound
		}
	}

	return s.GetByID(ctx, pending.ID)
}

// GetByID fetches a pending validation by id.
func (s *Store) GetByID(ctx context.Context, id int64) (*PendingValidation, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM pending_validations WHERE id = ?`, id)
	pending, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending validation: %w", err)
	}
	return pending, nil
}

// GetByVideoFileID fetches the pending validation covering a file.
func (s *Store) GetByVideoFileID(ctx context.Context, videoFileID int64) (*PendingValidation, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM pending_validations WHERE video_file_id = ?`, videoFileID)
	pending, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending validation by file: %w", err)
	}
	return pending, nil
}

// ListByStatus returns pendings in a given state, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*PendingValidation, error) {
	if !validStatus(status) {
		return nil, ErrInvalidPending
	}
	rows, err := s.conn.QueryContext(
		ctx,
		`SELECT `+pendingColumns+` FROM pending_validations WHERE status = ? ORDER BY id`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending validations: %w", err)
	}
	defer rows.Close()

	return collectPendings(rows)
}

// ListAutoValidated returns validated rows that were accepted without
// an operator, for after-the-fact review.
func (s *Store) ListAutoValidated(ctx context.Context) ([]*PendingValidation, error) {
	rows, err := s.conn.QueryContext(
		ctx,
		`SELECT `+pendingColumns+` FROM pending_validations WHERE status = ? AND auto_validated = 1 ORDER BY id`,
		string(StatusValidated),
	)
	if err != nil {
		return nil, fmt.Errorf("list auto-validated: %w", err)
	}
	defer rows.Close()

	return collectPendings(rows)
}

// ListCascadeMembers returns the pendings auto-validated under a
// cascade root.
func (s *Store) ListCascadeMembers(ctx context.Context, rootID int64) ([]*PendingValidation, error) {
	rows, err := s.conn.QueryContext(
		ctx,
		`SELECT `+pendingColumns+` FROM pending_validations WHERE cascade_root_id = ? ORDER BY id`,
		rootID,
	)
	if err != nil {
		return nil, fmt.Errorf("list cascade members: %w", err)
	}
	defer rows.Close()

	return collectPendings(rows)
}

func validStatus(status Status) bool {
	switch status {
	case StatusPending, StatusValidated, StatusRejected:
		return true
	default:
		return false
	}
}

func collectPendings(rows *sql.Rows) ([]*PendingValidation, error) {
	var result []*PendingValidation
	for rows.Next() {
		pending, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending validation: %w", err)
		}
		result = append(result, pending)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending validations: %w", err)
	}
	return result, nil
}

func scanPending(row interface{ Scan(dest ...any) error }) (*PendingValidation, error) {
	var (
		p             PendingValidation
		mediaType     string
		parsedYear    sql.NullInt64
		parsedSeason  sql.NullInt64
		parsedEpisode sql.NullInt64
		parsedEpEnd   sql.NullInt64
		status        string
		autoValidated int64
		selectedID    sql.NullString
		candidatesRaw string
		cascadeRootID sql.NullInt64
		createdRaw    string
		updatedRaw    string
	)

	if err := row.Scan(
		&p.ID,
		&p.VideoFileID,
		&mediaType,
		&p.ParsedTitle,
		&parsedYear,
		&parsedSeason,
		&parsedEpisode,
		&parsedEpEnd,
		&status,
		&autoValidated,
		&selectedID,
		&candidatesRaw,
		&cascadeRootID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	p.MediaType = scanner.MediaType(mediaType)
	p.ParsedYear = int(parsedYear.Int64)
	p.ParsedSeason = int(parsedSeason.Int64)
	p.ParsedEpisode = int(parsedEpisode.Int64)
	p.ParsedEpisodeEnd = int(parsedEpEnd.Int64)
	p.Status = Status(status)
	p.AutoValidated = autoValidated != 0
	p.SelectedCandidateID = selectedID.String
	p.Candidates = unmarshalCandidates(candidatesRaw)
	p.CascadeRootID = cascadeRootID.Int64

	if created, err := parseTimeString(createdRaw); err == nil {
		p.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		p.UpdatedAt = updated
	}
	return &p, nil
}
