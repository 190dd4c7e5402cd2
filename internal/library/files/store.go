package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediatheque/mediatheque/internal/database"
)

var (
	ErrVideoFileNotFound = errors.New("video file not found")
	ErrInvalidVideoFile  = errors.New("invalid video file data")
)

const videoFileColumns = "id, path, filename, size_bytes, file_hash, resolution_width, resolution_height, resolution_label, video_codec, audio_codecs, audio_channels, audio_languages, duration_seconds, container, created_at, updated_at"

// Store provides video file inventory persistence.
type Store struct {
	db     *database.DB
	conn   *sql.DB
	logger zerolog.Logger
}

// NewStore creates a video file store.
func NewStore(db *database.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		conn:   db.Conn(),
		logger: logger.With().Str("component", "files").Logger(),
	}
}

// Save inserts or updates a video file. A zero id resolves against the
// unique path first so rescanning a directory refreshes rows in place.
func (s *Store) Save(ctx context.Context, file *VideoFile) (*VideoFile, error) {
	if file == nil || file.Path == "" {
		return nil, ErrInvalidVideoFile
	}
	if file.Filename == "" {
		file.Filename = filepath.Base(file.Path)
	}

	if file.ID == 0 {
		existing, err := s.GetByPath(ctx, file.Path)
		if err == nil {
			file.ID = existing.ID
		} else if !errors.Is(err, ErrVideoFileNotFound) {
			return nil, err
		}
	}

	audioCodecs, err := marshalStrings(file.AudioCodecs)
	if err != nil {
		return nil, fmt.Errorf("marshal audio codecs: %w", err)
	}
	audioLanguages, err := marshalStrings(file.AudioLanguages)
	if err != nil {
		return nil, fmt.Errorf("marshal audio languages: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if file.ID == 0 {
		res, err := s.conn.ExecContext(
			ctx,
			`INSERT INTO video_files (
                path, filename, size_bytes, file_hash,
                resolution_width, resolution_height, resolution_label, video_codec,
                audio_codecs, audio_channels, audio_languages, duration_seconds, container,
                created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			file.Path,
			file.Filename,
			file.SizeBytes,
			nullableString(file.FileHash),
			nullableInt(file.ResolutionWidth),
			nullableInt(file.ResolutionHeight),
			nullableString(file.ResolutionLabel),
			nullableString(file.VideoCodec),
			audioCodecs,
			nullableString(file.AudioChannels),
			audioLanguages,
			nullableFloat(file.DurationSeconds),
			nullableString(file.Container),
			timestamp,
			timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert video file: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		file.ID = id
	} else {
		res, err := s.conn.ExecContext(
			ctx,
			`UPDATE video_files SET
                path = ?, filename = ?, size_bytes = ?, file_hash = ?,
                resolution_width = ?, resolution_height = ?, resolution_label = ?, video_codec = ?,
                audio_codecs = ?, audio_channels = ?, audio_languages = ?, duration_seconds = ?, container = ?,
                updated_at = ?
            WHERE id = ?`,
			file.Path,
			file.Filename,
			file.SizeBytes,
			nullableString(file.FileHash),
			nullableInt(file.ResolutionWidth),
			nullableInt(file.ResolutionHeight),
			nullableString(file.ResolutionLabel),
			nullableString(file.VideoCodec),
			audioCodecs,
			nullableString(file.AudioChannels),
			audioLanguages,
			nullableFloat(file.DurationSeconds),
			nullableString(file.Container),
			timestamp,
			file.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update video file: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, ErrVideoFileNotFound
		}
	}

	return s.GetByID(ctx, file.ID)
}

// GetByID fetches a video file by id.
func (s *Store) GetByID(ctx context.Context, id int64) (*VideoFile, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+videoFileColumns+` FROM video_files WHERE id = ?`, id)
	file, err := scanVideoFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVideoFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video file: %w", err)
	}
	return file, nil
}

// GetByPath fetches a video file by its absolute path.
func (s *Store) GetByPath(ctx context.Context, path string) (*VideoFile, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+videoFileColumns+` FROM video_files WHERE path = ?`, path)
	file, err := scanVideoFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVideoFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video file by path: %w", err)
	}
	return file, nil
}

// GetByHash fetches a video file by content hash.
func (s *Store) GetByHash(ctx context.Context, hash string) (*VideoFile, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+videoFileColumns+` FROM video_files WHERE file_hash = ? ORDER BY id LIMIT 1`, hash)
	file, err := scanVideoFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVideoFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video file by hash: %w", err)
	}
	return file, nil
}

// List returns all video files in path order.
func (s *Store) List(ctx context.Context) ([]*VideoFile, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+videoFileColumns+` FROM video_files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list video files: %w", err)
	}
	defer rows.Close()

	return collectVideoFiles(rows)
}

// UpdatePath records the new location of a moved file.
func (s *Store) UpdatePath(ctx context.Context, id int64, newPath string) error {
	if newPath == "" {
		return ErrInvalidVideoFile
	}
	res, err := s.conn.ExecContext(
		ctx,
		`UPDATE video_files SET path = ?, filename = ?, updated_at = ? WHERE id = ?`,
		newPath,
		filepath.Base(newPath),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update video file path: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrVideoFileNotFound
	}
	return nil
}

// Delete removes an inventory row. The pending validation referencing
// it falls with it through the foreign key cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM video_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete video file: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrVideoFileNotFound
	}
	return nil
}

// IntegrityScan walks every cataloged path and reports the rows whose
// file is gone or is no longer a regular file. Symlink health is a
// separate concern and is not checked here.
func (s *Store) IntegrityScan(ctx context.Context) ([]Ghost, error) {
	type pathRow struct {
		entity string
		query  string
	}
	sources := []pathRow{
		{"video_file", `SELECT id, path FROM video_files ORDER BY id`},
		{"movie", `SELECT id, file_path FROM movies WHERE file_path IS NOT NULL AND file_path != '' ORDER BY id`},
		{"episode", `SELECT id, file_path FROM episodes WHERE file_path IS NOT NULL AND file_path != '' ORDER BY id`},
	}

	var ghosts []Ghost
	for _, source := range sources {
		rows, err := s.conn.QueryContext(ctx, source.query)
		if err != nil {
			return nil, fmt.Errorf("scan %s paths: %w", source.entity, err)
		}

		for rows.Next() {
			if err := ctx.Err(); err != nil {
				rows.Close()
				return nil, err
			}
			var (
				id   int64
				path string
			)
			if err := rows.Scan(&id, &path); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s path row: %w", source.entity, err)
			}

			info, err := os.Stat(path)
			switch {
			case err == nil && info.Mode().IsRegular():
				continue
			case err != nil && !os.IsNotExist(err):
				s.logger.Warn().Err(err).Str("path", path).Msg("Cannot stat cataloged path")
				continue
			}
			ghosts = append(ghosts, Ghost{Entity: source.entity, ID: id, Path: path})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate %s paths: %w", source.entity, err)
		}
		rows.Close()
	}

	if len(ghosts) > 0 {
		s.logger.Warn().Int("count", len(ghosts)).Msg("Integrity scan found missing files")
	}
	return ghosts, nil
}

func collectVideoFiles(rows *sql.Rows) ([]*VideoFile, error) {
	var result []*VideoFile
	for rows.Next() {
		file, err := scanVideoFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video file: %w", err)
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video files: %w", err)
	}
	return result, nil
}

func scanVideoFile(scanner interface{ Scan(dest ...any) error }) (*VideoFile, error) {
	var (
		f              VideoFile
		fileHash       sql.NullString
		width          sql.NullInt64
		height         sql.NullInt64
		resolution     sql.NullString
		videoCodec     sql.NullString
		audioCodecsRaw string
		audioChannels  sql.NullString
		audioLangsRaw  string
		duration       sql.NullFloat64
		container      sql.NullString
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&f.ID,
		&f.Path,
		&f.Filename,
		&f.SizeBytes,
		&fileHash,
		&width,
		&height,
		&resolution,
		&videoCodec,
		&audioCodecsRaw,
		&audioChannels,
		&audioLangsRaw,
		&duration,
		&container,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	f.FileHash = fileHash.String
	f.ResolutionWidth = int(width.Int64)
	f.ResolutionHeight = int(height.Int64)
	f.ResolutionLabel = resolution.String
	f.VideoCodec = videoCodec.String
	f.AudioCodecs = unmarshalStrings(audioCodecsRaw)
	f.AudioChannels = audioChannels.String
	f.AudioLanguages = unmarshalStrings(audioLangsRaw)
	f.DurationSeconds = duration.Float64
	f.Container = container.String

	if created, err := parseTimeString(createdRaw); err == nil {
		f.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		f.UpdatedAt = updated
	}
	return &f, nil
}
