package movies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediatheque/mediatheque/internal/database"
	"github.com/mediatheque/mediatheque/internal/titles"
)

var (
	ErrMovieNotFound = errors.New("movie not found")
	ErrInvalidMovie  = errors.New("invalid movie data")
)

const movieColumns = "id, title, original_title, sort_title, year, tmdb_id, imdb_id, genres, overview, poster_url, director, cast_members, duration_seconds, resolution_label, video_codec, audio_codecs, audio_channels, audio_languages, container, file_hash, file_path, link_path, watched, personal_rating, created_at, updated_at"

// Store provides movie catalog persistence.
type Store struct {
	db     *database.DB
	conn   *sql.DB
	logger zerolog.Logger
}

// NewStore creates a movie store.
func NewStore(db *database.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		conn:   db.Conn(),
		logger: logger.With().Str("component", "movies").Logger(),
	}
}

// Save inserts or updates a movie. Titles are cleaned and the sort
// title is recomputed on every write.
func (s *Store) Save(ctx context.Context, movie *Movie) (*Movie, error) {
	if movie == nil || strings.TrimSpace(movie.Title) == "" {
		return nil, ErrInvalidMovie
	}

	movie.Title = titles.Clean(movie.Title)
	movie.OriginalTitle = titles.Clean(movie.OriginalTitle)
	movie.SortTitle = titles.SortKey(movie.Title)

	genres, err := marshalStrings(movie.Genres)
	if err != nil {
		return nil, fmt.Errorf("marshal genres: %w", err)
	}
	castMembers, err := marshalStrings(movie.CastMembers)
	if err != nil {
		return nil, fmt.Errorf("marshal cast: %w", err)
	}
	audioCodecs, err := marshalStrings(movie.AudioCodecs)
	if err != nil {
		return nil, fmt.Errorf("marshal audio codecs: %w", err)
	}
	audioLanguages, err := marshalStrings(movie.AudioLanguages)
	if err != nil {
		return nil, fmt.Errorf("marshal audio languages: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	if movie.ID == 0 {
		res, err := s.conn.ExecContext(
			ctx,
			`INSERT INTO movies (
                title, original_title, sort_title, year, tmdb_id, imdb_id,
                genres, overview, poster_url, director, cast_members, duration_seconds,
                resolution_label, video_codec, audio_codecs, audio_channels, audio_languages,
                container, file_hash, file_path, link_path, watched, personal_rating,
                created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			movie.Title,
			nullableString(movie.OriginalTitle),
			movie.SortTitle,
			nullableInt(movie.Year),
			nullableInt(movie.TmdbID),
			nullableString(movie.ImdbID),
			genres,
			nullableString(movie.Overview),
			nullableString(movie.PosterURL),
			nullableString(movie.Director),
			castMembers,
			nullableInt(movie.DurationSeconds),
			nullableString(movie.ResolutionLabel),
			nullableString(movie.VideoCodec),
			audioCodecs,
			nullableString(movie.AudioChannels),
			audioLanguages,
			nullableString(movie.Container),
			nullableString(movie.FileHash),
			nullableString(movie.FilePath),
			nullableString(movie.LinkPath),
			boolToInt(movie.Watched),
			nullableIntPtr(movie.PersonalRating),
			timestamp,
			timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert movie: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		movie.ID = id
	} else {
		res, err := s.conn.ExecContext(
			ctx,
			`UPDATE movies SET
                title = ?, original_title = ?, sort_title = ?, year = ?, tmdb_id = ?, imdb_id = ?,
                genres = ?, overview = ?, poster_url = ?, director = ?, cast_members = ?, duration_seconds = ?,
                resolution_label = ?, video_codec = ?, audio_codecs = ?, audio_channels = ?, audio_languages = ?,
                container = ?, file_hash = ?, file_path = ?, link_path = ?, watched = ?, personal_rating = ?,
                updated_at = ?
            WHERE id = ?`,
			movie.Title,
			nullableString(movie.OriginalTitle),
			movie.SortTitle,
			nullableInt(movie.Year),
			nullableInt(movie.TmdbID),
			nullableString(movie.ImdbID),
			genres,
			nullableString(movie.Overview),
			nullableString(movie.PosterURL),
			nullableString(movie.Director),
			castMembers,
			nullableInt(movie.DurationSeconds),
			nullableString(movie.ResolutionLabel),
			nullableString(movie.VideoCodec),
			audioCodecs,
			nullableString(movie.AudioChannels),
			audioLanguages,
			nullableString(movie.Container),
			nullableString(movie.FileHash),
			nullableString(movie.FilePath),
			nullableString(movie.LinkPath),
			boolToInt(movie.Watched),
			nullableIntPtr(movie.PersonalRating),
			timestamp,
			movie.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update movie: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, ErrMovieNotFound
		}
	}

	return s.GetByID(ctx, movie.ID)
}

// GetByID fetches a movie by id.
func (s *Store) GetByID(ctx context.Context, id int64) (*Movie, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id)
	movie, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}
	return movie, nil
}

// GetByTmdbID fetches a movie by TMDB id.
func (s *Store) GetByTmdbID(ctx context.Context, tmdbID int) (*Movie, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE tmdb_id = ? ORDER BY id LIMIT 1`, tmdbID)
	movie, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get movie by tmdb id: %w", err)
	}
	return movie, nil
}

// GetByImdbID fetches a movie by IMDB id.
func (s *Store) GetByImdbID(ctx context.Context, imdbID string) (*Movie, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE imdb_id = ? ORDER BY id LIMIT 1`, imdbID)
	movie, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get movie by imdb id: %w", err)
	}
	return movie, nil
}

// SearchByTitle finds movies whose title, original title or sort
// title contains any search variant of the query.
func (s *Store) SearchByTitle(ctx context.Context, query string) ([]*Movie, error) {
	variants := titles.SearchVariants(query)
	if len(variants) == 0 {
		return nil, nil
	}

	conds := make([]string, 0, len(variants)*3)
	args := make([]any, 0, len(variants)*3)
	for _, variant := range variants {
		pattern := "%" + variant + "%"
		conds = append(conds, "title LIKE ?", "original_title LIKE ?", "sort_title LIKE ?")
		args = append(args, pattern, pattern, pattern)
	}

	rows, err := s.conn.QueryContext(
		ctx,
		`SELECT `+movieColumns+` FROM movies WHERE `+strings.Join(conds, " OR ")+` ORDER BY sort_title, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	defer rows.Close()

	return collectMovies(rows)
}

// List returns all movies in sort-title order.
func (s *Store) List(ctx context.Context) ([]*Movie, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+movieColumns+` FROM movies ORDER BY sort_title, id`)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	defer rows.Close()

	return collectMovies(rows)
}

// ListAssociated returns movies that have a storage file recorded.
func (s *Store) ListAssociated(ctx context.Context) ([]*Movie, error) {
	rows, err := s.conn.QueryContext(
		ctx,
		`SELECT `+movieColumns+` FROM movies WHERE file_path IS NOT NULL AND file_path != '' ORDER BY sort_title, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list associated movies: %w", err)
	}
	defer rows.Close()

	return collectMovies(rows)
}

// SoftDeleteToTrash moves a movie into the trash, payload and all,
// then removes the row.
func (s *Store) SoftDeleteToTrash(ctx context.Context, id int64) error {
	movie, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	payload, err := marshalPayload(movie)
	if err != nil {
		return fmt.Errorf("marshal movie payload: %w", err)
	}
	deletedAt := time.Now().UTC().Format(time.RFC3339Nano)

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO trash_items (entity_type, original_id, payload, deleted_at) VALUES (?, ?, ?, ?)`,
			"movie", id, payload, deletedAt,
		); err != nil {
			return fmt.Errorf("insert trash item: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete movie: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int64("movieId", id).Str("title", movie.Title).Msg("Movie moved to trash")
	return nil
}

// Delete permanently removes a movie row, bypassing the trash.
// Validation reversal uses this to take back rows it materialized;
// operator-facing removal goes through SoftDeleteToTrash.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrMovieNotFound
	}
	return nil
}

// RestoreTx reinserts a movie under its original id. Called by the
// trash store inside its restore transaction.
func (s *Store) RestoreTx(ctx context.Context, tx *sql.Tx, movie *Movie) error {
	genres, err := marshalStrings(movie.Genres)
	if err != nil {
		return fmt.Errorf("marshal genres: %w", err)
	}
	castMembers, err := marshalStrings(movie.CastMembers)
	if err != nil {
		return fmt.Errorf("marshal cast: %w", err)
	}
	audioCodecs, err := marshalStrings(movie.AudioCodecs)
	if err != nil {
		return fmt.Errorf("marshal audio codecs: %w", err)
	}
	audioLanguages, err := marshalStrings(movie.AudioLanguages)
	if err != nil {
		return fmt.Errorf("marshal audio languages: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO movies (`+movieColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		movie.ID,
		movie.Title,
		nullableString(movie.OriginalTitle),
		movie.SortTitle,
		nullableInt(movie.Year),
		nullableInt(movie.TmdbID),
		nullableString(movie.ImdbID),
		genres,
		nullableString(movie.Overview),
		nullableString(movie.PosterURL),
		nullableString(movie.Director),
		castMembers,
		nullableInt(movie.DurationSeconds),
		nullableString(movie.ResolutionLabel),
		nullableString(movie.VideoCodec),
		audioCodecs,
		nullableString(movie.AudioChannels),
		audioLanguages,
		nullableString(movie.Container),
		nullableString(movie.FileHash),
		nullableString(movie.FilePath),
		nullableString(movie.LinkPath),
		boolToInt(movie.Watched),
		nullableIntPtr(movie.PersonalRating),
		movie.CreatedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("restore movie: %w", err)
	}
	return nil
}

func collectMovies(rows *sql.Rows) ([]*Movie, error) {
	var result []*Movie
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		result = append(result, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies: %w", err)
	}
	return result, nil
}

func scanMovie(scanner interface{ Scan(dest ...any) error }) (*Movie, error) {
	var (
		m              Movie
		originalTitle  sql.NullString
		year           sql.NullInt64
		tmdbID         sql.NullInt64
		imdbID         sql.NullString
		genresRaw      string
		overview       sql.NullString
		posterURL      sql.NullString
		director       sql.NullString
		castRaw        string
		duration       sql.NullInt64
		resolution     sql.NullString
		videoCodec     sql.NullString
		audioCodecsRaw string
		audioChannels  sql.NullString
		audioLangsRaw  string
		container      sql.NullString
		fileHash       sql.NullString
		filePath       sql.NullString
		linkPath       sql.NullString
		watched        int64
		personalRating sql.NullInt64
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&m.ID,
		&m.Title,
		&originalTitle,
		&m.SortTitle,
		&year,
		&tmdbID,
		&imdbID,
		&genresRaw,
		&overview,
		&posterURL,
		&director,
		&castRaw,
		&duration,
		&resolution,
		&videoCodec,
		&audioCodecsRaw,
		&audioChannels,
		&audioLangsRaw,
		&container,
		&fileHash,
		&filePath,
		&linkPath,
		&watched,
		&personalRating,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	m.OriginalTitle = originalTitle.String
	m.Year = int(year.Int64)
	m.TmdbID = int(tmdbID.Int64)
	m.ImdbID = imdbID.String
	m.Genres = unmarshalStrings(genresRaw)
	m.Overview = overview.String
	m.PosterURL = posterURL.String
	m.Director = director.String
	m.CastMembers = unmarshalStrings(castRaw)
	m.DurationSeconds = int(duration.Int64)
	m.ResolutionLabel = resolution.String
	m.VideoCodec = videoCodec.String
	m.AudioCodecs = unmarshalStrings(audioCodecsRaw)
	m.AudioChannels = audioChannels.String
	m.AudioLanguages = unmarshalStrings(audioLangsRaw)
	m.Container = container.String
	m.FileHash = fileHash.String
	m.FilePath = filePath.String
	m.LinkPath = linkPath.String
	m.Watched = watched != 0
	if personalRating.Valid {
		rating := int(personalRating.Int64)
		m.PersonalRating = &rating
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		m.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		m.UpdatedAt = updated
	}
	return &m, nil
}
