package tv

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
	ErrSeriesNotFound  = errors.New("series not found")
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrInvalidSeries   = errors.New("invalid series data")
	ErrInvalidEpisode  = errors.New("invalid episode data")
)

const seriesColumns = "id, title, original_title, sort_title, year, tvdb_id, tmdb_id, imdb_id, genres, overview, poster_url, created_by, cast_members, watched, personal_rating, created_at, updated_at"

const episodeColumns = "id, series_id, season_number, episode_number, title, air_date, overview, duration_seconds, resolution_label, video_codec, audio_codecs, audio_channels, audio_languages, container, file_hash, file_path, link_path, created_at, updated_at"

// Store provides series and episode catalog persistence.
type Store struct {
	db     *database.DB
	conn   *sql.DB
	logger zerolog.Logger
}

// NewStore creates a TV store.
func NewStore(db *database.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		conn:   db.Conn(),
		logger: logger.With().Str("component", "tv").Logger(),
	}
}

// SaveSeries inserts or updates a series. Titles are cleaned and the
// sort title is recomputed on every write.
func (s *Store) SaveSeries(ctx context.Context, series *Series) (*Series, error) {
	if series == nil || strings.TrimSpace(series.Title) == "" {
		return nil, ErrInvalidSeries
	}

	series.Title = titles.Clean(series.Title)
	series.OriginalTitle = titles.Clean(series.OriginalTitle)
	series.SortTitle = titles.SortKey(series.Title)

	genres, err := marshalStrings(series.Genres)
	if err != nil {
		return nil, fmt.Errorf("marshal genres: %w", err)
	}
	castMembers, err := marshalStrings(series.CastMembers)
	if err != nil {
		return nil, fmt.Errorf("marshal cast: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if series.ID == 0 {
		res, err := s.conn.ExecContext(
			ctx,
			`INSERT INTO series (
                title, original_title, sort_title, year, tvdb_id, tmdb_id, imdb_id,
                genres, overview, poster_url, created_by, cast_members,
                watched, personal_rating, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			series.Title,
			nullableString(series.OriginalTitle),
			series.SortTitle,
			nullableInt(series.Year),
			nullableInt(series.TvdbID),
			nullableInt(series.TmdbID),
			nullableString(series.ImdbID),
			genres,
			nullableString(series.Overview),
			nullableString(series.PosterURL),
			nullableString(series.CreatedBy),
			castMembers,
			boolToInt(series.Watched),
			nullableIntPtr(series.PersonalRating),
			timestamp,
			timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert series: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		series.ID = id
	} else {
		res, err := s.conn.ExecContext(
			ctx,
			`UPDATE series SET
                title = ?, original_title = ?, sort_title = ?, year = ?, tvdb_id = ?, tmdb_id = ?, imdb_id = ?,
                genres = ?, overview = ?, poster_url = ?, created_by = ?, cast_members = ?,
                watched = ?, personal_rating = ?, updated_at = ?
            WHERE id = ?`,
			series.Title,
			nullableString(series.OriginalTitle),
			series.SortTitle,
			nullableInt(series.Year),
			nullableInt(series.TvdbID),
			nullableInt(series.TmdbID),
			nullableString(series.ImdbID),
			genres,
			nullableString(series.Overview),
			nullableString(series.PosterURL),
			nullableString(series.CreatedBy),
			castMembers,
			boolToInt(series.Watched),
			nullableIntPtr(series.PersonalRating),
			timestamp,
			series.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update series: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, ErrSeriesNotFound
		}
	}

	return s.GetSeriesByID(ctx, series.ID)
}

// GetSeriesByID fetches a series by id.
func (s *Store) GetSeriesByID(ctx context.Context, id int64) (*Series, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE id = ?`, id)
	series, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	return series, nil
}

// GetSeriesByTvdbID fetches a series by TVDB id.
func (s *Store) GetSeriesByTvdbID(ctx context.Context, tvdbID int) (*Series, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE tvdb_id = ? ORDER BY id LIMIT 1`, tvdbID)
	series, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get series by tvdb id: %w", err)
	}
	return series, nil
}

// GetSeriesByTmdbID fetches a series by TMDB id.
func (s *Store) GetSeriesByTmdbID(ctx context.Context, tmdbID int) (*Series, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE tmdb_id = ? ORDER BY id LIMIT 1`, tmdbID)
	series, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get series by tmdb id: %w", err)
	}
	return series, nil
}

// GetSeriesByImdbID fetches a series by IMDB id.
func (s *Store) GetSeriesByImdbID(ctx context.Context, imdbID string) (*Series, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE imdb_id = ? ORDER BY id LIMIT 1`, imdbID)
	series, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get series by imdb id: %w", err)
	}
	return series, nil
}

// SearchSeriesByTitle finds series whose title, original title or sort
// title contains any search variant of the query.
func (s *Store) SearchSeriesByTitle(ctx context.Context, query string) ([]*Series, error) {
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
		`SELECT `+seriesColumns+` FROM series WHERE `+strings.Join(conds, " OR ")+` ORDER BY sort_title, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("search series: %w", err)
	}
	defer rows.Close()

	return collectSeries(rows)
}

// ListSeries returns all series in sort-title order.
func (s *Store) ListSeries(ctx context.Context) ([]*Series, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+seriesColumns+` FROM series ORDER BY sort_title, id`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	return collectSeries(rows)
}

// SaveEpisode inserts or updates an episode. A zero id resolves against
// the (series, season, episode) natural key first so re-validating a
// file updates the existing row instead of tripping the unique index.
func (s *Store) SaveEpisode(ctx context.Context, episode *Episode) (*Episode, error) {
	if episode == nil || episode.SeriesID == 0 || episode.SeasonNumber < 0 || episode.EpisodeNumber <= 0 {
		return nil, ErrInvalidEpisode
	}

	if episode.ID == 0 {
		existing, err := s.GetEpisode(ctx, episode.SeriesID, episode.SeasonNumber, episode.EpisodeNumber)
		if err == nil {
			episode.ID = existing.ID
		} else if !errors.Is(err, ErrEpisodeNotFound) {
			return nil, err
		}
	}

	audioCodecs, err := marshalStrings(episode.AudioCodecs)
	if err != nil {
		return nil, fmt.Errorf("marshal audio codecs: %w", err)
	}
	audioLanguages, err := marshalStrings(episode.AudioLanguages)
	if err != nil {
		return nil, fmt.Errorf("marshal audio languages: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if episode.ID == 0 {
		res, err := s.conn.ExecContext(
			ctx,
			`INSERT INTO episodes (
                series_id, season_number, episode_number, title, air_date, overview, duration_seconds,
                resolution_label, video_codec, audio_codecs, audio_channels, audio_languages,
                container, file_hash, file_path, link_path, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			episode.SeriesID,
			episode.SeasonNumber,
			episode.EpisodeNumber,
			nullableString(episode.Title),
			nullableString(episode.AirDate),
			nullableString(episode.Overview),
			nullableInt(episode.DurationSeconds),
			nullableString(episode.ResolutionLabel),
			nullableString(episode.VideoCodec),
			audioCodecs,
			nullableString(episode.AudioChannels),
			audioLanguages,
			nullableString(episode.Container),
			nullableString(episode.FileHash),
			nullableString(episode.FilePath),
			nullableString(episode.LinkPath),
			timestamp,
			timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert episode: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		episode.ID = id
	} else {
		res, err := s.conn.ExecContext(
			ctx,
			`UPDATE episodes SET
                series_id = ?, season_number = ?, episode_number = ?, title = ?, air_date = ?, overview = ?, duration_seconds = ?,
                resolution_label = ?, video_codec = ?, audio_codecs = ?, audio_channels = ?, audio_languages = ?,
                container = ?, file_hash = ?, file_path = ?, link_path = ?, updated_at = ?
            WHERE id = ?`,
			episode.SeriesID,
			episode.SeasonNumber,
			episode.EpisodeNumber,
			nullableString(episode.Title),
			nullableString(episode.AirDate),
			nullableString(episode.Overview),
			nullableInt(episode.DurationSeconds),
			nullableString(episode.ResolutionLabel),
			nullableString(episode.VideoCodec),
			audioCodecs,
			nullableString(episode.AudioChannels),
			audioLanguages,
			nullableString(episode.Container),
			nullableString(episode.FileHash),
			nullableString(episode.FilePath),
			nullableString(episode.LinkPath),
			timestamp,
			episode.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update episode: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, ErrEpisodeNotFound
		}
	}

	return s.GetEpisodeByID(ctx, episode.ID)
}

// GetEpisodeByID fetches an episode by id.
func (s *Store) GetEpisodeByID(ctx context.Context, id int64) (*Episode, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEpisodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return episode, nil
}

// GetEpisode fetches an episode by its natural key.
func (s *Store) GetEpisode(ctx context.Context, seriesID int64, season, episode int) (*Episode, error) {
	row := s.conn.QueryRowContext(
		ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE series_id = ? AND season_number = ? AND episode_number = ?`,
		seriesID, season, episode,
	)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEpisodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get episode by number: %w", err)
	}
	return ep, nil
}

// ListEpisodes returns the episodes of a series in airing order.
func (s *Store) ListEpisodes(ctx context.Context, seriesID int64) ([]*Episode, error) {
	rows, err := s.conn.QueryContext(
		ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE series_id = ? ORDER BY season_number, episode_number`,
		seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	return collectEpisodes(rows)
}

// ListAssociatedEpisodes returns every episode that has a storage file
// recorded, across all series.
func (s *Store) ListAssociatedEpisodes(ctx context.Context) ([]*Episode, error) {
	rows, err := s.conn.QueryContext(
		ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE file_path IS NOT NULL AND file_path != '' ORDER BY series_id, season_number, episode_number`,
	)
	if err != nil {
		return nil, fmt.Errorf("list associated episodes: %w", err)
	}
	defer rows.Close()

	return collectEpisodes(rows)
}

// CountEpisodesBySeason returns the number of cataloged episodes per
// season for a series.
func (s *Store) CountEpisodesBySeason(ctx context.Context, seriesID int64) (map[int]int, error) {
	rows, err := s.conn.QueryContext(
		ctx,
		`SELECT season_number, COUNT(*) FROM episodes WHERE series_id = ? GROUP BY season_number`,
		seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("count episodes: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var season, count int
		if err := rows.Scan(&season, &count); err != nil {
			return nil, fmt.Errorf("scan episode count: %w", err)
		}
		counts[season] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episode counts: %w", err)
	}
	return counts, nil
}

// DeleteEpisode permanently removes an episode row, bypassing the
// trash. Validation reversal uses this to take back rows it
// materialized; operator-facing removal goes through
// SoftDeleteEpisodeToTrash.
func (s *Store) DeleteEpisode(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEpisodeNotFound
	}
	return nil
}

// SoftDeleteSeriesToTrash moves a series and all its episodes into the
// trash, then removes the rows. The episode rows fall with the series
// through the foreign key cascade; the payload keeps them restorable.
func (s *Store) SoftDeleteSeriesToTrash(ctx context.Context, id int64) error {
	series, err := s.GetSeriesByID(ctx, id)
	if err != nil {
		return err
	}
	episodes, err := s.ListEpisodes(ctx, id)
	if err != nil {
		return err
	}

	payload, err := marshalPayload(&SeriesTrashPayload{Series: series, Episodes: episodes})
	if err != nil {
		return fmt.Errorf("marshal series payload: %w", err)
	}
	deletedAt := time.Now().UTC().Format(time.RFC3339Nano)

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO trash_items (entity_type, original_id, payload, deleted_at) VALUES (?, ?, ?, ?)`,
			"series", id, payload, deletedAt,
		); err != nil {
			return fmt.Errorf("insert trash item: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM series WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete series: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Int64("seriesId", id).
		Str("title", series.Title).
		Int("episodes", len(episodes)).
		Msg("Series moved to trash")
	return nil
}

// SoftDeleteEpisodeToTrash moves a single episode into the trash, then
// removes the row. The series row stays.
func (s *Store) SoftDeleteEpisodeToTrash(ctx context.Context, id int64) error {
	episode, err := s.GetEpisodeByID(ctx, id)
	if err != nil {
		return err
	}

	payload, err := marshalPayload(episode)
	if err != nil {
		return fmt.Errorf("marshal episode payload: %w", err)
	}
	deletedAt := time.Now().UTC().Format(time.RFC3339Nano)

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO trash_items (entity_type, original_id, payload, deleted_at) VALUES (?, ?, ?, ?)`,
			"episode", id, payload, deletedAt,
		); err != nil {
			return fmt.Errorf("insert trash item: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete episode: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Int64("episodeId", id).
		Int64("seriesId", episode.SeriesID).
		Int("season", episode.SeasonNumber).
		Int("episode", episode.EpisodeNumber).
		Msg("Episode moved to trash")
	return nil
}

// RestoreSeriesTx reinserts a series and its episodes under their
// original ids. Called by the trash store inside its restore
// transaction.
func (s *Store) RestoreSeriesTx(ctx context.Context, tx *sql.Tx, payload *SeriesTrashPayload) error {
	if payload == nil || payload.Series == nil {
		return ErrInvalidSeries
	}
	series := payload.Series

	genres, err := marshalStrings(series.Genres)
	if err != nil {
		return fmt.Errorf("marshal genres: %w", err)
	}
	castMembers, err := marshalStrings(series.CastMembers)
	if err != nil {
		return fmt.Errorf("marshal cast: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO series (`+seriesColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		series.ID,
		series.Title,
		nullableString(series.OriginalTitle),
		series.SortTitle,
		nullableInt(series.Year),
		nullableInt(series.TvdbID),
		nullableInt(series.TmdbID),
		nullableString(series.ImdbID),
		genres,
		nullableString(series.Overview),
		nullableString(series.PosterURL),
		nullableString(series.CreatedBy),
		castMembers,
		boolToInt(series.Watched),
		nullableIntPtr(series.PersonalRating),
		series.CreatedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("restore series: %w", err)
	}

	for _, episode := range payload.Episodes {
		if err := s.RestoreEpisodeTx(ctx, tx, episode); err != nil {
			return err
		}
	}
	return nil
}

// RestoreEpisodeTx reinserts an episode under its original id. The
// parent series must exist; restore the series first when both were
// trashed.
func (s *Store) RestoreEpisodeTx(ctx context.Context, tx *sql.Tx, episode *Episode) error {
	if episode == nil {
		return ErrInvalidEpisode
	}

	audioCodecs, err := marshalStrings(episode.AudioCodecs)
	if err != nil {
		return fmt.Errorf("marshal audio codecs: %w", err)
	}
	audioLanguages, err := marshalStrings(episode.AudioLanguages)
	if err != nil {
		return fmt.Errorf("marshal audio languages: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO episodes (`+episodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		episode.ID,
		episode.SeriesID,
		episode.SeasonNumber,
		episode.EpisodeNumber,
		nullableString(episode.Title),
		nullableString(episode.AirDate),
		nullableString(episode.Overview),
		nullableInt(episode.DurationSeconds),
		nullableString(episode.ResolutionLabel),
		nullableString(episode.VideoCodec),
		audioCodecs,
		nullableString(episode.AudioChannels),
		audioLanguages,
		nullableString(episode.Container),
		nullableString(episode.FileHash),
		nullableString(episode.FilePath),
		nullableString(episode.LinkPath),
		episode.CreatedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("restore episode: %w", err)
	}
	return nil
}

func collectSeries(rows *sql.Rows) ([]*Series, error) {
	var result []*Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		result = append(result, series)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return result, nil
}

func scanSeries(scanner interface{ Scan(dest ...any) error }) (*Series, error) {
	var (
		sr             Series
		originalTitle  sql.NullString
		year           sql.NullInt64
		tvdbID         sql.NullInt64
		tmdbID         sql.NullInt64
		imdbID         sql.NullString
		genresRaw      string
		overview       sql.NullString
		posterURL      sql.NullString
		createdBy      sql.NullString
		castRaw        string
		watched        int64
		personalRating sql.NullInt64
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&sr.ID,
		&sr.Title,
		&originalTitle,
		&sr.SortTitle,
		&year,
		&tvdbID,
		&tmdbID,
		&imdbID,
		&genresRaw,
		&overview,
		&posterURL,
		&createdBy,
		&castRaw,
		&watched,
		&personalRating,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	sr.OriginalTitle = originalTitle.String
	sr.Year = int(year.Int64)
	sr.TvdbID = int(tvdbID.Int64)
	sr.TmdbID = int(tmdbID.Int64)
	sr.ImdbID = imdbID.String
	sr.Genres = unmarshalStrings(genresRaw)
	sr.Overview = overview.String
	sr.PosterURL = posterURL.String
	sr.CreatedBy = createdBy.String
	sr.CastMembers = unmarshalStrings(castRaw)
	sr.Watched = watched != 0
	if personalRating.Valid {
		rating := int(personalRating.Int64)
		sr.PersonalRating = &rating
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		sr.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		sr.UpdatedAt = updated
	}
	return &sr, nil
}

func collectEpisodes(rows *sql.Rows) ([]*Episode, error) {
	var result []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		result = append(result, episode)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return result, nil
}

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		ep             Episode
		title          sql.NullString
		airDate        sql.NullString
		overview       sql.NullString
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
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&ep.ID,
		&ep.SeriesID,
		&ep.SeasonNumber,
		&ep.EpisodeNumber,
		&title,
		&airDate,
		&overview,
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
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	ep.Title = title.String
	ep.AirDate = airDate.String
	ep.Overview = overview.String
	ep.DurationSeconds = int(duration.Int64)
	ep.ResolutionLabel = resolution.String
	ep.VideoCodec = videoCodec.String
	ep.AudioCodecs = unmarshalStrings(audioCodecsRaw)
	ep.AudioChannels = audioChannels.String
	ep.AudioLanguages = unmarshalStrings(audioLangsRaw)
	ep.Container = container.String
	ep.FileHash = fileHash.String
	ep.FilePath = filePath.String
	ep.LinkPath = linkPath.String

	if created, err := parseTimeString(createdRaw); err == nil {
		ep.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		ep.UpdatedAt = updated
	}
	return &ep, nil
}
