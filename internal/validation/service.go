package validation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/library/files"
	"github.com/mediatheque/mediatheque/internal/library/movies"
	"github.com/mediatheque/mediatheque/internal/library/scanner"
	"github.com/mediatheque/mediatheque/internal/library/tv"
	"github.com/mediatheque/mediatheque/internal/logger"
	"github.com/mediatheque/mediatheque/internal/matcher"
	"github.com/mediatheque/mediatheque/internal/metadata"
	"github.com/mediatheque/mediatheque/internal/titles"
)

// Catalog is the slice of the metadata service the validation flow
// needs: resolving a chosen candidate to its full record and naming
// the episodes it materializes.
type Catalog interface {
	GetMovieDetails(ctx context.Context, id int) (*metadata.MediaDetails, error)
	GetSeriesDetails(ctx context.Context, source metadata.Source, id int) (*metadata.MediaDetails, error)
	GetEpisodeTitles(ctx context.Context, source metadata.Source, seriesID, season int) ([]metadata.EpisodeTitle, error)
	FindByExternalID(ctx context.Context, externalID string) (*metadata.MediaDetails, error)
}

// Service owns the pending validation queue. Accepting a row writes
// catalog entries for the identified movie or episodes; rejecting or
// resetting takes those entries back as long as no transfer has
// attached a storage file to them. File paths and technical metadata
// land on catalog rows at transfer time, not here.
type Service struct {
	store   *Store
	catalog Catalog
	matcher *matcher.Matcher
	movies  *movies.Store
	tv      *tv.Store
	files   *files.Store
	logger  *logger.Logger
	locks   *keyedMutex
}

// NewService wires the validation queue to the catalog stores and the
// matcher used for manual re-searches.
func NewService(store *Store, catalog Catalog, match *matcher.Matcher, movieStore *movies.Store, tvStore *tv.Store, fileStore *files.Store, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		matcher: match,
		movies:  movieStore,
		tv:      tvStore,
		files:   fileStore,
		logger:  log.WithComponent("validation"),
		locks:   newKeyedMutex(),
	}
}

// Register records a scanned file and its candidates as a pending
// validation. A row already decided by an operator is returned
// unchanged; a still-pending row is refreshed with the new parse and
// candidate list.
func (s *Service) Register(ctx context.Context, videoFileID int64, parsed scanner.ParsedFilename, mediaType scanner.MediaType, candidates []matcher.Candidate) (*PendingValidation, error) {
	pending := &PendingValidation{
		VideoFileID:      videoFileID,
		MediaType:        mediaType,
		ParsedTitle:      titles.Clean(parsed.Title),
		ParsedYear:       parsed.Year,
		ParsedSeason:     parsed.Season,
		ParsedEpisode:    parsed.Episode,
		ParsedEpisodeEnd: parsed.EpisodeEnd,
		Status:           StatusPending,
		Candidates:       candidates,
	}

	existing, err := s.store.GetByVideoFileID(ctx, videoFileID)
	switch {
	case err == nil:
		if existing.Status != StatusPending {
			return existing, nil
		}
		pending.ID = existing.ID
	case !errors.Is(err, ErrPendingNotFound):
		return nil, err
	}

	saved, err := s.store.Save(ctx, pending)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Int64("pendingId", saved.ID).
		Int64("videoFileId", videoFileID).
		Str("title", saved.ParsedTitle).
		Int("candidates", len(saved.Candidates)).
		Msg("Pending validation registered")
	return saved, nil
}

// GetByID returns one pending validation.
func (s *Service) GetByID(ctx context.Context, id int64) (*PendingValidation, error) {
	pending, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, wrapPendingErr(err, id)
	}
	return pending, nil
}

// ListPending returns the rows awaiting an operator decision.
func (s *Service) ListPending(ctx context.Context) ([]*PendingValidation, error) {
	return s.store.ListByStatus(ctx, StatusPending)
}

// ListByStatus returns the rows in one lifecycle state.
func (s *Service) ListByStatus(ctx context.Context, status Status) ([]*PendingValidation, error) {
	return s.store.ListByStatus(ctx, status)
}

// ListAutoValidated returns rows the matcher decided on its own, for
// after-the-fact review.
func (s *Service) ListAutoValidated(ctx context.Context) ([]*PendingValidation, error) {
	return s.store.ListAutoValidated(ctx)
}

// Accept validates a pending row against the chosen candidate. The
// candidate id may come from the stored list, from a manual search, or
// be a raw external id such as "tt0133093".
func (s *Service) Accept(ctx context.Context, id int64, candidateID string) (*PendingValidation, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)
	return s.accept(ctx, id, candidateID, false, 0)
}

// AutoValidate accepts the stored top candidate on the matcher's
// behalf. The row keeps its auto flag so operators can review and
// reverse these decisions without hunting for them.
func (s *Service) AutoValidate(ctx context.Context, id int64) (*PendingValidation, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)

	pending, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, wrapPendingErr(err, id)
	}
	if pending.Status != StatusPending {
		return pending, nil
	}
	if len(pending.Candidates) == 0 {
		return nil, faults.InvalidInput(fmt.Sprintf("pending validation %d has no candidates to auto-validate", id))
	}
	return s.accept(ctx, id, pending.Candidates[0].ExternalID, true, 0)
}

// Reject marks a pending row as not-this-file. Stored candidates stay
// for a later retry and the file on disk is untouched.
func (s *Service) Reject(ctx context.Context, id int64) (*PendingValidation, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)
	return s.transition(ctx, id, StatusRejected, true)
}

// ResetToPending returns a decided row to the queue, clearing the
// selection and the auto flag while keeping candidates.
func (s *Service) ResetToPending(ctx context.Context, id int64) (*PendingValidation, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)
	return s.transition(ctx, id, StatusPending, true)
}

// SearchManual re-queries the catalogs for an operator-supplied title
// and returns scored candidates. Nothing is persisted; the operator
// follows up with Accept on the id they pick.
func (s *Service) SearchManual(ctx context.Context, query string, mediaType scanner.MediaType) ([]matcher.Candidate, error) {
	res, err := s.matcher.Match(ctx, matcher.Request{MediaType: mediaType, Title: query})
	if err != nil {
		return nil, err
	}
	return res.Candidates, nil
}

// SearchByExternalID resolves a single external id, such as an IMDb
// "tt" id or a bare TVDB id, to a candidate. Nothing is persisted.
func (s *Service) SearchByExternalID(ctx context.Context, externalID string) (*matcher.Candidate, error) {
	details, err := s.catalog.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	cand := candidateFromDetails(details)
	return &cand, nil
}

func (s *Service) accept(ctx context.Context, id int64, candidateID string, auto bool, cascadeRootID int64) (*PendingValidation, error) {
	pending, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, wrapPendingErr(err, id)
	}
	switch pending.Status {
	case StatusValidated:
		if pending.SelectedCandidateID == candidateID {
			return pending, nil
		}
		return nil, faults.InvalidInput(fmt.Sprintf("pending validation %d is already validated; reset it before accepting another candidate", id))
	case StatusRejected:
		return nil, faults.InvalidInput(fmt.Sprintf("pending validation %d was rejected; reset it to pending first", id))
	}

	details, err := s.resolveDetails(ctx, pending, candidateID)
	if err != nil {
		return nil, err
	}

	switch pending.MediaType {
	case scanner.MediaTypeMovie:
		err = s.materializeMovie(ctx, details)
	case scanner.MediaTypeSeries:
		err = s.materializeSeries(ctx, pending, details)
	default:
		err = faults.InvalidInput(fmt.Sprintf("pending validation %d has media type %q", id, pending.MediaType))
	}
	if err != nil {
		return nil, err
	}

	pending.Status = StatusValidated
	pending.SelectedCandidateID = candidateID
	pending.AutoValidated = auto
	pending.CascadeRootID = cascadeRootID
	saved, err := s.store.Save(ctx, pending)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("pendingId", id).
		Str("candidate", candidateID).
		Str("title", details.Title).
		Bool("auto", auto).
		Msg("Pending validation accepted")

	if saved.MediaType == scanner.MediaTypeSeries && cascadeRootID == 0 {
		s.cascadeAccept(ctx, saved, details)
	}
	return saved, nil
}

// resolveDetails turns a candidate id into a full catalog record. A
// stored snapshot pins the source; an unlisted id is resolved by the
// pending's media type, with "tt" ids routed through the external id
// finder and bare series ids tried against TMDB then TVDB.
func (s *Service) resolveDetails(ctx context.Context, pending *PendingValidation, candidateID string) (*metadata.MediaDetails, error) {
	if cand := pending.Candidate(candidateID); cand != nil {
		numericID, err := strconv.Atoi(cand.ExternalID)
		if err != nil {
			return nil, faults.InvalidInput(fmt.Sprintf("candidate id %q is not numeric", cand.ExternalID))
		}
		if pending.MediaType == scanner.MediaTypeMovie {
			return s.catalog.GetMovieDetails(ctx, numericID)
		}
		return s.catalog.GetSeriesDetails(ctx, cand.Source, numericID)
	}

	if strings.HasPrefix(candidateID, "tt") {
		return s.catalog.FindByExternalID(ctx, candidateID)
	}
	numericID, err := strconv.Atoi(candidateID)
	if err != nil {
		return nil, faults.InvalidInput(fmt.Sprintf("unrecognized candidate id %q", candidateID))
	}
	if pending.MediaType == scanner.MediaTypeMovie {
		return s.catalog.GetMovieDetails(ctx, numericID)
	}
	details, err := s.catalog.GetSeriesDetails(ctx, metadata.SourceTMDB, numericID)
	if err == nil || !faults.IsNotFound(err) {
		return details, err
	}
	return s.catalog.GetSeriesDetails(ctx, metadata.SourceTVDB, numericID)
}

// materializeMovie writes the catalog row for the resolved movie. An
// existing row keeps its file association and personal state; only
// the catalog metadata refreshes.
func (s *Service) materializeMovie(ctx context.Context, details *metadata.MediaDetails) error {
	movie := &movies.Movie{
		Title:           details.Title,
		OriginalTitle:   details.OriginalTitle,
		Year:            details.Year,
		TmdbID:          details.TmdbID,
		ImdbID:          details.ImdbID,
		Genres:          details.Genres,
		Overview:        details.Overview,
		PosterURL:       details.PosterURL,
		Director:        details.Director,
		CastMembers:     details.Cast,
		DurationSeconds: details.Runtime * 60,
	}

	if details.TmdbID != 0 {
		existing, err := s.movies.GetByTmdbID(ctx, details.TmdbID)
		switch {
		case err == nil:
			movie.ID = existing.ID
			movie.Watched = existing.Watched
			movie.PersonalRating = existing.PersonalRating
			movie.FilePath = existing.FilePath
			movie.LinkPath = existing.LinkPath
			movie.FileHash = existing.FileHash
			movie.ResolutionLabel = existing.ResolutionLabel
			movie.VideoCodec = existing.VideoCodec
			movie.AudioCodecs = existing.AudioCodecs
			movie.AudioChannels = existing.AudioChannels
			movie.AudioLanguages = existing.AudioLanguages
			movie.Container = existing.Container
		case !errors.Is(err, movies.ErrMovieNotFound):
			return err
		}
	}

	_, err := s.movies.Save(ctx, movie)
	return err
}

// materializeSeries writes the series row and one episode row per
// parsed episode number. The series row is shared across accepts;
// episode rows adopt existing ones by natural key so a re-accept never
// drops a transferred file association.
func (s *Service) materializeSeries(ctx context.Context, pending *PendingValidation, details *metadata.MediaDetails) error {
	episodeNumbers := pending.EpisodeRange()
	if len(episodeNumbers) == 0 {
		return faults.InvalidInput(fmt.Sprintf("pending validation %d has no parsed episode number; season packs validate per file", pending.ID))
	}

	series := &tv.Series{
		Title:         details.Title,
		OriginalTitle: details.OriginalTitle,
		Year:          details.Year,
		TvdbID:        details.TvdbID,
		TmdbID:        details.TmdbID,
		ImdbID:        details.ImdbID,
		Genres:        details.Genres,
		Overview:      details.Overview,
		PosterURL:     details.PosterURL,
		CreatedBy:     details.CreatedBy,
		CastMembers:   details.Cast,
	}
	existing, err := s.findSeries(ctx, details)
	if err != nil {
		return err
	}
	if existing != nil {
		series.ID = existing.ID
		series.Watched = existing.Watched
		series.PersonalRating = existing.PersonalRating
	}
	saved, err := s.tv.SaveSeries(ctx, series)
	if err != nil {
		return err
	}

	season := pending.ParsedSeason
	byNumber := s.episodeTitles(ctx, details, season)
	for _, num := range episodeNumbers {
		episode := &tv.Episode{
			SeriesID:        saved.ID,
			SeasonNumber:    season,
			EpisodeNumber:   num,
			DurationSeconds: details.Runtime * 60,
		}
		if prev, err := s.tv.GetEpisode(ctx, saved.ID, season, num); err == nil {
			episode.ID = prev.ID
			episode.Title = prev.Title
			episode.AirDate = prev.AirDate
			episode.Overview = prev.Overview
			episode.ResolutionLabel = prev.ResolutionLabel
			episode.VideoCodec = prev.VideoCodec
			episode.AudioCodecs = prev.AudioCodecs
			episode.AudioChannels = prev.AudioChannels
			episode.AudioLanguages = prev.AudioLanguages
			episode.Container = prev.Container
			episode.FileHash = prev.FileHash
			episode.FilePath = prev.FilePath
			episode.LinkPath = prev.LinkPath
		} else if !errors.Is(err, tv.ErrEpisodeNotFound) {
			return err
		}
		if t, ok := byNumber[num]; ok {
			episode.Title = t.Title
			episode.AirDate = t.AirDate
			episode.Overview = t.Overview
		}
		if _, err := s.tv.SaveEpisode(ctx, episode); err != nil {
			return err
		}
	}
	return nil
}

// episodeTitles fetches the season's episode names keyed by episode
// number. A failed fetch degrades to numbered, untitled episodes.
func (s *Service) episodeTitles(ctx context.Context, details *metadata.MediaDetails, season int) map[int]metadata.EpisodeTitle {
	listed, err := s.catalog.GetEpisodeTitles(ctx, details.Source, details.ID, season)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("series", details.Title).
			Int("season", season).
			Msg("Episode titles unavailable")
		return nil
	}
	byNumber := make(map[int]metadata.EpisodeTitle, len(listed))
	for _, t := range listed {
		byNumber[t.Episode] = t
	}
	return byNumber
}

// findSeries locates an existing catalog row for the resolved series
// by any of its external ids.
func (s *Service) findSeries(ctx context.Context, details *metadata.MediaDetails) (*tv.Series, error) {
	if details.TmdbID != 0 {
		series, err := s.tv.GetSeriesByTmdbID(ctx, details.TmdbID)
		if err == nil {
			return series, nil
		}
		if !errors.Is(err, tv.ErrSeriesNotFound) {
			return nil, err
		}
	}
	if details.TvdbID != 0 {
		series, err := s.tv.GetSeriesByTvdbID(ctx, details.TvdbID)
		if err == nil {
			return series, nil
		}
		if !errors.Is(err, tv.ErrSeriesNotFound) {
			return nil, err
		}
	}
	if details.ImdbID != "" {
		series, err := s.tv.GetSeriesByImdbID(ctx, details.ImdbID)
		if err == nil {
			return series, nil
		}
		if !errors.Is(err, tv.ErrSeriesNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// cascadeAccept validates sibling pendings of the accepted series:
// same parsed title or same directory, still pending, and carrying the
// accepted series among their candidates. Cascade failures are logged,
// never surfaced to the primary accept; a missing row ends the walk.
func (s *Service) cascadeAccept(ctx context.Context, root *PendingValidation, details *metadata.MediaDetails) {
	siblings, err := s.findSeriesSiblings(ctx, root)
	if err != nil {
		s.logger.Warn().Err(err).Int64("pendingId", root.ID).Msg("Cascade sibling lookup failed")
		return
	}

	matchID := strconv.Itoa(details.ID)
	validated := 0
	for _, sibling := range siblings {
		cand := sibling.Candidate(matchID)
		if cand == nil || cand.Source != details.Source {
			continue
		}
		if _, err := s.accept(ctx, sibling.ID, matchID, true, root.ID); err != nil {
			if faults.IsNotFound(err) {
				s.logger.Warn().Err(err).Int64("pendingId", sibling.ID).Msg("Cascade stopped on missing row")
				break
			}
			s.logger.Warn().Err(err).Int64("pendingId", sibling.ID).Msg("Cascade accept failed")
			continue
		}
		validated++
	}
	if validated > 0 {
		s.logger.Info().
			Int64("rootId", root.ID).
			Str("series", details.Title).
			Int("validated", validated).
			Msg("Series cascade validated siblings")
	}
}

// findSeriesSiblings collects still-pending series rows that parse to
// the same title or sit in the same directory as the root's file.
func (s *Service) findSeriesSiblings(ctx context.Context, root *PendingValidation) ([]*PendingValidation, error) {
	pendings, err := s.store.ListByStatus(ctx, StatusPending)
	if err != nil {
		return nil, err
	}

	rootDir := ""
	if file, err := s.files.GetByID(ctx, root.VideoFileID); err == nil {
		rootDir = filepath.Dir(file.Path)
	}
	rootKey := titles.SortKey(root.ParsedTitle)

	var siblings []*PendingValidation
	for _, p := range pendings {
		if p.ID == root.ID || p.MediaType != scanner.MediaTypeSeries {
			continue
		}
		if rootKey != "" && titles.SortKey(p.ParsedTitle) == rootKey {
			siblings = append(siblings, p)
			continue
		}
		if rootDir == "" {
			continue
		}
		if file, err := s.files.GetByID(ctx, p.VideoFileID); err == nil && filepath.Dir(file.Path) == rootDir {
			siblings = append(siblings, p)
		}
	}
	return siblings, nil
}

func (s *Service) transition(ctx context.Context, id int64, target Status, propagate bool) (*PendingValidation, error) {
	pending, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, wrapPendingErr(err, id)
	}
	if pending.Status == target {
		return pending, nil
	}
	rootID := pending.CascadeRootID

	if pending.Status == StatusValidated {
		if err := s.dematerialize(ctx, pending); err != nil {
			return nil, err
		}
	}

	pending.Status = target
	pending.SelectedCandidateID = ""
	pending.AutoValidated = false
	pending.CascadeRootID = 0
	saved, err := s.store.Save(ctx, pending)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("pendingId", id).
		Str("status", string(target)).
		Msg("Pending validation transitioned")

	if propagate {
		s.propagateTransition(ctx, id, rootID, target)
	}
	return saved, nil
}

// propagateTransition mirrors a reversal across the cascade group: a
// root reverses its auto-validated members, a member reverses its
// auto-validated siblings. The manually accepted root is never touched
// by a member's reversal, and a missing row ends the walk.
func (s *Service) propagateTransition(ctx context.Context, selfID, rootID int64, target Status) {
	lookupID := rootID
	if lookupID == 0 {
		lookupID = selfID
	}
	members, err := s.store.ListCascadeMembers(ctx, lookupID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("rootId", lookupID).Msg("Cascade member lookup failed")
		return
	}

	reversed := 0
	for _, member := range members {
		if member.ID == selfID {
			continue
		}
		if member.Status != StatusValidated || !member.AutoValidated {
			continue
		}
		if _, err := s.transition(ctx, member.ID, target, false); err != nil {
			if faults.IsNotFound(err) {
				s.logger.Warn().Err(err).Int64("pendingId", member.ID).Msg("Cascade reversal stopped on missing row")
				break
			}
			s.logger.Warn().Err(err).Int64("pendingId", member.ID).Msg("Cascade reversal failed")
			continue
		}
		reversed++
	}
	if reversed > 0 {
		s.logger.Info().
			Int64("rootId", lookupID).
			Int("reversed", reversed).
			Str("status", string(target)).
			Msg("Cascade group reversed")
	}
}

func (s *Service) dematerialize(ctx context.Context, pending *PendingValidation) error {
	switch pending.MediaType {
	case scanner.MediaTypeMovie:
		return s.dematerializeMovie(ctx, pending)
	case scanner.MediaTypeSeries:
		return s.dematerializeEpisodes(ctx, pending)
	default:
		return nil
	}
}

// dematerializeMovie removes the movie row a validated pending wrote,
// unless a transfer already attached a storage file to it.
func (s *Service) dematerializeMovie(ctx context.Context, pending *PendingValidation) error {
	movie, err := s.findMovieForPending(ctx, pending)
	if err != nil || movie == nil {
		return err
	}
	if movie.FilePath != "" {
		s.logger.Warn().
			Int64("movieId", movie.ID).
			Int64("pendingId", pending.ID).
			Msg("Keeping transferred movie row on reversal")
		return nil
	}
	if err := s.movies.Delete(ctx, movie.ID); err != nil && !errors.Is(err, movies.ErrMovieNotFound) {
		return err
	}
	return nil
}

// dematerializeEpisodes removes the episode rows a validated pending
// wrote. Episodes a transfer already associated with a storage file
// stay, and the series row always stays.
func (s *Service) dematerializeEpisodes(ctx context.Context, pending *PendingValidation) error {
	series, err := s.findSeriesForPending(ctx, pending)
	if err != nil || series == nil {
		return err
	}
	for _, num := range pending.EpisodeRange() {
		episode, err := s.tv.GetEpisode(ctx, series.ID, pending.ParsedSeason, num)
		if errors.Is(err, tv.ErrEpisodeNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if episode.FilePath != "" {
			s.logger.Warn().
				Int64("episodeId", episode.ID).
				Int64("pendingId", pending.ID).
				Msg("Keeping transferred episode row on reversal")
			continue
		}
		if err := s.tv.DeleteEpisode(ctx, episode.ID); err != nil && !errors.Is(err, tv.ErrEpisodeNotFound) {
			return err
		}
	}
	return nil
}

// findMovieForPending resolves the movie row a pending's selected
// candidate points at, without touching the network.
func (s *Service) findMovieForPending(ctx context.Context, pending *PendingValidation) (*movies.Movie, error) {
	candidateID := pending.SelectedCandidateID
	if candidateID == "" {
		return nil, nil
	}

	var (
		movie *movies.Movie
		err   error
	)
	if strings.HasPrefix(candidateID, "tt") {
		movie, err = s.movies.GetByImdbID(ctx, candidateID)
	} else if n, convErr := strconv.Atoi(candidateID); convErr == nil {
		movie, err = s.movies.GetByTmdbID(ctx, n)
	} else {
		return nil, nil
	}
	if errors.Is(err, movies.ErrMovieNotFound) {
		return nil, nil
	}
	return movie, err
}

// findSeriesForPending resolves the series row a pending's selected
// candidate points at, without touching the network. A stored
// candidate snapshot pins TMDB vs TVDB; a raw numeric id tries both.
func (s *Service) findSeriesForPending(ctx context.Context, pending *PendingValidation) (*tv.Series, error) {
	candidateID := pending.SelectedCandidateID
	if candidateID == "" {
		return nil, nil
	}

	if strings.HasPrefix(candidateID, "tt") {
		series, err := s.tv.GetSeriesByImdbID(ctx, candidateID)
		if errors.Is(err, tv.ErrSeriesNotFound) {
			return nil, nil
		}
		return series, err
	}
	n, convErr := strconv.Atoi(candidateID)
	if convErr != nil {
		return nil, nil
	}
	if cand := pending.Candidate(candidateID); cand != nil && cand.Source == metadata.SourceTVDB {
		series, err := s.tv.GetSeriesByTvdbID(ctx, n)
		if errors.Is(err, tv.ErrSeriesNotFound) {
			return nil, nil
		}
		return series, err
	}
	series, err := s.tv.GetSeriesByTmdbID(ctx, n)
	if err == nil {
		return series, nil
	}
	if !errors.Is(err, tv.ErrSeriesNotFound) {
		return nil, err
	}
	series, err = s.tv.GetSeriesByTvdbID(ctx, n)
	if errors.Is(err, tv.ErrSeriesNotFound) {
		return nil, nil
	}
	return series, err
}

// MaterializedMovie returns the catalog movie a validated pending
// points at, for transfer item assembly.
func (s *Service) MaterializedMovie(ctx context.Context, pending *PendingValidation) (*movies.Movie, error) {
	if pending.MediaType != scanner.MediaTypeMovie {
		return nil, faults.InvalidInput(fmt.Sprintf("pending validation %d is not a movie", pending.ID))
	}
	movie, err := s.findMovieForPending(ctx, pending)
	if err != nil {
		return nil, err
	}
	if movie == nil {
		return nil, faults.NotFound(fmt.Sprintf("catalog movie for pending validation %d", pending.ID))
	}
	return movie, nil
}

// MaterializedEpisodes returns the series and episode rows a
// validated pending points at, for transfer item assembly. Episode
// rows missing from the store are skipped with a warning.
func (s *Service) MaterializedEpisodes(ctx context.Context, pending *PendingValidation) (*tv.Series, []*tv.Episode, error) {
	if pending.MediaType != scanner.MediaTypeSeries {
		return nil, nil, faults.InvalidInput(fmt.Sprintf("pending validation %d is not a series", pending.ID))
	}
	series, err := s.findSeriesForPending(ctx, pending)
	if err != nil {
		return nil, nil, err
	}
	if series == nil {
		return nil, nil, faults.NotFound(fmt.Sprintf("catalog series for pending validation %d", pending.ID))
	}

	var episodes []*tv.Episode
	for _, num := range pending.EpisodeRange() {
		episode, err := s.tv.GetEpisode(ctx, series.ID, pending.ParsedSeason, num)
		if errors.Is(err, tv.ErrEpisodeNotFound) {
			s.logger.Warn().
				Int64("pendingId", pending.ID).
				Int("season", pending.ParsedSeason).
				Int("episode", num).
				Msg("Validated episode row missing from the catalog")
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		episodes = append(episodes, episode)
	}
	if len(episodes) == 0 {
		return nil, nil, faults.NotFound(fmt.Sprintf("catalog episodes for pending validation %d", pending.ID))
	}
	return series, episodes, nil
}

func candidateFromDetails(details *metadata.MediaDetails) matcher.Candidate {
	return matcher.Candidate{
		Source:          details.Source,
		ExternalID:      strconv.Itoa(details.ID),
		Title:           details.Title,
		OriginalTitle:   details.OriginalTitle,
		Year:            details.Year,
		PosterURL:       details.PosterURL,
		Overview:        details.Overview,
		Cast:            details.Cast,
		DurationSeconds: details.Runtime * 60,
		VoteCount:       details.VoteCount,
	}
}

func wrapPendingErr(err error, id int64) error {
	if errors.Is(err, ErrPendingNotFound) {
		return faults.NotFound(fmt.Sprintf("pending validation %d", id))
	}
	return err
}
