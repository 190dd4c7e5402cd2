package metadata

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/logger"
	"github.com/mediatheque/mediatheque/internal/metadata/tmdb"
	"github.com/mediatheque/mediatheque/internal/metadata/tvdb"
)

// Service aggregates the metadata providers behind one
// provider-neutral surface. TMDB is the primary source for both media
// types; TVDB serves as a series fallback. When nothing is
// configured, searches degrade to empty results so ingestion can
// still register files for manual validation.
type Service struct {
	logger *logger.Logger
	tmdb   TMDBClient
	tvdb   TVDBClient

	warnOnce sync.Once
}

// NewService creates a metadata service. Either client may be nil.
func NewService(log *logger.Logger, tmdbClient TMDBClient, tvdbClient TVDBClient) *Service {
	return &Service{
		logger: log,
		tmdb:   tmdbClient,
		tvdb:   tvdbClient,
	}
}

func (s *Service) tmdbConfigured() bool {
	return s.tmdb != nil && s.tmdb.IsConfigured()
}

func (s *Service) tvdbConfigured() bool {
	return s.tvdb != nil && s.tvdb.IsConfigured()
}

func (s *Service) warnUnconfigured() {
	s.warnOnce.Do(func() {
		s.logger.Warn().Msg("No metadata source is configured, automatic matching is disabled")
	})
}

// SearchMovies searches for movies by title with an optional year
// filter.
func (s *Service) SearchMovies(ctx context.Context, title string, year int) ([]SearchResult, error) {
	if !s.tmdbConfigured() {
		s.warnUnconfigured()
		return nil, nil
	}

	movies, err := s.tmdb.SearchMovies(ctx, title, year)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(movies))
	for _, movie := range movies {
		results = append(results, tmdbMovieSearchResult(movie))
	}
	return results, nil
}

// SearchSeries searches for series by title with an optional year
// filter. TVDB is consulted when TMDB fails or finds nothing.
func (s *Service) SearchSeries(ctx context.Context, title string, year int) ([]SearchResult, error) {
	tmdbOK := s.tmdbConfigured()
	tvdbOK := s.tvdbConfigured()
	if !tmdbOK && !tvdbOK {
		s.warnUnconfigured()
		return nil, nil
	}

	var primaryErr error
	if tmdbOK {
		series, err := s.tmdb.SearchSeries(ctx, title, year)
		if err == nil {
			if len(series) > 0 || !tvdbOK {
				results := make([]SearchResult, 0, len(series))
				for _, hit := range series {
					results = append(results, tmdbSeriesSearchResult(hit))
				}
				return results, nil
			}
			s.logger.Debug().Str("title", title).Msg("TMDB returned no series, trying TVDB")
		} else {
			if faults.IsCancelled(err) || !tvdbOK {
				return nil, err
			}
			primaryErr = err
			s.logger.Warn().Err(err).Str("title", title).Msg("TMDB series search failed, falling back to TVDB")
		}
	}

	series, err := s.tvdb.SearchSeries(ctx, title, year)
	if err != nil {
		if primaryErr != nil {
			return nil, primaryErr
		}
		return nil, err
	}

	results := make([]SearchResult, 0, len(series))
	for _, hit := range series {
		results = append(results, tvdbSeriesSearchResult(hit))
	}
	return results, nil
}

// GetMovieDetails fetches the full movie record by TMDB id.
func (s *Service) GetMovieDetails(ctx context.Context, id int) (*MediaDetails, error) {
	if !s.tmdbConfigured() {
		return nil, faults.ExternalPermanent("metadata: tmdb is not configured", nil)
	}

	movie, err := s.tmdb.GetMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	return tmdbMovieDetails(*movie), nil
}

// GetSeriesDetails fetches the full series record from the source the
// id belongs to. Ids are only meaningful within their source.
func (s *Service) GetSeriesDetails(ctx context.Context, source Source, id int) (*MediaDetails, error) {
	switch source {
	case SourceTMDB:
		if !s.tmdbConfigured() {
			return nil, faults.ExternalPermanent("metadata: tmdb is not configured", nil)
		}
		series, err := s.tmdb.GetSeries(ctx, id)
		if err != nil {
			return nil, err
		}
		return tmdbSeriesDetails(*series), nil
	case SourceTVDB:
		if !s.tvdbConfigured() {
			return nil, faults.ExternalPermanent("metadata: tvdb is not configured", nil)
		}
		series, err := s.tvdb.GetSeries(ctx, id)
		if err != nil {
			return nil, err
		}
		return tvdbSeriesDetails(*series), nil
	default:
		return nil, faults.InvalidInput(fmt.Sprintf("metadata: unknown source %q", source))
	}
}

// GetSeriesExternalIDs fetches the cross-catalog ids of a series.
func (s *Service) GetSeriesExternalIDs(ctx context.Context, source Source, id int) (ExternalIDs, error) {
	switch source {
	case SourceTMDB:
		if !s.tmdbConfigured() {
			return ExternalIDs{}, faults.ExternalPermanent("metadata: tmdb is not configured", nil)
		}
		ids, err := s.tmdb.GetSeriesExternalIDs(ctx, id)
		if err != nil {
			return ExternalIDs{}, err
		}
		return ExternalIDs{ImdbID: ids.ImdbID, TvdbID: ids.TvdbID}, nil
	case SourceTVDB:
		if !s.tvdbConfigured() {
			return ExternalIDs{}, faults.ExternalPermanent("metadata: tvdb is not configured", nil)
		}
		series, err := s.tvdb.GetSeries(ctx, id)
		if err != nil {
			return ExternalIDs{}, err
		}
		return ExternalIDs{ImdbID: series.ImdbID, TvdbID: series.ID}, nil
	default:
		return ExternalIDs{}, faults.InvalidInput(fmt.Sprintf("metadata: unknown source %q", source))
	}
}

// GetEpisodeTitles fetches the episode names of one season.
func (s *Service) GetEpisodeTitles(ctx context.Context, source Source, seriesID, season int) ([]EpisodeTitle, error) {
	switch source {
	case SourceTMDB:
		if !s.tmdbConfigured() {
			return nil, faults.ExternalPermanent("metadata: tmdb is not configured", nil)
		}
		episodes, err := s.tmdb.GetSeasonEpisodes(ctx, seriesID, season)
		if err != nil {
			return nil, err
		}
		titles := make([]EpisodeTitle, 0, len(episodes))
		for _, ep := range episodes {
			titles = append(titles, EpisodeTitle{
				Season:   ep.SeasonNumber,
				Episode:  ep.EpisodeNumber,
				Title:    ep.Title,
				Overview: ep.Overview,
				AirDate:  ep.AirDate,
			})
		}
		return titles, nil
	case SourceTVDB:
		if !s.tvdbConfigured() {
			return nil, faults.ExternalPermanent("metadata: tvdb is not configured", nil)
		}
		episodes, err := s.tvdb.GetSeasonEpisodes(ctx, seriesID, season)
		if err != nil {
			return nil, err
		}
		titles := make([]EpisodeTitle, 0, len(episodes))
		for _, ep := range episodes {
			titles = append(titles, EpisodeTitle{
				Season:   ep.SeasonNumber,
				Episode:  ep.EpisodeNumber,
				Title:    ep.Title,
				Overview: ep.Overview,
				AirDate:  ep.AirDate,
			})
		}
		return titles, nil
	default:
		return nil, faults.InvalidInput(fmt.Sprintf("metadata: unknown source %q", source))
	}
}

// FindByExternalID resolves an IMDB id ("tt"-prefixed) or a bare TVDB
// id to a full record. Movies win when an id maps to both.
func (s *Service) FindByExternalID(ctx context.Context, externalID string) (*MediaDetails, error) {
	var source string
	switch {
	case strings.HasPrefix(externalID, "tt"):
		source = "imdb_id"
	case isAllDigits(externalID):
		source = "tvdb_id"
	default:
		return nil, faults.InvalidInput(fmt.Sprintf("metadata: unrecognized external id %q", externalID))
	}

	if !s.tmdbConfigured() {
		return nil, faults.ExternalPermanent("metadata: tmdb is not configured", nil)
	}

	movies, series, err := s.tmdb.Find(ctx, externalID, source)
	if err != nil {
		return nil, err
	}

	if len(movies) > 0 {
		return s.GetMovieDetails(ctx, movies[0].ID)
	}
	if len(series) > 0 {
		return s.GetSeriesDetails(ctx, SourceTMDB, series[0].ID)
	}
	return nil, faults.NotFound(fmt.Sprintf("metadata: no match for external id %s", externalID))
}

// Availability reports the configuration and reachability of each
// provider.
func (s *Service) Availability(ctx context.Context) []SourceStatus {
	statuses := make([]SourceStatus, 0, 2)

	tmdbStatus := SourceStatus{Source: SourceTMDB, Configured: s.tmdbConfigured()}
	if tmdbStatus.Configured {
		if err := s.tmdb.Test(ctx); err != nil {
			tmdbStatus.Err = err.Error()
		}
	}
	statuses = append(statuses, tmdbStatus)

	tvdbStatus := SourceStatus{Source: SourceTVDB, Configured: s.tvdbConfigured()}
	if tvdbStatus.Configured {
		if err := s.tvdb.Test(ctx); err != nil {
			tvdbStatus.Err = err.Error()
		}
	}
	statuses = append(statuses, tvdbStatus)

	return statuses
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func tmdbMovieSearchResult(movie tmdb.NormalizedMovieResult) SearchResult {
	return SearchResult{
		Source:        SourceTMDB,
		ID:            movie.ID,
		Title:         movie.Title,
		OriginalTitle: movie.OriginalTitle,
		Year:          movie.Year,
		Overview:      movie.Overview,
		PosterURL:     movie.PosterURL,
		VoteAverage:   movie.VoteAverage,
		VoteCount:     movie.VoteCount,
		Popularity:    movie.Popularity,
	}
}

func tmdbSeriesSearchResult(series tmdb.NormalizedSeriesResult) SearchResult {
	return SearchResult{
		Source:        SourceTMDB,
		ID:            series.ID,
		Title:         series.Title,
		OriginalTitle: series.OriginalTitle,
		Year:          series.Year,
		Overview:      series.Overview,
		PosterURL:     series.PosterURL,
		VoteAverage:   series.VoteAverage,
		VoteCount:     series.VoteCount,
		Popularity:    series.Popularity,
	}
}

func tvdbSeriesSearchResult(series tvdb.NormalizedSeriesResult) SearchResult {
	return SearchResult{
		Source:    SourceTVDB,
		ID:        series.ID,
		Title:     series.Title,
		Year:      series.Year,
		Overview:  series.Overview,
		PosterURL: series.PosterURL,
	}
}

func tmdbMovieDetails(movie tmdb.NormalizedMovieResult) *MediaDetails {
	return &MediaDetails{
		Source:        SourceTMDB,
		ID:            movie.ID,
		Title:         movie.Title,
		OriginalTitle: movie.OriginalTitle,
		Year:          movie.Year,
		Overview:      movie.Overview,
		PosterURL:     movie.PosterURL,
		Runtime:       movie.Runtime,
		Genres:        movie.Genres,
		Status:        movie.Status,
		Director:      movie.Director,
		Cast:          movie.Cast,
		VoteAverage:   movie.VoteAverage,
		VoteCount:     movie.VoteCount,
		Popularity:    movie.Popularity,
		ImdbID:        movie.ImdbID,
		TmdbID:        movie.ID,
		ReleaseDate:   movie.ReleaseDate,
	}
}

func tmdbSeriesDetails(series tmdb.NormalizedSeriesResult) *MediaDetails {
	return &MediaDetails{
		Source:              SourceTMDB,
		ID:                  series.ID,
		Title:               series.Title,
		OriginalTitle:       series.OriginalTitle,
		Year:                series.Year,
		Overview:            series.Overview,
		PosterURL:           series.PosterURL,
		Runtime:             series.Runtime,
		Genres:              series.Genres,
		Status:              series.Status,
		CreatedBy:           series.CreatedBy,
		Cast:                series.Cast,
		VoteAverage:         series.VoteAverage,
		VoteCount:           series.VoteCount,
		Popularity:          series.Popularity,
		ImdbID:              series.ImdbID,
		TmdbID:              series.ID,
		TvdbID:              series.TvdbID,
		NumberOfSeasons:     series.NumberOfSeasons,
		NumberOfEpisodes:    series.NumberOfEpisodes,
		SeasonEpisodeCounts: series.SeasonEpisodeCounts,
		ReleaseDate:         series.FirstAirDate,
	}
}

func tvdbSeriesDetails(series tvdb.NormalizedSeriesResult) *MediaDetails {
	return &MediaDetails{
		Source:          SourceTVDB,
		ID:              series.ID,
		Title:           series.Title,
		Year:            series.Year,
		Overview:        series.Overview,
		PosterURL:       series.PosterURL,
		Runtime:         series.Runtime,
		Genres:          series.Genres,
		Status:          series.Status,
		ImdbID:          series.ImdbID,
		TmdbID:          series.TmdbID,
		TvdbID:          series.ID,
		NumberOfSeasons: series.NumberOfSeasons,
		ReleaseDate:     series.FirstAirDate,
	}
}
