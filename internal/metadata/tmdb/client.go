package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/mediatheque/mediatheque/internal/config"
	"github.com/mediatheque/mediatheque/internal/faults"
)

// ResponseCache stores raw API response bodies keyed by request
// fingerprint. Implemented by the metadata package's two-tier cache.
type ResponseCache interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, body json.RawMessage)
}

// Client is a TMDB API client. Every request takes a token from the
// per-upstream limiter and retries rate-limited or transient failures
// with exponential backoff.
type Client struct {
	httpClient *http.Client
	config     config.TMDBConfig
	logger     zerolog.Logger
	limiter    *rate.Limiter
	cache      ResponseCache
	newBackoff func() retry.Backoff
}

// NewClient creates a new TMDB client. cache may be nil.
func NewClient(cfg config.TMDBConfig, logger zerolog.Logger, cache ResponseCache) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "tmdb").Logger(),
		// Below the documented 40 requests / 10 s ceiling.
		limiter:    rate.NewLimiter(rate.Limit(4), 2),
		cache:      cache,
		newBackoff: defaultBackoff,
	}
}

const (
	imageBaseURL = "https://image.tmdb.org/t/p"

	// Snapshots keep a short cast list, not the full credits roll.
	castSummaryLimit = 10
)

// defaultBackoff is exponential from 1s, capped at 60s, five attempts
// in total.
func defaultBackoff() retry.Backoff {
	b := retry.NewExponential(time.Second)
	b = retry.WithCappedDuration(60*time.Second, b)
	return retry.WithMaxRetries(4, b)
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tmdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// Test verifies connectivity by fetching the API configuration. The
// probe always goes to the network.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return faults.ExternalPermanent("tmdb: api key is not configured", nil)
	}

	var result struct {
		Images struct {
			BaseURL string `json:"base_url"`
		} `json:"images"`
	}
	return c.get(ctx, c.config.BaseURL+"/configuration", url.Values{}, &result, false)
}

// SearchMovies searches for movies by query with an optional year filter.
func (c *Client) SearchMovies(ctx context.Context, query string, year int) ([]NormalizedMovieResult, error) {
	if !c.IsConfigured() {
		return nil, faults.ExternalPermanent("tmdb: api key is not configured", nil)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var response SearchMoviesResponse
	if err := c.doRequest(ctx, c.config.BaseURL+"/search/movie", params, &response); err != nil {
		return nil, err
	}

	results := make([]NormalizedMovieResult, 0, len(response.Results))
	for _, movie := range response.Results {
		results = append(results, toMovieResult(movie))
	}

	c.logger.Debug().
		Str("query", query).
		Int("year", year).
		Int("results", len(results)).
		Msg("Movie search completed")

	return results, nil
}

// GetMovie gets detailed movie info by TMDB id.
func (c *Client) GetMovie(ctx context.Context, id int) (*NormalizedMovieResult, error) {
	if !c.IsConfigured() {
		return nil, faults.ExternalPermanent("tmdb: api key is not configured", nil)
	}

	params := url.Values{}
	params.Set("append_to_response", "external_ids,credits")

	var details MovieDetails
	if err := c.doRequest(ctx, fmt.Sprintf("%s/movie/%d", c.config.BaseURL, id), params, &details); err != nil {
		return nil, err
	}

	result := movieDetailsToResult(details)

	c.logger.Debug().
		Int("id", id).
		Str("title", result.Title).
		Msg("Got movie details")

	return &result, nil
}

// SearchSeries searches for TV series by query with an optional
// first-air-year filter.
func (c *Client) SearchSeries(ctx context.Context, query string, year int) ([]NormalizedSeriesResult, error) {
	if !c.IsConfigured() {
		return nil, faults.ExternalPermanent("tmdb: api key is not configured", nil)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}

	var response SearchTVResponse
	if err := c.doRequest(ctx, c.config.BaseURL+"/search/tv", params, &response); err != nil {
		return nil, err
	}

	results := make([]NormalizedSeriesResult, 0, len(response.Results))
	for _, tv := range response.Results {
		results = append(results, toSeriesResult(tv))
	}

	c.logger.Debug().
		Str("query", query).
		Int("year", year).
		Int("results", len(results)).
		Msg("TV search completed")

	return results, nil
}

// GetSeries gets detailed TV series info by TMDB id, including the
// per-season episode counts and external ids.
func (c *Client) GetSeries(ctx context.Context, id int) (*NormalizedSeriesResult, error) {
	if !c.IsConfigured() {
		return nil, faults.ExternalPermanent("tmdb: api key is not configured", nil)
	}

	params := url.Values{}
	params.Set("append_to_response", "external_ids,credits")

	var details TVDetails
	if err := c.doRequest(ctx, fmt.Sprintf("%s/tv/%d", c.config.BaseURL, id), params, &details); err != nil {
		return nil, err
	}

	result := tvDetailsToResult(details)

	c.logger.Debug().
		Int("id", id).
		Str("title", result.Title).
		Msg("Got TV series details")

	return &result, nil
}

// GetSeriesExternalIDs fetches the IMDB and TVDB ids for a series.
func (c *Client) GetSeriesExternalIDs(ctx context.Context, id int) (NormalizedExternalIDs, error) {
	if !c.IsConfigured() {
		return NormalizedExternalIDs{}, faults.ExternalPermanent("tmdb: api key is not configured", nil)
	}

	var ids ExternalIDs
	if err := c.doRequest(ctx, fmt.Sprintf("%s/tv/%d/external_ids", c.config.BaseURL, id), url.Values{}, &ids); err != nil {
		return NormalizedExternalIDs{}, err
	}

	return NormalizedExternalIDs{ImdbID: ids.ImdbID, TvdbID: ids.TvdbID}, nil
}

// GetSeasonEpisodes fetches all episodes of one season.
func (c *Client) GetSeasonEpisodes(ctx context.Context, seriesID, season int) ([]NormalizedEpisodeResult, error) {
	if !c.IsConfigured() {
		return nil, faults.ExternalPermanent("tmdb: api key is not configured", nil)
	}

	var details SeasonDetails
	endpoint := fmt.Sprintf("%s/tv/%d/season/%d", c.config.BaseURL, seriesID, season)
	if err := c.doRequest(ctx, endpoint, url.Values{}, &details); err != nil {
		return nil, err
	}

	episodes := make([]NormalizedEpisodeResult, 0, len(details.Episodes))
	for _, ep := range details.Episodes {
		episodes = append(episodes, NormalizedEpisodeResult{
			SeasonNumber:  ep.SeasonNumber,
			EpisodeNumber: ep.EpisodeNumber,
			Title:         ep.Name,
			Overview:      ep.Overview,
			AirDate:       ep.AirDate,
			Runtime:       ep.Runtime,
		})
	}

	c.logger.Debug().
		Int("seriesID", seriesID).
		Int("season", season).
		Int("episodes", len(episodes)).
		Msg("Got season episodes")

	return episodes, nil
}

// Find resolves an external id (IMDB or TVDB) to TMDB entries. source
// is the TMDB external_source value, e.g. "imdb_id" or "tvdb_id".
func (c *Client) Find(ctx context.Context, externalID, source string) ([]NormalizedMovieResult, []NormalizedSeriesResult, error) {
	if !c.IsConfigured() {
		return nil, nil, faults.ExternalPermanent("tmdb: api key is not configured", nil)
	}

	params := url.Values{}
	params.Set("external_source", source)

	var response FindResponse
	endpoint := fmt.Sprintf("%s/find/%s", c.config.BaseURL, url.PathEscape(externalID))
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, nil, err
	}

	movies := make([]NormalizedMovieResult, 0, len(response.MovieResults))
	for _, movie := range response.MovieResults {
		movies = append(movies, toMovieResult(movie))
	}
	series := make([]NormalizedSeriesResult, 0, len(response.TVResults))
	for _, tv := range response.TVResults {
		series = append(series, toSeriesResult(tv))
	}

	return movies, series, nil
}

// doRequest performs a cached, rate-limited GET with retry.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	return c.get(ctx, endpoint, params, result, true)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, result any, useCache bool) error {
	// Encode() sorts keys; the fingerprint is taken before the API key
	// is added so the secret never reaches the cache file.
	fingerprint := endpoint
	if len(params) > 0 {
		fingerprint = endpoint + "?" + params.Encode()
	}
	if useCache && c.cache != nil {
		if body, ok := c.cache.Get(fingerprint); ok {
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("failed to decode cached response: %w", err)
			}
			return nil
		}
	}

	params.Set("api_key", c.config.APIKey)
	reqURL := endpoint + "?" + params.Encode()

	var body []byte
	err := retry.Do(ctx, c.newBackoff(), func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return faults.Cancelled(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return faults.Cancelled(ctx.Err())
			}
			return retryable(faults.ExternalTransient("tmdb: request failed", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return retryable(c.statusError(resp))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return retryable(faults.ExternalTransient("tmdb: reading response failed", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if useCache && c.cache != nil {
		c.cache.Set(fingerprint, body)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// statusError maps a non-200 response onto the fault taxonomy.
func (c *Client) statusError(resp *http.Response) error {
	var errResp ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&errResp)
	if errResp.StatusMessage != "" {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("message", errResp.StatusMessage).
			Msg("TMDB API error")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return faults.NotFound("tmdb: resource not found")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return faults.ExternalPermanent("tmdb: invalid api key", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return faults.ExternalRateLimited("tmdb: rate limited", nil)
	case resp.StatusCode >= 500:
		return faults.ExternalTransient(fmt.Sprintf("tmdb: status %d", resp.StatusCode), nil)
	default:
		return faults.ExternalPermanent(fmt.Sprintf("tmdb: status %d", resp.StatusCode), nil)
	}
}

// retryable marks rate-limited and transient faults for another
// attempt; everything else aborts the retry loop.
func retryable(err error) error {
	if faults.IsRetryable(err) {
		return retry.RetryableError(err)
	}
	return err
}

func toMovieResult(movie MovieResult) NormalizedMovieResult {
	year := 0
	if len(movie.ReleaseDate) >= 4 {
		year, _ = strconv.Atoi(movie.ReleaseDate[:4])
	}

	return NormalizedMovieResult{
		ID:            movie.ID,
		Title:         movie.Title,
		OriginalTitle: movie.OriginalTitle,
		Year:          year,
		Overview:      movie.Overview,
		PosterURL:     imageURL(movie.PosterPath, "w500"),
		VoteAverage:   movie.VoteAverage,
		VoteCount:     movie.VoteCount,
		Popularity:    movie.Popularity,
		ReleaseDate:   movie.ReleaseDate,
	}
}

func movieDetailsToResult(details MovieDetails) NormalizedMovieResult {
	year := 0
	if len(details.ReleaseDate) >= 4 {
		year, _ = strconv.Atoi(details.ReleaseDate[:4])
	}

	genres := make([]string, len(details.Genres))
	for i, g := range details.Genres {
		genres[i] = g.Name
	}

	imdbID := details.ImdbID
	if imdbID == "" && details.ExternalIDs != nil {
		imdbID = details.ExternalIDs.ImdbID
	}

	director := ""
	var cast []string
	if details.Credits != nil {
		for _, member := range details.Credits.Crew {
			if member.Job == "Director" {
				director = member.Name
				break
			}
		}
		cast = castSummary(details.Credits.Cast)
	}

	return NormalizedMovieResult{
		ID:            details.ID,
		Title:         details.Title,
		OriginalTitle: details.OriginalTitle,
		Year:          year,
		Overview:      details.Overview,
		PosterURL:     imageURL(details.PosterPath, "w500"),
		Runtime:       details.Runtime,
		Genres:        genres,
		Status:        details.Status,
		Director:      director,
		Cast:          cast,
		ImdbID:        imdbID,
		VoteAverage:   details.VoteAverage,
		VoteCount:     details.VoteCount,
		Popularity:    details.Popularity,
		ReleaseDate:   details.ReleaseDate,
	}
}

func toSeriesResult(tv TVResult) NormalizedSeriesResult {
	year := 0
	if len(tv.FirstAirDate) >= 4 {
		year, _ = strconv.Atoi(tv.FirstAirDate[:4])
	}

	return NormalizedSeriesResult{
		ID:            tv.ID,
		Title:         tv.Name,
		OriginalTitle: tv.OriginalName,
		Year:          year,
		Overview:      tv.Overview,
		PosterURL:     imageURL(tv.PosterPath, "w500"),
		VoteAverage:   tv.VoteAverage,
		VoteCount:     tv.VoteCount,
		Popularity:    tv.Popularity,
		FirstAirDate:  tv.FirstAirDate,
	}
}

func tvDetailsToResult(details TVDetails) NormalizedSeriesResult {
	year := 0
	if len(details.FirstAirDate) >= 4 {
		year, _ = strconv.Atoi(details.FirstAirDate[:4])
	}

	genres := make([]string, len(details.Genres))
	for i, g := range details.Genres {
		genres[i] = g.Name
	}

	status := "continuing"
	switch details.Status {
	case "Ended", "Canceled":
		status = "ended"
	case "Planned":
		status = "upcoming"
	}

	counts := make(map[int]int, len(details.Seasons))
	for _, season := range details.Seasons {
		// Season 0 holds specials, which never drive matching.
		if season.SeasonNumber > 0 {
			counts[season.SeasonNumber] = season.EpisodeCount
		}
	}

	creators := make([]string, len(details.CreatedBy))
	for i, creator := range details.CreatedBy {
		creators[i] = creator.Name
	}

	result := NormalizedSeriesResult{
		ID:                  details.ID,
		Title:               details.Name,
		OriginalTitle:       details.OriginalName,
		Year:                year,
		Overview:            details.Overview,
		PosterURL:           imageURL(details.PosterPath, "w500"),
		Genres:              genres,
		Status:              status,
		CreatedBy:           strings.Join(creators, ", "),
		VoteAverage:         details.VoteAverage,
		VoteCount:           details.VoteCount,
		Popularity:          details.Popularity,
		FirstAirDate:        details.FirstAirDate,
		NumberOfSeasons:     details.NumberOfSeasons,
		NumberOfEpisodes:    details.NumberOfEpisodes,
		SeasonEpisodeCounts: counts,
	}

	if details.Credits != nil {
		result.Cast = castSummary(details.Credits.Cast)
	}
	if details.ExternalIDs != nil {
		result.ImdbID = details.ExternalIDs.ImdbID
		result.TvdbID = details.ExternalIDs.TvdbID
	}
	if len(details.EpisodeRunTime) > 0 {
		result.Runtime = details.EpisodeRunTime[0]
	}

	return result
}

// imageURL builds a full image URL from a TMDB image path.
func imageURL(path *string, size string) string {
	if path == nil || *path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", imageBaseURL, size, *path)
}

func castSummary(cast []CastMember) []string {
	if len(cast) == 0 {
		return nil
	}
	limit := castSummaryLimit
	if len(cast) < limit {
		limit = len(cast)
	}
	names := make([]string, limit)
	for i := 0; i < limit; i++ {
		names[i] = cast[i].Name
	}
	return names
}
