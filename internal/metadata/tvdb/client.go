package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/mediatheque/mediatheque/internal/config"
	"github.com/mediatheque/mediatheque/internal/faults"
)

// Bearer tokens are valid for one month; refreshing daily keeps a
// comfortable margin.
const tokenTTL = 24 * time.Hour

// ResponseCache stores raw API response bodies keyed by request
// fingerprint. Implemented by the metadata package's two-tier cache.
type ResponseCache interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, body json.RawMessage)
}

// Client is a TVDB v4 API client. Authentication happens lazily on
// first use and the token is shared across goroutines.
type Client struct {
	httpClient *http.Client
	config     config.TVDBConfig
	logger     zerolog.Logger
	limiter    *rate.Limiter
	cache      ResponseCache
	newBackoff func() retry.Backoff

	mu        sync.RWMutex
	token     string
	tokenTime time.Time
}

// NewClient creates a new TVDB client. cache may be nil.
func NewClient(cfg config.TVDBConfig, logger zerolog.Logger, cache ResponseCache) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config:     cfg,
		logger:     logger.With().Str("component", "tvdb").Logger(),
		limiter:    rate.NewLimiter(rate.Limit(4), 2),
		cache:      cache,
		newBackoff: defaultBackoff,
	}
}

func defaultBackoff() retry.Backoff {
	b := retry.NewExponential(time.Second)
	b = retry.WithCappedDuration(60*time.Second, b)
	return retry.WithMaxRetries(4, b)
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tvdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// Test verifies connectivity by authenticating.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return faults.ExternalPermanent("tvdb: api key is not configured", nil)
	}
	_, err := c.authenticate(ctx)
	return err
}

// SearchSeries searches for TV series by query with an optional year
// filter.
func (c *Client) SearchSeries(ctx context.Context, query string, year int) ([]NormalizedSeriesResult, error) {
	if !c.IsConfigured() {
		return nil, faults.ExternalPermanent("tvdb: api key is not configured", nil)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "series")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var response SearchResponse
	if err := c.doRequest(ctx, c.config.BaseURL+"/search", params, &response); err != nil {
		return nil, err
	}

	results := make([]NormalizedSeriesResult, 0, len(response.Data))
	for _, hit := range response.Data {
		results = append(results, searchResultToSeries(hit))
	}

	c.logger.Debug().
		Str("query", query).
		Int("year", year).
		Int("results", len(results)).
		Msg("Series search completed")

	return results, nil
}

// GetSeries gets the extended series record by TVDB id, including
// cross-catalog ids.
func (c *Client) GetSeries(ctx context.Context, id int) (*NormalizedSeriesResult, error) {
	if !c.IsConfigured() {
		return nil, faults.ExternalPermanent("tvdb: api key is not configured", nil)
	}

	var response SeriesResponse
	endpoint := fmt.Sprintf("%s/series/%d/extended", c.config.BaseURL, id)
	if err := c.doRequest(ctx, endpoint, url.Values{}, &response); err != nil {
		return nil, err
	}

	result := seriesDetailToResult(response.Data)

	c.logger.Debug().
		Int("id", id).
		Str("title", result.Title).
		Msg("Got series details")

	return &result, nil
}

// GetSeasonEpisodes fetches all episodes of one season in the default
// season order.
func (c *Client) GetSeasonEpisodes(ctx context.Context, seriesID, season int) ([]NormalizedEpisodeResult, error) {
	if !c.IsConfigured() {
		return nil, faults.ExternalPermanent("tvdb: api key is not configured", nil)
	}

	params := url.Values{}
	params.Set("page", "0")
	params.Set("season", strconv.Itoa(season))

	var response EpisodesResponse
	endpoint := fmt.Sprintf("%s/series/%d/episodes/default", c.config.BaseURL, seriesID)
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	episodes := make([]NormalizedEpisodeResult, 0, len(response.Data.Episodes))
	for _, ep := range response.Data.Episodes {
		episodes = append(episodes, NormalizedEpisodeResult{
			SeasonNumber:  ep.SeasonNumber,
			EpisodeNumber: ep.Number,
			Title:         ep.Name,
			Overview:      ep.Overview,
			AirDate:       ep.Aired,
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

// authenticate returns a valid bearer token, logging in when the
// cached one is missing or stale.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.token != "" && time.Since(c.tokenTime) < tokenTTL {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Since(c.tokenTime) < tokenTTL {
		return c.token, nil
	}

	payload, err := json.Marshal(LoginRequest{APIKey: c.config.APIKey})
	if err != nil {
		return "", fmt.Errorf("failed to encode login request: %w", err)
	}

	var login LoginResponse
	err = retry.Do(ctx, c.newBackoff(), func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return faults.Cancelled(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/login", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create login request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return faults.Cancelled(ctx.Err())
			}
			return retryable(faults.ExternalTransient("tvdb: login request failed", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return faults.ExternalPermanent("tvdb: invalid api key", nil)
		}
		if resp.StatusCode != http.StatusOK {
			return retryable(c.statusError(resp))
		}

		if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
			return fmt.Errorf("failed to decode login response: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if login.Data.Token == "" {
		return "", faults.ExternalPermanent("tvdb: login returned no token", nil)
	}

	c.token = login.Data.Token
	c.tokenTime = time.Now()
	c.logger.Debug().Msg("Authenticated with TVDB")

	return c.token, nil
}

func (c *Client) clearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	return c.get(ctx, endpoint, params, result, true)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, result any, useCache bool) error {
	// The token travels in a header, so the URL doubles as the cache
	// fingerprint. Encode() sorts keys.
	reqURL := endpoint
	if len(params) > 0 {
		reqURL = endpoint + "?" + params.Encode()
	}
	if useCache && c.cache != nil {
		if body, ok := c.cache.Get(reqURL); ok {
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("failed to decode cached response: %w", err)
			}
			return nil
		}
	}

	var body []byte
	err := retry.Do(ctx, c.newBackoff(), func(ctx context.Context) error {
		token, err := c.authenticate(ctx)
		if err != nil {
			return err
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return faults.Cancelled(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return faults.Cancelled(ctx.Err())
			}
			return retryable(faults.ExternalTransient("tvdb: request failed", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			// Token expired server-side; the next attempt re-authenticates.
			c.clearToken()
			return retryable(faults.ExternalTransient("tvdb: token rejected", nil))
		}
		if resp.StatusCode != http.StatusOK {
			return retryable(c.statusError(resp))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return retryable(faults.ExternalTransient("tvdb: reading response failed", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if useCache && c.cache != nil {
		c.cache.Set(reqURL, body)
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
	if errResp.Message != "" {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("message", errResp.Message).
			Msg("TVDB API error")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return faults.NotFound("tvdb: resource not found")
	case resp.StatusCode == http.StatusForbidden:
		return faults.ExternalPermanent("tvdb: access denied", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return faults.ExternalRateLimited("tvdb: rate limited", nil)
	case resp.StatusCode >= 500:
		return faults.ExternalTransient(fmt.Sprintf("tvdb: status %d", resp.StatusCode), nil)
	default:
		return faults.ExternalPermanent(fmt.Sprintf("tvdb: status %d", resp.StatusCode), nil)
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

func searchResultToSeries(hit SearchResult) NormalizedSeriesResult {
	id, _ := strconv.Atoi(hit.TvdbID)
	year, _ := strconv.Atoi(hit.Year)

	overview := hit.Overview
	if overview == "" {
		overview = hit.Overviews["eng"]
	}

	poster := hit.ImageURL
	if poster == "" {
		poster = hit.Thumbnail
	}

	result := NormalizedSeriesResult{
		ID:        id,
		Title:     hit.Name,
		Year:      year,
		Overview:  overview,
		PosterURL: poster,
		Status:    normalizeStatus(hit.Status),
	}
	fillRemoteIDs(&result, hit.RemoteIDs)

	return result
}

func seriesDetailToResult(detail SeriesDetail) NormalizedSeriesResult {
	year, _ := strconv.Atoi(detail.Year)
	if year == 0 && len(detail.FirstAired) >= 4 {
		year, _ = strconv.Atoi(detail.FirstAired[:4])
	}

	genres := make([]string, len(detail.Genres))
	for i, g := range detail.Genres {
		genres[i] = g.Name
	}

	seasons := 0
	for _, season := range detail.Seasons {
		if season.Type.Type == "official" && season.Number > 0 {
			seasons++
		}
	}

	result := NormalizedSeriesResult{
		ID:              detail.ID,
		Title:           detail.Name,
		Year:            year,
		Overview:        detail.Overview,
		PosterURL:       detail.Image,
		Runtime:         detail.AverageRuntime,
		Genres:          genres,
		Status:          normalizeStatus(detail.Status.Name),
		FirstAirDate:    detail.FirstAired,
		NumberOfSeasons: seasons,
	}
	fillRemoteIDs(&result, detail.RemoteIDs)

	return result
}

// fillRemoteIDs mines IMDB and TMDB ids out of the remoteIds block.
func fillRemoteIDs(result *NormalizedSeriesResult, ids []RemoteID) {
	for _, remote := range ids {
		switch remote.SourceName {
		case "IMDB":
			result.ImdbID = remote.ID
		case "TheMovieDB.com":
			result.TmdbID, _ = strconv.Atoi(remote.ID)
		}
	}
}

func normalizeStatus(status string) string {
	switch status {
	case "Ended":
		return "ended"
	case "Upcoming":
		return "upcoming"
	default:
		return "continuing"
	}
}
