package audit

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mediatheque/mediatheque/internal/config"
	"github.com/mediatheque/mediatheque/internal/library/movies"
	"github.com/mediatheque/mediatheque/internal/library/scanner"
	"github.com/mediatheque/mediatheque/internal/library/tv"
	"github.com/mediatheque/mediatheque/internal/logger"
	"github.com/mediatheque/mediatheque/internal/mediainfo"
	"github.com/mediatheque/mediatheque/internal/metadata"
	"github.com/mediatheque/mediatheque/internal/titles"
)

// Prober extracts technical metadata from a local file. The probed
// duration is the authoritative side of the duration comparison.
type Prober interface {
	Probe(ctx context.Context, path string) (*mediainfo.MediaInfo, error)
}

// Catalog supplies the declared season layout for the series-level
// episode-count comparison.
type Catalog interface {
	GetSeriesDetails(ctx context.Context, source metadata.Source, id int) (*metadata.MediaDetails, error)
}

// Checker audits catalog associations for drift between what a file
// claims to be and what its entity says it is.
type Checker struct {
	movies    *movies.Store
	tv        *tv.Store
	confirmed *ConfirmedStore
	catalog   Catalog
	probe     Prober
	cache     *scanCache
	logger    *logger.Logger
}

// NewChecker creates the association checker.
func NewChecker(cfg *config.Config, movieStore *movies.Store, tvStore *tv.Store, confirmed *ConfirmedStore, catalog Catalog, probe Prober, log *logger.Logger) *Checker {
	componentLog := log.WithComponent("audit")
	return &Checker{
		movies:    movieStore,
		tv:        tvStore,
		confirmed: confirmed,
		catalog:   catalog,
		probe:     probe,
		cache:     newScanCache(cfg.CacheDir, componentLog),
		logger:    componentLog,
	}
}

type scanStats struct {
	scanned  int
	cached   int
	findings int
}

// ScanSuspicious walks every associated movie and episode plus the
// series they belong to and streams the suspicious ones. Findings are
// computed as the consumer pulls; closing happens when the walk ends
// or ctx is cancelled. Confirmed entities are skipped, fresh cache
// entries are served without re-checking.
func (c *Checker) ScanSuspicious(ctx context.Context) <-chan Finding {
	out := make(chan Finding)
	go func() {
		defer close(out)
		started := time.Now()
		var stats scanStats

		c.scanMovies(ctx, out, &stats)
		c.scanTV(ctx, out, &stats)

		if ctx.Err() != nil {
			c.logger.Info().Int("findings", stats.findings).Msg("Suspicion scan cancelled")
			return
		}
		c.logger.Info().
			Int("scanned", stats.scanned).
			Int("cached", stats.cached).
			Int("findings", stats.findings).
			Dur("elapsed", time.Since(started)).
			Msg("Suspicion scan finished")
	}()
	return out
}

// Confirm records the operator's blessing for an association and drops
// its cache entry so the exclusion applies immediately.
func (c *Checker) Confirm(ctx context.Context, entityType EntityType, entityID int64) (*ConfirmedAssociation, error) {
	confirmed, err := c.confirmed.Confirm(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	c.cache.invalidate(cacheKey(entityType, entityID))
	return confirmed, nil
}

// Revoke removes a confirmation so the entity rejoins future scans.
func (c *Checker) Revoke(ctx context.Context, entityType EntityType, entityID int64) error {
	return c.confirmed.Revoke(ctx, entityType, entityID)
}

// InvalidateMovie retires the cached scan result after a movie write.
func (c *Checker) InvalidateMovie(id int64) {
	c.cache.invalidate(cacheKey(EntityMovie, id))
}

// InvalidateEpisode retires the cached scan result after an episode
// write.
func (c *Checker) InvalidateEpisode(id int64) {
	c.cache.invalidate(cacheKey(EntityEpisode, id))
}

func (c *Checker) scanMovies(ctx context.Context, out chan<- Finding, stats *scanStats) {
	list, err := c.movies.ListAssociated(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Listing associated movies failed")
		return
	}

	for _, movie := range list {
		if ctx.Err() != nil {
			return
		}
		if c.isConfirmed(ctx, EntityMovie, movie.ID) {
			continue
		}
		stats.scanned++

		key := cacheKey(EntityMovie, movie.ID)
		fingerprint := movieFingerprint(movie)
		if entry, ok := c.cache.get(key, fingerprint); ok {
			stats.cached++
			if entry.Finding != nil {
				stats.findings++
				if !send(ctx, out, *entry.Finding) {
					return
				}
			}
			continue
		}

		finding := c.checkMovie(ctx, movie)
		c.cache.put(key, fingerprint, finding)
		if finding != nil {
			stats.findings++
			if !send(ctx, out, *finding) {
				return
			}
		}
	}
}

// scanTV audits every associated episode against its series row, then
// each touched series against the catalog's declared season layout.
func (c *Checker) scanTV(ctx context.Context, out chan<- Finding, stats *scanStats) {
	episodes, err := c.tv.ListAssociatedEpisodes(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Listing associated episodes failed")
		return
	}

	seriesByID := make(map[int64]*tv.Series)
	var seriesOrder []int64
	lookupSeries := func(id int64) *tv.Series {
		if series, ok := seriesByID[id]; ok {
			return series
		}
		series, err := c.tv.GetSeriesByID(ctx, id)
		if err != nil {
			c.logger.Warn().Err(err).Int64("seriesId", id).Msg("Series row unavailable, skipping its episodes")
			seriesByID[id] = nil
			return nil
		}
		seriesByID[id] = series
		seriesOrder = append(seriesOrder, id)
		return series
	}

	for _, episode := range episodes {
		if ctx.Err() != nil {
			return
		}
		series := lookupSeries(episode.SeriesID)
		if series == nil {
			continue
		}
		if c.isConfirmed(ctx, EntityEpisode, episode.ID) {
			continue
		}
		stats.scanned++

		key := cacheKey(EntityEpisode, episode.ID)
		fingerprint := episodeFingerprint(episode, series)
		if entry, ok := c.cache.get(key, fingerprint); ok {
			stats.cached++
			if entry.Finding != nil {
				stats.findings++
				if !send(ctx, out, *entry.Finding) {
					return
				}
			}
			continue
		}

		finding := c.checkEpisode(ctx, series, episode)
		c.cache.put(key, fingerprint, finding)
		if finding != nil {
			stats.findings++
			if !send(ctx, out, *finding) {
				return
			}
		}
	}

	for _, id := range seriesOrder {
		if ctx.Err() != nil {
			return
		}
		series := seriesByID[id]
		if series == nil || c.isConfirmed(ctx, EntitySeries, series.ID) {
			continue
		}
		counts, err := c.tv.CountEpisodesBySeason(ctx, series.ID)
		if err != nil {
			c.logger.Warn().Err(err).Str("series", series.Title).Msg("Episode counts unavailable, skipping series check")
			continue
		}
		stats.scanned++

		key := cacheKey(EntitySeries, series.ID)
		fingerprint := seriesFingerprint(series, counts)
		if entry, ok := c.cache.get(key, fingerprint); ok {
			stats.cached++
			if entry.Finding != nil {
				stats.findings++
				if !send(ctx, out, *entry.Finding) {
					return
				}
			}
			continue
		}

		finding := c.checkSeriesCounts(ctx, series, counts)
		c.cache.put(key, fingerprint, finding)
		if finding != nil {
			stats.findings++
			if !send(ctx, out, *finding) {
				return
			}
		}
	}
}

// checkMovie compares what the stored filename and the local file say
// against the catalog row. Returns nil when nothing drifts.
func (c *Checker) checkMovie(ctx context.Context, movie *movies.Movie) *Finding {
	parsed := scanner.ParseFilename(filepath.Base(movie.FilePath))

	var reasons []Reason
	var evidence []string

	if ratio, drifted := titleDrifts(parsed.Title, movie.Title, movie.OriginalTitle); drifted {
		reasons = append(reasons, ReasonTitleDrift)
		evidence = append(evidence, fmt.Sprintf("filename reads %q, catalog says %q (similarity %d)", parsed.Title, movie.Title, ratio))
	}
	if parsed.Year > 0 && movie.Year > 0 && absInt(parsed.Year-movie.Year) >= yearDriftDelta {
		reasons = append(reasons, ReasonYearDrift)
		evidence = append(evidence, fmt.Sprintf("filename year %d, catalog year %d", parsed.Year, movie.Year))
	}
	if movie.DurationSeconds > 0 {
		if probed, ok := c.probeDuration(ctx, movie.FilePath); ok && durationDrifts(probed, movie.DurationSeconds) {
			reasons = append(reasons, ReasonDurationDrift)
			evidence = append(evidence, fmt.Sprintf("file runs %d min, catalog says %d min", int(probed)/60, movie.DurationSeconds/60))
		}
	}

	if len(reasons) == 0 {
		return nil
	}
	return &Finding{
		EntityType: EntityMovie,
		EntityID:   movie.ID,
		Title:      movie.Title,
		FilePath:   movie.FilePath,
		Confidence: confidenceFor(reasons),
		Reasons:    reasons,
		Detail:     strings.Join(evidence, "; "),
	}
}

// checkEpisode compares the stored filename and the local file against
// the episode and its series row.
func (c *Checker) checkEpisode(ctx context.Context, series *tv.Series, episode *tv.Episode) *Finding {
	parsed := scanner.ParseFilename(filepath.Base(episode.FilePath))

	var reasons []Reason
	var evidence []string

	if ratio, drifted := titleDrifts(parsed.Title, series.Title, series.OriginalTitle); drifted {
		reasons = append(reasons, ReasonTitleDrift)
		evidence = append(evidence, fmt.Sprintf("filename reads %q, series is %q (similarity %d)", parsed.Title, series.Title, ratio))
	}
	if parsed.Year > 0 && series.Year > 0 && absInt(parsed.Year-series.Year) >= yearDriftDelta {
		reasons = append(reasons, ReasonYearDrift)
		evidence = append(evidence, fmt.Sprintf("filename year %d, series year %d", parsed.Year, series.Year))
	}
	if episode.DurationSeconds > 0 {
		if probed, ok := c.probeDuration(ctx, episode.FilePath); ok && durationDrifts(probed, episode.DurationSeconds) {
			reasons = append(reasons, ReasonDurationDrift)
			evidence = append(evidence, fmt.Sprintf("file runs %d min, catalog says %d min", int(probed)/60, episode.DurationSeconds/60))
		}
	}

	if len(reasons) == 0 {
		return nil
	}
	return &Finding{
		EntityType: EntityEpisode,
		EntityID:   episode.ID,
		Title:      fmt.Sprintf("%s S%02dE%02d", series.Title, episode.SeasonNumber, episode.EpisodeNumber),
		FilePath:   episode.FilePath,
		Confidence: confidenceFor(reasons),
		Reasons:    reasons,
		Detail:     strings.Join(evidence, "; "),
	}
}

// checkSeriesCounts flags seasons holding more local episodes than the
// catalog declares, and seasons the catalog does not know at all. An
// incomplete local collection is normal and never flags. Specials
// (season 0) sit outside the declared layout and are ignored.
func (c *Checker) checkSeriesCounts(ctx context.Context, series *tv.Series, local map[int]int) *Finding {
	if c.catalog == nil {
		return nil
	}
	source, externalID := seriesCatalogRef(series)
	if externalID == 0 {
		return nil
	}
	details, err := c.catalog.GetSeriesDetails(ctx, source, externalID)
	if err != nil {
		c.logger.Warn().Err(err).Str("series", series.Title).Msg("Catalog lookup failed, count check skipped")
		return nil
	}
	if len(details.SeasonEpisodeCounts) == 0 {
		return nil
	}

	seasons := make([]int, 0, len(local))
	for season := range local {
		if season > 0 {
			seasons = append(seasons, season)
		}
	}
	sort.Ints(seasons)

	var evidence []string
	for _, season := range seasons {
		declared, known := details.SeasonEpisodeCounts[season]
		switch {
		case !known:
			evidence = append(evidence, fmt.Sprintf("season %d is unknown to the catalog", season))
		case local[season] > declared:
			evidence = append(evidence, fmt.Sprintf("season %d holds %d local episodes, catalog declares %d", season, local[season], declared))
		}
	}
	if len(evidence) == 0 {
		return nil
	}

	reasons := []Reason{ReasonEpisodeCountDrift}
	return &Finding{
		EntityType: EntitySeries,
		EntityID:   series.ID,
		Title:      series.Title,
		Confidence: confidenceFor(reasons),
		Reasons:    reasons,
		Detail:     strings.Join(evidence, "; "),
	}
}

// isConfirmed treats a failed lookup as unconfirmed so a store error
// degrades to extra checking instead of silence.
func (c *Checker) isConfirmed(ctx context.Context, entityType EntityType, id int64) bool {
	confirmed, err := c.confirmed.IsConfirmed(ctx, entityType, id)
	if err != nil {
		c.logger.Warn().Err(err).Str("entityType", string(entityType)).Int64("id", id).Msg("Confirmation lookup failed")
		return false
	}
	return confirmed
}

func (c *Checker) probeDuration(ctx context.Context, path string) (float64, bool) {
	info, err := c.probe.Probe(ctx, path)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("Probe failed, duration check skipped")
		return 0, false
	}
	if info == nil || info.DurationSeconds <= 0 {
		return 0, false
	}
	return info.DurationSeconds, true
}

// titleDrifts scores the parsed title against the entity title and its
// original title, keeping the better agreement. A filename the parser
// could not read never flags.
func titleDrifts(parsedTitle, title, originalTitle string) (int, bool) {
	if strings.TrimSpace(parsedTitle) == "" {
		return 0, false
	}
	ratio := titles.TitleSimilarity(parsedTitle, title)
	if originalTitle != "" {
		if r := titles.TitleSimilarity(parsedTitle, originalTitle); r > ratio {
			ratio = r
		}
	}
	return ratio, ratio < titleDriftThreshold
}

func durationDrifts(probed float64, catalog int) bool {
	if catalog <= 0 || probed <= 0 {
		return false
	}
	return math.Abs(probed-float64(catalog))/float64(catalog) > durationDriftFraction
}

func seriesCatalogRef(series *tv.Series) (metadata.Source, int) {
	if series.TmdbID > 0 {
		return metadata.SourceTMDB, series.TmdbID
	}
	if series.TvdbID > 0 {
		return metadata.SourceTVDB, series.TvdbID
	}
	return metadata.SourceTMDB, 0
}

func movieFingerprint(movie *movies.Movie) string {
	return fmt.Sprintf("%s|%s|%s", movie.FilePath, movie.FileHash, movie.UpdatedAt.UTC().Format(time.RFC3339Nano))
}

func episodeFingerprint(episode *tv.Episode, series *tv.Series) string {
	return fmt.Sprintf("%s|%s|%s|%s",
		episode.FilePath,
		episode.FileHash,
		episode.UpdatedAt.UTC().Format(time.RFC3339Nano),
		series.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
}

// seriesFingerprint folds the local season layout in so adding or
// removing an episode row retires the entry on its own.
func seriesFingerprint(series *tv.Series, counts map[int]int) string {
	seasons := make([]int, 0, len(counts))
	for season := range counts {
		seasons = append(seasons, season)
	}
	sort.Ints(seasons)

	var b strings.Builder
	fmt.Fprintf(&b, "%s", series.UpdatedAt.UTC().Format(time.RFC3339Nano))
	for _, season := range seasons {
		fmt.Fprintf(&b, "|%d:%d", season, counts[season])
	}
	return b.String()
}

func send(ctx context.Context, out chan<- Finding, finding Finding) bool {
	select {
	case out <- finding:
		return true
	case <-ctx.Done():
		return false
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
