package matcher

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/library/scanner"
	"github.com/mediatheque/mediatheque/internal/logger"
	"github.com/mediatheque/mediatheque/internal/metadata"
)

const (
	// searchDepth is how many search hits get scored; maxCandidates is
	// how many survive onto the pending validation.
	searchDepth   = 10
	maxCandidates = 5

	// autoValidateGap is the score lead the top candidate needs over
	// the runner-up when it is not the only search hit.
	autoValidateGap = 10
)

// Catalog is the slice of the metadata service the matcher calls.
type Catalog interface {
	SearchMovies(ctx context.Context, title string, year int) ([]metadata.SearchResult, error)
	SearchSeries(ctx context.Context, title string, year int) ([]metadata.SearchResult, error)
	GetMovieDetails(ctx context.Context, id int) (*metadata.MediaDetails, error)
	GetSeriesDetails(ctx context.Context, source metadata.Source, id int) (*metadata.MediaDetails, error)
}

// Request is the parsed identity of one file to match. DurationSeconds
// comes from the local probe and is zero when probing failed; Episode
// is zero for movies and season packs.
type Request struct {
	MediaType       scanner.MediaType
	Title           string
	Year            int
	Episode         int
	DurationSeconds float64
}

// Candidate is the snapshot of one external catalog entry that gets
// persisted with a pending validation. It carries enough to render a
// validation card without calling the catalogs again.
type Candidate struct {
	Source          metadata.Source `json:"source"`
	ExternalID      string          `json:"external_id"`
	Title           string          `json:"title"`
	OriginalTitle   string          `json:"original_title,omitempty"`
	Year            int             `json:"year,omitempty"`
	Score           int             `json:"score"`
	PosterURL       string          `json:"poster_url,omitempty"`
	Overview        string          `json:"overview,omitempty"`
	Cast            []string        `json:"cast,omitempty"`
	DurationSeconds int             `json:"duration_seconds,omitempty"`
	VoteCount       int             `json:"vote_count,omitempty"`
}

// Result is the ranked outcome for one request: at most maxCandidates
// candidates in descending score order. AutoValidate reports that the
// top candidate is unambiguous enough to accept without an operator.
type Result struct {
	Candidates   []Candidate
	AutoValidate bool
}

// Matcher scores external catalog entries against parsed filenames.
type Matcher struct {
	catalog   Catalog
	logger    *logger.Logger
	threshold int
}

// New creates a matcher. threshold is the auto-validation score floor.
func New(catalog Catalog, threshold int, log *logger.Logger) *Matcher {
	return &Matcher{
		catalog:   catalog,
		logger:    log.WithComponent("matcher"),
		threshold: threshold,
	}
}

// Match searches the catalogs for req and returns the ranked
// candidates. An empty result is not an error: the file still gets a
// pending validation that the operator can resolve by manual search.
func (m *Matcher) Match(ctx context.Context, req Request) (*Result, error) {
	switch req.MediaType {
	case scanner.MediaTypeMovie:
		return m.matchMovie(ctx, req)
	case scanner.MediaTypeSeries:
		return m.matchSeries(ctx, req)
	default:
		return nil, faults.InvalidInput(fmt.Sprintf("cannot match media type %q", req.MediaType))
	}
}

func (m *Matcher) matchMovie(ctx context.Context, req Request) (*Result, error) {
	hits, err := m.catalog.SearchMovies(ctx, req.Title, req.Year)
	if err != nil {
		return nil, err
	}
	returned := len(hits)
	if len(hits) > searchDepth {
		hits = hits[:searchDepth]
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		details, err := m.catalog.GetMovieDetails(ctx, hit.ID)
		if err != nil {
			if faults.IsCancelled(err) {
				return nil, err
			}
			m.logger.Warn().Err(err).
				Str("source", string(hit.Source)).
				Int("id", hit.ID).
				Msg("Candidate details unavailable, scoring from the search hit")
			details = nil
		}
		cand := snapshot(hit, details)
		cand.Score = scoreMovie(req, cand)
		candidates = append(candidates, cand)
	}

	return m.finish(req, returned, candidates), nil
}

func (m *Matcher) matchSeries(ctx context.Context, req Request) (*Result, error) {
	hits, err := m.catalog.SearchSeries(ctx, req.Title, req.Year)
	if err != nil {
		return nil, err
	}
	returned := len(hits)
	if len(hits) > searchDepth {
		hits = hits[:searchDepth]
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		details, err := m.catalog.GetSeriesDetails(ctx, hit.Source, hit.ID)
		if err != nil {
			if faults.IsCancelled(err) {
				return nil, err
			}
			m.logger.Warn().Err(err).
				Str("source", string(hit.Source)).
				Int("id", hit.ID).
				Msg("Candidate details unavailable, scoring from the search hit")
			details = nil
		}
		var counts map[int]int
		if details != nil {
			counts = details.SeasonEpisodeCounts
		}
		cand := snapshot(hit, details)
		cand.Score = scoreSeries(req, cand, counts)
		candidates = append(candidates, cand)
	}

	return m.finish(req, returned, candidates), nil
}

// snapshot builds a candidate from a search hit, enriched with detail
// fields when the detail fetch succeeded. For series the runtime is
// the typical episode runtime.
func snapshot(hit metadata.SearchResult, details *metadata.MediaDetails) Candidate {
	cand := Candidate{
		Source:        hit.Source,
		ExternalID:    strconv.Itoa(hit.ID),
		Title:         hit.Title,
		OriginalTitle: hit.OriginalTitle,
		Year:          hit.Year,
		PosterURL:     hit.PosterURL,
		Overview:      hit.Overview,
		VoteCount:     hit.VoteCount,
	}
	if details == nil {
		return cand
	}
	if details.PosterURL != "" {
		cand.PosterURL = details.PosterURL
	}
	if details.Overview != "" {
		cand.Overview = details.Overview
	}
	if details.Year != 0 {
		cand.Year = details.Year
	}
	cand.Cast = details.Cast
	cand.DurationSeconds = details.Runtime * 60
	return cand
}

func (m *Matcher) finish(req Request, returned int, candidates []Candidate) *Result {
	rankCandidates(candidates, req.Year)
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	res := &Result{Candidates: candidates}
	if len(candidates) == 0 {
		m.logger.Info().
			Str("title", req.Title).
			Int("year", req.Year).
			Msg("No catalog candidates found")
		return res
	}

	res.AutoValidate = m.autoValidate(returned, candidates)
	top := candidates[0]
	m.logger.Debug().
		Str("title", req.Title).
		Str("top", top.Title).
		Int("top_year", top.Year).
		Int("score", top.Score).
		Int("candidates", len(candidates)).
		Bool("auto", res.AutoValidate).
		Msg("Ranked catalog candidates")
	return res
}

// rankCandidates orders by descending score; ties fall back to an
// exact year match, then vote count, then external id so the order is
// stable across runs.
func rankCandidates(candidates []Candidate, parsedYear int) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		aYear := parsedYear != 0 && a.Year == parsedYear
		bYear := parsedYear != 0 && b.Year == parsedYear
		if aYear != bYear {
			return aYear
		}
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		return a.ExternalID < b.ExternalID
	})
}

// autoValidate is true for a lone search hit at or above the
// threshold, or a top candidate with a clear lead over the runner-up.
// returned is the hit count before any truncation.
func (m *Matcher) autoValidate(returned int, candidates []Candidate) bool {
	top := candidates[0]
	if top.Score < m.threshold {
		return false
	}
	if returned == 1 {
		return true
	}
	if len(candidates) < 2 {
		return false
	}
	return top.Score-candidates[1].Score >= autoValidateGap
}
