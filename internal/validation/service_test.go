package validation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mediatheque/mediatheque/internal/database"
	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/library/files"
	"github.com/mediatheque/mediatheque/internal/library/movies"
	"github.com/mediatheque/mediatheque/internal/library/scanner"
	"github.com/mediatheque/mediatheque/internal/library/tv"
	"github.com/mediatheque/mediatheque/internal/logger"
	"github.com/mediatheque/mediatheque/internal/matcher"
	"github.com/mediatheque/mediatheque/internal/metadata"
)

type seriesKey struct {
	source metadata.Source
	id     int
}

// fakeCatalog satisfies both the validation and the matcher catalog
// interfaces so one fixture drives accepts and manual searches.
type fakeCatalog struct {
	movieHits     []metadata.SearchResult
	seriesHits    []metadata.SearchResult
	movieDetails  map[int]*metadata.MediaDetails
	seriesDetails map[seriesKey]*metadata.MediaDetails
	episodeTitles map[int][]metadata.EpisodeTitle
	byExternalID  map[string]*metadata.MediaDetails
	titlesErr     error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		movieDetails:  make(map[int]*metadata.MediaDetails),
		seriesDetails: make(map[seriesKey]*metadata.MediaDetails),
		episodeTitles: make(map[int][]metadata.EpisodeTitle),
		byExternalID:  make(map[string]*metadata.MediaDetails),
	}
}

func (f *fakeCatalog) SearchMovies(ctx context.Context, title string, year int) ([]metadata.SearchResult, error) {
	return f.movieHits, nil
}

func (f *fakeCatalog) SearchSeries(ctx context.Context, title string, year int) ([]metadata.SearchResult, error) {
	return f.seriesHits, nil
}

func (f *fakeCatalog) GetMovieDetails(ctx context.Context, id int) (*metadata.MediaDetails, error) {
	if d, ok := f.movieDetails[id]; ok {
		return d, nil
	}
	return nil, faults.NotFound(fmt.Sprintf("movie %d", id))
}

func (f *fakeCatalog) GetSeriesDetails(ctx context.Context, source metadata.Source, id int) (*metadata.MediaDetails, error) {
	if d, ok := f.seriesDetails[seriesKey{source, id}]; ok {
		return d, nil
	}
	return nil, faults.NotFound(fmt.Sprintf("series %d", id))
}

func (f *fakeCatalog) GetEpisodeTitles(ctx context.Context, source metadata.Source, seriesID, season int) ([]metadata.EpisodeTitle, error) {
	if f.titlesErr != nil {
		return nil, f.titlesErr
	}
	return f.episodeTitles[season], nil
}

func (f *fakeCatalog) FindByExternalID(ctx context.Context, externalID string) (*metadata.MediaDetails, error) {
	if d, ok := f.byExternalID[externalID]; ok {
		return d, nil
	}
	return nil, faults.NotFound(fmt.Sprintf("external id %s", externalID))
}

type fixture struct {
	service *Service
	store   *Store
	files   *files.Store
	movies  *movies.Store
	tv      *tv.Store
	catalog *fakeCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(t.TempDir() + "/catalog.db")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.Nop()
	cat := newFakeCatalog()
	store := NewStore(db, zerolog.Nop())
	fileStore := files.NewStore(db, zerolog.Nop())
	movieStore := movies.NewStore(db, zerolog.Nop())
	tvStore := tv.NewStore(db, zerolog.Nop())
	match := matcher.New(cat, 85, log)

	return &fixture{
		service: NewService(store, cat, match, movieStore, tvStore, fileStore, log),
		store:   store,
		files:   fileStore,
		movies:  movieStore,
		tv:      tvStore,
		catalog: cat,
	}
}

func (f *fixture) register(t *testing.T, path string, parsed scanner.ParsedFilename, mediaType scanner.MediaType, candidates []matcher.Candidate) *PendingValidation {
	t.Helper()
	file := mustVideoFile(t, f.files, path)
	pending, err := f.service.Register(context.Background(), file.ID, parsed, mediaType, candidates)
	if err != nil {
		t.Fatalf("register %s: %v", path, err)
	}
	return pending
}

func duneDetails() *metadata.MediaDetails {
	return &metadata.MediaDetails{
		Source:        metadata.SourceTMDB,
		ID:            438631,
		Title:         "Dune",
		OriginalTitle: "Dune",
		Year:          2021,
		Overview:      "Paul Atreides travels to Arrakis.",
		PosterURL:     "https://image.tmdb.org/dune.jpg",
		Runtime:       155,
		Genres:        []string{"Science Fiction", "Adventure"},
		Director:      "Denis Villeneuve",
		Cast:          []string{"Timothée Chalamet", "Rebecca Ferguson"},
		VoteCount:     11000,
		ImdbID:        "tt1160419",
		TmdbID:        438631,
	}
}

func lostDetails() *metadata.MediaDetails {
	return &metadata.MediaDetails{
		Source:              metadata.SourceTMDB,
		ID:                  4607,
		Title:               "Lost",
		Year:                2004,
		Overview:            "Survivors of a plane crash.",
		Runtime:             43,
		Genres:              []string{"Drama", "Mystery"},
		CreatedBy:           "J. J. Abrams",
		Cast:                []string{"Matthew Fox", "Evangeline Lilly"},
		VoteCount:           3400,
		TmdbID:              4607,
		TvdbID:              73739,
		NumberOfSeasons:     6,
		SeasonEpisodeCounts: map[int]int{1: 25, 2: 24},
	}
}

func duneCandidate() matcher.Candidate {
	return matcher.Candidate{Source: metadata.SourceTMDB, ExternalID: "438631", Title: "Dune", Year: 2021, Score: 100}
}

func lostCandidate() matcher.Candidate {
	return matcher.Candidate{Source: metadata.SourceTMDB, ExternalID: "4607", Title: "Lost", Year: 2004, Score: 97}
}

func TestService_AcceptMovie(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.movieDetails[438631] = duneDetails()

	pending := f.register(t, "/downloads/Dune.2021.2160p.mkv",
		scanner.ParsedFilename{Title: "Dune", Year: 2021},
		scanner.MediaTypeMovie,
		[]matcher.Candidate{duneCandidate()})

	accepted, err := f.service.Accept(ctx, pending.ID, "438631")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if accepted.Status != StatusValidated || accepted.SelectedCandidateID != "438631" || accepted.AutoValidated {
		t.Errorf("decision = %q %q auto=%v", accepted.Status, accepted.SelectedCandidateID, accepted.AutoValidated)
	}

	movie, err := f.movies.GetByTmdbID(ctx, 438631)
	if err != nil {
		t.Fatalf("materialized movie missing: %v", err)
	}
	if movie.Title != "Dune" || movie.Year != 2021 || movie.Director != "Denis Villeneuve" {
		t.Errorf("movie = %q (%d) by %q", movie.Title, movie.Year, movie.Director)
	}
	if movie.DurationSeconds != 155*60 {
		t.Errorf("DurationSeconds = %d, want %d", movie.DurationSeconds, 155*60)
	}
	if movie.FilePath != "" || movie.FileHash != "" {
		t.Errorf("file association belongs to the transfer step, got path %q hash %q", movie.FilePath, movie.FileHash)
	}

	// Re-accepting the same candidate is a no-op.
	again, err := f.service.Accept(ctx, pending.ID, "438631")
	if err != nil {
		t.Fatalf("repeat Accept() error = %v", err)
	}
	if again.Status != StatusValidated {
		t.Errorf("repeat accept status = %q", again.Status)
	}

	// Switching candidates requires an explicit reset first.
	if _, err := f.service.Accept(ctx, pending.ID, "841"); faults.KindOf(err) != faults.KindInvalidInput {
		t.Errorf("conflicting Accept() error = %v, want invalid input", err)
	}
}

func TestService_AcceptPreservesPersonalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.movieDetails[438631] = duneDetails()

	rating := 9
	if _, err := f.movies.Save(ctx, &movies.Movie{
		Title:          "Dune (old import)",
		Year:           2021,
		TmdbID:         438631,
		Watched:        true,
		PersonalRating: &rating,
		FilePath:       "/storage/Films/Science Fiction/D/Dune (2021)/Dune (2021).mkv",
		FileHash:       "feedbeef",
	}); err != nil {
		t.Fatalf("seed movie: %v", err)
	}

	pending := f.register(t, "/downloads/Dune.2021.REMUX.mkv",
		scanner.ParsedFilename{Title: "Dune", Year: 2021},
		scanner.MediaTypeMovie,
		[]matcher.Candidate{duneCandidate()})
	if _, err := f.service.Accept(ctx, pending.ID, "438631"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	movie, err := f.movies.GetByTmdbID(ctx, 438631)
	if err != nil {
		t.Fatalf("movie lookup: %v", err)
	}
	if movie.Title != "Dune" {
		t.Errorf("metadata should refresh, title = %q", movie.Title)
	}
	if !movie.Watched || movie.PersonalRating == nil || *movie.PersonalRating != 9 {
		t.Error("personal state must survive a re-accept")
	}
	if movie.FilePath == "" || movie.FileHash != "feedbeef" {
		t.Error("existing file association must survive a re-accept")
	}
}

func TestService_AcceptByRawImdbID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fightClub := &metadata.MediaDetails{
		Source: metadata.SourceTMDB, ID: 550, Title: "Fight Club", Year: 1999,
		Runtime: 139, TmdbID: 550, ImdbID: "tt0137523", Director: "David Fincher",
	}
	f.catalog.byExternalID["tt0137523"] = fightClub

	pending := f.register(t, "/downloads/FC.mkv",
		scanner.ParsedFilename{Title: "FC"},
		scanner.MediaTypeMovie, nil)

	accepted, err := f.service.Accept(ctx, pending.ID, "tt0137523")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if accepted.SelectedCandidateID != "tt0137523" {
		t.Errorf("SelectedCandidateID = %q", accepted.SelectedCandidateID)
	}
	if _, err := f.movies.GetByImdbID(ctx, "tt0137523"); err != nil {
		t.Fatalf("materialized movie missing: %v", err)
	}
}

func TestService_AcceptMissingPending(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Accept(context.Background(), 404, "438631")
	if faults.KindOf(err) != faults.KindNotFound {
		t.Errorf("Accept() error = %v, want not found", err)
	}
}

func TestService_SeriesAcceptCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.seriesDetails[seriesKey{metadata.SourceTMDB, 4607}] = lostDetails()
	f.catalog.episodeTitles[1] = []metadata.EpisodeTitle{
		{Season: 1, Episode: 1, Title: "Pilot (1)", AirDate: "2004-09-22"},
		{Season: 1, Episode: 2, Title: "Pilot (2)", AirDate: "2004-09-22"},
		{Season: 1, Episode: 3, Title: "Tabula Rasa", AirDate: "2004-10-06"},
	}

	var pendings []*PendingValidation
	for i := 1; i <= 10; i++ {
		p := f.register(t, fmt.Sprintf("/downloads/Lost.Season.1/Lost.S01E%02d.mkv", i),
			scanner.ParsedFilename{Title: "Lost", Season: 1, Episode: i},
			scanner.MediaTypeSeries,
			[]matcher.Candidate{lostCandidate()})
		pendings = append(pendings, p)
	}

	root, err := f.service.Accept(ctx, pendings[0].ID, "4607")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if root.AutoValidated || root.CascadeRootID != 0 {
		t.Errorf("root auto=%v cascadeRoot=%d", root.AutoValidated, root.CascadeRootID)
	}

	for _, p := range pendings[1:] {
		got, err := f.service.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID(%d): %v", p.ID, err)
		}
		if got.Status != StatusValidated || !got.AutoValidated || got.CascadeRootID != root.ID {
			t.Errorf("sibling %d: status=%q auto=%v root=%d", p.ID, got.Status, got.AutoValidated, got.CascadeRootID)
		}
	}

	auto, err := f.service.ListAutoValidated(ctx)
	if err != nil {
		t.Fatalf("ListAutoValidated() error = %v", err)
	}
	if len(auto) != 9 {
		t.Errorf("auto-validated review queue = %d rows, want 9", len(auto))
	}

	series, err := f.tv.GetSeriesByTmdbID(ctx, 4607)
	if err != nil {
		t.Fatalf("series missing: %v", err)
	}
	if series.CreatedBy != "J. J. Abrams" || series.TvdbID != 73739 {
		t.Errorf("series = %+v", series)
	}
	episodes, err := f.tv.ListEpisodes(ctx, series.ID)
	if err != nil {
		t.Fatalf("ListEpisodes() error = %v", err)
	}
	if len(episodes) != 10 {
		t.Fatalf("episodes = %d, want 10", len(episodes))
	}
	pilot, err := f.tv.GetEpisode(ctx, series.ID, 1, 1)
	if err != nil {
		t.Fatalf("GetEpisode(1,1): %v", err)
	}
	if pilot.Title != "Pilot (1)" || pilot.AirDate != "2004-09-22" {
		t.Errorf("pilot = %q (%s)", pilot.Title, pilot.AirDate)
	}
	if pilot.DurationSeconds != 43*60 {
		t.Errorf("episode duration = %d, want %d", pilot.DurationSeconds, 43*60)
	}
	beyond, err := f.tv.GetEpisode(ctx, series.ID, 1, 4)
	if err != nil {
		t.Fatalf("GetEpisode(1,4): %v", err)
	}
	if beyond.Title != "" {
		t.Errorf("episode without a fetched title should stay untitled, got %q", beyond.Title)
	}

	// Resetting the root reverts the whole cascade group.
	if _, err := f.service.ResetToPending(ctx, root.ID); err != nil {
		t.Fatalf("ResetToPending() error = %v", err)
	}
	for _, p := range pendings {
		got, err := f.service.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID(%d): %v", p.ID, err)
		}
		if got.Status != StatusPending || got.SelectedCandidateID != "" || got.AutoValidated || got.CascadeRootID != 0 {
			t.Errorf("after reset %d: %+v", p.ID, got)
		}
		if len(got.Candidates) != 1 {
			t.Errorf("candidates must survive a reset, got %d", len(got.Candidates))
		}
	}
	episodes, err = f.tv.ListEpisodes(ctx, series.ID)
	if err != nil {
		t.Fatalf("ListEpisodes() after reset error = %v", err)
	}
	if len(episodes) != 0 {
		t.Errorf("episode rows should be taken back, got %d", len(episodes))
	}
	if _, err := f.tv.GetSeriesByTmdbID(ctx, 4607); err != nil {
		t.Errorf("series row should survive a reset: %v", err)
	}
}

func TestService_MemberResetLeavesRootAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.seriesDetails[seriesKey{metadata.SourceTMDB, 4607}] = lostDetails()

	var pendings []*PendingValidation
	for i := 1; i <= 3; i++ {
		p := f.register(t, fmt.Sprintf("/downloads/Lost.S01E%02d.mkv", i),
			scanner.ParsedFilename{Title: "Lost", Season: 1, Episode: i},
			scanner.MediaTypeSeries,
			[]matcher.Candidate{lostCandidate()})
		pendings = append(pendings, p)
	}
	root, err := f.service.Accept(ctx, pendings[0].ID, "4607")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	if _, err := f.service.ResetToPending(ctx, pendings[1].ID); err != nil {
		t.Fatalf("ResetToPending(member) error = %v", err)
	}

	gotRoot, err := f.service.GetByID(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetByID(root): %v", err)
	}
	if gotRoot.Status != StatusValidated {
		t.Errorf("manually accepted root must survive a member reset, status = %q", gotRoot.Status)
	}
	for _, id := range []int64{pendings[1].ID, pendings[2].ID} {
		got, err := f.service.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%d): %v", id, err)
		}
		if got.Status != StatusPending {
			t.Errorf("sibling %d status = %q, want pending", id, got.Status)
		}
	}
}

func TestService_RejectTakesBackMovieRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.movieDetails[438631] = duneDetails()

	pending := f.register(t, "/downloads/Dune.2021.mkv",
		scanner.ParsedFilename{Title: "Dune", Year: 2021},
		scanner.MediaTypeMovie,
		[]matcher.Candidate{duneCandidate()})
	if _, err := f.service.Accept(ctx, pending.ID, "438631"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	rejected, err := f.service.Reject(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if rejected.Status != StatusRejected || rejected.SelectedCandidateID != "" {
		t.Errorf("rejected = %q %q", rejected.Status, rejected.SelectedCandidateID)
	}
	if len(rejected.Candidates) != 1 {
		t.Errorf("candidates must survive a reject, got %d", len(rejected.Candidates))
	}
	if _, err := f.movies.GetByTmdbID(ctx, 438631); !errors.Is(err, movies.ErrMovieNotFound) {
		t.Errorf("materialized row should be gone, got %v", err)
	}

	// A rejected row cannot be accepted without a reset.
	if _, err := f.service.Accept(ctx, pending.ID, "438631"); faults.KindOf(err) != faults.KindInvalidInput {
		t.Errorf("Accept() after reject error = %v, want invalid input", err)
	}
	if _, err := f.service.ResetToPending(ctx, pending.ID); err != nil {
		t.Fatalf("ResetToPending() error = %v", err)
	}
	if _, err := f.service.Accept(ctx, pending.ID, "438631"); err != nil {
		t.Errorf("Accept() after reset error = %v", err)
	}
}

func TestService_RejectKeepsTransferredRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.movieDetails[438631] = duneDetails()

	pending := f.register(t, "/downloads/Dune.2021.mkv",
		scanner.ParsedFilename{Title: "Dune", Year: 2021},
		scanner.MediaTypeMovie,
		[]matcher.Candidate{duneCandidate()})
	if _, err := f.service.Accept(ctx, pending.ID, "438631"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	movie, err := f.movies.GetByTmdbID(ctx, 438631)
	if err != nil {
		t.Fatalf("movie lookup: %v", err)
	}
	movie.FilePath = "/storage/Films/Science Fiction/D/Dune (2021)/Dune (2021).mkv"
	movie.FileHash = "cafebabe"
	if _, err := f.movies.Save(ctx, movie); err != nil {
		t.Fatalf("simulate transfer: %v", err)
	}

	if _, err := f.service.Reject(ctx, pending.ID); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if _, err := f.movies.GetByTmdbID(ctx, 438631); err != nil {
		t.Errorf("transferred row must survive a reject: %v", err)
	}
}

func TestService_AutoValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.movieDetails[438631] = duneDetails()

	pending := f.register(t, "/downloads/Dune.2021.mkv",
		scanner.ParsedFilename{Title: "Dune", Year: 2021},
		scanner.MediaTypeMovie,
		[]matcher.Candidate{duneCandidate(), {Source: metadata.SourceTMDB, ExternalID: "841", Title: "Dune", Year: 1984, Score: 75}})

	validated, err := f.service.AutoValidate(ctx, pending.ID)
	if err != nil {
		t.Fatalf("AutoValidate() error = %v", err)
	}
	if validated.Status != StatusValidated || !validated.AutoValidated || validated.SelectedCandidateID != "438631" {
		t.Errorf("auto decision = %q %q auto=%v", validated.Status, validated.SelectedCandidateID, validated.AutoValidated)
	}

	// Already decided rows are returned as-is.
	again, err := f.service.AutoValidate(ctx, pending.ID)
	if err != nil {
		t.Fatalf("repeat AutoValidate() error = %v", err)
	}
	if again.Status != StatusValidated {
		t.Errorf("repeat status = %q", again.Status)
	}

	empty := f.register(t, "/downloads/unmatched.mkv",
		scanner.ParsedFilename{Title: "Unmatched"},
		scanner.MediaTypeMovie, nil)
	if _, err := f.service.AutoValidate(ctx, empty.ID); faults.KindOf(err) != faults.KindInvalidInput {
		t.Errorf("AutoValidate() without candidates error = %v, want invalid input", err)
	}
}

func TestService_RegisterKeepsOperatorDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.movieDetails[438631] = duneDetails()

	file := mustVideoFile(t, f.files, "/downloads/Dune.2021.mkv")
	parsed := scanner.ParsedFilename{Title: "Dune", Year: 2021}

	first, err := f.service.Register(ctx, file.ID, parsed, scanner.MediaTypeMovie, []matcher.Candidate{duneCandidate()})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// A rescan of a still-pending file refreshes the row in place.
	refreshed, err := f.service.Register(ctx, file.ID, parsed, scanner.MediaTypeMovie,
		[]matcher.Candidate{duneCandidate(), {Source: metadata.SourceTMDB, ExternalID: "841", Title: "Dune", Year: 1984, Score: 75}})
	if err != nil {
		t.Fatalf("Register() refresh error = %v", err)
	}
	if refreshed.ID != first.ID {
		t.Errorf("refresh minted a new row: %d vs %d", refreshed.ID, first.ID)
	}
	if len(refreshed.Candidates) != 2 {
		t.Errorf("refreshed candidates = %d, want 2", len(refreshed.Candidates))
	}

	if _, err := f.service.Accept(ctx, first.ID, "438631"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	// After the operator decided, a rescan must not reopen the row.
	decided, err := f.service.Register(ctx, file.ID, parsed, scanner.MediaTypeMovie, nil)
	if err != nil {
		t.Fatalf("Register() after decision error = %v", err)
	}
	if decided.Status != StatusValidated || decided.SelectedCandidateID != "438631" {
		t.Errorf("decision lost on rescan: %q %q", decided.Status, decided.SelectedCandidateID)
	}
	if len(decided.Candidates) != 2 {
		t.Errorf("stored candidates overwritten on rescan: %d", len(decided.Candidates))
	}
}

func TestService_SeasonPackNeedsEpisodeNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.seriesDetails[seriesKey{metadata.SourceTMDB, 4607}] = lostDetails()

	pending := f.register(t, "/downloads/Lost.S01.COMPLETE.mkv",
		scanner.ParsedFilename{Title: "Lost", Season: 1, SeasonPack: true},
		scanner.MediaTypeSeries,
		[]matcher.Candidate{lostCandidate()})

	_, err := f.service.Accept(ctx, pending.ID, "4607")
	if faults.KindOf(err) != faults.KindInvalidInput {
		t.Errorf("Accept() on a season pack error = %v, want invalid input", err)
	}
}

func TestService_MultiEpisodeFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.seriesDetails[seriesKey{metadata.SourceTMDB, 4607}] = lostDetails()
	f.catalog.episodeTitles[1] = []metadata.EpisodeTitle{
		{Season: 1, Episode: 23, Title: "Exodus (1)"},
		{Season: 1, Episode: 24, Title: "Exodus (2)"},
	}

	pending := f.register(t, "/downloads/Lost.S01E23-E24.mkv",
		scanner.ParsedFilename{Title: "Lost", Season: 1, Episode: 23, EpisodeEnd: 24},
		scanner.MediaTypeSeries,
		[]matcher.Candidate{lostCandidate()})
	if _, err := f.service.Accept(ctx, pending.ID, "4607"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	series, err := f.tv.GetSeriesByTmdbID(ctx, 4607)
	if err != nil {
		t.Fatalf("series lookup: %v", err)
	}
	for _, num := range []int{23, 24} {
		episode, err := f.tv.GetEpisode(ctx, series.ID, 1, num)
		if err != nil {
			t.Fatalf("GetEpisode(1,%d): %v", num, err)
		}
		if episode.Title == "" {
			t.Errorf("episode %d untitled", num)
		}
	}
}

func TestService_EpisodeTitleFetchFailureDegrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.seriesDetails[seriesKey{metadata.SourceTMDB, 4607}] = lostDetails()
	f.catalog.titlesErr = faults.ExternalTransient("tvdb timeout", nil)

	pending := f.register(t, "/downloads/Lost.S01E05.mkv",
		scanner.ParsedFilename{Title: "Lost", Season: 1, Episode: 5},
		scanner.MediaTypeSeries,
		[]matcher.Candidate{lostCandidate()})
	if _, err := f.service.Accept(ctx, pending.ID, "4607"); err != nil {
		t.Fatalf("Accept() should tolerate a failed title fetch: %v", err)
	}

	series, err := f.tv.GetSeriesByTmdbID(ctx, 4607)
	if err != nil {
		t.Fatalf("series lookup: %v", err)
	}
	episode, err := f.tv.GetEpisode(ctx, series.ID, 1, 5)
	if err != nil {
		t.Fatalf("episode lookup: %v", err)
	}
	if episode.Title != "" {
		t.Errorf("episode should stay untitled, got %q", episode.Title)
	}
}

func TestService_SearchManual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.seriesHits = []metadata.SearchResult{
		{Source: metadata.SourceTMDB, ID: 1438, Title: "The Wire", Year: 2002, VoteCount: 2100},
	}
	f.catalog.seriesDetails[seriesKey{metadata.SourceTMDB, 1438}] = &metadata.MediaDetails{
		Source: metadata.SourceTMDB, ID: 1438, Title: "The Wire", Year: 2002, Runtime: 59, TmdbID: 1438,
	}

	candidates, err := f.service.SearchManual(ctx, "The Wire", scanner.MediaTypeSeries)
	if err != nil {
		t.Fatalf("SearchManual() error = %v", err)
	}
	if len(candidates) != 1 || candidates[0].ExternalID != "1438" {
		t.Fatalf("candidates = %+v", candidates)
	}

	pending, err := f.service.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("manual search must not persist rows, got %d", len(pending))
	}
}

func TestService_SearchByExternalID(t *testing.T) {
	f := newFixture(t)
	f.catalog.byExternalID["tt0306414"] = &metadata.MediaDetails{
		Source: metadata.SourceTMDB, ID: 1438, Title: "The Wire", Year: 2002,
		Runtime: 59, VoteCount: 2100, TmdbID: 1438, ImdbID: "tt0306414",
	}

	cand, err := f.service.SearchByExternalID(context.Background(), "tt0306414")
	if err != nil {
		t.Fatalf("SearchByExternalID() error = %v", err)
	}
	if cand.ExternalID != "1438" || cand.Source != metadata.SourceTMDB {
		t.Errorf("candidate = %+v", cand)
	}
	if cand.DurationSeconds != 59*60 {
		t.Errorf("DurationSeconds = %d, want %d", cand.DurationSeconds, 59*60)
	}

	if _, err := f.service.SearchByExternalID(context.Background(), "tt0000000"); faults.KindOf(err) != faults.KindNotFound {
		t.Errorf("unknown id error = %v, want not found", err)
	}
}
