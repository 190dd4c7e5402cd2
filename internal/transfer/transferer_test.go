package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mediatheque/mediatheque/internal/config"
	"github.com/mediatheque/mediatheque/internal/database"
	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/fileops"
	"github.com/mediatheque/mediatheque/internal/library/files"
	"github.com/mediatheque/mediatheque/internal/library/movies"
	"github.com/mediatheque/mediatheque/internal/library/tv"
	"github.com/mediatheque/mediatheque/internal/logger"
)

type transferFixture struct {
	tr       *Transferer
	movies   *movies.Store
	tv       *tv.Store
	files    *files.Store
	storage  string
	video    string
	download string
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()
	root := t.TempDir()
	db, err := database.Open(filepath.Join(root, "catalog.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.Nop()
	cfg := &config.Config{
		StorageDir: filepath.Join(root, "storage"),
		VideoDir:   filepath.Join(root, "video"),
	}
	f := &transferFixture{
		movies:   movies.NewStore(db, zerolog.Nop()),
		tv:       tv.NewStore(db, zerolog.Nop()),
		files:    files.NewStore(db, zerolog.Nop()),
		storage:  cfg.StorageDir,
		video:    cfg.VideoDir,
		download: filepath.Join(root, "downloads"),
	}
	f.tr = New(cfg, fileops.NewService(log), f.movies, f.tv, f.files, log)
	return f
}

func (f *transferFixture) seedMovieItem(t *testing.T, filename, title string, year int, payload string) Item {
	t.Helper()
	ctx := context.Background()
	src := writeBytes(t, filepath.Join(f.download, filename), payload)

	file, err := f.files.Save(ctx, &files.VideoFile{
		Path:            src,
		SizeBytes:       int64(len(payload)),
		FileHash:        hashOf(t, src),
		ResolutionLabel: "1080p",
		VideoCodec:      "x264",
		AudioCodecs:     []string{"DTS"},
		AudioChannels:   "5.1",
		AudioLanguages:  []string{"en", "fr"},
		Container:       "mkv",
	})
	if err != nil {
		t.Fatalf("seed video file: %v", err)
	}
	movie, err := f.movies.Save(ctx, &movies.Movie{
		Title:           title,
		Year:            year,
		TmdbID:          year*100 + len(title),
		Genres:          []string{"Science Fiction"},
		DurationSeconds: 8160,
	})
	if err != nil {
		t.Fatalf("seed movie: %v", err)
	}
	return Item{File: file, Movie: movie}
}

type eventSink struct {
	events []Event
	done   chan struct{}
}

// startEventSink consumes the stream and answers every conflict with
// the given choice. Call wait after closing the channel.
func startEventSink(events <-chan Event, choice Resolution) *eventSink {
	sink := &eventSink{done: make(chan struct{})}
	go func() {
		defer close(sink.done)
		for ev := range events {
			sink.events = append(sink.events, ev)
			if ev.Kind == EventConflict && ev.Reply != nil {
				ev.Reply <- choice
			}
		}
	}()
	return sink
}

func (s *eventSink) wait() []Event {
	<-s.done
	return s.events
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestPlan_GroupsByDestinationDir(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	movieItem := f.seedMovieItem(t, "The.Matrix.1999.mkv", "The Matrix", 1999, "matrix payload")
	series := &tv.Series{Title: "Lost", Year: 2004}
	saved, err := f.tv.SaveSeries(ctx, series)
	if err != nil {
		t.Fatalf("seed series: %v", err)
	}
	var episodeItems []Item
	for _, num := range []int{1, 2} {
		episode, err := f.tv.SaveEpisode(ctx, &tv.Episode{SeriesID: saved.ID, SeasonNumber: 1, EpisodeNumber: num})
		if err != nil {
			t.Fatalf("seed episode: %v", err)
		}
		src := writeBytes(t, filepath.Join(f.download, "Lost", fmt.Sprintf("Lost.S01E%02d.mkv", num)), "lost payload")
		file, err := f.files.Save(ctx, &files.VideoFile{Path: src, SizeBytes: 12, FileHash: hashOf(t, src)})
		if err != nil {
			t.Fatalf("seed file: %v", err)
		}
		episodeItems = append(episodeItems, Item{File: file, Series: saved, Episodes: []*tv.Episode{episode}})
	}

	batch, err := f.tr.Plan(ctx, append([]Item{movieItem}, episodeItems...))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if batch.Total != 3 {
		t.Errorf("Total = %d, want 3", batch.Total)
	}
	if len(batch.Groups) != 2 {
		t.Fatalf("groups = %d, want 2 (movie folder, season folder)", len(batch.Groups))
	}
	// Films sorts before Series; episodes share one season directory.
	if filepath.Base(batch.Groups[0].Dir) != "The Matrix (1999)" {
		t.Errorf("first group = %q", batch.Groups[0].Dir)
	}
	if filepath.Base(batch.Groups[1].Dir) != "Season 01" || len(batch.Groups[1].Items) != 2 {
		t.Errorf("second group = %q with %d items", batch.Groups[1].Dir, len(batch.Groups[1].Items))
	}
}

func TestPlan_RejectsEntityLessItem(t *testing.T) {
	f := newTransferFixture(t)
	_, err := f.tr.Plan(context.Background(), []Item{{File: &files.VideoFile{Path: "/downloads/x.mkv"}}})
	if faults.KindOf(err) != faults.KindInvalidInput {
		t.Errorf("Plan() error = %v, want invalid input", err)
	}
}

func TestExecute_MovesAndAssociates(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	item := f.seedMovieItem(t, "The.Matrix.1999.mkv", "The Matrix", 1999, "matrix payload")
	writeBytes(t, filepath.Join(f.download, "The.Matrix.1999.fr.srt"), "sous-titres")

	batch, err := f.tr.Plan(ctx, []Item{item})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	events := make(chan Event, 32)
	sink := startEventSink(events, ResolutionSkip)
	report, err := f.tr.Execute(ctx, batch, Options{Events: events})
	close(events)
	seen := sink.wait()
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report.Transferred != 1 || report.Failed != 0 || report.Skipped != 0 || report.Duplicates != 0 {
		t.Errorf("report = %+v", report)
	}

	wantRel := filepath.Join("Films", "Science Fiction", "M", "The Matrix (1999)", "The Matrix (1999).mkv")
	dest := filepath.Join(f.storage, wantRel)
	link := filepath.Join(f.video, wantRel)

	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.download, "The.Matrix.1999.mkv")); !os.IsNotExist(err) {
		t.Error("source should be gone after the move")
	}
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("presentation link missing: %v", err)
	}
	if target != dest {
		t.Errorf("link target = %q, want %q", target, dest)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dest), "The Matrix (1999).fr.srt")); err != nil {
		t.Errorf("companion subtitle did not follow: %v", err)
	}

	movie, err := f.movies.GetByID(ctx, item.Movie.ID)
	if err != nil {
		t.Fatalf("movie lookup: %v", err)
	}
	if movie.FilePath != dest || movie.LinkPath != link {
		t.Errorf("movie paths = %q / %q", movie.FilePath, movie.LinkPath)
	}
	if movie.FileHash != item.File.FileHash || movie.ResolutionLabel != "1080p" || movie.Container != "mkv" {
		t.Errorf("technical snapshot not recorded: %+v", movie)
	}

	inventory, err := f.files.GetByPath(ctx, dest)
	if err != nil {
		t.Fatalf("inventory row not relocated: %v", err)
	}
	if inventory.ID != item.File.ID {
		t.Errorf("inventory id = %d, want %d", inventory.ID, item.File.ID)
	}

	for _, kind := range []EventKind{EventStarted, EventProgress, EventItemDone, EventFinished} {
		if countKind(seen, kind) == 0 {
			t.Errorf("no %s event emitted", kind)
		}
	}
}

func TestExecute_EpisodeAssociation(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	series, err := f.tv.SaveSeries(ctx, &tv.Series{Title: "Lost", Year: 2004, TmdbID: 4607})
	if err != nil {
		t.Fatalf("seed series: %v", err)
	}
	episode, err := f.tv.SaveEpisode(ctx, &tv.Episode{SeriesID: series.ID, SeasonNumber: 1, EpisodeNumber: 4, Title: "Walkabout"})
	if err != nil {
		t.Fatalf("seed episode: %v", err)
	}
	src := writeBytes(t, filepath.Join(f.download, "Lost.S01E04.mkv"), "episode payload")
	file, err := f.files.Save(ctx, &files.VideoFile{Path: src, SizeBytes: 15, FileHash: hashOf(t, src), VideoCodec: "x265"})
	if err != nil {
		t.Fatalf("seed file: %v", err)
	}

	batch, err := f.tr.Plan(ctx, []Item{{File: file, Series: series, Episodes: []*tv.Episode{episode}}})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if _, err := f.tr.Execute(ctx, batch, Options{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	wantRel := filepath.Join("Series", "L", "Lost (2004)", "Season 01", "Lost (2004) - S01E04 - Walkabout.mkv")
	got, err := f.tv.GetEpisode(ctx, series.ID, 1, 4)
	if err != nil {
		t.Fatalf("episode lookup: %v", err)
	}
	if got.FilePath != filepath.Join(f.storage, wantRel) {
		t.Errorf("episode FilePath = %q", got.FilePath)
	}
	if got.LinkPath != filepath.Join(f.video, wantRel) {
		t.Errorf("episode LinkPath = %q", got.LinkPath)
	}
	if got.VideoCodec != "x265" {
		t.Errorf("episode codec = %q", got.VideoCodec)
	}
}

func TestExecute_DryRunTouchesNothing(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	item := f.seedMovieItem(t, "The.Matrix.1999.mkv", "The Matrix", 1999, "matrix payload")

	batch, err := f.tr.Plan(ctx, []Item{item})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	report, err := f.tr.Execute(ctx, batch, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !report.DryRun || report.Transferred != 1 {
		t.Errorf("report = %+v", report)
	}

	if _, err := os.Stat(filepath.Join(f.download, "The.Matrix.1999.mkv")); err != nil {
		t.Error("dry run must leave the source in place")
	}
	if _, err := os.Stat(f.storage); !os.IsNotExist(err) {
		t.Error("dry run must not create the storage tree")
	}
	movie, err := f.movies.GetByID(ctx, item.Movie.ID)
	if err != nil {
		t.Fatalf("movie lookup: %v", err)
	}
	if movie.FilePath != "" {
		t.Errorf("dry run must not associate, FilePath = %q", movie.FilePath)
	}
}

func TestExecute_DuplicateAutoSkips(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	item := f.seedMovieItem(t, "The.Matrix.1999.mkv", "The Matrix", 1999, "matrix payload")

	batch, err := f.tr.Plan(ctx, []Item{item})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	writeBytes(t, batch.Groups[0].Items[0].Destination, "matrix payload")

	report, err := f.tr.Execute(ctx, batch, Options{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report.Duplicates != 1 || report.Transferred != 0 {
		t.Errorf("report = %+v", report)
	}
	if _, err := os.Stat(filepath.Join(f.download, "The.Matrix.1999.mkv")); err != nil {
		t.Error("duplicate skip must leave the source in place")
	}
}

func TestExecute_ConflictKeepBoth(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	item := f.seedMovieItem(t, "The.Matrix.1999.mkv", "The Matrix", 1999, "fresh remux")

	batch, err := f.tr.Plan(ctx, []Item{item})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	original := batch.Groups[0].Items[0].Destination
	writeBytes(t, original, "older rip")

	events := make(chan Event, 32)
	sink := startEventSink(events, ResolutionKeepBoth)
	report, err := f.tr.Execute(ctx, batch, Options{Events: events})
	close(events)
	seen := sink.wait()
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report.Transferred != 1 {
		t.Errorf("report = %+v", report)
	}
	if countKind(seen, EventConflict) != 1 || countKind(seen, EventResolved) != 1 {
		t.Errorf("conflict/resolved events = %d/%d", countKind(seen, EventConflict), countKind(seen, EventResolved))
	}

	alt := insertSuffix(original, "-alt")
	if _, err := os.Stat(alt); err != nil {
		t.Fatalf("alt destination missing: %v", err)
	}
	content, err := os.ReadFile(original)
	if err != nil || string(content) != "older rip" {
		t.Errorf("original file must survive keep_both, content = %q err = %v", content, err)
	}
	movie, err := f.movies.GetByID(ctx, item.Movie.ID)
	if err != nil {
		t.Fatalf("movie lookup: %v", err)
	}
	if movie.FilePath != alt {
		t.Errorf("movie FilePath = %q, want the alt path", movie.FilePath)
	}
}

func TestExecute_ConflictKeepNewReplaces(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	item := f.seedMovieItem(t, "The.Matrix.1999.mkv", "The Matrix", 1999, "fresh remux")

	batch, err := f.tr.Plan(ctx, []Item{item})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	dest := batch.Groups[0].Items[0].Destination
	writeBytes(t, dest, "older rip")

	events := make(chan Event, 32)
	sink := startEventSink(events, ResolutionKeepNew)
	report, err := f.tr.Execute(ctx, batch, Options{Events: events})
	close(events)
	sink.wait()
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report.Transferred != 1 {
		t.Errorf("report = %+v", report)
	}
	content, err := os.ReadFile(dest)
	if err != nil || string(content) != "fresh remux" {
		t.Errorf("destination content = %q err = %v, want replacement", content, err)
	}
}

func TestExecute_UnattendedConflictSkips(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	item := f.seedMovieItem(t, "The.Matrix.1999.mkv", "The Matrix", 1999, "fresh remux")

	batch, err := f.tr.Plan(ctx, []Item{item})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	writeBytes(t, batch.Groups[0].Items[0].Destination, "older rip")

	report, err := f.tr.Execute(ctx, batch, Options{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report.Skipped != 1 || report.Transferred != 0 {
		t.Errorf("report = %+v", report)
	}
	if _, err := os.Stat(filepath.Join(f.download, "The.Matrix.1999.mkv")); err != nil {
		t.Error("unattended conflict must leave the source in place")
	}
}

func TestExecute_CancelDuringConflictWait(t *testing.T) {
	f := newTransferFixture(t)
	item := f.seedMovieItem(t, "The.Matrix.1999.mkv", "The Matrix", 1999, "fresh remux")

	batch, err := f.tr.Plan(context.Background(), []Item{item})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	writeBytes(t, batch.Groups[0].Items[0].Destination, "older rip")

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event)
	go func() {
		for ev := range events {
			if ev.Kind == EventConflict {
				cancel()
			}
		}
	}()

	report, err := f.tr.Execute(ctx, batch, Options{Events: events})
	close(events)
	if !faults.IsCancelled(err) {
		t.Fatalf("Execute() error = %v, want cancelled", err)
	}
	if report == nil || !report.Interrupted {
		t.Errorf("report = %+v, want interrupted", report)
	}
	if _, err := os.Stat(filepath.Join(f.download, "The.Matrix.1999.mkv")); err != nil {
		t.Error("cancellation during the wait must leave the item untouched")
	}
}

func TestExecute_PerItemFailureIsolation(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	broken := f.seedMovieItem(t, "Alpha.2020.mkv", "Alpha", 2020, "alpha payload")
	healthy := f.seedMovieItem(t, "Beta.2021.mkv", "Beta", 2021, "beta payload")

	batch, err := f.tr.Plan(ctx, []Item{broken, healthy})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if err := os.Remove(filepath.Join(f.download, "Alpha.2020.mkv")); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	report, err := f.tr.Execute(ctx, batch, Options{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report.Failed != 1 || report.Transferred != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.Items[0].Status != ItemFailed || report.Items[1].Status != ItemTransferred {
		t.Errorf("items = %+v", report.Items)
	}

	movie, err := f.movies.GetByID(ctx, healthy.Movie.ID)
	if err != nil {
		t.Fatalf("movie lookup: %v", err)
	}
	if movie.FilePath == "" {
		t.Error("healthy item should transfer despite the earlier failure")
	}
}

type recordingInvalidator struct {
	movieIDs   []int64
	episodeIDs []int64
}

func (r *recordingInvalidator) InvalidateMovie(id int64)   { r.movieIDs = append(r.movieIDs, id) }
func (r *recordingInvalidator) InvalidateEpisode(id int64) { r.episodeIDs = append(r.episodeIDs, id) }

func TestExecute_InvalidatesAuditCache(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	inv := &recordingInvalidator{}
	f.tr.SetInvalidator(inv)
	item := f.seedMovieItem(t, "The.Matrix.1999.mkv", "The Matrix", 1999, "matrix payload")

	batch, err := f.tr.Plan(ctx, []Item{item})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if _, err := f.tr.Execute(ctx, batch, Options{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(inv.movieIDs) != 1 || inv.movieIDs[0] != item.Movie.ID {
		t.Errorf("invalidated movie ids = %v, want [%d]", inv.movieIDs, item.Movie.ID)
	}
}
