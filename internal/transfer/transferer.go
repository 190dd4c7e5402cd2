package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"github.com/mediatheque/mediatheque/internal/config"
	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/fileops"
	"github.com/mediatheque/mediatheque/internal/library/files"
	"github.com/mediatheque/mediatheque/internal/library/movies"
	"github.com/mediatheque/mediatheque/internal/library/tv"
	"github.com/mediatheque/mediatheque/internal/logger"
)

// Invalidator drops cached association verdicts when a transfer
// re-associates an entity.
type Invalidator interface {
	InvalidateMovie(id int64)
	InvalidateEpisode(id int64)
}

// Transferer places validated files into the storage tree, mirrors
// them into the presentation tree, and records both paths on the
// catalog. One batch holds a process-wide advisory lock on storage.
type Transferer struct {
	namer       *Namer
	ops         *fileops.Service
	movies      *movies.Store
	tv          *tv.Store
	files       *files.Store
	invalidator Invalidator
	logger      *logger.Logger
	lockPath    string
}

func New(cfg *config.Config, ops *fileops.Service, movieStore *movies.Store, tvStore *tv.Store, fileStore *files.Store, log *logger.Logger) *Transferer {
	return &Transferer{
		namer:    NewNamer(cfg.StorageDir, cfg.VideoDir),
		ops:      ops,
		movies:   movieStore,
		tv:       tvStore,
		files:    fileStore,
		logger:   log.WithComponent("transfer"),
		lockPath: filepath.Join(cfg.StorageDir, ".transfer.lock"),
	}
}

// SetInvalidator wires the association audit's cache. Optional.
func (t *Transferer) SetInvalidator(inv Invalidator) {
	t.invalidator = inv
}

// Plan computes a destination for every item and groups the batch by
// destination parent directory in a stable order.
func (t *Transferer) Plan(ctx context.Context, items []Item) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, faults.Cancelled(err)
	}

	grouped := make(map[string][]*PlannedItem)
	for _, item := range items {
		if item.File == nil {
			return nil, faults.InvalidInput("transfer item has no video file")
		}
		var dest, link string
		switch {
		case item.Movie != nil:
			dest, link = t.namer.MovieDestination(item.Movie, item.File.Path)
		case item.Series != nil && len(item.Episodes) > 0:
			dest, link = t.namer.EpisodeDestination(item.Series, item.Episodes, item.File.Path)
		default:
			return nil, faults.InvalidInput(fmt.Sprintf("transfer item for %s has no catalog entity", item.File.Path))
		}
		planned := &PlannedItem{Item: item, Destination: dest, LinkPath: link}
		dir := filepath.Dir(dest)
		grouped[dir] = append(grouped[dir], planned)
	}

	dirs := make([]string, 0, len(grouped))
	for dir := range grouped {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	batch := &Batch{}
	for _, dir := range dirs {
		members := grouped[dir]
		sort.Slice(members, func(i, j int) bool { return members[i].Destination < members[j].Destination })
		batch.Groups = append(batch.Groups, Group{Dir: dir, Items: members})
		batch.Total += len(members)
	}
	return batch, nil
}

// Execute runs a planned batch. Per-item failures leave the rest of
// the batch runnable; a cancellation, including one during a conflict
// wait, stops the batch with the current item untouched. Dry-run
// performs every check and emits every event without touching the
// filesystem or the catalog.
func (t *Transferer) Execute(ctx context.Context, batch *Batch, opts Options) (*Report, error) {
	report := &Report{Total: batch.Total, DryRun: opts.DryRun}

	if !opts.DryRun && batch.Total > 0 {
		if err := os.MkdirAll(filepath.Dir(t.lockPath), 0o750); err != nil {
			return nil, faults.FilesystemIO("create storage directory", err)
		}
		lock := flock.New(t.lockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return nil, faults.FilesystemIO("acquire transfer lock", err)
		}
		if !locked {
			return nil, faults.Conflictf(faults.ConflictNone, "another transfer holds %s", t.lockPath)
		}
		defer lock.Unlock()
	}

	t.emit(ctx, opts, Event{Kind: EventStarted, Total: batch.Total})

	done := 0
	for _, group := range batch.Groups {
		for _, item := range group.Items {
			if err := ctx.Err(); err != nil {
				report.Interrupted = true
				t.emit(ctx, opts, Event{Kind: EventFinished, Report: report})
				return report, faults.Cancelled(err)
			}
			t.emit(ctx, opts, Event{Kind: EventProgress, Done: done, Total: batch.Total, Current: item.File.Filename})

			result, err := t.executeItem(ctx, item, opts, report)
			if err != nil {
				report.Interrupted = true
				t.emit(ctx, opts, Event{Kind: EventFinished, Report: report})
				return report, err
			}
			report.Items = append(report.Items, result)
			done++
			t.emit(ctx, opts, Event{Kind: EventItemDone, Done: done, Total: batch.Total, Item: item, Result: &result})
		}
	}

	t.emit(ctx, opts, Event{Kind: EventFinished, Report: report})
	t.logger.Info().
		Int("total", report.Total).
		Int("transferred", report.Transferred).
		Int("duplicates", report.Duplicates).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Bool("dry_run", report.DryRun).
		Msg("Transfer batch finished")
	return report, nil
}

// executeItem carries one item to a terminal status. Only a
// cancellation returns an error; everything else lands in the result.
func (t *Transferer) executeItem(ctx context.Context, item *PlannedItem, opts Options, report *Report) (ItemResult, error) {
	result := ItemResult{Source: item.File.Path, Destination: item.Destination, LinkPath: item.LinkPath}

	if conflict := t.detectConflict(item); conflict != nil {
		if conflict.Subkind == faults.ConflictDuplicate {
			t.logger.Info().
				Str("source", item.File.Path).
				Str("existing", conflict.Path).
				Msg("Duplicate content in storage, skipping")
			report.Duplicates++
			result.Status = ItemSkippedDuplicate
			return result, nil
		}

		choice, err := t.awaitResolution(ctx, item, conflict, opts)
		if err != nil {
			return result, err
		}
		result.Resolution = choice
		t.emit(ctx, opts, Event{Kind: EventResolved, Item: item, Conflict: conflict, Choice: choice})

		switch choice {
		case ResolutionKeepOld, ResolutionSkip:
			report.Skipped++
			result.Status = ItemSkipped
			return result, nil
		case ResolutionKeepBoth:
			item.Destination, item.LinkPath = t.withAltSuffix(item.Destination, item.LinkPath)
			result.Destination = item.Destination
			result.LinkPath = item.LinkPath
		}
		// keep_new proceeds onto the original destination; the scoped
		// move publishes over the existing file by rename.
	}

	if opts.DryRun {
		report.Transferred++
		result.Status = ItemTransferred
		return result, nil
	}

	if err := t.ops.ScopedMove(ctx, item.File.Path, item.Destination, item.LinkPath); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || faults.IsCancelled(err) {
			return result, faults.Cancelled(err)
		}
		t.logger.Error().Err(err).
			Str("source", item.File.Path).
			Str("dest", item.Destination).
			Msg("Transfer failed")
		report.Failed++
		result.Status = ItemFailed
		result.Error = err.Error()
		return result, nil
	}

	if moved, err := t.ops.MoveCompanions(ctx, result.Source, item.Destination); err != nil {
		t.logger.Warn().Err(err).Str("source", result.Source).Msg("Companion files not fully moved")
	} else if moved > 0 {
		t.logger.Debug().Int("count", moved).Str("dest", item.Destination).Msg("Moved companion files")
	}

	if err := t.associate(ctx, item); err != nil {
		t.logger.Error().Err(err).
			Str("dest", item.Destination).
			Msg("File placed but the catalog update failed; integrity scan will surface it")
		report.Failed++
		result.Status = ItemFailed
		result.Error = err.Error()
		return result, nil
	}

	report.Transferred++
	result.Status = ItemTransferred
	return result, nil
}

// awaitResolution defers a conflict to the operator through the event
// stream and blocks until the one-shot reply arrives. Without an
// event channel the conflict resolves to skip.
func (t *Transferer) awaitResolution(ctx context.Context, item *PlannedItem, conflict *Conflict, opts Options) (Resolution, error) {
	if opts.Events == nil {
		t.logger.Info().
			Str("kind", string(conflict.Subkind)).
			Str("dest", item.Destination).
			Msg("Unattended conflict, skipping item")
		return ResolutionSkip, nil
	}

	reply := make(chan Resolution, 1)
	select {
	case opts.Events <- Event{Kind: EventConflict, Item: item, Conflict: conflict, Options: conflictOptions, Reply: reply}:
	case <-ctx.Done():
		return "", faults.Cancelled(ctx.Err())
	}

	select {
	case choice := <-reply:
		if !validResolution(choice) {
			t.logger.Warn().Str("choice", string(choice)).Msg("Unknown conflict resolution, skipping item")
			return ResolutionSkip, nil
		}
		return choice, nil
	case <-ctx.Done():
		return "", faults.Cancelled(ctx.Err())
	}
}

// withAltSuffix appends -alt (then -alt2, -alt3, ...) before the
// extension of both paths until the storage destination is free.
func (t *Transferer) withAltSuffix(dest, link string) (string, string) {
	for i := 1; ; i++ {
		suffix := "-alt"
		if i > 1 {
			suffix = fmt.Sprintf("-alt%d", i)
		}
		altDest := insertSuffix(dest, suffix)
		if !t.ops.FileExists(altDest) {
			return altDest, insertSuffix(link, suffix)
		}
	}
}

func insertSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// associate records the placement: entity file and link paths, the
// identity hash, the technical snapshot from the probe, and the
// inventory row's new location.
func (t *Transferer) associate(ctx context.Context, item *PlannedItem) error {
	file := item.File

	if item.Movie != nil {
		movie := item.Movie
		movie.FilePath = item.Destination
		movie.LinkPath = item.LinkPath
		movie.FileHash = file.FileHash
		movie.ResolutionLabel = file.ResolutionLabel
		movie.VideoCodec = file.VideoCodec
		movie.AudioCodecs = file.AudioCodecs
		movie.AudioChannels = file.AudioChannels
		movie.AudioLanguages = file.AudioLanguages
		movie.Container = file.Container
		if _, err := t.movies.Save(ctx, movie); err != nil {
			return fmt.Errorf("record movie association: %w", err)
		}
		if t.invalidator != nil {
			t.invalidator.InvalidateMovie(movie.ID)
		}
	} else {
		for _, episode := range item.Episodes {
			episode.FilePath = item.Destination
			episode.LinkPath = item.LinkPath
			episode.FileHash = file.FileHash
			episode.ResolutionLabel = file.ResolutionLabel
			episode.VideoCodec = file.VideoCodec
			episode.AudioCodecs = file.AudioCodecs
			episode.AudioChannels = file.AudioChannels
			episode.AudioLanguages = file.AudioLanguages
			episode.Container = file.Container
			if _, err := t.tv.SaveEpisode(ctx, episode); err != nil {
				return fmt.Errorf("record episode association: %w", err)
			}
			if t.invalidator != nil {
				t.invalidator.InvalidateEpisode(episode.ID)
			}
		}
	}

	// A replaced file's inventory row would collide with the unique
	// path; it no longer exists on disk, so it goes.
	if old, err := t.files.GetByPath(ctx, item.Destination); err == nil && old.ID != file.ID {
		if err := t.files.Delete(ctx, old.ID); err != nil {
			return fmt.Errorf("drop replaced inventory row: %w", err)
		}
	}
	if err := t.files.UpdatePath(ctx, file.ID, item.Destination); err != nil {
		return fmt.Errorf("update inventory path: %w", err)
	}
	file.Path = item.Destination
	return nil
}

// emit publishes an event, giving up on cancellation so a stalled
// consumer cannot wedge an aborting batch.
func (t *Transferer) emit(ctx context.Context, opts Options, ev Event) {
	if opts.Events == nil {
		return
	}
	select {
	case opts.Events <- ev:
	case <-ctx.Done():
	}
}
