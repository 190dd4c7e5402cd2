// Package workflow drives the ingest pipeline: walk the download
// trees, fingerprint and probe each video, match it against the
// external catalogs and register the outcome on the validation queue.
// Matching runs on a small worker pool; every store write happens on a
// single goroutine so results land in scan order.
package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediatheque/mediatheque/internal/config"
	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/hashing"
	"github.com/mediatheque/mediatheque/internal/library/files"
	"github.com/mediatheque/mediatheque/internal/library/scanner"
	"github.com/mediatheque/mediatheque/internal/logger"
	"github.com/mediatheque/mediatheque/internal/matcher"
	"github.com/mediatheque/mediatheque/internal/mediainfo"
	"github.com/mediatheque/mediatheque/internal/progress"
	"github.com/mediatheque/mediatheque/internal/validation"
)

// defaultWorkers bounds concurrent hashing, probing and catalog calls.
const defaultWorkers = 4

// Root is one directory to ingest with its media type hint.
type Root struct {
	Path string
	Hint scanner.MediaType
}

// Options tunes a single ingest run. Zero values fall back to the
// configured download trees and defaultWorkers.
type Options struct {
	Roots   []Root
	Workers int
}

// Report is the tally of one ingest run. Found counts files surfaced
// by the scan; the outcome counters cover files that reached the
// writer before the run ended. RunID ties the report to the run's log
// lines, which matters once scheduled audits and manual ingests share
// one log file.
type Report struct {
	RunID         string        `json:"runId"`
	Found         int           `json:"found"`
	AutoValidated int           `json:"autoValidated"`
	Pending       int           `json:"pending"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	Interrupted   bool          `json:"interrupted,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Service wires the scanner, matcher and validation queue into one
// ingest pipeline.
type Service struct {
	cfg        *config.Config
	scanner    *scanner.Service
	files      *files.Store
	probe      *mediainfo.Service
	matcher    *matcher.Matcher
	validation *validation.Service
	broker     *progress.Broker
	logger     *logger.Logger
}

// NewService creates the ingest pipeline.
func NewService(
	cfg *config.Config,
	scan *scanner.Service,
	fileStore *files.Store,
	probe *mediainfo.Service,
	match *matcher.Matcher,
	validate *validation.Service,
	broker *progress.Broker,
	log *logger.Logger,
) *Service {
	return &Service{
		cfg:        cfg,
		scanner:    scan,
		files:      fileStore,
		probe:      probe,
		matcher:    match,
		validation: validate,
		broker:     broker,
		logger:     log.WithComponent("workflow"),
	}
}

// job carries one scanned file through the pipeline. done closes once
// a worker has filled file, match and err; the writer blocks on it so
// results apply in scan order regardless of which worker finishes
// first.
type job struct {
	result scanner.ScanResult
	file   *files.VideoFile
	match  *matcher.Result
	skip   string
	err    error
	done   chan struct{}
}

// Run ingests every root and returns the tally. Per-file failures are
// counted and stepped over; only cancellation aborts the run, and
// writes committed before the abort remain.
func (s *Service) Run(ctx context.Context, opts Options) (*Report, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	roots := opts.Roots
	if len(roots) == 0 {
		roots = []Root{
			{Path: s.cfg.FilmsRoot(), Hint: scanner.MediaTypeMovie},
			{Path: s.cfg.SeriesRoot(), Hint: scanner.MediaTypeSeries},
		}
	}

	report := &Report{RunID: uuid.NewString()}
	started := time.Now()
	s.logger.Info().
		Str("run", report.RunID).
		Int("workers", workers).
		Int("roots", len(roots)).
		Msg("Ingest started")
	s.broker.Publish(progress.Started())

	jobs := make(chan *job)
	ordered := make(chan *job, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				s.prepare(ctx, j)
				close(j.done)
			}
		}()
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.persist(ctx, ordered, report)
	}()

	s.produce(ctx, roots, jobs, ordered, report)
	close(jobs)
	close(ordered)
	wg.Wait()
	<-writerDone

	if ctx.Err() != nil {
		report.Interrupted = true
	}
	report.Elapsed = time.Since(started)
	processed := report.AutoValidated + report.Pending + report.Skipped + report.Failed
	s.broker.Publish(progress.Finished(processed))
	s.logger.Info().
		Str("run", report.RunID).
		Int("found", report.Found).
		Int("autoValidated", report.AutoValidated).
		Int("pending", report.Pending).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Bool("interrupted", report.Interrupted).
		Dur("elapsed", report.Elapsed).
		Msg("Ingest finished")

	if report.Interrupted {
		return report, faults.Cancelled(ctx.Err())
	}
	return report, nil
}

// produce walks the roots and feeds the pipeline. Every job goes to
// ordered first so the writer sees scan order; scan errors skip the
// workers and arrive pre-resolved.
func (s *Service) produce(ctx context.Context, roots []Root, jobs, ordered chan<- *job, report *Report) {
	for _, root := range roots {
		if ctx.Err() != nil {
			return
		}
		for result := range s.scanner.Scan(ctx, root.Path, root.Hint) {
			s.broker.Publish(progress.Scanning(result.Path))
			report.Found++
			if result.CorrectedLocation {
				s.logger.Warn().
					Str("path", result.Path).
					Str("hint", string(result.TypeHint)).
					Str("resolved", string(result.MediaType())).
					Msg("File type contradicts its directory")
			}
			j := &job{result: result, done: make(chan struct{})}
			if result.Err != nil {
				j.err = result.Err
				close(j.done)
				if !send(ctx, ordered, j) {
					return
				}
				continue
			}
			if !send(ctx, ordered, j) {
				return
			}
			if !send(ctx, jobs, j) {
				return
			}
		}
	}
}

func send(ctx context.Context, ch chan<- *job, j *job) bool {
	select {
	case ch <- j:
		return true
	case <-ctx.Done():
		return false
	}
}

// prepare runs on a worker: fingerprint, probe, match. It never
// touches the stores.
func (s *Service) prepare(ctx context.Context, j *job) {
	result := j.result

	hash, err := hashing.SampledFile(result.Path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", result.Path).Msg("Fingerprinting failed, continuing without hash")
		hash = ""
	}

	fallback := &mediainfo.MediaInfo{
		ResolutionLabel: result.Parsed.Quality,
		VideoCodec:      result.Parsed.Codec,
		Container:       strings.TrimPrefix(strings.ToLower(filepath.Ext(result.Path)), "."),
	}
	info := s.probe.ProbeWithFallback(ctx, result.Path, fallback)

	j.file = &files.VideoFile{
		Path:             result.Path,
		SizeBytes:        result.Size,
		FileHash:         hash,
		ResolutionWidth:  info.Width,
		ResolutionHeight: info.Height,
		ResolutionLabel:  info.ResolutionLabel,
		VideoCodec:       info.VideoCodec,
		AudioCodecs:      info.AudioCodecs,
		AudioChannels:    info.AudioChannels,
		AudioLanguages:   info.AudioLanguages,
		DurationSeconds:  info.DurationSeconds,
		Container:        info.Container,
	}

	// Unclassifiable files still enter the inventory, they just never
	// reach the matcher.
	if result.MediaType() == scanner.MediaTypeUnknown {
		j.skip = "cannot classify as movie or series"
		return
	}
	if ctx.Err() != nil {
		j.err = faults.Cancelled(ctx.Err())
		return
	}

	match, err := s.matcher.Match(ctx, matcher.Request{
		MediaType:       result.MediaType(),
		Title:           result.Parsed.Title,
		Year:            result.Parsed.Year,
		Episode:         result.Parsed.Episode,
		DurationSeconds: info.DurationSeconds,
	})
	if err != nil {
		j.err = err
		return
	}
	j.match = match
}

// persist is the single writer: it consumes jobs in scan order,
// commits them and publishes one item event each.
func (s *Service) persist(ctx context.Context, ordered <-chan *job, report *Report) {
	done := 0
	for j := range ordered {
		select {
		case <-j.done:
		case <-ctx.Done():
			report.Interrupted = true
			return
		}
		if ctx.Err() != nil {
			report.Interrupted = true
			return
		}

		outcome, detail := s.persistItem(ctx, j)
		if outcome == "" {
			report.Interrupted = true
			return
		}
		switch outcome {
		case progress.OutcomeAutoValidated:
			report.AutoValidated++
		case progress.OutcomePending:
			report.Pending++
		case progress.OutcomeSkipped:
			report.Skipped++
		case progress.OutcomeFailed:
			report.Failed++
		}
		done++
		s.broker.Publish(progress.Item(j.result.Path, outcome, detail, done))
	}
}

// persistItem applies one prepared job. An empty outcome means the
// run was cancelled mid-write and the loop should stop.
func (s *Service) persistItem(ctx context.Context, j *job) (progress.Outcome, string) {
	if j.err != nil {
		if faults.IsCancelled(j.err) || ctx.Err() != nil {
			return "", ""
		}
		s.logger.Warn().Err(j.err).Str("path", j.result.Path).Msg("Ingest failed for file")
		return progress.OutcomeFailed, j.err.Error()
	}

	file, err := s.files.Save(ctx, j.file)
	if err != nil {
		if ctx.Err() != nil {
			return "", ""
		}
		s.logger.Warn().Err(err).Str("path", j.result.Path).Msg("Inventory write failed")
		return progress.OutcomeFailed, fmt.Sprintf("inventory: %v", err)
	}

	if j.skip != "" {
		s.logger.Debug().Str("path", j.result.Path).Msg("File kept in inventory without a match")
		return progress.OutcomeSkipped, j.skip
	}

	pending, err := s.validation.Register(ctx, file.ID, j.result.Parsed, j.result.MediaType(), j.match.Candidates)
	if err != nil {
		if ctx.Err() != nil {
			return "", ""
		}
		s.logger.Warn().Err(err).Str("path", j.result.Path).Msg("Validation registration failed")
		return progress.OutcomeFailed, fmt.Sprintf("validation: %v", err)
	}
	if pending.Status != validation.StatusPending {
		return progress.OutcomeSkipped, "already decided"
	}

	if j.match.AutoValidate {
		validated, err := s.validation.AutoValidate(ctx, pending.ID)
		if err != nil {
			if faults.IsCancelled(err) || ctx.Err() != nil {
				return "", ""
			}
			s.logger.Warn().Err(err).Str("path", j.result.Path).Msg("Auto-validation failed, leaving pending")
			return progress.OutcomePending, fmt.Sprintf("auto-validation failed: %v", err)
		}
		if validated.Status == validation.StatusValidated {
			return progress.OutcomeAutoValidated, ""
		}
	}
	return progress.OutcomePending, ""
}
