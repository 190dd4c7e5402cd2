package scanner

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/mediatheque/mediatheque/internal/logger"
)

// ScanResult is one entry on the scan stream: a parsed video file, or a
// per-path error that did not abort the pass.
type ScanResult struct {
	Path              string
	Size              int64
	Parsed            ParsedFilename
	TypeHint          MediaType // directory intent of the scanned tree
	CorrectedLocation bool      // parser type contradicts a known directory intent
	Err               error
}

// MediaType resolves the effective classification. Directory intent
// wins over the parser unless the filename carries episode or season
// numbering, which is unambiguous.
func (r ScanResult) MediaType() MediaType {
	switch {
	case r.TypeHint == MediaTypeUnknown:
		return r.Parsed.Type
	case r.Parsed.Type == MediaTypeUnknown || r.Parsed.Type == r.TypeHint:
		return r.TypeHint
	case r.Parsed.Type == MediaTypeSeries && (r.Parsed.Episode > 0 || r.Parsed.Season > 0):
		return MediaTypeSeries
	default:
		return r.TypeHint
	}
}

var errScanCancelled = errors.New("scan cancelled")

// Service provides media file scanning operations.
type Service struct {
	logger      *logger.Logger
	minFileSize int64
}

// NewService creates a new scanner service. Files below minFileSize
// bytes are skipped on enumeration.
func NewService(log *logger.Logger, minFileSize int64) *Service {
	return &Service{
		logger:      log.WithComponent("scanner"),
		minFileSize: minFileSize,
	}
}

// Scan walks root in stable lexical order and streams one result per
// video file. The channel closes when the walk finishes or ctx is
// cancelled; per-path failures ride the stream as Err entries and do
// not abort the pass.
func (s *Service) Scan(ctx context.Context, root string, hint MediaType) <-chan ScanResult {
	out := make(chan ScanResult)
	go func() {
		defer close(out)
		s.walk(ctx, root, hint, out)
	}()
	return out
}

func (s *Service) walk(ctx context.Context, root string, hint MediaType, out chan<- ScanResult) {
	s.logger.Info().
		Str("root", root).
		Str("hint", string(hint)).
		Msg("Starting scan")

	found := 0
	skipped := 0

	send := func(r ScanResult) bool {
		select {
		case out <- r:
			return true
		case <-ctx.Done():
			return false
		}
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return errScanCancelled
		}

		if walkErr != nil {
			s.logger.Warn().Err(walkErr).Str("path", path).Msg("Scan entry failed")
			if !send(ScanResult{Path: path, TypeHint: hint, Err: walkErr}) {
				return errScanCancelled
			}
			if path == root {
				return filepath.SkipAll
			}
			return nil
		}

		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		// The presentation tree links back into storage; following
		// links here would re-ingest already organized files.
		if d.Type()&fs.ModeSymlink != 0 {
			s.logger.Debug().Str("path", path).Msg("Skipping symlink")
			return nil
		}
		if !IsVideoFile(name) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			s.logger.Warn().Err(infoErr).Str("path", path).Msg("Scan entry failed")
			if !send(ScanResult{Path: path, TypeHint: hint, Err: infoErr}) {
				return errScanCancelled
			}
			return nil
		}

		if info.Size() < s.minFileSize {
			reason := "below minimum size"
			if IsJunkName(name) {
				reason = "junk name"
			}
			skipped++
			s.logger.Debug().
				Str("path", path).
				Int64("size", info.Size()).
				Str("reason", reason).
				Msg("Skipping file")
			return nil
		}

		parsed := ParsePath(root, path)
		result := ScanResult{
			Path:     path,
			Size:     info.Size(),
			Parsed:   parsed,
			TypeHint: hint,
		}
		result.CorrectedLocation = hint != MediaTypeUnknown &&
			parsed.Type != MediaTypeUnknown &&
			parsed.Type != hint

		found++
		if !send(result) {
			return errScanCancelled
		}
		return nil
	})

	if errors.Is(err, errScanCancelled) {
		s.logger.Info().Str("root", root).Msg("Scan cancelled")
		return
	}

	s.logger.Info().
		Str("root", root).
		Int("files", found).
		Int("skipped", skipped).
		Msg("Scan completed")
}
