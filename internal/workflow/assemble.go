package workflow

import (
	"context"
	"fmt"

	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/library/scanner"
	"github.com/mediatheque/mediatheque/internal/transfer"
	"github.com/mediatheque/mediatheque/internal/validation"
)

// TransferItems gathers the validated rows whose video files have not
// been placed yet and assembles them for the transferer. Rows already
// pointing at their file are silently dropped, so the call is safe to
// repeat after a partial transfer.
func (s *Service) TransferItems(ctx context.Context) ([]transfer.Item, error) {
	rows, err := s.validation.ListByStatus(ctx, validation.StatusValidated)
	if err != nil {
		return nil, err
	}

	items := make([]transfer.Item, 0, len(rows))
	for _, row := range rows {
		if ctx.Err() != nil {
			return nil, faults.Cancelled(ctx.Err())
		}
		item, ok, err := s.assembleItem(ctx, row)
		if err != nil {
			s.logger.Warn().Err(err).Int64("validationId", row.ID).Msg("Validation cannot be assembled for transfer")
			continue
		}
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// assembleItem resolves one validated row into a transfer item. ok is
// false when the row's file is already the one associated in the
// catalog; a different file for the same entity still goes through so
// conflict resolution can arbitrate upgrades.
func (s *Service) assembleItem(ctx context.Context, row *validation.PendingValidation) (transfer.Item, bool, error) {
	file, err := s.files.GetByID(ctx, row.VideoFileID)
	if err != nil {
		return transfer.Item{}, false, fmt.Errorf("video file %d: %w", row.VideoFileID, err)
	}

	switch row.MediaType {
	case scanner.MediaTypeMovie:
		movie, err := s.validation.MaterializedMovie(ctx, row)
		if err != nil {
			return transfer.Item{}, false, err
		}
		if movie.FilePath == file.Path {
			return transfer.Item{}, false, nil
		}
		return transfer.Item{File: file, Movie: movie}, true, nil

	case scanner.MediaTypeSeries:
		series, episodes, err := s.validation.MaterializedEpisodes(ctx, row)
		if err != nil {
			return transfer.Item{}, false, err
		}
		placed := len(episodes) > 0
		for _, ep := range episodes {
			if ep.FilePath != file.Path {
				placed = false
				break
			}
		}
		if placed {
			return transfer.Item{}, false, nil
		}
		return transfer.Item{File: file, Series: series, Episodes: episodes}, true, nil

	default:
		return transfer.Item{}, false, fmt.Errorf("media type %q has no transfer shape", row.MediaType)
	}
}
