package fileops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// RepairSymlinks walks the presentation tree under videoRoot and parks
// every dangling symlink under <trashDir>/orphans. Dead links are moved,
// never deleted, so a mistaken repair can be undone by hand.
// Returns the number of links parked.
func (s *Service) RepairSymlinks(ctx context.Context, videoRoot, trashDir string) (int, error) {
	s.logger.Debug().Str("root", videoRoot).Msg("Scanning presentation tree for dead symlinks")

	parked := 0
	err := filepath.WalkDir(videoRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == videoRoot {
				return fmt.Errorf("failed to walk presentation tree: %w", err)
			}
			s.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable entry")
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		// Stat follows the link; a missing target means the link is dead.
		if _, statErr := os.Stat(path); statErr == nil {
			return nil
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			s.logger.Warn().Err(statErr).Str("link", path).Msg("Symlink target unreadable, leaving in place")
			return nil
		}

		dest, parkErr := s.parkOrphan(path, trashDir)
		if parkErr != nil {
			s.logger.Error().Err(parkErr).Str("link", path).Msg("Failed to park dead symlink")
			return nil
		}

		parked++
		s.logger.Info().
			Str("link", path).
			Str("parked", dest).
			Msg("Parked dead symlink")
		return nil
	})
	if err != nil {
		return parked, err
	}

	s.logger.Info().
		Str("root", videoRoot).
		Int("parked", parked).
		Msg("Presentation tree repair finished")
	return parked, nil
}

// parkOrphan moves a dead symlink into <trashDir>/orphans under a
// timestamped name and returns the parking path.
func (s *Service) parkOrphan(link, trashDir string) (string, error) {
	orphanDir := filepath.Join(trashDir, "orphans")
	if err := os.MkdirAll(orphanDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create orphan directory: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	dest := uniquePath(filepath.Join(orphanDir, stamp+"-"+filepath.Base(link)))

	if err := os.Rename(link, dest); err == nil {
		return dest, nil
	} else if !isCrossDeviceError(err) {
		return "", fmt.Errorf("failed to move dead symlink: %w", err)
	}

	// Trash on another filesystem: recreate the link there, then drop
	// the original.
	target, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("failed to read dead symlink: %w", err)
	}
	if err := os.Symlink(target, dest); err != nil {
		return "", fmt.Errorf("failed to recreate dead symlink: %w", err)
	}
	if err := os.Remove(link); err != nil {
		return "", fmt.Errorf("failed to remove dead symlink: %w", err)
	}
	return dest, nil
}

// uniquePath appends a numeric suffix until the path is free. Two dead
// links with the same base name can be parked in the same second.
func uniquePath(path string) string {
	if _, err := os.Lstat(path); err != nil {
		return path
	}
	for i := 2; ; i++ {
		candidate := path + "-" + strconv.Itoa(i)
		if _, err := os.Lstat(candidate); err != nil {
			return candidate
		}
	}
}
