// Package fileops provides the filesystem operations behind transfers:
// cross-device safe moves, symlink management for the presentation tree,
// and the scoped move sequence that keeps file and link consistent when
// a transfer is interrupted.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/mediatheque/mediatheque/internal/hashing"
	"github.com/mediatheque/mediatheque/internal/logger"
)

var (
	ErrSymlinkFailed = errors.New("failed to create symlink")
	ErrCrossDevice   = errors.New("cross-device link not supported")
	ErrCopyMismatch  = errors.New("copied file does not match source")
)

// Service provides file move and link operations.
type Service struct {
	logger *logger.Logger
}

// NewService creates a new fileops service.
func NewService(log *logger.Logger) *Service {
	return &Service{
		logger: log.WithComponent("fileops"),
	}
}

// Move moves a file from source to dest, creating directories as needed.
// Same-filesystem moves use a single rename. Cross-device moves copy to a
// temporary name next to dest, verify the copy, publish it with a rename,
// and only then delete the source.
func (s *Service) Move(ctx context.Context, source, dest string) error {
	s.logger.Debug().
		Str("source", source).
		Str("dest", dest).
		Msg("Moving file")

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.ensureDestDir(dest); err != nil {
		return err
	}

	err := os.Rename(source, dest)
	if err == nil {
		s.logger.Info().
			Str("source", source).
			Str("dest", dest).
			Msg("Moved file")
		return nil
	}

	if !isCrossDeviceError(err) {
		return fmt.Errorf("failed to move file: %w", err)
	}

	partial := partialName(dest)
	if err := s.removeIfExists(partial); err != nil {
		return err
	}

	if err := s.copyFile(ctx, source, partial); err != nil {
		return err
	}

	if err := s.verifyCopy(source, partial); err != nil {
		if rmErr := os.Remove(partial); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("path", partial).Msg("Failed to remove bad partial copy")
		}
		return err
	}

	if err := os.Rename(partial, dest); err != nil {
		return fmt.Errorf("failed to publish copied file: %w", err)
	}

	if err := os.Remove(source); err != nil {
		s.logger.Warn().Err(err).Str("path", source).Msg("Failed to remove source file after copy")
	}

	s.logger.Info().
		Str("source", source).
		Str("dest", dest).
		Msg("Moved file (copy + delete)")
	return nil
}

// copyFile copies source to dest in chunks, checking the context between
// chunks so a cancelled transfer stops mid-copy instead of finishing a
// multi-gigabyte write.
func (s *Service) copyFile(ctx context.Context, source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	buf := make([]byte, 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			os.Remove(dest)
			return err
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				os.Remove(dest)
				return fmt.Errorf("failed to copy file: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(dest)
			return fmt.Errorf("failed to copy file: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to flush destination file: %w", err)
	}

	// Copy file permissions
	if sourceInfo, err := os.Stat(source); err == nil {
		if err := os.Chmod(dest, sourceInfo.Mode()); err != nil {
			s.logger.Warn().Err(err).Str("path", dest).Msg("Failed to set file permissions")
		}
	}

	return nil
}

// verifyCopy compares size and sampled hash before the source is deleted.
func (s *Service) verifyCopy(source, dest string) error {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}
	dstInfo, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("failed to stat copied file: %w", err)
	}
	if srcInfo.Size() != dstInfo.Size() {
		return fmt.Errorf("%w: size %d != %d", ErrCopyMismatch, dstInfo.Size(), srcInfo.Size())
	}

	srcHash, err := hashing.SampledFile(source)
	if err != nil {
		return fmt.Errorf("failed to hash source file: %w", err)
	}
	dstHash, err := hashing.SampledFile(dest)
	if err != nil {
		return fmt.Errorf("failed to hash copied file: %w", err)
	}
	if srcHash != dstHash {
		return fmt.Errorf("%w: hash %s != %s", ErrCopyMismatch, dstHash, srcHash)
	}

	return nil
}

// CreateSymlink creates a symlink at link pointing at target, replacing
// any existing entry at link. The stored target is always absolute.
func (s *Service) CreateSymlink(target, link string) error {
	s.logger.Debug().
		Str("target", target).
		Str("link", link).
		Msg("Creating symlink")

	if err := s.ensureDestDir(link); err != nil {
		return err
	}

	if err := s.removeIfExists(link); err != nil {
		return err
	}

	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("%w: failed to resolve target path: %w", ErrSymlinkFailed, err)
	}

	if err := os.Symlink(absTarget, link); err != nil {
		return fmt.Errorf("%w: %w", ErrSymlinkFailed, err)
	}

	s.logger.Info().
		Str("target", target).
		Str("link", link).
		Msg("Created symlink")
	return nil
}

// ScopedMove moves source to destPath and creates the presentation
// symlink at linkPath as one unit. The file lands under a temporary name
// first, the symlink is prepared under a temporary name pointing at the
// final path, then both are published with same-directory renames. Any
// failure unwinds the completed steps in reverse, so an interrupted
// transfer leaves neither a half-moved file nor a dangling link.
func (s *Service) ScopedMove(ctx context.Context, source, destPath, linkPath string) (err error) {
	s.logger.Debug().
		Str("source", source).
		Str("dest", destPath).
		Str("link", linkPath).
		Msg("Starting scoped move")

	if err = ctx.Err(); err != nil {
		return err
	}

	if err = s.ensureDestDir(destPath); err != nil {
		return err
	}
	if err = s.ensureDestDir(linkPath); err != nil {
		return err
	}

	destTemp := partialName(destPath)
	linkTemp := partialName(linkPath)

	// Leftovers from a crashed run must not block the sequence.
	if err = s.removeIfExists(destTemp); err != nil {
		return err
	}
	if err = s.removeIfExists(linkTemp); err != nil {
		return err
	}

	// The rollback must run even when ctx is already cancelled.
	uctx := context.WithoutCancel(ctx)
	var undo []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(undo) - 1; i >= 0; i-- {
			if uerr := undo[i](); uerr != nil {
				s.logger.Error().Err(uerr).
					Str("source", source).
					Str("dest", destPath).
					Msg("Rollback step failed")
			}
		}
	}()

	if err = s.Move(ctx, source, destTemp); err != nil {
		return err
	}
	undo = append(undo, func() error { return s.Move(uctx, destTemp, source) })

	absDest, err := filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("%w: failed to resolve target path: %w", ErrSymlinkFailed, err)
	}
	if err = os.Symlink(absDest, linkTemp); err != nil {
		err = fmt.Errorf("%w: %w", ErrSymlinkFailed, err)
		return err
	}
	undo = append(undo, func() error { return os.Remove(linkTemp) })

	if err = os.Rename(destTemp, destPath); err != nil {
		err = fmt.Errorf("failed to publish file: %w", err)
		return err
	}
	undo = append(undo, func() error { return os.Rename(destPath, destTemp) })

	if err = os.Rename(linkTemp, linkPath); err != nil {
		err = fmt.Errorf("failed to publish symlink: %w", err)
		return err
	}

	s.logger.Info().
		Str("source", source).
		Str("dest", destPath).
		Str("link", linkPath).
		Msg("Completed scoped move")
	return nil
}

// MoveCompanions moves sidecar files (subtitles, NFO) that share the main
// file's base name, renaming them to the destination base name so
// "Old.Name.en.srt" follows its video as "New Name (2020).en.srt".
// Returns the number of companions moved.
func (s *Service) MoveCompanions(ctx context.Context, sourceMain, destMain string) (int, error) {
	sourceDir := filepath.Dir(sourceMain)
	mainBase := filepath.Base(sourceMain)
	mainNoExt := strings.TrimSuffix(mainBase, filepath.Ext(mainBase))
	destDir := filepath.Dir(destMain)
	destBase := filepath.Base(destMain)
	destNoExt := strings.TrimSuffix(destBase, filepath.Ext(destBase))

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read source directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if name == mainBase {
			continue
		}
		// Matching by base-name prefix catches language-tagged
		// subtitles like "video.en.srt".
		if !strings.HasPrefix(name, mainNoExt) {
			continue
		}

		ext := strings.ToLower(filepath.Ext(name))
		if !isCompanionExtension(ext) {
			continue
		}

		newName := destNoExt + name[len(mainNoExt):]
		if err := s.Move(ctx, filepath.Join(sourceDir, name), filepath.Join(destDir, newName)); err != nil {
			s.logger.Warn().Err(err).
				Str("file", name).
				Msg("Failed to move companion file")
			continue
		}

		count++
		s.logger.Debug().Str("file", name).Str("renamed", newName).Msg("Moved companion file")
	}

	return count, nil
}

// DeleteFile removes a file if it exists.
func (s *Service) DeleteFile(path string) error {
	s.logger.Debug().Str("path", path).Msg("Deleting file")

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil // Already gone
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("Deleted file")
	return nil
}

// FileExists checks if a file exists.
func (s *Service) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ensureDestDir creates the destination directory if needed, inheriting permissions.
func (s *Service) ensureDestDir(destPath string) error {
	destDir := filepath.Dir(destPath)

	info, err := os.Stat(destDir)
	if err == nil && info.IsDir() {
		return nil
	}

	// Get parent directory permissions for inheritance
	parentDir := filepath.Dir(destDir)
	perm := os.FileMode(0o755) // Default

	if parentInfo, err := os.Stat(parentDir); err == nil {
		perm = parentInfo.Mode().Perm()
	}

	if err := os.MkdirAll(destDir, perm); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	return nil
}

// removeIfExists removes a file if it exists (for overwrite behavior).
// Lstat rather than Stat so dangling symlinks are replaceable too.
func (s *Service) removeIfExists(path string) error {
	if _, err := os.Lstat(path); err == nil {
		s.logger.Debug().Str("path", path).Msg("Removing existing file for overwrite")
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove existing file: %w", err)
		}
	}
	return nil
}

// partialName returns the temporary name a file is staged under before
// being renamed into place. Hidden and extension-mangled so scans never
// pick it up as a video.
func partialName(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	return filepath.Join(dir, "."+base+".partial")
}

// isCrossDeviceError checks if an error is a cross-device link error.
func isCrossDeviceError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EXDEV) {
		return true
	}

	errStr := err.Error()
	switch runtime.GOOS {
	case "windows":
		// ERROR_NOT_SAME_DEVICE
		return strings.Contains(errStr, "not on the same disk")
	default:
		return strings.Contains(errStr, "cross-device")
	}
}

// isCompanionExtension returns true for sidecar file types that travel
// with a video file.
func isCompanionExtension(ext string) bool {
	companionExts := map[string]bool{
		// Subtitles
		".srt": true, ".sub": true, ".ssa": true, ".ass": true,
		".idx": true, ".vtt": true, ".smi": true,
		// Metadata
		".nfo": true,
		// Folder art
		".jpg": true, ".jpeg": true, ".png": true,
	}
	return companionExts[ext]
}
