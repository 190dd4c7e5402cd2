package fileops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mediatheque/mediatheque/internal/logger"
)

func newTestService() *Service {
	return NewService(logger.Nop())
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create parent dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
}

func TestService_Move(t *testing.T) {
	service := newTestService()
	tmpDir := t.TempDir()

	srcPath := filepath.Join(tmpDir, "source.mkv")
	writeTestFile(t, srcPath, "test content")

	// Destination directory does not exist yet
	destPath := filepath.Join(tmpDir, "Films", "T", "Title (2020)", "Title (2020).mkv")
	if err := service.Move(context.Background(), srcPath, destPath); err != nil {
		t.Fatalf("Move() error = %v", err)
	}

	if _, err := os.Stat(srcPath); !os.IsNotExist(err) {
		t.Error("Move() did not remove source file")
	}

	content, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("Move() dest file not readable: %v", err)
	}
	if string(content) != "test content" {
		t.Errorf("Move() content = %q, want %q", string(content), "test content")
	}
}

func TestService_Move_NonExistentSource(t *testing.T) {
	service := newTestService()
	tmpDir := t.TempDir()

	err := service.Move(context.Background(), filepath.Join(tmpDir, "missing.mkv"), filepath.Join(tmpDir, "dest.mkv"))
	if err == nil {
		t.Error("Move() expected error for missing source")
	}
}

func TestService_Move_Cancelled(t *testing.T) {
	service := newTestService()
	tmpDir := t.TempDir()

	srcPath := filepath.Join(tmpDir, "source.mkv")
	writeTestFile(t, srcPath, "test content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := service.Move(ctx, srcPath, filepath.Join(tmpDir, "dest.mkv"))
	if err == nil {
		t.Fatal("Move() expected error for cancelled context")
	}

	// Source must be untouched
	if _, err := os.Stat(srcPath); err != nil {
		t.Errorf("Move() removed source on cancellation: %v", err)
	}
}

func TestService_CreateSymlink(t *testing.T) {
	service := newTestService()
	tmpDir := t.TempDir()

	targetPath := filepath.Join(tmpDir, "storage", "Title (2020).mkv")
	writeTestFile(t, targetPath, "video")

	linkPath := filepath.Join(tmpDir, "video", "Films", "Title (2020).mkv")
	if err := service.CreateSymlink(targetPath, linkPath); err != nil {
		t.Fatalf("CreateSymlink() error = %v", err)
	}

	got, err := os.Readlink(linkPath)
	if err != nil {
		t.Fatalf("Readlink() error = %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("CreateSymlink() target = %q, want absolute path", got)
	}

	// The link must resolve to the target content
	content, err := os.ReadFile(linkPath)
	if err != nil {
		t.Fatalf("Failed to read through symlink: %v", err)
	}
	if string(content) != "video" {
		t.Errorf("CreateSymlink() resolved content = %q, want %q", string(content), "video")
	}
}

func TestService_CreateSymlink_ReplacesDangling(t *testing.T) {
	service := newTestService()
	tmpDir := t.TempDir()

	linkPath := filepath.Join(tmpDir, "link.mkv")
	if err := os.Symlink(filepath.Join(tmpDir, "gone.mkv"), linkPath); err != nil {
		t.Fatalf("Failed to create dangling symlink: %v", err)
	}

	targetPath := filepath.Join(tmpDir, "real.mkv")
	writeTestFile(t, targetPath, "video")

	if err := service.CreateSymlink(targetPath, linkPath); err != nil {
		t.Fatalf("CreateSymlink() error = %v", err)
	}

	if _, err := os.Stat(linkPath); err != nil {
		t.Errorf("CreateSymlink() link does not resolve: %v", err)
	}
}

func TestService_ScopedMove(t *testing.T) {
	service := newTestService()
	tmpDir := t.TempDir()

	srcPath := filepath.Join(tmpDir, "downloads", "title.2020.1080p.mkv")
	writeTestFile(t, srcPath, "video content")

	destPath := filepath.Join(tmpDir, "storage", "Films", "Drame", "T", "Title (2020)", "Title (2020).mkv")
	linkPath := filepath.Join(tmpDir, "video", "Films", "Title (2020).mkv")

	if err := service.ScopedMove(context.Background(), srcPath, destPath, linkPath); err != nil {
		t.Fatalf("ScopedMove() error = %v", err)
	}

	if _, err := os.Stat(srcPath); !os.IsNotExist(err) {
		t.Error("ScopedMove() did not remove source file")
	}

	content, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("ScopedMove() dest file not readable: %v", err)
	}
	if string(content) != "video content" {
		t.Errorf("ScopedMove() content = %q, want %q", string(content), "video content")
	}

	target, err := os.Readlink(linkPath)
	if err != nil {
		t.Fatalf("ScopedMove() link not created: %v", err)
	}
	absDest, _ := filepath.Abs(destPath)
	if target != absDest {
		t.Errorf("ScopedMove() link target = %q, want %q", target, absDest)
	}

	// No staging leftovers
	for _, leftover := range []string{partialName(destPath), partialName(linkPath)} {
		if _, err := os.Lstat(leftover); !os.IsNotExist(err) {
			t.Errorf("ScopedMove() left staging file %q", leftover)
		}
	}
}

func TestService_ScopedMove_UnwindsOnFailure(t *testing.T) {
	service := newTestService()
	tmpDir := t.TempDir()

	srcPath := filepath.Join(tmpDir, "downloads", "title.mkv")
	writeTestFile(t, srcPath, "video content")

	destPath := filepath.Join(tmpDir, "storage", "Title (2020)", "Title (2020).mkv")
	linkPath := filepath.Join(tmpDir, "video", "Title (2020).mkv")

	// A non-empty directory at the link path makes the final rename
	// fail after the file has already been published.
	writeTestFile(t, filepath.Join(linkPath, "occupied.txt"), "x")

	err := service.ScopedMove(context.Background(), srcPath, destPath, linkPath)
	if err == nil {
		t.Fatal("ScopedMove() expected error when link path is a directory")
	}

	// The source must be restored
	content, rerr := os.ReadFile(srcPath)
	if rerr != nil {
		t.Fatalf("ScopedMove() did not restore source: %v", rerr)
	}
	if string(content) != "video content" {
		t.Errorf("ScopedMove() restored content = %q, want %q", string(content), "video content")
	}

	// Nothing published, nothing staged
	if _, err := os.Lstat(destPath); !os.IsNotExist(err) {
		t.Error("ScopedMove() left file at destination after unwind")
	}
	for _, leftover := range []string{partialName(destPath), partialName(linkPath)} {
		if _, err := os.Lstat(leftover); !os.IsNotExist(err) {
			t.Errorf("ScopedMove() left staging file %q after unwind", leftover)
		}
	}
}

func TestService_MoveCompanions(t *testing.T) {
	service := newTestService()
	tmpDir := t.TempDir()

	srcDir := filepath.Join(tmpDir, "downloads")
	writeTestFile(t, filepath.Join(srcDir, "title.2020.en.srt"), "subs en")
	writeTestFile(t, filepath.Join(srcDir, "title.2020.nfo"), "nfo")
	writeTestFile(t, filepath.Join(srcDir, "title.2020.sample.mkv"), "sample")
	writeTestFile(t, filepath.Join(srcDir, "unrelated.srt"), "other subs")

	sourceMain := filepath.Join(srcDir, "title.2020.mkv")
	destMain := filepath.Join(tmpDir, "storage", "Title (2020)", "Title (2020).mkv")

	count, err := service.MoveCompanions(context.Background(), sourceMain, destMain)
	if err != nil {
		t.Fatalf("MoveCompanions() error = %v", err)
	}
	if count != 2 {
		t.Errorf("MoveCompanions() count = %d, want 2", count)
	}

	destDir := filepath.Dir(destMain)
	for _, want := range []string{"Title (2020).en.srt", "Title (2020).nfo"} {
		if _, err := os.Stat(filepath.Join(destDir, want)); err != nil {
			t.Errorf("MoveCompanions() missing %q: %v", want, err)
		}
	}

	// Unrelated files stay behind
	if _, err := os.Stat(filepath.Join(srcDir, "unrelated.srt")); err != nil {
		t.Error("MoveCompanions() moved an unrelated file")
	}
	if _, err := os.Stat(filepath.Join(srcDir, "title.2020.sample.mkv")); err != nil {
		t.Error("MoveCompanions() moved a non-companion extension")
	}
}

func TestService_RepairSymlinks(t *testing.T) {
	service := newTestService()
	tmpDir := t.TempDir()

	storagePath := filepath.Join(tmpDir, "storage", "Good (2020).mkv")
	writeTestFile(t, storagePath, "video")

	videoRoot := filepath.Join(tmpDir, "video")
	goodLink := filepath.Join(videoRoot, "Films", "Good (2020).mkv")
	if err := service.CreateSymlink(storagePath, goodLink); err != nil {
		t.Fatalf("CreateSymlink() error = %v", err)
	}

	deadLink := filepath.Join(videoRoot, "Films", "Dead (2019).mkv")
	if err := os.Symlink(filepath.Join(tmpDir, "storage", "missing.mkv"), deadLink); err != nil {
		t.Fatalf("Failed to create dead symlink: %v", err)
	}

	trashDir := filepath.Join(tmpDir, "trash")
	parked, err := service.RepairSymlinks(context.Background(), videoRoot, trashDir)
	if err != nil {
		t.Fatalf("RepairSymlinks() error = %v", err)
	}
	if parked != 1 {
		t.Errorf("RepairSymlinks() parked = %d, want 1", parked)
	}

	// Healthy link untouched
	if _, err := os.Stat(goodLink); err != nil {
		t.Errorf("RepairSymlinks() broke a healthy link: %v", err)
	}

	// Dead link moved out of the tree
	if _, err := os.Lstat(deadLink); !os.IsNotExist(err) {
		t.Error("RepairSymlinks() left the dead link in place")
	}

	entries, err := os.ReadDir(filepath.Join(trashDir, "orphans"))
	if err != nil {
		t.Fatalf("Failed to read orphans dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("RepairSymlinks() orphans = %d entries, want 1", len(entries))
	}
	if !strings.HasSuffix(entries[0].Name(), "-Dead (2019).mkv") {
		t.Errorf("RepairSymlinks() parked name = %q, want timestamp prefix on original name", entries[0].Name())
	}
	if entries[0].Type()&os.ModeSymlink == 0 {
		t.Errorf("RepairSymlinks() parked entry is not a symlink")
	}
}

func TestService_RepairSymlinks_MissingRoot(t *testing.T) {
	service := newTestService()
	tmpDir := t.TempDir()

	_, err := service.RepairSymlinks(context.Background(), filepath.Join(tmpDir, "nope"), filepath.Join(tmpDir, "trash"))
	if err == nil {
		t.Error("RepairSymlinks() expected error for missing root")
	}
}

func TestUniquePath(t *testing.T) {
	tmpDir := t.TempDir()

	base := filepath.Join(tmpDir, "20200101-000000-file.mkv")
	if got := uniquePath(base); got != base {
		t.Errorf("uniquePath() = %q, want %q for free path", got, base)
	}

	writeTestFile(t, base, "x")
	if got := uniquePath(base); got != base+"-2" {
		t.Errorf("uniquePath() = %q, want %q for taken path", got, base+"-2")
	}
}
