package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mediatheque/mediatheque/internal/logger"
)

func newTestScanner(minFileSize int64) *Service {
	return NewService(logger.Nop(), minFileSize)
}

func writeScanFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func collectScan(t *testing.T, ch <-chan ScanResult) []ScanResult {
	t.Helper()
	var results []ScanResult
	for r := range ch {
		results = append(results, r)
	}
	return results
}

func TestService_Scan_StableOrder(t *testing.T) {
	root := t.TempDir()
	content := strings.Repeat("x", 64)
	writeScanFile(t, filepath.Join(root, "Blade.Runner.1982.mkv"), content)
	writeScanFile(t, filepath.Join(root, "Alien (1979).mkv"), content)
	writeScanFile(t, filepath.Join(root, "Classics", "Casablanca.1942.mkv"), content)

	svc := newTestScanner(10)
	results := collectScan(t, svc.Scan(context.Background(), root, MediaTypeMovie))

	wantPaths := []string{
		filepath.Join(root, "Alien (1979).mkv"),
		filepath.Join(root, "Blade.Runner.1982.mkv"),
		filepath.Join(root, "Classics", "Casablanca.1942.mkv"),
	}
	if len(results) != len(wantPaths) {
		t.Fatalf("Scan() returned %d results, want %d", len(results), len(wantPaths))
	}
	for i, want := range wantPaths {
		if results[i].Path != want {
			t.Errorf("results[%d].Path = %q, want %q", i, results[i].Path, want)
		}
		if results[i].Err != nil {
			t.Errorf("results[%d].Err = %v, want nil", i, results[i].Err)
		}
	}
	if results[0].Parsed.Title != "Alien" || results[0].Parsed.Year != 1979 {
		t.Errorf("results[0].Parsed = %q (%d), want Alien (1979)",
			results[0].Parsed.Title, results[0].Parsed.Year)
	}
	if results[0].Size != 64 {
		t.Errorf("results[0].Size = %d, want 64", results[0].Size)
	}
}

func TestService_Scan_Filtering(t *testing.T) {
	root := t.TempDir()
	content := strings.Repeat("x", 64)

	writeScanFile(t, filepath.Join(root, "Feature.2020.mkv"), content)
	// Junk names only disqualify undersized files.
	writeScanFile(t, filepath.Join(root, "My.Sample.Reel.2019.mkv"), content)
	writeScanFile(t, filepath.Join(root, "sample.mkv"), "x")
	writeScanFile(t, filepath.Join(root, "tiny.mkv"), "x")
	writeScanFile(t, filepath.Join(root, "notes.txt"), content)
	writeScanFile(t, filepath.Join(root, ".hidden.mkv"), content)
	writeScanFile(t, filepath.Join(root, ".stage", "incoming.mkv"), content)

	linkTarget := filepath.Join(t.TempDir(), "elsewhere.mkv")
	writeScanFile(t, linkTarget, content)
	if err := os.Symlink(linkTarget, filepath.Join(root, "linked.mkv")); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}

	svc := newTestScanner(10)
	results := collectScan(t, svc.Scan(context.Background(), root, MediaTypeMovie))

	var paths []string
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("unexpected Err entry for %q: %v", r.Path, r.Err)
		}
		paths = append(paths, filepath.Base(r.Path))
	}
	want := []string{"Feature.2020.mkv", "My.Sample.Reel.2019.mkv"}
	if len(paths) != len(want) {
		t.Fatalf("Scan() kept %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("Scan() kept %v, want %v", paths, want)
			break
		}
	}
}

func TestService_Scan_CorrectedLocation(t *testing.T) {
	tests := []struct {
		name          string
		filename      string
		hint          MediaType
		wantCorrected bool
		wantEffective MediaType
	}{
		{
			name:          "episode numbering under movie root",
			filename:      "Show.S01E05.mkv",
			hint:          MediaTypeMovie,
			wantCorrected: true,
			wantEffective: MediaTypeSeries,
		},
		{
			name:          "movie under series root defers to the root",
			filename:      "The.Matrix.1999.mkv",
			hint:          MediaTypeSeries,
			wantCorrected: true,
			wantEffective: MediaTypeSeries,
		},
		{
			name:          "matching types",
			filename:      "The.Matrix.1999.mkv",
			hint:          MediaTypeMovie,
			wantCorrected: false,
			wantEffective: MediaTypeMovie,
		},
		{
			name:          "unparsed name adopts the root intent",
			filename:      "Birdman.mkv",
			hint:          MediaTypeMovie,
			wantCorrected: false,
			wantEffective: MediaTypeMovie,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeScanFile(t, filepath.Join(root, tt.filename), strings.Repeat("x", 64))

			svc := newTestScanner(10)
			results := collectScan(t, svc.Scan(context.Background(), root, tt.hint))
			if len(results) != 1 {
				t.Fatalf("Scan() returned %d results, want 1", len(results))
			}
			if results[0].CorrectedLocation != tt.wantCorrected {
				t.Errorf("CorrectedLocation = %v, want %v", results[0].CorrectedLocation, tt.wantCorrected)
			}
			if got := results[0].MediaType(); got != tt.wantEffective {
				t.Errorf("MediaType() = %q, want %q", got, tt.wantEffective)
			}
		})
	}
}

func TestScanResult_MediaType(t *testing.T) {
	tests := []struct {
		name   string
		result ScanResult
		want   MediaType
	}{
		{
			name:   "no hint follows the parser",
			result: ScanResult{TypeHint: MediaTypeUnknown, Parsed: ParsedFilename{Type: MediaTypeMovie}},
			want:   MediaTypeMovie,
		},
		{
			name:   "parser unknown follows the hint",
			result: ScanResult{TypeHint: MediaTypeSeries, Parsed: ParsedFilename{Type: MediaTypeUnknown}},
			want:   MediaTypeSeries,
		},
		{
			name:   "episode numbering overrides a movie hint",
			result: ScanResult{TypeHint: MediaTypeMovie, Parsed: ParsedFilename{Type: MediaTypeSeries, Season: 1, Episode: 2}},
			want:   MediaTypeSeries,
		},
		{
			name:   "series parse without numbering defers to the hint",
			result: ScanResult{TypeHint: MediaTypeMovie, Parsed: ParsedFilename{Type: MediaTypeSeries, SeasonPack: true}},
			want:   MediaTypeMovie,
		},
		{
			name:   "movie parse never overrides a series hint",
			result: ScanResult{TypeHint: MediaTypeSeries, Parsed: ParsedFilename{Type: MediaTypeMovie, Year: 1999}},
			want:   MediaTypeSeries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.MediaType(); got != tt.want {
				t.Errorf("MediaType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestService_Scan_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist")

	svc := newTestScanner(10)
	results := collectScan(t, svc.Scan(context.Background(), root, MediaTypeMovie))

	if len(results) != 1 {
		t.Fatalf("Scan() returned %d results, want 1 error entry", len(results))
	}
	if results[0].Err == nil {
		t.Error("results[0].Err = nil, want walk error")
	}
	if results[0].Path != root {
		t.Errorf("results[0].Path = %q, want %q", results[0].Path, root)
	}
}

func TestService_Scan_CancelledBeforeStart(t *testing.T) {
	root := t.TempDir()
	writeScanFile(t, filepath.Join(root, "Feature.2020.mkv"), strings.Repeat("x", 64))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestScanner(10)
	results := collectScan(t, svc.Scan(ctx, root, MediaTypeMovie))
	if len(results) != 0 {
		t.Errorf("Scan() returned %d results on a cancelled context, want 0", len(results))
	}
}

func TestService_Scan_CancelledMidStream(t *testing.T) {
	root := t.TempDir()
	content := strings.Repeat("x", 64)
	for _, name := range []string{"a.mkv", "b.mkv", "c.mkv", "d.mkv"} {
		writeScanFile(t, filepath.Join(root, name), content)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := newTestScanner(10)
	ch := svc.Scan(ctx, root, MediaTypeMovie)

	first, ok := <-ch
	if !ok {
		t.Fatal("Scan() closed before the first result")
	}
	if first.Err != nil {
		t.Fatalf("first result Err = %v, want nil", first.Err)
	}
	cancel()

	// The channel must close; how many in-flight results still arrive
	// is timing-dependent.
	collectScan(t, ch)
}
