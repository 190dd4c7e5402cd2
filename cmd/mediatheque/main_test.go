package main

import (
	"context"
	"errors"
	"testing"

	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/progress"
	"github.com/mediatheque/mediatheque/internal/transfer"
	"github.com/mediatheque/mediatheque/internal/validation"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", faults.InvalidInput("bad id"), 2},
		{"not found", faults.NotFound("movie 9"), 3},
		{"conflict", faults.Conflictf(faults.ConflictDuplicate, "already there"), 4},
		{"external", faults.ExternalTransient("tmdb down", errors.New("503")), 5},
		{"cancelled", faults.Cancelled(context.Canceled), 130},
		{"bare context cancel", context.Canceled, 130},
		{"plain error", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		arg     string
		want    int64
		wantErr bool
	}{
		{"12", 12, false},
		{"1", 1, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseID(tt.arg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseID(%q) expected error, got %d", tt.arg, got)
				}
				if faults.KindOf(err) != faults.KindInvalidInput {
					t.Errorf("parseID(%q) kind = %q, want invalid input", tt.arg, faults.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("parseID(%q): %v", tt.arg, err)
			}
			if got != tt.want {
				t.Errorf("parseID(%q) = %d, want %d", tt.arg, got, tt.want)
			}
		})
	}
}

func TestParsedLabel(t *testing.T) {
	tests := []struct {
		name string
		row  validation.PendingValidation
		want string
	}{
		{
			name: "movie with year",
			row:  validation.PendingValidation{ParsedTitle: "Heat", ParsedYear: 1995},
			want: "Heat (1995)",
		},
		{
			name: "movie without year",
			row:  validation.PendingValidation{ParsedTitle: "Heat"},
			want: "Heat",
		},
		{
			name: "single episode",
			row:  validation.PendingValidation{ParsedTitle: "Dark", ParsedSeason: 1, ParsedEpisode: 3},
			want: "Dark S01E03",
		},
		{
			name: "episode span",
			row:  validation.PendingValidation{ParsedTitle: "Dark", ParsedSeason: 2, ParsedEpisode: 1, ParsedEpisodeEnd: 3},
			want: "Dark S02E01-E03",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parsedLabel(&tt.row); got != tt.want {
				t.Errorf("parsedLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestItemResultLine(t *testing.T) {
	tests := []struct {
		name   string
		result transfer.ItemResult
		want   string
	}{
		{
			name: "transferred",
			result: transfer.ItemResult{
				Source:      "/downloads/Films/Heat.1995.mkv",
				Destination: "/storage/Films/Drame/H/Heat (1995)/Heat (1995).mkv",
				Status:      transfer.ItemTransferred,
			},
			want: "✓ Heat.1995.mkv → /storage/Films/Drame/H/Heat (1995)/Heat (1995).mkv",
		},
		{
			name:   "duplicate",
			result: transfer.ItemResult{Source: "/downloads/Films/Heat.mkv", Status: transfer.ItemSkippedDuplicate},
			want:   "⊘ Heat.mkv (identical file already in storage)",
		},
		{
			name: "skipped by resolution",
			result: transfer.ItemResult{
				Source:     "/downloads/Films/Heat.mkv",
				Status:     transfer.ItemSkipped,
				Resolution: transfer.ResolutionKeepOld,
			},
			want: "⊘ Heat.mkv (keep_old)",
		},
		{
			name:   "failed",
			result: transfer.ItemResult{Source: "/downloads/Films/Heat.mkv", Status: transfer.ItemFailed, Error: "no space left"},
			want:   "✗ Heat.mkv: no space left",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := itemResultLine(&tt.result); got != tt.want {
				t.Errorf("itemResultLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKnownResolution(t *testing.T) {
	for _, r := range []transfer.Resolution{
		transfer.ResolutionKeepOld,
		transfer.ResolutionKeepNew,
		transfer.ResolutionKeepBoth,
		transfer.ResolutionSkip,
	} {
		if !knownResolution(r) {
			t.Errorf("knownResolution(%q) = false, want true", r)
		}
	}
	for _, r := range []transfer.Resolution{"", "yes", "Keep_Old"} {
		if knownResolution(r) {
			t.Errorf("knownResolution(%q) = true, want false", r)
		}
	}
}

func TestOutcomeIcon(t *testing.T) {
	tests := []struct {
		outcome progress.Outcome
		want    string
	}{
		{progress.OutcomeAutoValidated, "✓"},
		{progress.OutcomePending, "○"},
		{progress.OutcomeSkipped, "⊘"},
		{progress.OutcomeFailed, "✗"},
		{progress.Outcome("other"), "-"},
	}

	for _, tt := range tests {
		if got := outcomeIcon(tt.outcome); got != tt.want {
			t.Errorf("outcomeIcon(%q) = %q, want %q", tt.outcome, got, tt.want)
		}
	}
}
