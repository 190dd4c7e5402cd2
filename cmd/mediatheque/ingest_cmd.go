package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mediatheque/mediatheque/internal/progress"
	"github.com/mediatheque/mediatheque/internal/workflow"
)

func newIngestCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Scan the download trees and match new files",
		Long: `Walk downloads/Films and downloads/Series, fingerprint and probe
every video, match it against the metadata catalogs and queue the
result for validation. Unambiguous matches are validated
automatically; everything else waits in "validate list".

Examples:
  mediatheque ingest
  mediatheque ingest --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(workers)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "matcher worker count (0 = default)")

	return cmd
}

func runIngest(workers int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	events, unsubscribe := a.broker.Subscribe()
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for ev := range events {
			renderIngestEvent(ev)
		}
	}()

	if !jsonOut {
		fmt.Printf("Scanning %s and %s\n", a.cfg.FilmsRoot(), a.cfg.SeriesRoot())
	}

	report, err := a.workflow.Run(ctx, workflow.Options{Workers: workers})
	unsubscribe()
	<-rendered

	if jsonOut {
		if jsonErr := printJSON(report); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	fmt.Printf("\n%d files found: %d auto-validated, %d pending review, %d skipped, %d failed (%s)\n",
		report.Found, report.AutoValidated, report.Pending, report.Skipped, report.Failed,
		report.Elapsed.Round(timePrecision))
	if report.Interrupted {
		fmt.Println("Run was interrupted; completed work is kept.")
	}
	if report.Pending > 0 {
		fmt.Println("Review pending files with: mediatheque validate list")
	}
	return err
}

func renderIngestEvent(ev progress.Event) {
	if jsonOut || ev.Kind != progress.KindItem {
		return
	}
	line := fmt.Sprintf("%s %s", outcomeIcon(ev.Outcome), filepath.Base(ev.Path))
	if ev.Detail != "" && ev.Outcome != progress.OutcomeAutoValidated {
		line += "  (" + ev.Detail + ")"
	}
	fmt.Println(line)
}

func outcomeIcon(outcome progress.Outcome) string {
	switch outcome {
	case progress.OutcomeAutoValidated:
		return "✓"
	case progress.OutcomePending:
		return "○"
	case progress.OutcomeSkipped:
		return "⊘"
	case progress.OutcomeFailed:
		return "✗"
	default:
		return "-"
	}
}
