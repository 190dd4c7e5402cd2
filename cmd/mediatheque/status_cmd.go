package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mediatheque/mediatheque/internal/metadata"
)

type statusReport struct {
	Sources        []metadata.SourceStatus `json:"sources"`
	Movies         int                     `json:"movies"`
	Series         int                     `json:"series"`
	PendingReview  int                     `json:"pendingReview"`
	Files          int                     `json:"files"`
	InventoryBytes int64                   `json:"inventoryBytes"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog counts and metadata source health",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	report := statusReport{Sources: a.meta.Availability(ctx)}

	movies, err := a.movies.List(ctx)
	if err != nil {
		return err
	}
	report.Movies = len(movies)

	series, err := a.tv.ListSeries(ctx)
	if err != nil {
		return err
	}
	report.Series = len(series)

	pending, err := a.validation.ListPending(ctx)
	if err != nil {
		return err
	}
	report.PendingReview = len(pending)

	inventory, err := a.files.List(ctx)
	if err != nil {
		return err
	}
	report.Files = len(inventory)
	for _, file := range inventory {
		report.InventoryBytes += file.SizeBytes
	}

	if jsonOut {
		return printJSON(report)
	}

	fmt.Println("Metadata sources:")
	for _, src := range report.Sources {
		switch {
		case !src.Configured:
			fmt.Printf("  ○ %s: not configured\n", src.Source)
		case src.Err != "":
			fmt.Printf("  ✗ %s: %s\n", src.Source, src.Err)
		default:
			fmt.Printf("  ✓ %s: reachable\n", src.Source)
		}
	}

	fmt.Println("\nCatalog:")
	fmt.Printf("  %d movies, %d series\n", report.Movies, report.Series)
	fmt.Printf("  %d files in storage (%s)\n", report.Files, humanize.Bytes(uint64(report.InventoryBytes)))
	if report.PendingReview > 0 {
		fmt.Printf("  %d matches pending review\n", report.PendingReview)
	}

	fmt.Println("\nPaths:")
	fmt.Printf("  downloads  %s\n", a.cfg.DownloadsDir)
	fmt.Printf("  storage    %s\n", a.cfg.StorageDir)
	fmt.Printf("  video      %s\n", a.cfg.VideoDir)
	fmt.Printf("  trash      %s\n", a.cfg.TrashDir)
	fmt.Printf("  database   %s\n", a.cfg.DatabaseURL)
	return nil
}
