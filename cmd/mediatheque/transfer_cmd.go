package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/transfer"
)

func newTransferCmd() *cobra.Command {
	var dryRun bool
	var resolve string

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Place validated files into the library",
		Long: `Move every validated file into the storage tree, create its
presentation symlink and record the placement on the catalog.
Identical content already in storage is skipped automatically; other
conflicts suspend the batch for a decision, or resolve uniformly
with --resolve for unattended runs.

Examples:
  mediatheque transfer --dry-run
  mediatheque transfer
  mediatheque transfer --resolve keep_old`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fixed := transfer.Resolution(resolve)
			if resolve != "" && !knownResolution(fixed) {
				return faults.InvalidInput(fmt.Sprintf("unknown resolution %q (keep_old, keep_new, keep_both, skip)", resolve))
			}
			return runTransfer(dryRun, fixed)
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "plan and check without moving anything")
	cmd.Flags().StringVar(&resolve, "resolve", "", "resolve every conflict with keep_old, keep_new, keep_both or skip")

	return cmd
}

func runTransfer(dryRun bool, fixed transfer.Resolution) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	items, err := a.workflow.TransferItems(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		if !jsonOut {
			fmt.Println("Nothing to transfer.")
		}
		return nil
	}

	batch, err := a.transferer.Plan(ctx, items)
	if err != nil {
		return err
	}

	// Execute blocks while the consumer goroutine renders events and
	// answers conflict prompts; closing the channel after it returns
	// releases the consumer.
	events := make(chan transfer.Event)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		stdin := bufio.NewReader(os.Stdin)
		for ev := range events {
			handleTransferEvent(ev, stdin, fixed)
		}
	}()

	report, err := a.transferer.Execute(ctx, batch, transfer.Options{DryRun: dryRun, Events: events})
	close(events)
	<-consumed

	if report == nil {
		return err
	}
	if jsonOut {
		if jsonErr := printJSON(report); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	fmt.Printf("\n%d items: %d transferred, %d duplicates, %d skipped, %d failed",
		report.Total, report.Transferred, report.Duplicates, report.Skipped, report.Failed)
	if report.DryRun {
		fmt.Print(" (dry-run)")
	}
	fmt.Println()
	if report.Interrupted {
		fmt.Println("Batch interrupted; completed items stay placed.")
	}
	return err
}

func handleTransferEvent(ev transfer.Event, stdin *bufio.Reader, fixed transfer.Resolution) {
	switch ev.Kind {
	case transfer.EventStarted:
		if !jsonOut {
			fmt.Printf("Transferring %d files\n", ev.Total)
		}
	case transfer.EventConflict:
		ev.Reply <- resolveConflict(ev, stdin, fixed)
	case transfer.EventItemDone:
		if !jsonOut && ev.Result != nil {
			fmt.Println(itemResultLine(ev.Result))
		}
	}
}

// resolveConflict answers one suspended conflict, either with the
// fixed resolution or by prompting on stdin. A closed stdin skips.
func resolveConflict(ev transfer.Event, stdin *bufio.Reader, fixed transfer.Resolution) transfer.Resolution {
	if fixed != "" {
		if !jsonOut {
			fmt.Printf("⊘ conflict at %s resolved with %s\n", ev.Conflict.Path, fixed)
		}
		return fixed
	}

	fmt.Printf("\nConflict for %s\n", filepath.Base(ev.Item.File.Path))
	switch ev.Conflict.Subkind {
	case faults.ConflictNameCollision:
		fmt.Printf("  A different file already sits at %s\n", ev.Conflict.Path)
	case faults.ConflictSimilarContent:
		fmt.Printf("  This title already holds a different file: %s\n", ev.Conflict.Path)
	default:
		fmt.Printf("  %s at %s\n", ev.Conflict.Subkind, ev.Conflict.Path)
	}

	names := make([]string, len(ev.Options))
	for i, option := range ev.Options {
		names[i] = string(option)
	}
	for {
		fmt.Printf("Resolve [%s]: ", strings.Join(names, "/"))
		line, err := stdin.ReadString('\n')
		if err != nil {
			fmt.Println("skip")
			return transfer.ResolutionSkip
		}
		choice := transfer.Resolution(strings.TrimSpace(line))
		if knownResolution(choice) {
			return choice
		}
		fmt.Printf("Unknown answer %q\n", strings.TrimSpace(line))
	}
}

func knownResolution(r transfer.Resolution) bool {
	switch r {
	case transfer.ResolutionKeepOld, transfer.ResolutionKeepNew, transfer.ResolutionKeepBoth, transfer.ResolutionSkip:
		return true
	}
	return false
}

func itemResultLine(result *transfer.ItemResult) string {
	name := filepath.Base(result.Source)
	switch result.Status {
	case transfer.ItemTransferred:
		return fmt.Sprintf("✓ %s → %s", name, result.Destination)
	case transfer.ItemSkippedDuplicate:
		return fmt.Sprintf("⊘ %s (identical file already in storage)", name)
	case transfer.ItemSkipped:
		return fmt.Sprintf("⊘ %s (%s)", name, result.Resolution)
	case transfer.ItemFailed:
		return fmt.Sprintf("✗ %s: %s", name, result.Error)
	default:
		return name
	}
}
