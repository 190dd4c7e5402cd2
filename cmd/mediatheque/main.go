package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mediatheque/mediatheque/internal/faults"
)

var (
	cfgFile string
	jsonOut bool
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, context.Canceled) && !faults.IsCancelled(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps the fault taxonomy onto shell-visible codes so scripts
// can distinguish bad arguments from upstream outages.
func exitCode(err error) int {
	switch faults.KindOf(err) {
	case faults.KindInvalidInput:
		return 2
	case faults.KindNotFound:
		return 3
	case faults.KindConflict:
		return 4
	case faults.KindExternalRateLimited, faults.KindExternalTransient, faults.KindExternalPermanent:
		return 5
	case faults.KindCancelled:
		return 130
	default:
		return 1
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mediatheque",
		Short: "Personal video library organizer",
		Long: `Mediatheque scans download folders, identifies movies and series
episodes against TMDB and TVDB, and files validated videos into a
genre-organized storage tree mirrored by a presentation tree of
symlinks.

Typical session:
  mediatheque ingest              # scan downloads, match and queue new files
  mediatheque validate list       # review what could not be auto-validated
  mediatheque transfer            # place validated files into the library`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newTransferCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newIntegrityCmd())
	rootCmd.AddCommand(newRepairLinksCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newTrashCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}
