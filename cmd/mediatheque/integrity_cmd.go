package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIntegrityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "Report catalog entries whose files are missing",
		Long: `Check every cataloged file path against the filesystem and list
the ghosts: inventory rows, movies and episodes whose file is gone.
Exits non-zero when any are found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			ghosts, err := a.files.IntegrityScan(ctx)
			if err != nil {
				return err
			}

			if jsonOut {
				if err := printJSON(ghosts); err != nil {
					return err
				}
			} else if len(ghosts) == 0 {
				fmt.Println("Every cataloged file is present.")
			} else {
				table := newTable()
				fmt.Fprintln(table, "ENTITY\tID\tMISSING PATH")
				for _, ghost := range ghosts {
					fmt.Fprintf(table, "%s\t%d\t%s\n", ghost.Entity, ghost.ID, ghost.Path)
				}
				if err := table.Flush(); err != nil {
					return err
				}
			}

			if len(ghosts) > 0 {
				return fmt.Errorf("%d catalog entries point at missing files", len(ghosts))
			}
			return nil
		},
	}
}

func newRepairLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair-links",
		Short: "Park dead presentation symlinks in the trash",
		Long: `Walk the presentation tree and move every symlink whose target no
longer exists to <trash>/orphans. Links are parked, not deleted, so
a mistaken repair can be undone by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			parked, err := a.ops.RepairSymlinks(ctx, a.cfg.VideoDir, a.cfg.TrashDir)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(map[string]int{"parked": parked})
			}
			if parked == 0 {
				fmt.Println("No dead symlinks.")
			} else {
				fmt.Printf("%d dead symlinks parked under %s\n", parked, a.cfg.OrphansDir())
			}
			return nil
		},
	}
}
