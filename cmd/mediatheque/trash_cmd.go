package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newTrashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "Inspect and manage soft-deleted catalog entries",
	}
	cmd.AddCommand(newTrashListCmd())
	cmd.AddCommand(newTrashRestoreCmd())
	cmd.AddCommand(newTrashPurgeCmd())
	return cmd
}

func newTrashListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List trashed entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			items, err := a.trash.List(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(items)
			}
			if len(items) == 0 {
				fmt.Println("Trash is empty.")
				return nil
			}

			table := newTable()
			fmt.Fprintln(table, "ID\tTYPE\tORIGINAL\tDELETED")
			for _, item := range items {
				fmt.Fprintf(table, "%d\t%s\t#%d\t%s\n",
					item.ID, item.EntityType, item.OriginalID, humanize.Time(item.DeletedAt))
			}
			return table.Flush()
		},
	}
}

func newTrashRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a trashed entry into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			if err := a.trash.Restore(ctx, id); err != nil {
				return err
			}
			if jsonOut {
				return printJSON(map[string]any{"id": id, "restored": true})
			}
			fmt.Printf("✓ trash entry #%d restored\n", id)
			return nil
		},
	}
}

func newTrashPurgeCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Permanently delete old trash entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			purged, err := a.trash.Purge(ctx, olderThan)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(map[string]any{"purged": purged})
			}
			if purged == 0 {
				fmt.Println("Nothing old enough to purge.")
				return nil
			}
			fmt.Printf("✓ %d trash entries purged\n", purged)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "only purge entries deleted longer ago than this")
	return cmd
}
