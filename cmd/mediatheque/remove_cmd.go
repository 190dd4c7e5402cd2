package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mediatheque/mediatheque/internal/faults"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <movie|series|episode> <id>",
		Short: "Move a catalog entry to the trash",
		Long: `Soft delete a movie, a series with all of its episodes, or a single
episode. The entry moves to the trash and stays restorable with
"trash restore" until it is purged. Files on disk are left alone.`,
		Args: cobra.ExactArgs(2),
		RunE: runRemove,
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	entity := args[0]
	id, err := parseID(args[1])
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

	switch entity {
	case "movie":
		err = a.movies.SoftDeleteToTrash(ctx, id)
	case "series":
		err = a.tv.SoftDeleteSeriesToTrash(ctx, id)
	case "episode":
		err = a.tv.SoftDeleteEpisodeToTrash(ctx, id)
	default:
		return faults.InvalidInput(fmt.Sprintf("unknown entity type %q (movie, series, episode)", entity))
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{"entity": entity, "id": id, "trashed": true})
	}
	fmt.Printf("✓ %s #%d moved to trash\n", entity, id)
	fmt.Println("Run \"mediatheque trash list\" to review or restore it.")
	return nil
}
