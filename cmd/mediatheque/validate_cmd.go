package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/matcher"
	"github.com/mediatheque/mediatheque/internal/validation"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Review and decide queued identifications",
		Long: `Work the validation queue: list files the matcher could not
identify unambiguously, inspect their candidates, and accept or
reject an identity. Accepting a series episode cascades over the
sibling episodes of the same series; rejecting or resetting any
member reverts every auto-validated sibling of its cascade.`,
	}

	cmd.AddCommand(newValidateListCmd())
	cmd.AddCommand(newValidateShowCmd())
	cmd.AddCommand(newValidateAcceptCmd())
	cmd.AddCommand(newValidateRejectCmd())
	cmd.AddCommand(newValidateResetCmd())
	cmd.AddCommand(newValidateSearchCmd())

	return cmd
}

func newValidateListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued identifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			var rows []*validation.PendingValidation
			switch status {
			case "pending":
				rows, err = a.validation.ListPending(ctx)
			case "validated":
				rows, err = a.validation.ListByStatus(ctx, validation.StatusValidated)
			case "rejected":
				rows, err = a.validation.ListByStatus(ctx, validation.StatusRejected)
			case "auto":
				rows, err = a.validation.ListAutoValidated(ctx)
			default:
				return faults.InvalidInput(fmt.Sprintf("unknown status %q (pending, validated, rejected, auto)", status))
			}
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(rows)
			}
			if len(rows) == 0 {
				fmt.Printf("No %s entries.\n", status)
				return nil
			}

			table := newTable()
			fmt.Fprintln(table, "ID\tTYPE\tPARSED\tTOP CANDIDATE\tSCORE")
			for _, row := range rows {
				top := "-"
				score := "-"
				if len(row.Candidates) > 0 {
					top = candidateLabel(&row.Candidates[0])
					score = fmt.Sprintf("%d", row.Candidates[0].Score)
				}
				fmt.Fprintf(table, "%d\t%s\t%s\t%s\t%s\n", row.ID, row.MediaType, parsedLabel(row), top, score)
			}
			return table.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "pending", "pending, validated, rejected or auto")

	return cmd
}

func newValidateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queued identification with its candidates",
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

			row, err := a.validation.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(row)
			}

			file, err := a.files.GetByID(ctx, row.VideoFileID)
			if err != nil {
				return err
			}

			fmt.Printf("#%d  %s  %s\n", row.ID, row.MediaType, parsedLabel(row))
			fmt.Printf("File:   %s\n", file.Path)
			fmt.Printf("Status: %s", row.Status)
			if row.AutoValidated {
				fmt.Print(" (auto)")
			}
			if row.CascadeRootID != 0 {
				fmt.Printf(" (cascade of #%d)", row.CascadeRootID)
			}
			fmt.Println()

			if len(row.Candidates) == 0 {
				fmt.Println("No candidates. Try: mediatheque validate search", row.ID, "<title>")
				return nil
			}
			fmt.Println("Candidates:")
			printCandidates(row.Candidates, row.SelectedCandidateID)
			return nil
		},
	}
}

func newValidateAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <id> <candidate-id>",
		Short: "Accept an identity for a queued file",
		Long: `Accept the given candidate as the file's identity and materialize
the catalog entity. The candidate id is one of the listed snapshot
ids, a tt-prefixed IMDB id, or a bare catalog id from a manual
search.`,
		Args: cobra.ExactArgs(2),
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

			row, err := a.validation.Accept(ctx, id, args[1])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(row)
			}

			label := args[1]
			if cand := row.Candidate(row.SelectedCandidateID); cand != nil {
				label = candidateLabel(cand)
			}
			fmt.Printf("✓ #%d validated as %s\n", row.ID, label)
			fmt.Println("Place it with: mediatheque transfer")
			return nil
		},
	}
}

func newValidateRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a queued identification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transitionValidation(args[0], "rejected", func(a *app, ctx context.Context, id int64) (*validation.PendingValidation, error) {
				return a.validation.Reject(ctx, id)
			})
		},
	}
}

func newValidateResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>",
		Short: "Return a decided entry to the pending queue",
		Long: `Reset a validated or rejected entry to pending, undoing its
materialized catalog rows. Resetting a cascade member resets every
auto-validated sibling; the accepted root stays validated unless it
is the target itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transitionValidation(args[0], "pending again", func(a *app, ctx context.Context, id int64) (*validation.PendingValidation, error) {
				return a.validation.ResetToPending(ctx, id)
			})
		},
	}
}

func newValidateSearchCmd() *cobra.Command {
	var externalID string

	cmd := &cobra.Command{
		Use:   "search <id> [query...]",
		Short: "Search the catalogs manually for a queued file",
		Long: `Search TMDB/TVDB with a free-form query, or resolve an exact
external id with --external (tt-prefixed IMDB id or bare TVDB id).
Accept a result with its candidate id.

Examples:
  mediatheque validate search 12 le samourai 1967
  mediatheque validate search 12 --external tt0062229`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			query := strings.Join(args[1:], " ")
			if query == "" && externalID == "" {
				return faults.InvalidInput("give a search query or --external")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			row, err := a.validation.GetByID(ctx, id)
			if err != nil {
				return err
			}

			var candidates []matcher.Candidate
			if externalID != "" {
				cand, err := a.validation.SearchByExternalID(ctx, externalID)
				if err != nil {
					return err
				}
				candidates = []matcher.Candidate{*cand}
			} else {
				candidates, err = a.validation.SearchManual(ctx, query, row.MediaType)
				if err != nil {
					return err
				}
			}

			if jsonOut {
				return printJSON(candidates)
			}
			if len(candidates) == 0 {
				fmt.Println("No results.")
				return nil
			}
			printCandidates(candidates, "")
			fmt.Printf("Accept one with: mediatheque validate accept %d <candidate-id>\n", row.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&externalID, "external", "", "resolve an exact IMDB or TVDB id")

	return cmd
}

// transitionValidation runs one of the status transitions and prints
// the outcome.
func transitionValidation(arg, verb string, fn func(*app, context.Context, int64) (*validation.PendingValidation, error)) error {
	id, err := parseID(arg)
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

	row, err := fn(a, ctx, id)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(row)
	}
	fmt.Printf("#%d is %s\n", row.ID, verb)
	return nil
}

func parsedLabel(row *validation.PendingValidation) string {
	label := row.ParsedTitle
	if row.ParsedYear > 0 {
		label += fmt.Sprintf(" (%d)", row.ParsedYear)
	}
	if row.ParsedSeason > 0 || row.ParsedEpisode > 0 {
		label += fmt.Sprintf(" S%02dE%02d", row.ParsedSeason, row.ParsedEpisode)
		if row.ParsedEpisodeEnd > row.ParsedEpisode {
			label += fmt.Sprintf("-E%02d", row.ParsedEpisodeEnd)
		}
	}
	return label
}

func candidateLabel(cand *matcher.Candidate) string {
	label := cand.Title
	if cand.Year > 0 {
		label += fmt.Sprintf(" (%d)", cand.Year)
	}
	return label
}

func printCandidates(candidates []matcher.Candidate, selectedID string) {
	table := newTable()
	fmt.Fprintln(table, "  CANDIDATE\tTITLE\tSCORE\tSOURCE\tVOTES")
	for i := range candidates {
		cand := &candidates[i]
		marker := " "
		if selectedID != "" && cand.ExternalID == selectedID {
			marker = "*"
		}
		fmt.Fprintf(table, "%s %s\t%s\t%d\t%s\t%d\n",
			marker, cand.ExternalID, candidateLabel(cand), cand.Score, cand.Source, cand.VoteCount)
	}
	table.Flush()
}
