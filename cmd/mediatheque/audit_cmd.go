package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mediatheque/mediatheque/internal/audit"
	"github.com/mediatheque/mediatheque/internal/faults"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit catalog associations for drift",
		Long: `Re-examine every associated file and flag entries whose parsed
name, year, duration or episode layout no longer agrees with the
catalog entity they are associated to. Verdicts are cached for a
day; confirmed associations are never flagged again.

Examples:
  mediatheque audit
  mediatheque audit confirm movie 12
  mediatheque audit revoke episode 304`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditScan()
		},
	}

	cmd.AddCommand(newAuditConfirmCmd())
	cmd.AddCommand(newAuditRevokeCmd())

	return cmd
}

func runAuditScan() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var collected []audit.Finding
	table := newTable()
	if !jsonOut {
		fmt.Fprintln(table, "TYPE\tID\tCONF\tTITLE\tREASONS")
	}

	count := 0
	for finding := range a.checker.ScanSuspicious(ctx) {
		count++
		if jsonOut {
			collected = append(collected, finding)
			continue
		}
		fmt.Fprintf(table, "%s\t%d\t%d\t%s\t%s\n",
			finding.EntityType, finding.EntityID, finding.Confidence,
			finding.Title, joinReasons(finding.Reasons))
		if finding.Detail != "" {
			fmt.Fprintf(table, "\t\t\t  %s\t\n", finding.Detail)
		}
	}
	if err := ctx.Err(); err != nil {
		return faults.Cancelled(err)
	}

	if jsonOut {
		return printJSON(collected)
	}
	if count == 0 {
		fmt.Println("No suspicious associations.")
		return nil
	}
	if err := table.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d suspicious associations. Clear a correct one with: mediatheque audit confirm <type> <id>\n", count)
	return nil
}

func newAuditConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <movie|episode|series> <id>",
		Short: "Mark an association as verified by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, id, err := parseEntityRef(args)
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

			confirmed, err := a.checker.Confirm(ctx, entityType, id)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(confirmed)
			}
			fmt.Printf("✓ %s #%d confirmed; the audit will not flag it again\n", entityType, id)
			return nil
		},
	}
}

func newAuditRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <movie|episode|series> <id>",
		Short: "Withdraw a manual confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, id, err := parseEntityRef(args)
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

			if err := a.checker.Revoke(ctx, entityType, id); err != nil {
				return err
			}
			if !jsonOut {
				fmt.Printf("%s #%d is back under audit\n", entityType, id)
			}
			return nil
		},
	}
}

func parseEntityRef(args []string) (audit.EntityType, int64, error) {
	entityType := audit.EntityType(args[0])
	if !audit.ValidEntityType(entityType) {
		return "", 0, faults.InvalidInput(fmt.Sprintf("unknown entity type %q (movie, episode, series)", args[0]))
	}
	id, err := parseID(args[1])
	if err != nil {
		return "", 0, err
	}
	return entityType, id, nil
}

func joinReasons(reasons []audit.Reason) string {
	names := make([]string, len(reasons))
	for i, reason := range reasons {
		names[i] = string(reason)
	}
	return strings.Join(names, ",")
}
