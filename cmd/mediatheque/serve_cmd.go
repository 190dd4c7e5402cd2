package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mediatheque/mediatheque/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Stay resident and run scheduled maintenance",
		Long: `Run the maintenance scheduler until interrupted. The association
audit fires on the audit_cron schedule; an empty audit_cron leaves
nothing to schedule and the command exits right away.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	sched, err := scheduler.New(a.log)
	if err != nil {
		return err
	}

	if a.cfg.AuditCron == "" {
		fmt.Println("audit_cron is empty, nothing to schedule.")
		return nil
	}

	err = sched.Register(scheduler.TaskConfig{
		ID:   "audit-scan",
		Name: "Association audit",
		Cron: a.cfg.AuditCron,
		Func: func(ctx context.Context) error {
			findings := 0
			for range a.checker.ScanSuspicious(ctx) {
				findings++
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			a.log.Info().Int("findings", findings).Msg("Scheduled audit finished")
			return nil
		},
	})
	if err != nil {
		return err
	}

	sched.Start(ctx)

	for _, task := range sched.Tasks() {
		if task.NextRun == nil {
			continue
		}
		if jsonOut {
			if err := printJSON(task); err != nil {
				return err
			}
			continue
		}
		fmt.Printf("%s scheduled, next run %s\n", task.Name, task.NextRun.Format("2006-01-02 15:04"))
	}
	if !jsonOut {
		fmt.Println("Scheduler running, Ctrl+C to stop.")
	}

	<-ctx.Done()
	return sched.Stop()
}
