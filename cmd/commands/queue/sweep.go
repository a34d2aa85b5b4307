package queue

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/auditlog"

	"github.com/spf13/cobra"
)

func SweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Process every order with pending actions once",
		Long: `Page through every order paid with the configured payment method that has
pending actions and attempt the head action of each. This is what
'payq serve' runs on every interval; run it from cron when the server is
not used.

Examples:
  payq queue sweep
  payq queue sweep --batch-size 200`,
		Args:         cobra.NoArgs,
		RunE:         runSweep,
		SilenceUsage: true,
	}

	cmd.Flags().Int("batch-size", 0, "Orders per page (default from config)")

	return cmd
}

func runSweep(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	batch, _ := cmd.Flags().GetInt("batch-size")
	if batch <= 0 {
		batch = a.Settings.BatchSize
	}

	ctx := auditlog.WithTrigger(cmd.Context(), auditlog.TriggerCLI)
	var tally actionqueue.Tally
	err = runStep(ctx, cmd, "Sweeping orders...", func(ctx context.Context) error {
		var err error
		tally, err = a.Queue.ProcessAll(ctx, batch)
		return err
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Sweep finished: %d processed, %d failed, %d skipped (broken).\n",
		tally.Processed, tally.Failed, tally.Skipped)
	return err
}
