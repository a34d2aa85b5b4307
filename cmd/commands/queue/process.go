package queue

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/app"
	"nathanbeddoewebdev/payq/internal/auditlog"
	"nathanbeddoewebdev/payq/internal/orderstore"
	"nathanbeddoewebdev/payq/internal/tui"
	"nathanbeddoewebdev/payq/internal/util"

	"github.com/spf13/cobra"
)

func ProcessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <ref>",
		Short: "Attempt the next pending action of an order",
		Long: `Attempt the head action of an order's queue now. One call performs at
most one provider request; use --drain to keep going until the queue is
empty or an action fails.

An action still inside its retry interval is not attempted. An order with
a broken action is frozen until the action is removed with
'payq queue remove'.

Examples:
  payq queue process 100
  payq queue process 100 --drain`,
		Args:         cobra.ExactArgs(1),
		RunE:         runProcess,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("drain", false, "Keep processing until the queue is empty or no progress is made")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	ref := args[0]
	if err := util.ValidateOrderRef(ref); err != nil {
		return err
	}
	drain, _ := cmd.Flags().GetBool("drain")

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := auditlog.WithMetadata(cmd.Context(), auditlog.Metadata{Trigger: auditlog.TriggerCLI, OrderRef: ref})
	before, err := a.Store.GetOrder(ctx, ref)
	if err != nil {
		return err
	}
	if before.PaymentMethod != a.Settings.PaymentMethod {
		fmt.Fprintf(cmd.OutOrStdout(), "Order %s is not paid with %s; nothing to do.\n", ref, a.Settings.PaymentMethod)
		return nil
	}

	out := cmd.OutOrStdout()
	for {
		var ok bool
		title := fmt.Sprintf("Processing order %s...", ref)
		if err := runStep(ctx, cmd, title, func(ctx context.Context) error {
			var err error
			ok, err = a.Queue.ProcessOrder(ctx, ref)
			return err
		}); err != nil {
			return err
		}

		after, err := a.Store.GetOrder(ctx, ref)
		if err != nil {
			return err
		}
		if !drain || !ok || len(after.Pending) == 0 || len(before.Pending) == 0 {
			return report(out, a, before, after, ok, time.Now())
		}
		fmt.Fprintf(out, "Order %s: %s completed.\n", ref, before.Pending[0].Kind)
		before = after
	}
}

// runStep runs fn behind a spinner when the terminal is interactive.
// Interrupting the spinner cancels ctx.
func runStep(ctx context.Context, cmd *cobra.Command, title string, fn func(ctx context.Context) error) error {
	if !interactive(cmd) {
		return fn(ctx)
	}
	return tui.RunSpinner(cmd.ErrOrStderr(), title, func(spinCtx context.Context) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(spinCtx, cancel)
		defer stop()
		return fn(ctx)
	})
}

// report describes the effect of one ProcessOrder call by comparing the
// order before and after it. Failures are returned as errors so scripts
// see a non-zero exit status.
func report(out io.Writer, a *app.App, before, after *orderstore.Order, ok bool, now time.Time) error {
	ref := after.Ref
	if len(before.Pending) == 0 {
		fmt.Fprintf(out, "Order %s has no pending actions.\n", ref)
		return nil
	}
	head := before.Pending[0]

	if ok {
		if len(after.Pending) == 0 {
			fmt.Fprintf(out, "Order %s: %s completed, all actions done.\n", ref, head.Kind)
		} else {
			fmt.Fprintf(out, "Order %s: %s completed, %d action(s) remaining.\n", ref, head.Kind, len(after.Pending))
		}
		return nil
	}

	if i := slices.IndexFunc(after.Pending, a.Queue.IsBroken); i >= 0 {
		r := after.Pending[i]
		return fmt.Errorf("order %s is frozen: %s failed %d times; resolve it with the provider, then run 'payq queue remove %s %s'",
			ref, r.Kind, r.FailedCount, ref, r.Kind)
	}

	cur := after.Pending[0]
	next := a.Queue.NextAttempt(ref, cur)
	when := tui.FormatNextAttempt(tui.ActionState(cur, false), next, now)
	switch {
	case cur.Kind == head.Kind && cur.FailedCount > head.FailedCount:
		cause := lastDetail(a.Audit, ref, cur.Kind)
		if cause != "" {
			cause = ": " + cause
		}
		return fmt.Errorf("order %s: %s failed (attempt %d of %d)%s; next attempt %s",
			ref, cur.Kind, cur.FailedCount, a.Queue.Config().MaxRetries, cause, when)
	case cur.FailedAt != nil && next.After(now):
		fmt.Fprintf(out, "Order %s: %s is waiting to be retried, next attempt %s.\n", ref, cur.Kind, when)
		return nil
	default:
		return fmt.Errorf("order %s: %w", ref, actionqueue.ErrOrderBusy)
	}
}
