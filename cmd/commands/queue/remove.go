package queue

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/auditlog"
	"nathanbeddoewebdev/payq/internal/tui"
	"nathanbeddoewebdev/payq/internal/util"

	"github.com/spf13/cobra"
)

func RemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <ref> <kind>",
		Short: "Remove a broken action from an order's queue",
		Long: `Remove a broken action after the problem was resolved with the provider
by other means. The provider is not called for the action again. Actions
that can still be retried are never removed.

When the last broken action of an order is removed the order leaves the
error status and the rest of its queue resumes.

Examples:
  payq queue remove 100 invoice
  payq queue remove 100 invoice --yes`,
		Args:         cobra.ExactArgs(2),
		RunE:         runRemove,
		SilenceUsage: true,
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runRemove(cmd *cobra.Command, args []string) error {
	ref := args[0]
	if err := util.ValidateOrderRef(ref); err != nil {
		return err
	}
	kind, err := actionqueue.ParseKind(args[1])
	if err != nil {
		return err
	}
	yes, _ := cmd.Flags().GetBool("yes")

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := auditlog.WithMetadata(cmd.Context(), auditlog.Metadata{Trigger: auditlog.TriggerCLI, OrderRef: ref})
	order, err := a.Store.GetOrder(ctx, ref)
	if err != nil {
		return err
	}

	var target *actionqueue.ActionRecord
	for i, r := range order.Pending {
		if r.Kind == kind {
			target = &order.Pending[i]
			break
		}
	}
	switch {
	case target == nil:
		return fmt.Errorf("order %s has no pending %s action", ref, kind)
	case !a.Queue.IsBroken(*target):
		return fmt.Errorf("%s on order %s is not broken (%d of %d failures); it will be retried",
			kind, ref, target.FailedCount, a.Queue.Config().MaxRetries)
	}

	if !yes {
		if !interactive(cmd) {
			return errors.New("refusing to remove without confirmation; pass --yes")
		}
		if err := tui.ConfirmRemove(ref, *target, lastDetail(a.Audit, ref, kind)); err != nil {
			if errors.Is(err, tui.ErrAborted) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing removed.")
				return nil
			}
			return err
		}
	}

	removed, err := a.Queue.RemoveBroken(ctx, ref, kind)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%s on order %s could not be removed; it is no longer broken", kind, ref)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from order %s.\n", kind, ref)
	return nil
}

type attemptLister interface {
	ListAttempts(orderRef string, limit int) ([]auditlog.AuditEntry, error)
}

// lastDetail returns the error of the most recent attempt of kind.
func lastDetail(audit attemptLister, ref string, kind actionqueue.Kind) string {
	entries, err := audit.ListAttempts(ref, 20)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.Kind == string(kind) && e.Outcome == auditlog.OutcomeError {
			return e.Detail
		}
	}
	return ""
}
