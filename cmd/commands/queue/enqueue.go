package queue

import (
	"fmt"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/auditlog"
	"nathanbeddoewebdev/payq/internal/util"

	"github.com/spf13/cobra"
)

func EnqueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue <ref> <kind>",
		Short: "Queue an action for an order",
		Long: `Queue an action for an order. Queueing a kind that is already pending for
the order does nothing. The provider is not called; use 'payq queue
process' or wait for the next sweep.

Data keys used by the provider:
  shipped   tracking_number (required), carrier
  invoice   invoice_number, amount
  refund    amount (required), reason
  cancel    reason

Examples:
  payq queue enqueue 100 confirm
  payq queue enqueue 100 shipped --data tracking_number=1Z999,carrier=UPS
  payq queue enqueue 100 refund --data amount=19.90 --data reason="damaged"`,
		Args:         cobra.ExactArgs(2),
		RunE:         runEnqueue,
		SilenceUsage: true,
	}

	cmd.Flags().StringToString("data", nil, "Action data as key=value pairs")

	return cmd
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	ref := args[0]
	if err := util.ValidateOrderRef(ref); err != nil {
		return err
	}
	kind, err := actionqueue.ParseKind(args[1])
	if err != nil {
		return err
	}
	data, _ := cmd.Flags().GetStringToString("data")

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := auditlog.WithMetadata(cmd.Context(), auditlog.Metadata{Trigger: auditlog.TriggerCLI, OrderRef: ref})
	if _, err := a.Store.GetOrder(ctx, ref); err != nil {
		return err
	}
	queued, err := a.Queue.Enqueue(ctx, ref, kind, data)
	if err != nil {
		return err
	}
	if !queued {
		fmt.Fprintf(cmd.OutOrStdout(), "Order %s is not paid with %s; nothing queued.\n", ref, a.Settings.PaymentMethod)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Queued %s for order %s.\n", kind, ref)
	return nil
}
