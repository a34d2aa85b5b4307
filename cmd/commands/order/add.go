package order

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/payq/internal/app"
	"nathanbeddoewebdev/payq/internal/orderstore"
	"nathanbeddoewebdev/payq/internal/util"

	"github.com/spf13/cobra"
)

func AddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <ref>",
		Short: "Register an order",
		Long: `Register an order in the local store. The payment method defaults to the
one configured for payq, so the order's actions are handled by the queue.

Examples:
  payq order add SO-2026-0042
  payq order add 100 --payment-method paypal --status pending`,
		Args:         cobra.ExactArgs(1),
		RunE:         runAdd,
		SilenceUsage: true,
	}

	cmd.Flags().String("payment-method", "", "Payment method of the order (default: configured payment-method)")
	cmd.Flags().String("status", orderstore.DefaultStatus, "Initial order status")

	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	ref := args[0]
	if err := util.ValidateOrderRef(ref); err != nil {
		return err
	}

	a, err := app.OpenDefault(app.Options{Offline: true})
	if err != nil {
		return err
	}
	defer a.Close()

	method, _ := cmd.Flags().GetString("payment-method")
	if method == "" {
		method = a.Settings.PaymentMethod
	}
	status, _ := cmd.Flags().GetString("status")

	if err := a.Store.CreateOrder(cmd.Context(), ref, method, status); err != nil {
		if errors.Is(err, orderstore.ErrOrderExists) {
			return fmt.Errorf("order %s already exists", ref)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Order %s added (payment method %s, status %s).\n", ref, method, status)
	return nil
}
