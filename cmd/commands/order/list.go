package order

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/payq/internal/app"
	"nathanbeddoewebdev/payq/internal/orderstore"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		Long: `List orders in the local store.

Examples:
  payq order list
  payq order list --status error
  payq order list --pending -o json`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().String("status", "", "Only orders with this status")
	cmd.Flags().String("payment-method", "", "Only orders with this payment method")
	cmd.Flags().Bool("pending", false, "Only orders with queued actions")
	cmd.Flags().Int("limit", 100, "Maximum number of orders")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

type orderSummary struct {
	Ref           string `json:"ref"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
	Pending       int    `json:"pending"`
	Done          int    `json:"done"`
}

func runList(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}

	var filter orderstore.ListFilter
	filter.Status, _ = cmd.Flags().GetString("status")
	filter.PaymentMethod, _ = cmd.Flags().GetString("payment-method")
	filter.PendingOnly, _ = cmd.Flags().GetBool("pending")
	filter.Limit = limit

	a, err := app.OpenDefault(app.Options{Offline: true})
	if err != nil {
		return err
	}
	defer a.Close()

	orders, err := a.Store.ListOrders(cmd.Context(), filter)
	if err != nil {
		return err
	}

	summaries := make([]orderSummary, 0, len(orders))
	for _, o := range orders {
		summaries = append(summaries, orderSummary{
			Ref:           o.Ref,
			PaymentMethod: o.PaymentMethod,
			Status:        o.Status,
			Pending:       len(o.Pending),
			Done:          len(o.Done),
		})
	}

	if output == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No orders found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tPAYMENT METHOD\tSTATUS\tPENDING\tDONE")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", s.Ref, s.PaymentMethod, s.Status, s.Pending, s.Done)
	}
	return w.Flush()
}
