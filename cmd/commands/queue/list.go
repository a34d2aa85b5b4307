package queue

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/orderstore"
	"nathanbeddoewebdev/payq/internal/tui"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending actions",
		Long: `List every pending action of orders paid with the configured payment
method, in queue order per order.

Examples:
  payq queue list
  payq queue list --broken
  payq queue list -o json`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("broken", false, "Only show broken actions")
	cmd.Flags().Int("limit", 500, "Maximum number of orders to scan")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

type queueEntry struct {
	OrderRef    string            `json:"order_ref"`
	Status      string            `json:"status"`
	Position    int               `json:"position"`
	Kind        actionqueue.Kind  `json:"kind"`
	State       string            `json:"state"`
	FailedCount int               `json:"failed_count"`
	FailedAt    *time.Time        `json:"failed_at,omitempty"`
	NextAttempt *time.Time        `json:"next_attempt,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

func runList(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}
	brokenOnly, _ := cmd.Flags().GetBool("broken")
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	orders, err := a.Store.ListOrders(cmd.Context(), orderstore.ListFilter{
		PaymentMethod: a.Settings.PaymentMethod,
		PendingOnly:   true,
		Limit:         limit,
	})
	if err != nil {
		return err
	}

	entries := []queueEntry{}
	for _, o := range orders {
		for i, r := range o.Pending {
			broken := a.Queue.IsBroken(r)
			if brokenOnly && !broken {
				continue
			}
			e := queueEntry{
				OrderRef:    o.Ref,
				Status:      o.Status,
				Position:    i + 1,
				Kind:        r.Kind,
				State:       tui.ActionState(r, broken),
				FailedCount: r.FailedCount,
				FailedAt:    r.FailedAt,
				Data:        r.Data,
			}
			if r.FailedAt != nil && !broken {
				next := a.Queue.NextAttempt(o.Ref, r)
				e.NextAttempt = &next
			}
			entries = append(entries, e)
		}
	}

	out := cmd.OutOrStdout()
	if output == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}

	if len(entries) == 0 {
		if brokenOnly {
			fmt.Fprintln(out, "No broken actions.")
		} else {
			fmt.Fprintln(out, "No pending actions.")
		}
		return nil
	}

	now := time.Now()
	if isTerminal(out) {
		rows := make([]tui.QueueRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, tui.QueueRow{
				OrderRef:    e.OrderRef,
				Status:      e.Status,
				Kind:        e.Kind,
				State:       e.State,
				FailedCount: e.FailedCount,
				NextAttempt: nextOrZero(e.NextAttempt),
			})
		}
		fmt.Fprintln(out, tui.QueueTable(rows, now))
		return nil
	}
	printEntries(out, entries, now)
	return nil
}

func printEntries(out io.Writer, entries []queueEntry, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tSTATUS\t#\tACTION\tSTATE\tFAILURES\tNEXT ATTEMPT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
			e.OrderRef, e.Status, e.Position, e.Kind, e.State, e.FailedCount,
			tui.FormatNextAttempt(e.State, nextOrZero(e.NextAttempt), now))
	}
	w.Flush()
}

func nextOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

