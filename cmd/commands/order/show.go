package order

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/app"
	"nathanbeddoewebdev/payq/internal/auditlog"
	"nathanbeddoewebdev/payq/internal/orderstore"
	"nathanbeddoewebdev/payq/internal/tui"

	"github.com/spf13/cobra"
)

func ShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <ref>",
		Short: "Show an order's queue, notes and attempts",
		Long: `Show the status of an order, its pending and completed actions, the
notes written by the queue and the most recent provider attempts.

Examples:
  payq order show 100
  payq order show 100 -o json`,
		Args:         cobra.ExactArgs(1),
		RunE:         runShow,
		SilenceUsage: true,
	}

	cmd.Flags().Int("attempts", 10, "Number of recent provider attempts to show")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

type pendingAction struct {
	actionqueue.ActionRecord
	State       string     `json:"state"`
	NextAttempt *time.Time `json:"next_attempt,omitempty"`
}

type orderDetail struct {
	Ref           string                     `json:"ref"`
	PaymentMethod string                     `json:"payment_method"`
	Status        string                     `json:"status"`
	Pending       []pendingAction            `json:"pending"`
	Done          []actionqueue.ActionRecord `json:"done"`
	Notes         []orderstore.Note          `json:"notes"`
	Attempts      []auditlog.AuditEntry      `json:"attempts"`
}

func runShow(cmd *cobra.Command, args []string) error {
	ref := args[0]
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}
	attempts, _ := cmd.Flags().GetInt("attempts")

	a, err := app.OpenDefault(app.Options{Offline: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	order, err := a.Store.GetOrder(ctx, ref)
	if err != nil {
		return err
	}
	notes, err := a.Store.Notes(ctx, ref)
	if err != nil {
		return err
	}
	var history []auditlog.AuditEntry
	if attempts > 0 {
		if history, err = a.Audit.ListAttempts(ref, attempts); err != nil {
			return err
		}
	}

	detail := orderDetail{
		Ref:           order.Ref,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		Pending:       make([]pendingAction, 0, len(order.Pending)),
		Done:          order.Done,
		Notes:         notes,
		Attempts:      history,
	}
	for _, r := range order.Pending {
		broken := a.Queue.IsBroken(r)
		p := pendingAction{ActionRecord: r, State: tui.ActionState(r, broken)}
		if r.FailedAt != nil && !broken {
			next := a.Queue.NextAttempt(ref, r)
			p.NextAttempt = &next
		}
		detail.Pending = append(detail.Pending, p)
	}

	if output == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(detail)
	}
	printDetail(cmd.OutOrStdout(), detail, time.Now())
	return nil
}

func printDetail(out io.Writer, d orderDetail, now time.Time) {
	fmt.Fprintf(out, "Order:          %s\n", d.Ref)
	fmt.Fprintf(out, "Payment method: %s\n", d.PaymentMethod)
	fmt.Fprintf(out, "Status:         %s\n", d.Status)

	fmt.Fprintln(out, "\nPending actions:")
	if len(d.Pending) == 0 {
		fmt.Fprintln(out, "  none")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  KIND\tSTATE\tFAILURES\tQUEUED\tNEXT ATTEMPT")
		for _, p := range d.Pending {
			next := time.Time{}
			if p.NextAttempt != nil {
				next = *p.NextAttempt
			}
			fmt.Fprintf(w, "  %s\t%s\t%d\t%s\t%s\n",
				p.Kind, p.State, p.FailedCount, formatTime(p.CreatedAt), tui.FormatNextAttempt(p.State, next, now))
		}
		w.Flush()
	}

	fmt.Fprintln(out, "\nCompleted actions:")
	if len(d.Done) == 0 {
		fmt.Fprintln(out, "  none")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  KIND\tQUEUED\tPROCESSED\tFAILURES")
		for _, r := range d.Done {
			processed := "-"
			if r.ProcessedAt != nil {
				processed = formatTime(*r.ProcessedAt)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%d\n", r.Kind, formatTime(r.CreatedAt), processed, r.FailedCount)
		}
		w.Flush()
	}

	fmt.Fprintln(out, "\nNotes:")
	if len(d.Notes) == 0 {
		fmt.Fprintln(out, "  none")
	}
	for _, n := range d.Notes {
		fmt.Fprintf(out, "  %s  %s\n", formatTime(n.CreatedAt), n.Body)
	}

	fmt.Fprintln(out, "\nRecent provider attempts:")
	if len(d.Attempts) == 0 {
		fmt.Fprintln(out, "  none")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tKIND\tATTEMPT\tTRIGGER\tOUTCOME\tDETAIL")
	for _, e := range d.Attempts {
		detail := e.Detail
		if detail == "" {
			detail = "-"
		}
		fmt.Fprintf(w, "  %s\t%s\t%d\t%s\t%s\t%s\n",
			formatTime(e.Timestamp), e.Kind, e.Attempt, e.Trigger, e.Outcome, detail)
	}
	w.Flush()
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
