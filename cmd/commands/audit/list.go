package audit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/payq/internal/auditlog"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit entries",
		Long: `List recent audit entries, newest first.

Examples:
  payq audit list
  payq audit list --limit 50
  payq audit list --order 100
  payq audit list --order 100 --attempts
  payq audit list --command "payq queue remove"
  payq audit list -o json`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", 25, "Number of entries to display")
	cmd.Flags().String("command", "", "Filter by exact command path")
	cmd.Flags().String("order", "", "Filter by order reference")
	cmd.Flags().Bool("attempts", false, "Only show provider requests (requires --order)")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")
	cmd.MarkFlagsMutuallyExclusive("command", "order")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}

	command, _ := cmd.Flags().GetString("command")
	order, _ := cmd.Flags().GetString("order")
	attempts, _ := cmd.Flags().GetBool("attempts")
	if attempts && order == "" {
		return fmt.Errorf("--attempts requires --order")
	}
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = "table"
	}
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	var entries []auditlog.AuditEntry
	switch {
	case attempts:
		entries, err = repo.ListAttempts(order, limit)
	case order != "":
		entries, err = repo.ListByOrder(order, limit)
	case command != "":
		entries, err = repo.ListByCommand(command, limit)
	default:
		entries, err = repo.List(limit)
	}
	if err != nil {
		return err
	}

	if output == "json" {
		if entries == nil {
			entries = []auditlog.AuditEntry{}
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit entries found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOMMAND\tTRIGGER\tORDER\tATTEMPT\tOUTCOME\tDURATION\tDETAIL")
	fmt.Fprintln(w, "----\t-------\t-------\t-----\t-------\t-------\t--------\t------")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
			entry.Command,
			orDash(entry.Trigger),
			orDash(entry.OrderRef),
			formatAttempt(entry),
			entry.Outcome,
			formatDuration(entry.DurationMs),
			orDash(entry.Detail),
		)
	}
	w.Flush()
	return nil
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

// formatAttempt shows "#n" for provider requests and "-" for commands.
func formatAttempt(entry auditlog.AuditEntry) string {
	if entry.Kind == "" || entry.Attempt == 0 {
		return "-"
	}
	return "#" + strconv.Itoa(entry.Attempt)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
