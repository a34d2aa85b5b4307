package cmd

import (
	"os"
	"slices"
	"strings"
	"time"

	"nathanbeddoewebdev/payq/cmd/commands/audit"
	"nathanbeddoewebdev/payq/cmd/commands/auth"
	cfgcmd "nathanbeddoewebdev/payq/cmd/commands/config"
	"nathanbeddoewebdev/payq/cmd/commands/order"
	"nathanbeddoewebdev/payq/cmd/commands/queue"
	"nathanbeddoewebdev/payq/cmd/commands/serve"
	"nathanbeddoewebdev/payq/internal/app"
	"nathanbeddoewebdev/payq/internal/auditlog"
	"nathanbeddoewebdev/payq/internal/providers"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "payq",
		Short: "Relay order transitions to a payment provider with retries",
		Long: `payq keeps a per-order queue of actions (confirm, ship, invoice, cancel,
refund, reverse-cancel) for orders paid through a credit/invoice payment
provider, and drives each action to completion with bounded retries.
Actions that keep failing are frozen and reported to an operator.

Quick start:
  payq auth login provider             # Store the provider API key
  payq config set api-url https://...  # Point payq at the provider
  payq order add 100                   # Register an order
  payq queue enqueue 100 confirm       # Queue an action
  payq queue process 100               # Attempt it now
  payq serve                           # Run the sweep daemon`,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log queue activity to stderr")

	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(order.NewCommand())
	cmd.AddCommand(queue.NewCommand())
	cmd.AddCommand(audit.NewCommand())
	cmd.AddCommand(serve.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	providers.RegisterDefaults()

	var root = rootCmd()
	start := time.Now()
	executed, err := root.ExecuteC()
	recordCommand(executed, err, start)
	if err != nil {
		os.Exit(1)
	}
}

// unaudited lists command paths whose runs are not written to the audit
// log: reading the log itself, and commands that only print help.
var unaudited = []string{"payq", "payq audit", "payq audit list", "payq help", "payq completion"}

// recordCommand writes a best-effort audit entry for the executed command.
// Failures to open or write the log are discarded so that auditing never
// changes a command's outcome.
func recordCommand(executed *cobra.Command, err error, start time.Time) {
	if executed == nil {
		return
	}
	path := executed.CommandPath()
	if slices.Contains(unaudited, path) || strings.HasPrefix(path, "payq completion") {
		return
	}

	settings, loadErr := app.LoadSettings()
	if loadErr != nil {
		return
	}
	repo, openErr := app.OpenAudit(settings)
	if openErr != nil {
		return
	}
	defer repo.Close()

	entry := &auditlog.AuditEntry{
		Timestamp:  start.UTC(),
		Command:    path,
		Args:       strings.Join(auditlog.SanitizeArgs(os.Args[1:]), " "),
		Trigger:    auditlog.TriggerCLI,
		DurationMs: time.Since(start).Milliseconds(),
		Outcome:    auditlog.OutcomeSuccess,
	}
	if args := executed.Flags().Args(); len(args) > 0 && takesOrderRef(path) {
		entry.OrderRef = args[0]
	}
	if err != nil {
		entry.Outcome = auditlog.OutcomeError
		entry.Detail = auditlog.SanitizeDetail(err.Error())
	}
	_ = repo.Save(entry)
}

func takesOrderRef(path string) bool {
	return strings.HasPrefix(path, "payq order ") || strings.HasPrefix(path, "payq queue ")
}
