package queue

import (
	"io"
	"log"
	"os"

	"nathanbeddoewebdev/payq/internal/app"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

// NewCommand returns the "queue" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Enqueue, process and inspect provider actions",
		Long: "Work with the per-order action queue: enqueue new actions, attempt them\n" +
			"now, sweep every order, list what is waiting and remove broken actions\n" +
			"after the problem was resolved with the provider.\n\n" +
			"Kinds: confirm, shipped, invoice, cancel, refund, reverse_cancel.",
		SilenceUsage: true,
	}

	cmd.AddCommand(EnqueueCommand())
	cmd.AddCommand(ProcessCommand())
	cmd.AddCommand(SweepCommand())
	cmd.AddCommand(ListCommand())
	cmd.AddCommand(RemoveCommand())

	return cmd
}

// openApp opens the queue for a command. Offline apps never reach the
// provider and need no API key.
func openApp(cmd *cobra.Command, offline bool) (*app.App, error) {
	return app.OpenDefault(app.Options{
		Logger:   logger(cmd),
		AlertOut: cmd.ErrOrStderr(),
		Offline:  offline,
	})
}

// logger returns a stderr logger when --verbose is set on the root command.
func logger(cmd *cobra.Command) *log.Logger {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// interactive reports whether prompts and spinners can be shown.
func interactive(cmd *cobra.Command) bool {
	return isTerminal(cmd.InOrStdin()) && isTerminal(cmd.ErrOrStderr())
}
