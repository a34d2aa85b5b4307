package audit

import (
	"nathanbeddoewebdev/payq/internal/app"
	"nathanbeddoewebdev/payq/internal/auditlog"

	"github.com/spf13/cobra"
)

// NewCommand returns the "audit" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "View and prune the audit trail",
		Long: "View the local audit trail and prune old entries.\n\n" +
			"The trail holds every payq command and every provider request made by\n" +
			"the queue, whether it ran from the CLI, an order event or a sweep.\n" +
			"It is stored in the payq database next to the orders.",
		SilenceUsage: true,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(PruneCommand())

	return cmd
}

func openRepo() (*auditlog.SQLiteRepository, error) {
	settings, err := app.LoadSettings()
	if err != nil {
		return nil, err
	}
	return app.OpenAudit(settings)
}
