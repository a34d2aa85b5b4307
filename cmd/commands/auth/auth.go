package auth

import (
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage payq secrets",
		Long: `Manage the secrets payq needs, stored in the OS keychain.

Secrets:
  provider   payment provider API key
  smtp       SMTP password for alert emails`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(LogoutCommand())
	cmd.AddCommand(StatusCommand())

	return cmd
}
