package config

import (
	"nathanbeddoewebdev/payq/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage payq configuration",
		Long: "View and modify persistent payq settings.\n\n" +
			"Configuration is stored at ~/.config/payq/config.json. Every key can be\n" +
			"overridden with a PAYQ_* environment variable (e.g. PAYQ_API_URL).\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())

	return cmd
}
