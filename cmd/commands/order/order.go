package order

import "github.com/spf13/cobra"

// NewCommand returns the "order" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Register and inspect orders",
		Long: "Register orders in the local store and inspect their queued actions,\n" +
			"notes and provider attempts.",
		SilenceUsage: true,
	}

	cmd.AddCommand(AddCommand())
	cmd.AddCommand(ListCommand())
	cmd.AddCommand(ShowCommand())

	return cmd
}
