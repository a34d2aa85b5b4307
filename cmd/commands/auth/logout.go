package auth

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/payq/internal/services/auth"

	"github.com/spf13/cobra"
)

func LogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <secret>",
		Short: "Remove a secret from the keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := auth.NormalizeName(args[0])
			if err := auth.ValidateName(name); err != nil {
				return err
			}
			err := auth.DefaultStore().DeleteToken(name)
			switch {
			case errors.Is(err, auth.ErrTokenNotFound):
				fmt.Fprintf(cmd.OutOrStdout(), "No %s secret stored\n", name)
				return nil
			case err != nil:
				return fmt.Errorf("failed to remove secret: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s secret\n", name)
			return nil
		},
		SilenceUsage: true,
	}
}
