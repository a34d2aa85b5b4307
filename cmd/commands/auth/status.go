package auth

import (
	"errors"
	"fmt"
	"os"

	"nathanbeddoewebdev/payq/internal/services/auth"
	"nathanbeddoewebdev/payq/internal/tui/styles"

	"golang.org/x/term"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which secrets are stored",
		Long: `Show which secrets are stored in the keychain. Values are never printed.

Example:
  payq auth status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := auth.DefaultStore()
			styled := isTerminal(cmd)

			for _, name := range auth.Secrets {
				_, err := store.GetToken(name)
				var state string
				switch {
				case err == nil:
					state = "stored"
				case errors.Is(err, auth.ErrTokenNotFound):
					state = "not stored"
				default:
					state = fmt.Sprintf("error (%v)", err)
				}
				if styled {
					state = statusStyle(err).Render(state)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, state)
			}
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}

func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func statusStyle(err error) lipgloss.Style {
	switch {
	case err == nil:
		return styles.SuccessText
	case errors.Is(err, auth.ErrTokenNotFound):
		return styles.MutedText
	default:
		return styles.ErrorText
	}
}
