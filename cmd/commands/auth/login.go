package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/payq/internal/services/auth"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <secret>",
		Short: "Store a secret in the keychain",
		Long: `Store a secret using the local keychain. Without --token the value is
read from a hidden prompt, or from the first line of stdin when stdin is
not a terminal.

Examples:
  payq auth login provider
  payq auth login smtp --token "$SMTP_PASSWORD"
  echo "$PROVIDER_KEY" | payq auth login provider`,
		Args:         cobra.ExactArgs(1),
		RunE:         runLogin,
		SilenceUsage: true,
	}

	cmd.Flags().String("token", "", "Secret value (optional, overrides prompt)")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	name := auth.NormalizeName(args[0])
	if err := auth.ValidateName(name); err != nil {
		return err
	}

	token, _ := cmd.Flags().GetString("token")
	token = strings.TrimSpace(token)
	if token == "" {
		var err error
		if token, err = readSecret(cmd); err != nil {
			return err
		}
	}
	if token == "" {
		return fmt.Errorf("secret cannot be empty")
	}

	if err := auth.DefaultStore().SetToken(name, token); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s secret\n", name)
	return nil
}

func readSecret(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Enter secret: ")
		bytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", scanner.Err()
}
