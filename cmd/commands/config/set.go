package config

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/payq/internal/config"
	"nathanbeddoewebdev/payq/internal/providers"
	"nathanbeddoewebdev/payq/internal/util"

	"github.com/spf13/cobra"
)

// SetCommand returns the "config set" command.
func SetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a persistent configuration value. An empty value clears the key.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  payq config set api-url https://api.creditpay.example/v2\n" +
			"  payq config set notify-to ops@example.com,finance@example.com\n" +
			"  payq config set retry-jitter 2m",
		Args:         cobra.ExactArgs(2),
		RunE:         runSet,
		SilenceUsage: true,
	}

	return cmd
}

// validators maps key names to extra checks that need more than the
// value itself. Keys not present in this map rely on KeySpec.Set.
var validators = map[string]func(value string) (string, error){
	"payment-method": validatePaymentMethod,
}

func runSet(cmd *cobra.Command, args []string) error {
	spec := config.Lookup(util.NormalizeKey(args[0]))
	if spec == nil {
		return fmt.Errorf("unknown configuration key %q (valid: %s)", args[0], strings.Join(config.KeyNames(), ", "))
	}

	value := strings.TrimSpace(args[1])
	if validate, ok := validators[spec.Name]; ok && value != "" {
		var err error
		if value, err = validate(value); err != nil {
			return err
		}
	}

	cfg, err := config.LoadFile()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := spec.Set(cfg, value); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if value == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", spec.Name)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s set to %q\n", spec.Name, value)
	}
	return nil
}

// validatePaymentMethod checks that a provider client is registered for
// the payment method.
func validatePaymentMethod(name string) (string, error) {
	normalized := util.NormalizeKey(name)
	known := providers.List()
	for _, p := range known {
		if p == normalized {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("unknown payment method %q (registered: %s)", name, strings.Join(known, ", "))
}
