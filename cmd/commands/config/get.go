package config

import (
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/payq/internal/config"
	"nathanbeddoewebdev/payq/internal/tui/styles"
	"nathanbeddoewebdev/payq/internal/util"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

// GetCommand returns the "config get" command.
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get a configuration value",
		Long: "Get a persistent configuration value, or list all values when no key\n" +
			"is given. Values from PAYQ_* environment variables are shown as they\n" +
			"apply; pass --file to see only what is saved.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  payq config get\n" +
			"  payq config get api-url",
		Args:         cobra.MaximumNArgs(1),
		RunE:         runGet,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("file", false, "Ignore environment overrides")

	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	fileOnly, _ := cmd.Flags().GetBool("file")
	load := config.Load
	if fileOnly {
		load = config.LoadFile
	}

	if len(args) == 0 {
		cfg, err := load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		styled := isTerminal(cmd)
		for _, spec := range config.Keys {
			value := spec.Get(cfg)
			switch {
			case value == "" && styled:
				value = styles.MutedText.Render("(not set)")
			case value == "":
				value = "(not set)"
			case styled:
				value = styles.Value.Render(value)
			}
			name := spec.Name + ":"
			if styled {
				name = styles.Label.Render(name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, value)
		}
		return nil
	}

	spec := config.Lookup(util.NormalizeKey(args[0]))
	if spec == nil {
		return fmt.Errorf("unknown configuration key %q (valid: %s)", args[0], strings.Join(config.KeyNames(), ", "))
	}

	cfg, err := load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value := spec.Get(cfg)
	if value == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "not set")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}
	return nil
}

func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
