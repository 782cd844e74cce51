// Package configcmder provides the config command for managing persistent
// bpmnchat configuration stored in the .bpmnchat/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/bpmnchat/pkg/config"
)

const configLongDescFormat string = `Manage persistent bpmnchat configuration.

Configuration is stored as config.toml in the .bpmnchat/ directory and provides
default values for command flags. CLI flags and BPMNCHAT_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
%s

Provider routes live in [providers.<name>] tables and are edited in the file
directly.

Use subcommands to get, set, or list configuration values:
  bpmnchat config set <key> <value>    Set a configuration value
  bpmnchat config get <key>            Get a configuration value
  bpmnchat config list                 List all configuration values

Examples:
  bpmnchat config set client.model deepseek
  bpmnchat config set eventstream.kafka_brokers broker1:9092,broker2:9092
  bpmnchat config get stream.max_requeues
  bpmnchat config list`

const configShortDesc string = "Manage persistent bpmnchat configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  fmt.Sprintf(configLongDescFormat, keysBySection()),
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// keysBySection lists the valid keys one TOML section per line.
func keysBySection() string {
	var lines []string
	var section []string
	prev := ""
	for _, key := range config.ValidConfigKeys() {
		name, _, _ := strings.Cut(key, ".")
		if name != prev && len(section) > 0 {
			lines = append(lines, "  "+strings.Join(section, ", "))
			section = nil
		}
		prev = name
		section = append(section, key)
	}
	if len(section) > 0 {
		lines = append(lines, "  "+strings.Join(section, ", "))
	}
	return strings.Join(lines, "\n")
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
