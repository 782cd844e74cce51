package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/bpmnchat/pkg/cliui"
	"github.com/papercomputeco/bpmnchat/pkg/config"
	"github.com/papercomputeco/bpmnchat/pkg/dotdir"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file stored in
the .bpmnchat/ directory. When no .bpmnchat/ directory exists yet, one is
created in the home directory. List keys take comma-separated values.

Examples:
  bpmnchat config set proxy.default_model deepseek
  bpmnchat config set stream.max_requeues 8
  bpmnchat config set payload.root_elements bpmn:definitions,definitions`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runSet(cmd, args[0], args[1], configDir)
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}

func runSet(cmd *cobra.Command, key, value, configDir string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfger.GetTarget() == "" {
		home, err := dotdir.NewManager().CreateHome()
		if err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
		cfger, err = config.NewConfiger(home)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(value),
	)
	return nil
}
