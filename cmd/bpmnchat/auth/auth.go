// Package authcmder provides the auth command for storing provider API keys.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/bpmnchat/pkg/cliui"
	"github.com/papercomputeco/bpmnchat/pkg/config"
	"github.com/papercomputeco/bpmnchat/pkg/credentials"
)

const authLongDesc string = `Store API keys for provider routes.

Keys are stored in credentials.toml in the .bpmnchat/ directory. The proxy
uses a stored key when the environment variable its route names (for
example DEEPSEEK_API_KEY) is not set.

Routes come from the [providers.<name>] tables of config.toml; "chatgpt" and
"deepseek" are available by default.

Examples:
  bpmnchat auth deepseek              Prompt for the deepseek route's key
  bpmnchat auth --list                List stored credentials
  bpmnchat auth --remove chatgpt      Remove the chatgpt route's key
  echo $KEY | bpmnchat auth chatgpt   Pipe the key from stdin`

const authShortDesc string = "Store API keys for provider routes"

type authCommander struct {
	configDir string
	routes    map[string]config.ProviderConfig
	in        io.Reader
	out       io.Writer
}

func NewAuthCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string

	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := config.Resolve(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.routes = cfg.Providers
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			switch {
			case listFlag:
				return cmder.runList()
			case removeFlag != "":
				return cmder.runRemove(removeFlag)
			default:
				if len(args) == 0 {
					return fmt.Errorf("provider argument required\n\nConfigured providers: %s",
						strings.Join(cmder.routeNames(), ", "))
				}
				return cmder.runAuth(args[0])
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return sortedNames(config.NewDefaultConfig().Providers), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored credentials")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove stored credentials for a provider")

	return cmd
}

func (c *authCommander) routeNames() []string {
	return sortedNames(c.routes)
}

func sortedNames(routes map[string]config.ProviderConfig) []string {
	names := make([]string, 0, len(routes))
	for name := range routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *authCommander) runAuth(provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))

	if !slices.Contains(c.routeNames(), provider) {
		return fmt.Errorf("unknown provider: %q\n\nConfigured providers: %s",
			provider, strings.Join(c.routeNames(), ", "))
	}

	envVar := c.routes[provider].APIKeyEnv

	apiKey, err := c.readAPIKey(provider, envVar)
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetKey(provider, apiKey); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored %s credentials", cliui.SuccessMark, cliui.NameStyle.Render(provider))
	if envVar != "" {
		fmt.Fprintf(c.out, " %s", cliui.DimStyle.Render("(used when "+envVar+" is unset)"))
	} else {
		fmt.Fprintf(c.out, "\n  %s The %s route names no api_key_env, so the key is not used.",
			cliui.WarnMark, provider)
	}
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out)
	return nil
}

func (c *authCommander) runList() error {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	creds, err := mgr.Load()
	if err != nil {
		return err
	}

	if len(creds.Providers) == 0 {
		fmt.Fprintf(c.out, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(c.out, "  Use 'bpmnchat auth <provider>' to store credentials.\n")
		fmt.Fprintf(c.out, "  Configured providers: %s\n\n", strings.Join(c.routeNames(), ", "))
		return nil
	}

	providers, err := mgr.ListProviders()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored credentials"))
	for _, p := range providers {
		cred := creds.Providers[p]
		line := fmt.Sprintf("  %s  %s  %s", cliui.SuccessMark, cliui.NameStyle.Render(p), cred.Masked())
		if envVar := c.routes[p].APIKeyEnv; envVar != "" {
			line += "  " + cliui.DimStyle.Render("→ "+envVar)
		}
		if !cred.UpdatedAt.IsZero() {
			line += "  " + cliui.DimStyle.Render("updated "+cred.UpdatedAt.Format(time.DateOnly))
		}
		fmt.Fprintln(c.out, line)
	}
	fmt.Fprintln(c.out)

	return nil
}

func (c *authCommander) runRemove(provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveKey(provider); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Removed %s credentials.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(provider))

	return nil
}

// readAPIKey reads an API key from the command input. A terminal gets a
// hidden prompt; anything else is read up to the first newline.
func (c *authCommander) readAPIKey(provider, envVar string) (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(c.out, "Enter API key for %s (%s): ", provider, envVar)

		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(keyBytes), nil
	}

	scanner := bufio.NewScanner(c.in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
