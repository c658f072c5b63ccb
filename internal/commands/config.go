package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/diogo/muralguide/internal/config"
)

type configOptions struct {
	get   string
	init  bool
	force bool
}

// NewConfigCmd creates the config command
func NewConfigCmd(deps *Dependencies) *cobra.Command {
	var opts configOptions

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the configuration",
		Long: `Show the effective configuration: the config file with environment
variables applied on top. API keys are never printed.

Examples:
  muralguide config                      Print the effective configuration
  muralguide config --get server.listen_addr
  muralguide config --init               Write the defaults to the config file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(deps, opts)
		},
	}

	cmd.Flags().StringVar(&opts.get, "get", "", "Print a single value by path (e.g. markdown.style)")
	cmd.Flags().BoolVar(&opts.init, "init", false, "Write the default configuration file")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing file with --init")
	return cmd
}

func runConfig(deps *Dependencies, opts configOptions) error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return err
	}

	if opts.init {
		if _, err := os.Stat(configPath); err == nil && !opts.force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(deps.Stdout, "Default configuration written to %s\n", configPath)
		return nil
	}

	cfg, err := deps.config()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if opts.get != "" {
		value := gjson.GetBytes(data, opts.get)
		if !value.Exists() {
			return fmt.Errorf("unknown config key %q", opts.get)
		}
		fmt.Fprintln(deps.Stdout, value.String())
		return nil
	}

	cookiesPath, _ := config.GetCookiesPath()
	fmt.Fprintf(deps.Stdout, "# config:  %s\n# cookies: %s\n", configPath, cookiesPath)
	fmt.Fprintln(deps.Stdout, string(data))
	return nil
}
