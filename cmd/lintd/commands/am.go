package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/lintd/am"
	"github.com/teranos/lintd/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage lintd configuration",
	Long: `am - Manage lintd configuration ("I am")

Display and manage lintd settings.

Configuration sources (in order of precedence):
1. Environment variables (LINTD_* prefix, plus LINTD_PORT, LINTD_JULIA, LINTD_AUTO_START)
2. Project config (nearest lintd.toml, searching up from the working directory)
3. User config (~/.lintd/am.toml, or the file given with --config)
4. System config (/etc/lintd/config.toml)
5. Default values

Examples:
  lintd am show                      # Show current configuration
  lintd am show --sources            # Show where every setting came from
  lintd am get server.port           # Get one value
  lintd am set daemon.auto_start false
  lintd am validate                  # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective lintd configuration from all sources",
	Args:  cobra.NoArgs,
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., server.port, daemon.warmup_ms)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the user config",
	Long: `Write one setting to ~/.lintd/am.toml (or the --config file), keeping
every other setting. The previous file is kept as a rotating backup.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate that the current lintd configuration is usable",
	Args:  cobra.NoArgs,
	RunE:  runAmValidate,
}

var (
	configFormat string
	showSources  bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json")
	amShowCmd.Flags().BoolVar(&showSources, "sources", false, "List every setting with the source it came from")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	if showSources {
		return showSettingSources(cmd)
	}

	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(out, string(data))
	case "toml":
		data, err := am.Render(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# lintd configuration\n%s", data)
	default:
		return usageError("unsupported format: %s (supported: toml, json)", configFormat)
	}
	return nil
}

func showSettingSources(cmd *cobra.Command) error {
	if ConfigPath != "" {
		pterm.Warning.Printf("--sources reports the search path, not %s\n", ConfigPath)
	}
	pterm.Println("Configuration cascade (later overrides earlier):")
	pterm.Println("  1. [DEFAULT]  Built-in defaults")
	pterm.Println("  2. [SYSTEM]   " + am.SystemConfigPath)
	pterm.Println("  3. [USER]     " + am.UserConfigPath())
	pterm.Println("  4. [PROJECT]  ./" + am.ProjectConfigName + " (searches up directories)")
	pterm.Println("  5. [ENV]      LINTD_* environment variables")
	pterm.Println()

	for _, s := range am.Introspect() {
		source := string(s.Source)
		if s.SourcePath != "" && s.Source != am.SourceDefault {
			source += " " + s.SourcePath
		}
		pterm.Printf("  %-32s %-24v %s\n", s.Key, s.Value, pterm.Gray(source))
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	v := am.GetViper()
	if !v.IsSet(key) {
		return errors.Newf("configuration key %q not found", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.Get(key))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	path := activeConfigPath()
	if path == "" {
		return errors.New("cannot locate a user config file: HOME is not set")
	}
	if err := am.SetValue(path, args[0], args[1]); err != nil {
		return err
	}
	pterm.Success.Printf("Set %s = %s in %s\n", args[0], args[1], path)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	pterm.Success.Println("Configuration is valid")
	return nil
}

