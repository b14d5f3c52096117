package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/phylo/am"
	"github.com/teranos/phylo/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage phylo configuration",
	Long: `am - Manage phylo configuration ("I am")

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (PHYLO_* prefix)
3. Project config (./am.toml, searched upward)
4. User config (~/.phylo/am.toml)
5. System config (/etc/phylo/am.toml)
6. Default values

Examples:
  phylo am show                       # Show current configuration
  phylo am show --format json         # Show configuration in JSON format
  phylo am show --sources             # Show where each value comes from
  phylo am get server.port            # Get specific config value
  phylo am set server.port 9090       # Write a value to the project am.toml
  phylo am validate                   # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective phylo configuration merged from all sources",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, server.rate_limit.burst)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the project config",
	Long: `Write a value to the nearest project am.toml (or ./am.toml when none exists).

The previous file is kept as am.toml.back1 (up to three backups). The new
configuration is validated before anything is written.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate that the current phylo configuration is valid",
	RunE:  runAmValidate,
}

var (
	configFormat  string
	configSources bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amShowCmd.Flags().BoolVar(&configSources, "sources", false, "Show the source of every setting")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	if configSources {
		settings, err := am.Introspect()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		return pterm.DefaultTable.WithHasHeader().WithData(sourcesTable(settings)).Render()
	}

	if _, err := am.Load(); err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	return writeSettings(cmd.OutOrStdout(), am.GetViper().AllSettings(), configFormat)
}

// writeSettings marshals the merged settings map in format.
func writeSettings(w io.Writer, settings map[string]interface{}, format string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = json.MarshalIndent(settings, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	case "yaml":
		data, err = yaml.Marshal(settings)
	case "toml":
		data, err = toml.Marshal(settings)
	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", format)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to marshal config to %s", format)
	}
	if format != "json" {
		fmt.Fprintln(w, "# phylo configuration")
	}
	_, err = w.Write(data)
	return err
}

func sourcesTable(settings []am.SettingInfo) pterm.TableData {
	data := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range settings {
		value := fmt.Sprintf("%v", s.Value)
		if len(value) > 50 {
			value = value[:47] + "..."
		}
		data = append(data, []string{s.Key, value, string(s.Source), s.SourcePath})
	}
	return data
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if _, err := am.Load(); err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if !am.GetViper().IsSet(key) {
		return errors.Newf("configuration key %q not found", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	path := am.FindProjectConfig()
	if path == "" {
		path = am.ProjectConfigName
	}
	if err := am.SetValue(path, args[0], args[1]); err != nil {
		return err
	}
	pterm.Success.Printf("Set %s in %s\n", args[0], path)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	pterm.Success.Println("Configuration is valid")
	return nil
}
