package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"restack/internal/editor"
	"restack/internal/errors"
	"restack/internal/paths"
	"restack/pkg/fileutil"
)

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage restack configuration",
	Long: `Manage restack configuration stored in ~/.config/restack/config.yaml.

Without a subcommand, lists the effective configuration, including
values supplied by defaults and RESTACK_* environment variables.`,
	Example: `  # List effective configuration
  restack config

  # Get a specific value
  restack config get stack_root

  # Set a value
  restack config set probe_timeout 30s

See Also: restack doctor, restack run`,
	RunE: runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a single configuration value by key.

Keys: stack_root, packages_dir, desktop_config, manifest, node_bin,
probe_timeout, version.`,
	Example: `  # Where the stack lives
  restack config get stack_root

  # Per-server validation timeout
  restack config get probe_timeout

See Also: restack config set, restack config list`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and write it to the config file.

probe_timeout takes a Go duration string (e.g. 30s, 2m). Path values
are stored as given; relative paths resolve against the working
directory at run time.`,
	Example: `  # Point at a different desktop config
  restack config set desktop_config ~/test/claude_desktop_config.json

  # Give slow servers more time
  restack config set probe_timeout 30s

See Also: restack config get, restack config list`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List effective configuration",
	Long:  `List the effective configuration values in YAML format.`,
	Example: `  # List effective configuration
  restack config list

See Also: restack config get, restack config set`,
	RunE: runConfigList,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open configuration in $EDITOR",
	Long: `Open the configuration file in your default editor.

Uses $EDITOR, falling back to $VISUAL, then nano, then vi. If no
configuration file exists yet, one is written with the current
effective values first.`,
	Example: `  # Open config in default editor
  restack config edit

  # Open with a specific editor
  EDITOR=nano restack config edit

See Also: restack config list`,
	RunE: runConfigEdit,
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	if !viper.IsSet(key) {
		fmt.Fprintln(cmd.OutOrStdout(), "not set")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), viper.GetString(key))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	switch key {
	case "probe_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.NewUserError(errors.Wrapf(err, "invalid duration %q", value),
				"probe_timeout takes a Go duration, e.g. 30s or 2m")
		}
		if d <= 0 {
			return errors.NewUserError(errors.New("probe_timeout must be positive"), "")
		}
		viper.Set(key, d.String())

	case "version":
		viper.Set(key, value)

	case "stack_root", "packages_dir", "desktop_config", "manifest", "node_bin":
		viper.Set(key, value)

	default:
		return errors.NewUserError(errors.Newf("unknown configuration key %q", key),
			"Keys: stack_root, packages_dir, desktop_config, manifest, node_bin, probe_timeout, version")
	}

	if err := writeConfig(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	data, err := yaml.Marshal(effectiveConfig())
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigEdit(_ *cobra.Command, _ []string) error {
	configPath := filepath.Join(paths.ConfigDir(), "config.yaml")

	// Seed a file so the editor has something to open.
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeConfig(); err != nil {
			return err
		}
	}

	if err := editor.Open(configPath); err != nil {
		return errors.Wrap(err, "opening editor")
	}
	return nil
}

// effectiveConfig snapshots the values viper resolved from file, env,
// and defaults, in the shape the config file uses.
func effectiveConfig() map[string]any {
	return map[string]any{
		"version":        viper.GetInt("version"),
		"stack_root":     viper.GetString("stack_root"),
		"packages_dir":   viper.GetString("packages_dir"),
		"desktop_config": viper.GetString("desktop_config"),
		"manifest":       viper.GetString("manifest"),
		"node_bin":       viper.GetString("node_bin"),
		"probe_timeout":  viper.GetDuration("probe_timeout").String(),
	}
}

// writeConfig writes the current viper configuration to the config file.
func writeConfig() error {
	configPath := filepath.Join(paths.ConfigDir(), "config.yaml")

	if err := paths.EnsureDir(filepath.Dir(configPath), 0); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	if err := fileutil.AtomicWriteYAML(configPath, effectiveConfig()); err != nil {
		return errors.Wrap(err, "writing config file")
	}
	return nil
}
