package cli

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `View and edit config.toml. Changes take effect the next time redleaf starts.
Environment variables (REDLEAF_*) override values from the file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configured values",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value. When the value is omitted it is read from the
terminal without echo, which suits API keys.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configEditor == nil {
		return errors.New("config store not configured")
	}

	cmd.Printf("# %s\n", configEditor.Path())
	keys := configEditor.Keys()
	if len(keys) == 0 {
		cmd.Println("(no values set, defaults in use)")
		return nil
	}
	for _, key := range keys {
		val, _ := configEditor.Get(key)
		if s, ok := val.(string); ok && strings.HasSuffix(key, "api_key") {
			val = maskAPIKey(s)
		}
		cmd.Printf("%s = %v\n", key, val)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configEditor == nil {
		return errors.New("config store not configured")
	}

	key := strings.ToLower(args[0])
	if err := checkConfigKey(key); err != nil {
		return err
	}

	var raw string
	if len(args) == 2 {
		raw = args[1]
	} else {
		cmd.Printf("Value for %s: ", key)
		raw = readPassword()
		cmd.Println()
	}

	if err := configEditor.Set(key, parseConfigValue(raw)); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	cmd.Printf("Saved %s. Restart redleaf for the change to take effect.\n", key)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	if configEditor == nil {
		return errors.New("config store not configured")
	}

	key := strings.ToLower(args[0])
	if err := configEditor.Delete(key); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	cmd.Printf("Removed %s.\n", key)
	return nil
}

func checkConfigKey(key string) error {
	if len(configKeys) == 0 || slices.Contains(configKeys, key) {
		return nil
	}
	return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(configKeys, ", "))
}

// parseConfigValue keeps TOML types: integers, floats and booleans are
// stored as such, everything else as a string.
func parseConfigValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
