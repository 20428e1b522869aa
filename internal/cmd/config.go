package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/eegrec/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify eegrec configuration",
	Long: `View or modify eegrec configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  eegrec config set record.synth false
  eegrec config set board.serial_port /dev/ttyUSB0
  eegrec config set record.polls 0

Run 'eegrec config show' to see every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/eegrec/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// settableKeys lists the keys 'config set' accepts and their value types.
var settableKeys = map[string]string{
	"record.synth":            "bool",
	"record.buffer_seconds":   "int",
	"record.polls":            "int",
	"record.poll_interval_ms": "int",
	"record.archive_dir":      "string",
	"record.write_metadata":   "bool",
	"board.real":              "string",
	"board.serial_port":       "string",
	"board.mac_address":       "string",
	"board.ip_address":        "string",
	"board.ip_port":           "int",
	"board.timeout_seconds":   "int",
	"board.ring_buffer_size":  "int",
	"logging.debug":           "bool",
	"logging.level":           "string",
	"logging.file":            "bool",
	"logging.max_size_mb":     "int",
	"logging.max_backups":     "int",
	"logging.compress":        "bool",
	"upload.bucket":           "string",
	"upload.region":           "string",
	"upload.prefix":           "string",
	"upload.endpoint":         "string",
	"upload.create_bucket":    "bool",
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	keyType, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'eegrec config show' to see valid keys", key)
	}

	var typedValue any
	switch keyType {
	case "string":
		typedValue = value
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = b
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		typedValue = n
	}

	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		return err
	}

	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

const defaultConfigContent = `# eegrec configuration

record:
  # Record from the synthetic board; false records from board.real
  synth: true
  # Seconds the board buffers before the first poll
  buffer_seconds: 3
  # Number of polls; 0 records until interrupted
  polls: 3
  poll_interval_ms: 1000
  archive_dir: sessions_archive
  write_metadata: true

board:
  # cyton, cyton_daisy or gui_stream
  real: cyton_daisy
  # At least one connection parameter is required for a real board
  serial_port: ""
  mac_address: ""
  ip_address: ""
  ip_port: 0
  timeout_seconds: 0
  ring_buffer_size: 450000

logging:
  debug: true
  level: info
  # JSON log at <archive_dir>/eegrec.log
  file: true
  max_size_mb: 10
  max_backups: 3
  compress: false

upload:
  # S3 bucket for 'eegrec sessions upload'; credentials come from the AWS environment
  bucket: ""
  region: ""
  # Keys are <prefix>/<date>/<session>/<file>
  prefix: ""
  # Set to use an S3-compatible service such as MinIO
  endpoint: ""
  create_bucket: true
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'eegrec config set' to modify values", configFile)
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize eegrec's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintln(out, "  2. $HOME/.config/eegrec/config.yaml")
	fmt.Fprintln(out, "  3. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nEnvironment variables: EEGREC_* (e.g., %s)\n", envName("record.archive_dir"))
	return nil
}

func envName(key string) string {
	return "EEGREC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
