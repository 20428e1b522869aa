package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/eegrec/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "eegrec",
	Short: "Record EEG sessions from an OpenBCI board",
	Long: `eegrec streams samples from an OpenBCI Cyton (optionally with the Daisy
expansion) or from a synthetic board, and appends them to a CSV file in a
dated, numbered session directory:

  sessions_archive/2024_05_01/Session_1_SYNTH/raw_data.csv

Without a subcommand, eegrec records one session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRecord,
}

// flagKeys maps flag names to the configuration keys they override.
var flagKeys = map[string]string{
	"config":           "config",
	"archive":          "record.archive_dir",
	"synth":            "record.synth",
	"buffer":           "record.buffer_seconds",
	"polls":            "record.polls",
	"interval-ms":      "record.poll_interval_ms",
	"metadata":         "record.write_metadata",
	"board":            "board.real",
	"serial-port":      "board.serial_port",
	"mac-address":      "board.mac_address",
	"ip-address":       "board.ip_address",
	"ip-port":          "board.ip_port",
	"timeout":          "board.timeout_seconds",
	"ring-buffer-size": "board.ring_buffer_size",
	"debug":            "logging.debug",
	"log-level":        "logging.level",
	"bucket":           "upload.bucket",
	"prefix":           "upload.prefix",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.Default()

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default is $HOME/.config/eegrec/config.yaml)")
	pf.String("archive", defaults.Record.ArchiveDir, "session archive directory")

	f := rootCmd.Flags()
	f.Bool("synth", defaults.Record.Synth, "record from the synthetic board (--synth=false for a real board)")
	f.Int("buffer", defaults.Record.BufferSeconds, "seconds to let the board buffer before the first poll")
	f.Int("polls", defaults.Record.Polls, "number of polls; 0 records until interrupted")
	f.Int("interval-ms", defaults.Record.PollIntervalMs, "milliseconds between polls")
	f.Bool("metadata", defaults.Record.WriteMetadata, "write session.yaml next to the data file")
	f.Bool("debug", defaults.Logging.Debug, "log the board's channel layout and debug output")
	f.String("log-level", defaults.Logging.Level, "log level when --debug is off")
	f.String("board", defaults.Board.Real, "real board: cyton, cyton_daisy or gui_stream")
	f.String("serial-port", "", "serial port of the board dongle")
	f.String("mac-address", "", "MAC address of the board")
	f.String("ip-address", "", "IP address of the board (listen address for gui_stream)")
	f.Int("ip-port", 0, "IP port of the board (first of three UDP ports for gui_stream, default 12345)")
	f.Int("timeout", 0, "board discovery timeout in seconds (not a connection parameter on its own)")
	f.Int("ring-buffer-size", defaults.Board.RingBufferSize, "samples the board buffers between polls")
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()
	bindFlags(rootCmd.PersistentFlags())
	bindFlags(rootCmd.Flags())
	bindFlags(sessionsUploadCmd.Flags())

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/eegrec")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("EEGREC")
	// e.g., EEGREC_RECORD_ARCHIVE_DIR for record.archive_dir
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

func bindFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = viper.BindPFlag(key, f)
		}
	})
}
