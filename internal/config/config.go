package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/eegrec/internal/board"
	"github.com/Iron-Ham/eegrec/internal/logging"
)

// Config represents the complete eegrec configuration
type Config struct {
	Record  RecordConfig  `mapstructure:"record" yaml:"record"`
	Board   BoardConfig   `mapstructure:"board" yaml:"board"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Upload  UploadConfig  `mapstructure:"upload" yaml:"upload"`
}

// RecordConfig controls a single recording run
type RecordConfig struct {
	// Synth records from the synthetic board instead of a device (default: true)
	Synth bool `mapstructure:"synth" yaml:"synth"`
	// BufferSeconds is the warm-up sleep between starting the stream and the first poll (default: 3)
	BufferSeconds int `mapstructure:"buffer_seconds" yaml:"buffer_seconds"`
	// Polls is the number of drain cycles; 0 polls until interrupted (default: 3)
	Polls int `mapstructure:"polls" yaml:"polls"`
	// PollIntervalMs is the sleep after each poll in milliseconds (default: 1000)
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	// ArchiveDir is the session archive root, relative to the working directory unless absolute
	ArchiveDir string `mapstructure:"archive_dir" yaml:"archive_dir"`
	// WriteMetadata writes session.yaml next to raw_data.csv (default: true)
	WriteMetadata bool `mapstructure:"write_metadata" yaml:"write_metadata"`
}

// BoardConfig selects and connects the real acquisition board
type BoardConfig struct {
	// Real is the backend used when record.synth is false: "cyton", "cyton_daisy" or "gui_stream"
	Real string `mapstructure:"real" yaml:"real"`
	// Connection parameters. None has a default; real boards need at least one.
	SerialPort     string `mapstructure:"serial_port" yaml:"serial_port"`
	MACAddress     string `mapstructure:"mac_address" yaml:"mac_address"`
	IPAddress      string `mapstructure:"ip_address" yaml:"ip_address"`
	IPPort         int    `mapstructure:"ip_port" yaml:"ip_port"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// RingBufferSize is the number of samples the board keeps before overwriting (default: 450000)
	RingBufferSize int `mapstructure:"ring_buffer_size" yaml:"ring_buffer_size"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Debug lowers the console level to debug and dumps the channel layout (default: true)
	Debug bool `mapstructure:"debug" yaml:"debug"`
	// Level is the log level when debug is off: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// File also writes JSON logs to <archive_dir>/eegrec.log (default: true)
	File bool `mapstructure:"file" yaml:"file"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// UploadConfig controls 'sessions upload'
type UploadConfig struct {
	// Bucket is the S3 bucket sessions are copied to. Required to upload.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	// Region overrides the AWS region from the environment
	Region string `mapstructure:"region" yaml:"region"`
	// Prefix is prepended to every object key
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	// Endpoint selects an S3-compatible service instead of AWS
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// CreateBucket creates the bucket before uploading (default: true)
	CreateBucket bool `mapstructure:"create_bucket" yaml:"create_bucket"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Record: RecordConfig{
			Synth:          true,
			BufferSeconds:  3,
			Polls:          3,
			PollIntervalMs: 1000,
			ArchiveDir:     "sessions_archive",
			WriteMetadata:  true,
		},
		Board: BoardConfig{
			Real:           board.CytonDaisy.String(),
			RingBufferSize: 450000,
		},
		Logging: LoggingConfig{
			Debug:      true,
			Level:      "info",
			File:       true,
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		Upload: UploadConfig{
			CreateBucket: true,
		},
	}
}

// Warmup returns the pre-poll sleep as a time.Duration
func (c *RecordConfig) Warmup() time.Duration {
	return time.Duration(c.BufferSeconds) * time.Second
}

// PollInterval returns the inter-poll sleep as a time.Duration
func (c *RecordConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// BoardID resolves the board to record from.
func (c *Config) BoardID() (board.ID, error) {
	if c.Record.Synth {
		return board.Synthetic, nil
	}
	return board.ParseID(c.Board.Real)
}

// Params returns the connection parameters for a real board.
func (c *BoardConfig) Params() board.Params {
	return board.Params{
		SerialPort: c.SerialPort,
		MACAddress: c.MACAddress,
		IPAddress:  c.IPAddress,
		IPPort:     c.IPPort,
		Timeout:    time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

// ConsoleLevel is the level for operator-facing log output.
func (c *LoggingConfig) ConsoleLevel() string {
	if c.Debug {
		return logging.LevelDebug
	}
	return logging.ParseLevel(c.Level)
}

// Rotation returns the rotation settings for the JSON log file.
func (c *LoggingConfig) Rotation() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Record defaults
	viper.SetDefault("record.synth", defaults.Record.Synth)
	viper.SetDefault("record.buffer_seconds", defaults.Record.BufferSeconds)
	viper.SetDefault("record.polls", defaults.Record.Polls)
	viper.SetDefault("record.poll_interval_ms", defaults.Record.PollIntervalMs)
	viper.SetDefault("record.archive_dir", defaults.Record.ArchiveDir)
	viper.SetDefault("record.write_metadata", defaults.Record.WriteMetadata)

	// Board defaults
	viper.SetDefault("board.real", defaults.Board.Real)
	viper.SetDefault("board.serial_port", defaults.Board.SerialPort)
	viper.SetDefault("board.mac_address", defaults.Board.MACAddress)
	viper.SetDefault("board.ip_address", defaults.Board.IPAddress)
	viper.SetDefault("board.ip_port", defaults.Board.IPPort)
	viper.SetDefault("board.timeout_seconds", defaults.Board.TimeoutSeconds)
	viper.SetDefault("board.ring_buffer_size", defaults.Board.RingBufferSize)

	// Logging defaults
	viper.SetDefault("logging.debug", defaults.Logging.Debug)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Upload defaults
	viper.SetDefault("upload.bucket", defaults.Upload.Bucket)
	viper.SetDefault("upload.region", defaults.Upload.Region)
	viper.SetDefault("upload.prefix", defaults.Upload.Prefix)
	viper.SetDefault("upload.endpoint", defaults.Upload.Endpoint)
	viper.SetDefault("upload.create_bucket", defaults.Upload.CreateBucket)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "eegrec")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".eegrec"
	}
	return filepath.Join(home, ".config", "eegrec")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
