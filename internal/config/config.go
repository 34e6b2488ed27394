package config

import "time"

// Storage backend names.
const (
	StoragePebble = "pebble"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	Storage           string        `mapstructure:"storage" yaml:"storage"`
	DataDir           string        `mapstructure:"data_dir" yaml:"data_dir"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		Storage:           StoragePebble,
		DataDir:           "data",
		DatabasePath:      "roomchat.db",
		MaxMessageBytes:   1 << 20,
	}
}
