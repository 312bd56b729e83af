// config.go — devradar runtime configuration (§6.4), grounded on the pack's
// cobra+viper entrypoint pattern (joestump-claude-ops/internal/config).
package config

import "github.com/spf13/viper"

// Config holds all runtime configuration for the devradar daemon.
type Config struct {
	Port         int
	Host         string
	BufferSize   int
	MaxRetries   int
	RetryDelayMs int
	DataDir      string
	Project      string
	ScanInterval string
	Verbose      bool
}

// Load reads configuration from viper, which merges flag values, env vars,
// and defaults (set up by the cobra command in cmd/devradar).
func Load() Config {
	return Config{
		Port:         viper.GetInt("port"),
		Host:         viper.GetString("host"),
		BufferSize:   viper.GetInt("buffer_size"),
		MaxRetries:   viper.GetInt("max_retries"),
		RetryDelayMs: viper.GetInt("retry_delay_ms"),
		DataDir:      viper.GetString("data_dir"),
		Project:      viper.GetString("project"),
		ScanInterval: viper.GetString("scan_interval"),
		Verbose:      viper.GetBool("verbose"),
	}
}
