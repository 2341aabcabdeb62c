package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"image-optimizer-go/internal/codec"
)

// Config represents the main configuration structure
type Config struct {
	Defaults    DefaultsConfig    `mapstructure:"defaults"`
	Server      ServerConfig      `mapstructure:"server"`
	Metadata    MetadataConfig    `mapstructure:"metadata"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// DefaultsConfig contains the optimization defaults applied when a request or
// command does not specify its own values
type DefaultsConfig struct {
	Quality      int    `mapstructure:"quality"`
	Format       string `mapstructure:"format"`
	KeepOriginal bool   `mapstructure:"keep_original"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                  int    `mapstructure:"port"`
	MaxFiles              int    `mapstructure:"max_files"`
	MaxFileSizeMB         int64  `mapstructure:"max_file_size_mb"`
	TempDirectory         string `mapstructure:"temp_directory"`
	BufferedResponses     bool   `mapstructure:"buffered_responses"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

// MetadataConfig contains EXIF handling settings
type MetadataConfig struct {
	PreserveEXIF bool `mapstructure:"preserve_exif"`
}

// PerformanceConfig contains performance tuning settings
type PerformanceConfig struct {
	WorkerThreads int `mapstructure:"worker_threads"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Quality:      75,
			Format:       "webp",
			KeepOriginal: false,
		},
		Server: ServerConfig{
			Port:                  8080,
			MaxFiles:              50,
			MaxFileSizeMB:         50,
			TempDirectory:         "",
			BufferedResponses:     false,
			RequestTimeoutSeconds: 60,
		},
		Metadata: MetadataConfig{
			PreserveEXIF: true,
		},
		Performance: PerformanceConfig{
			WorkerThreads: 0, // 0 means one worker per CPU
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "image-optimizer.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.image-optimizer")
		viper.AddConfigPath("/etc/image-optimizer")
	}

	// Enable environment variable support
	viper.SetEnvPrefix("IMAGE_OPTIMIZER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file; a missing file is fine, defaults apply
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Defaults.Quality < 0 || c.Defaults.Quality > 100 {
		return fmt.Errorf("defaults.quality must be between 0 and 100, got %d", c.Defaults.Quality)
	}
	if _, err := codec.ParseFormat(c.Defaults.Format); err != nil {
		return fmt.Errorf("defaults.format: %w", err)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxFiles < 1 {
		return fmt.Errorf("server.max_files must be positive, got %d", c.Server.MaxFiles)
	}
	if c.Server.MaxFileSizeMB < 1 {
		return fmt.Errorf("server.max_file_size_mb must be positive, got %d", c.Server.MaxFileSizeMB)
	}
	if c.Server.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("server.request_timeout_seconds must be positive, got %d", c.Server.RequestTimeoutSeconds)
	}
	return nil
}

// DefaultFormat returns the configured default target format.
func (c *Config) DefaultFormat() codec.Format {
	format, err := codec.ParseFormat(c.Defaults.Format)
	if err != nil {
		return codec.DefaultFormat
	}
	return format
}

// MaxFileSizeBytes returns the per-file upload size ceiling in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.Server.MaxFileSizeMB * 1024 * 1024
}

// MaxRequestBytes returns the upper bound for a whole multipart request body.
func (c *Config) MaxRequestBytes() int64 {
	return c.MaxFileSizeBytes() * int64(c.Server.MaxFiles)
}

// RequestTimeout returns the maximum execution time for one HTTP request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
