package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox" yaml:"sandbox"`
	Tools   ToolsConfig   `mapstructure:"tools" yaml:"tools"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport" yaml:"transport"`
	HTTPPort  int    `mapstructure:"http_port" yaml:"http_port"`
}

// SandboxConfig holds the isolation engine configuration
type SandboxConfig struct {
	Backend       string `mapstructure:"backend" yaml:"backend"`
	TimeoutSec    int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	MemoryMB      int    `mapstructure:"memory_mb" yaml:"memory_mb"`
	MemorySwapMB  int    `mapstructure:"memory_swap_mb" yaml:"memory_swap_mb"`
	PidsLimit     int    `mapstructure:"pids_limit" yaml:"pids_limit"`
	Backtrace     bool   `mapstructure:"backtrace" yaml:"backtrace"`
	MaxConcurrent int    `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// ToolsConfig holds the images and commands of the formatter and linter
type ToolsConfig struct {
	Format ToolConfig `mapstructure:"format" yaml:"format"`
	Lint   ToolConfig `mapstructure:"lint" yaml:"lint"`
}

// ToolConfig describes one fixed external tool invocation
type ToolConfig struct {
	Image   string   `mapstructure:"image" yaml:"image"`
	Command []string `mapstructure:"command" yaml:"command"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode" yaml:"mode"`
	Level string `mapstructure:"level" yaml:"level"`
}

// Supported sandbox backends
const (
	BackendDocker    = "docker"
	BackendPodman    = "podman"
	BackendDockerAPI = "docker-api"
)

const envPrefix = "PLAYGROUND"

// New loads and validates the application configuration from ./config.yaml
// or ./config/config.yaml, falling back to defaults when neither exists.
func New() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	return unmarshal(v)
}

// Load reads the configuration from an explicit file path
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("sandbox.backend", BackendDocker)
	v.SetDefault("sandbox.timeout_sec", 10)
	v.SetDefault("sandbox.memory_mb", 256)
	v.SetDefault("sandbox.memory_swap_mb", 320)
	v.SetDefault("sandbox.pids_limit", 512)
	v.SetDefault("sandbox.backtrace", true)
	v.SetDefault("sandbox.max_concurrent", 4)

	v.SetDefault("tools.format.image", "rustfmt")
	v.SetDefault("tools.format.command", []string{"rustfmt", "--write-mode", "overwrite", "src/main.rs"})
	v.SetDefault("tools.lint.image", "clippy")
	v.SetDefault("tools.lint.command", []string{"cargo", "clippy"})

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	if c.Sandbox.MemorySwapMB < c.Sandbox.MemoryMB {
		return fmt.Errorf("sandbox.memory_swap_mb must be at least sandbox.memory_mb (%d), got: %d",
			c.Sandbox.MemoryMB, c.Sandbox.MemorySwapMB)
	}

	if c.Sandbox.PidsLimit < 0 {
		return fmt.Errorf("sandbox.pids_limit must not be negative, got: %d", c.Sandbox.PidsLimit)
	}

	if c.Sandbox.MaxConcurrent <= 0 {
		return fmt.Errorf("sandbox.max_concurrent must be positive, got: %d", c.Sandbox.MaxConcurrent)
	}

	supportedBackends := map[string]bool{
		BackendDocker:    true,
		BackendPodman:    true,
		BackendDockerAPI: true,
	}

	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	for name, tool := range map[string]ToolConfig{"format": c.Tools.Format, "lint": c.Tools.Lint} {
		if tool.Image == "" {
			return fmt.Errorf("tools.%s.image must not be empty", name)
		}
		if len(tool.Command) == 0 {
			return fmt.Errorf("tools.%s.command must not be empty", name)
		}
	}

	if c.Logging.Mode != "development" && c.Logging.Mode != "production" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'development' or 'production'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// GetTimeout returns the in-sandbox execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}
