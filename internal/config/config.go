// Package config defines the ReasonLoop configuration, its defaults, and
// loading via viper. Configuration is read from a YAML file in the user's
// config directory and can be overridden per-flag by the CLI layer.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/reasonloop/internal/session"
	"github.com/Iron-Ham/reasonloop/internal/stream"
)

// Config represents the complete ReasonLoop configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Reasoning ReasoningConfig `mapstructure:"reasoning"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Paths     PathsConfig     `mapstructure:"paths"`
}

// ServerConfig locates the reasoning server
type ServerConfig struct {
	// URL is the server root for both the REST commands and the WebSocket
	// stream (ws/wss/http/https)
	URL string `mapstructure:"url"`
}

// StreamConfig controls connection recovery behavior
type StreamConfig struct {
	// MaxReconnectAttempts bounds automatic reconnection after an
	// unintentional connection loss
	MaxReconnectAttempts int `mapstructure:"max_reconnect_attempts"`
	// ReconnectBackoffMs is the linear backoff base in milliseconds:
	// the n-th attempt waits n times this long
	ReconnectBackoffMs int `mapstructure:"reconnect_backoff_ms"`
}

// Backoff returns the reconnect backoff base as a duration.
func (s StreamConfig) Backoff() time.Duration {
	return time.Duration(s.ReconnectBackoffMs) * time.Millisecond
}

// ReasoningConfig is the default per-session reasoning setup, used when a
// task is submitted without explicit overrides
type ReasoningConfig struct {
	// GeneratorModel, CriticModel and RefinerModel form the three-model
	// roster; roles rotate across it each iteration
	GeneratorModel string `mapstructure:"generator_model"`
	CriticModel    string `mapstructure:"critic_model"`
	RefinerModel   string `mapstructure:"refiner_model"`
	// Temperature for all three models (0 to 1)
	Temperature float64 `mapstructure:"temperature"`
	// MaxTokens per model response
	MaxTokens int `mapstructure:"max_tokens"`
	// MaxIterations bounds the reasoning loop
	MaxIterations int `mapstructure:"max_iterations"`
	// ScoreThreshold ends the loop early once the critique score reaches it
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	// OutputLength hints the desired answer size: "short", "medium", "long"
	OutputLength string `mapstructure:"output_length"`
	// Mode selects the loop shape: "standard" or "council" (a pre-phase
	// where all models deliberate before the rotation starts)
	Mode string `mapstructure:"mode"`
}

// SessionConfig converts the reasoning defaults into a per-session snapshot.
func (r ReasoningConfig) SessionConfig() session.Config {
	return session.Config{
		GeneratorModel: r.GeneratorModel,
		CriticModel:    r.CriticModel,
		RefinerModel:   r.RefinerModel,
		Temperature:    r.Temperature,
		MaxTokens:      r.MaxTokens,
		MaxIterations:  r.MaxIterations,
		ScoreThreshold: r.ScoreThreshold,
		OutputLength:   r.OutputLength,
		Mode:           r.Mode,
	}
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Dir is where log files are written; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// PathsConfig controls where ReasonLoop stores its data
type PathsConfig struct {
	// HistoryDir is where finished sessions are persisted; empty uses
	// <config dir>/history
	HistoryDir string `mapstructure:"history_dir"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "ws://localhost:8000",
		},
		Stream: StreamConfig{
			MaxReconnectAttempts: stream.DefaultMaxReconnectAttempts,
			ReconnectBackoffMs:   int(stream.DefaultReconnectBackoff / time.Millisecond),
		},
		Reasoning: ReasoningConfig{
			GeneratorModel: "anthropic/claude-3.5-sonnet",
			CriticModel:    "openai/o3",
			RefinerModel:   "anthropic/claude-opus-4.5",
			Temperature:    0.7,
			MaxTokens:      4096,
			MaxIterations:  5,
			ScoreThreshold: 8.0,
			OutputLength:   "medium",
			Mode:           "standard",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
		Paths: PathsConfig{
			HistoryDir: "",
		},
	}
}

// SetDefaults registers all default values with viper
func SetDefaults() {
	defaults := Default()

	// Server defaults
	viper.SetDefault("server.url", defaults.Server.URL)

	// Stream defaults
	viper.SetDefault("stream.max_reconnect_attempts", defaults.Stream.MaxReconnectAttempts)
	viper.SetDefault("stream.reconnect_backoff_ms", defaults.Stream.ReconnectBackoffMs)

	// Reasoning defaults
	viper.SetDefault("reasoning.generator_model", defaults.Reasoning.GeneratorModel)
	viper.SetDefault("reasoning.critic_model", defaults.Reasoning.CriticModel)
	viper.SetDefault("reasoning.refiner_model", defaults.Reasoning.RefinerModel)
	viper.SetDefault("reasoning.temperature", defaults.Reasoning.Temperature)
	viper.SetDefault("reasoning.max_tokens", defaults.Reasoning.MaxTokens)
	viper.SetDefault("reasoning.max_iterations", defaults.Reasoning.MaxIterations)
	viper.SetDefault("reasoning.score_threshold", defaults.Reasoning.ScoreThreshold)
	viper.SetDefault("reasoning.output_length", defaults.Reasoning.OutputLength)
	viper.SetDefault("reasoning.mode", defaults.Reasoning.Mode)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// Paths defaults
	viper.SetDefault("paths.history_dir", defaults.Paths.HistoryDir)
}

// Load reads the configuration from viper and validates it
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

// HistoryDir resolves the session history directory.
func (c *Config) HistoryDir() string {
	if c.Paths.HistoryDir != "" {
		return c.Paths.HistoryDir
	}
	return filepath.Join(ConfigDir(), "history")
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reasonloop")
	}
	// Fall back to ~/.config/reasonloop
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reasonloop"
	}
	return filepath.Join(home, ".config", "reasonloop")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
