package config

import (
	"strings"
	"testing"
)

func TestValidate_SingleFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty server url", func(c *Config) { c.Server.URL = "" }, "server.url"},
		{"bad server scheme", func(c *Config) { c.Server.URL = "ftp://example.com" }, "server.url"},
		{"negative reconnect attempts", func(c *Config) { c.Stream.MaxReconnectAttempts = -1 }, "stream.max_reconnect_attempts"},
		{"zero backoff", func(c *Config) { c.Stream.ReconnectBackoffMs = 0 }, "stream.reconnect_backoff_ms"},
		{"empty generator model", func(c *Config) { c.Reasoning.GeneratorModel = " " }, "reasoning.generator_model"},
		{"empty critic model", func(c *Config) { c.Reasoning.CriticModel = "" }, "reasoning.critic_model"},
		{"empty refiner model", func(c *Config) { c.Reasoning.RefinerModel = "" }, "reasoning.refiner_model"},
		{"temperature too high", func(c *Config) { c.Reasoning.Temperature = 1.5 }, "reasoning.temperature"},
		{"temperature negative", func(c *Config) { c.Reasoning.Temperature = -0.1 }, "reasoning.temperature"},
		{"max tokens too small", func(c *Config) { c.Reasoning.MaxTokens = 50 }, "reasoning.max_tokens"},
		{"max tokens too large", func(c *Config) { c.Reasoning.MaxTokens = 50000 }, "reasoning.max_tokens"},
		{"zero iterations", func(c *Config) { c.Reasoning.MaxIterations = 0 }, "reasoning.max_iterations"},
		{"too many iterations", func(c *Config) { c.Reasoning.MaxIterations = 25 }, "reasoning.max_iterations"},
		{"score threshold too low", func(c *Config) { c.Reasoning.ScoreThreshold = 0.5 }, "reasoning.score_threshold"},
		{"score threshold too high", func(c *Config) { c.Reasoning.ScoreThreshold = 11 }, "reasoning.score_threshold"},
		{"bad output length", func(c *Config) { c.Reasoning.OutputLength = "gigantic" }, "reasoning.output_length"},
		{"bad mode", func(c *Config) { c.Reasoning.Mode = "chaos" }, "reasoning.mode"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("expected exactly 1 validation error, got %d: %v", len(errs), ValidationErrors(errs))
			}
			if errs[0].Field != tt.field {
				t.Errorf("error field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.URL = ""
	cfg.Reasoning.Temperature = 2
	cfg.Logging.Level = "loud"

	errs := cfg.Validate()
	if len(errs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d: %v", len(errs), ValidationErrors(errs))
	}

	msg := ValidationErrors(errs).Error()
	if !strings.Contains(msg, "3 validation errors") {
		t.Errorf("aggregate message = %q", msg)
	}
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "reasoning.max_tokens", Value: 50, Message: "must be between 100 and 32000"}
	want := "reasoning.max_tokens: must be between 100 and 32000 (got: 50)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
