package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "reasoning.max_tokens")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidOutputLengths returns the list of valid output length hints
func ValidOutputLengths() []string {
	return []string{"short", "medium", "long"}
}

// ValidModes returns the list of valid reasoning modes
func ValidModes() []string {
	return []string{"standard", "council"}
}

// validServerSchemes are the URL schemes the stream manager can translate
var validServerSchemes = []string{"ws", "wss", "http", "https"}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateStream()...)
	errors = append(errors, c.validateReasoning()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "server.url",
			Value:   c.Server.URL,
			Message: "must be a valid URL with a host",
		})
		return errors
	}
	if !slices.Contains(validServerSchemes, u.Scheme) {
		errors = append(errors, ValidationError{
			Field:   "server.url",
			Value:   c.Server.URL,
			Message: fmt.Sprintf("scheme must be one of: %s", strings.Join(validServerSchemes, ", ")),
		})
	}

	return errors
}

func (c *Config) validateStream() []ValidationError {
	var errors []ValidationError

	if c.Stream.MaxReconnectAttempts < 0 {
		errors = append(errors, ValidationError{
			Field:   "stream.max_reconnect_attempts",
			Value:   c.Stream.MaxReconnectAttempts,
			Message: "must not be negative",
		})
	}
	if c.Stream.ReconnectBackoffMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "stream.reconnect_backoff_ms",
			Value:   c.Stream.ReconnectBackoffMs,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateReasoning() []ValidationError {
	var errors []ValidationError
	r := c.Reasoning

	for field, model := range map[string]string{
		"reasoning.generator_model": r.GeneratorModel,
		"reasoning.critic_model":    r.CriticModel,
		"reasoning.refiner_model":   r.RefinerModel,
	} {
		if strings.TrimSpace(model) == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   model,
				Message: "must not be empty",
			})
		}
	}

	if r.Temperature < 0 || r.Temperature > 1 {
		errors = append(errors, ValidationError{
			Field:   "reasoning.temperature",
			Value:   r.Temperature,
			Message: "must be between 0 and 1",
		})
	}
	if r.MaxTokens < 100 || r.MaxTokens > 32000 {
		errors = append(errors, ValidationError{
			Field:   "reasoning.max_tokens",
			Value:   r.MaxTokens,
			Message: "must be between 100 and 32000",
		})
	}
	if r.MaxIterations < 1 || r.MaxIterations > 20 {
		errors = append(errors, ValidationError{
			Field:   "reasoning.max_iterations",
			Value:   r.MaxIterations,
			Message: "must be between 1 and 20",
		})
	}
	if r.ScoreThreshold < 1 || r.ScoreThreshold > 10 {
		errors = append(errors, ValidationError{
			Field:   "reasoning.score_threshold",
			Value:   r.ScoreThreshold,
			Message: "must be between 1 and 10",
		})
	}
	if !slices.Contains(ValidOutputLengths(), r.OutputLength) {
		errors = append(errors, ValidationError{
			Field:   "reasoning.output_length",
			Value:   r.OutputLength,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidOutputLengths(), ", ")),
		})
	}
	if !slices.Contains(ValidModes(), r.Mode) {
		errors = append(errors, ValidationError{
			Field:   "reasoning.mode",
			Value:   r.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidModes(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
