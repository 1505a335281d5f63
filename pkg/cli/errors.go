package cli

import (
	"errors"
	"fmt"
)

// Exit codes returned by the feedwatch command.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitConfig   = 2
	ExitRemote   = 3
	ExitNotFound = 4
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// APIError is returned when a feedwatch instance answers with an error.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Simulated bool
}

func (e *APIError) Error() string {
	if e.Simulated {
		return fmt.Sprintf("HTTP %d: %s (no streaming session)", e.Status, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == 404 {
			return ExitNotFound
		}
		return ExitRemote
	}

	return ExitError
}
