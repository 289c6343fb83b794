// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for CLI commands.
//
// Handlers return errors; main displays them and exits with GetExitCode.

package cli

import (
	"errors"
	"fmt"

	"github.com/boytm/browser-llm-translation-plugin/internal/completion"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitNetworkError = 5
	ExitHTTPError    = 6
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a failed command with an explicit exit code. A zero Code
// falls back to classifying Err.
type CommandError struct {
	Command string
	Action  string
	Code    int
	Err     error
}

func (e *CommandError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s %s failed: %v", e.Command, e.Action, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError is bad user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError is a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewCommandError creates a new command error.
func NewCommandError(command, action string, err error) error {
	return &CommandError{Command: command, Action: action, Err: err}
}

// ErrMissingArgument creates an error for a missing required argument.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrUnknownSubcommand creates an error for an unknown subcommand.
func ErrUnknownSubcommand(command, sub string) error {
	return &ValidationError{
		Field:   "subcommand",
		Value:   sub,
		Reason:  "unknown " + command + " subcommand",
		Example: "llmtrans help",
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err to stderr, or as a JSON error response on stdout
// in JSON mode.
func DisplayError(command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		resp := NewJSONErrorResponse(command, err)
		resp.ErrorType = errorType(err)
		resp.Print()
		return
	}

	msg := err.Error()
	var cfgErr *completion.ConfigurationError
	if errors.As(err, &cfgErr) {
		msg = cfgErr.UserMessage() + " (" + cfgErr.Error() + ")"
	}
	fmt.Fprintf(stderr, "%s %s\n", ErrorStyle.Render("[ERROR]"), msg)
}

func errorType(err error) string {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		return "validation_error"
	case errors.As(err, &notFoundErr):
		return "not_found_error"
	case errors.Is(err, completion.ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, completion.ErrNetwork):
		return "network_error"
	case errors.Is(err, completion.ErrHTTP):
		return "http_error"
	case errors.Is(err, completion.ErrMalformedResponse):
		return "malformed_response"
	default:
		return "generic_error"
	}
}

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code != 0 {
		return cmdErr.Code
	}

	var (
		validationErr *ValidationError
		ttyErr        *TTYRequiredError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &ttyErr):
		return ExitUsageError
	case errors.Is(err, completion.ErrConfiguration):
		return ExitConfigError
	case errors.Is(err, completion.ErrNetwork):
		return ExitNetworkError
	case errors.Is(err, completion.ErrHTTP), errors.Is(err, completion.ErrMalformedResponse):
		return ExitHTTPError
	default:
		return ExitGeneralError
	}
}
