// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes shared by every tutorchat command.
//
// Commands always return errors; Execute decides how to display them and
// which exit code to use.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/tutorchat/internal/config"
	"github.com/jeranaias/tutorchat/internal/session"
	"github.com/jeranaias/tutorchat/internal/storage"
	"github.com/jeranaias/tutorchat/internal/transport"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or a missing terminal
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the chat identity could not be established
	ExitAuthError = 4
	// ExitNetworkError indicates the relay or redis could not be reached
	ExitNetworkError = 5
	// ExitStorageError indicates the local history store failed
	ExitStorageError = 6
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Command, e.Action)
	}
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps err with the command and action that failed.
func NewCommandError(command, action string, err error) error {
	return &CommandError{Command: command, Action: action, Err: err}
}

// UsageError reports invalid arguments or flags.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode determines the exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var ttyErr *TTYRequiredError
	var validateErrs config.ValidateErrors
	switch {
	case errors.As(err, &usageErr), errors.As(err, &ttyErr):
		return ExitUsageError
	case errors.As(err, &validateErrs),
		errors.Is(err, storage.ErrUnknownBackend),
		errors.Is(err, transport.ErrUnknownKind):
		return ExitConfigError
	case errors.Is(err, session.ErrNoIdentity):
		return ExitAuthError
	case errors.Is(err, session.ErrTransportUnavailable):
		return ExitNetworkError
	case errors.Is(err, storage.ErrClosed), errors.Is(err, storage.ErrInvalidKey):
		return ExitStorageError
	}
	return ExitGeneralError
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON when jsonMode is set.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		out := map[string]any{
			"success":   false,
			"error":     err.Error(),
			"exit_code": ExitCode(err),
		}
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			out["command"] = cmdErr.Command
			out["action"] = cmdErr.Action
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}
