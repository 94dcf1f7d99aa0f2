package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/shopcart/internal/api"
	"github.com/roach88/shopcart/internal/checkout"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Checkout, validation or scenario failure
	ExitCommandError = 2 // Command error (bad arguments, bad config, unreachable store)
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeUsage      = "E002" // Bad arguments or flags
	ErrCodeConfig     = "E003" // Config could not be loaded
	ErrCodeStorage    = "E004" // Cart storage could not be opened
	ErrCodeTransport  = "E005" // Backend unreachable
	ErrCodeMalformed  = "E006" // Backend response could not be decoded
	ErrCodeRejected   = "E007" // Backend rejected the request
	ErrCodeOutOfStock = "E008" // Product cannot be added to the cart

	ErrCodeCheckout    = "E101" // Checkout failed after validation
	ErrCodeNoSelection = "E102" // Nothing selected
	ErrCodeInvalidUser = "E103" // Missing or invalid user id
	ErrCodeInProgress  = "E104" // Another checkout pass is running

	ErrCodeTestFailed = "E_TEST_FAILED"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set when the error was already written to the command's
	// output, so the caller should not print it again.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil. Errors that are not ExitErrors come from
// cobra's own command, flag and argument checks and map to ExitCommandError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// IsReported reports whether err was already written to the output.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E101", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether the formatter emits JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail writes err in the configured format and returns it as a reported
// ExitError carrying the matching exit code.
func (f *OutputFormatter) Fail(err error, details any) error {
	if err == nil {
		return nil
	}
	code, errCode, message := classify(err)
	_ = f.Error(errCode, message, details)
	return &ExitError{Code: code, Message: message, Err: err, Reported: true}
}

// CommandFail reports a command-level error (exit code 2) under errCode.
func (f *OutputFormatter) CommandFail(errCode, message string, err error) error {
	exitErr := WrapExitError(ExitCommandError, message, err)
	exitErr.Reported = true
	_ = f.Error(errCode, exitErr.Error(), nil)
	return exitErr
}

// classify maps an error to an exit code, an error code and the message to
// show. ExitErrors keep their own code.
func classify(err error) (int, string, string) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == ExitCommandError {
		return ExitCommandError, ErrCodeGeneric, exitErr.Error()
	}

	switch {
	case errors.Is(err, checkout.ErrInProgress):
		return ExitFailure, ErrCodeInProgress, err.Error()
	case errors.Is(err, checkout.ErrNoSelection):
		return ExitFailure, ErrCodeNoSelection, checkout.UserMessage(err)
	case errors.Is(err, checkout.ErrInvalidUser):
		return ExitFailure, ErrCodeInvalidUser, checkout.UserMessage(err)
	}

	var ce *checkout.Error
	if errors.As(err, &ce) {
		return ExitFailure, ErrCodeCheckout, ce.Message
	}

	switch api.KindOf(err) {
	case api.KindTransport:
		return ExitFailure, ErrCodeTransport, api.UserMessage(err)
	case api.KindMalformed:
		return ExitFailure, ErrCodeMalformed, api.UserMessage(err)
	case api.KindRejected:
		return ExitFailure, ErrCodeRejected, api.UserMessage(err)
	}

	if exitErr != nil {
		return exitErr.Code, ErrCodeGeneric, exitErr.Error()
	}
	return ExitFailure, ErrCodeGeneric, err.Error()
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
