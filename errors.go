package pollagent

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for pollagent. Use errors.Is to check.
var (
	ErrInvalidSecret          = errors.New("invalid api secret")
	ErrInvalidEndpoint        = errors.New("invalid endpoint")
	ErrInvalidToolName        = errors.New("invalid tool name")
	ErrNilHandler             = errors.New("tool handler must not be nil")
	ErrNilSchema              = errors.New("tool schema must not be nil")
	ErrUnsupportedInput       = errors.New("tool input type must be a struct or map")
	ErrDuplicateTool          = errors.New("tool already registered")
	ErrRegisterWhileListening = errors.New("cannot register tools while listening")
	ErrAlreadyListening       = errors.New("tools are already listening")
	ErrNoTools                = errors.New("no tools registered")
	ErrMissingClusterID       = errors.New("cluster id is not set")
	ErrAlreadyStarted         = errors.New("agent already started")
	ErrAgentStopped           = errors.New("agent stopped")

	ErrValidation     = errors.New("validation failed")
	ErrMalformedInput = errors.New("malformed job input")
)

// ConfigError reports a violated usage contract (bad credential, duplicate tool, double listen, ...).
// It is always returned synchronously from the call that violated the contract.
// Err wraps one of the sentinels above for errors.Is.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("pollagent: %v", e.Err)
	}
	return fmt.Sprintf("pollagent: %v: %s", e.Err, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError returns true if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func configError(sentinel error, format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...), Err: sentinel}
}

// InputError is reported as a rejection when a job's input is not a JSON object.
// The handler and schema validation are skipped in that case.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid job input: " + e.Reason
}

func (e *InputError) Unwrap() error { return ErrMalformedInput }

// ValidationIssue is one schema violation.
// Path is a JSON Pointer into the input ("" for the root).
type ValidationIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError is returned by Schema.Validate and reported as a rejection.
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "input validation failed"
	}
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		path := is.Path
		if path == "" {
			path = "/"
		}
		parts[i] = path + ": " + is.Message
	}
	return "input validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "panic: " + fmt.Sprint(e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
