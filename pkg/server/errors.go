// Package server holds the error vocabulary shared by the HTTP runtime and
// the CLI command that starts it. Codes double as the keys of CLI hints.
package server

import (
	"errors"
	"fmt"
)

// Codes reported by ErrorCode.
const (
	CodeInvalidPort        = "INVALID_PORT"
	CodeInvalidConcurrency = "INVALID_CONCURRENCY"
	CodeConfigUnavailable  = "CONFIG_UNAVAILABLE"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeWorkspaceFailed    = "WORKSPACE_INIT_FAILED"
	CodeRuntimeFailed      = "RUNTIME_FAILED"
)

var (
	// ErrInvalidPort is a listen port outside 1-65535.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidConcurrency is a job worker count below one.
	ErrInvalidConcurrency = errors.New("invalid jobs concurrency")
	// ErrConfigUnavailable means the command context carries no config.
	ErrConfigUnavailable = errors.New("config manager unavailable")
)

// exitStatus maps codes to process exit statuses. Unlisted codes exit 1.
var exitStatus = map[string]int{
	CodeInvalidPort:        2,
	CodeInvalidConcurrency: 2,
	CodeInvalidConfig:      2,
	CodeWorkspaceFailed:    7,
}

// sentinelCodes resolves bare sentinels that were never wrapped with a code.
var sentinelCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidPort, CodeInvalidPort},
	{ErrInvalidConcurrency, CodeInvalidConcurrency},
	{ErrConfigUnavailable, CodeConfigUnavailable},
}

// CodedError tags a failure with one of the codes above.
type CodedError struct {
	Code string
	Err  error
}

func (e *CodedError) Error() string { return e.Err.Error() }

func (e *CodedError) Unwrap() error { return e.Err }

// WithErrorCode tags err with code; nil stays nil.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Err: err}
}

// NewInvalidPortError rejects port.
func NewInvalidPortError(port int) error {
	return WithErrorCode(fmt.Errorf("%w %d: must be between 1 and 65535", ErrInvalidPort, port), CodeInvalidPort)
}

// NewInvalidConcurrencyError rejects a worker count.
func NewInvalidConcurrencyError(n int) error {
	return WithErrorCode(fmt.Errorf("%w %d: at least one worker is required", ErrInvalidConcurrency, n), CodeInvalidConcurrency)
}

// WrapInvalidConfig tags a server config validation failure.
func WrapInvalidConfig(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(fmt.Errorf("invalid server configuration: %w", err), CodeInvalidConfig)
}

// WrapWorkspaceInit tags a workspace or results directory failure.
func WrapWorkspaceInit(err error) error { return WithErrorCode(err, CodeWorkspaceFailed) }

// WrapRuntime tags a failure of the running server.
func WrapRuntime(err error) error { return WithErrorCode(err, CodeRuntimeFailed) }

// ErrorCode returns the outermost code on err's chain, falling back to the
// known sentinels and then to CodeRuntimeFailed.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return CodeRuntimeFailed
}

// ExitCode maps err to a process exit status: 2 for bad settings, 7 for an
// unusable workspace, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if status, ok := exitStatus[ErrorCode(err)]; ok {
		return status
	}
	return 1
}
