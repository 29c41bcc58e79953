// Package apperror defines the error taxonomy shared across the agent
// kernel: transport, protocol, provider, tool, config, and confirmation
// failures all wrap into the same shape so callers can branch on Kind
// without parsing message strings.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError for programmatic branching.
type Kind string

const (
	KindIpc              Kind = "IPC"
	KindConnectionClosed Kind = "CONNECTION_CLOSED"
	KindProtocol         Kind = "PROTOCOL"
	KindProvider         Kind = "PROVIDER"
	KindToolExecution    Kind = "TOOL_EXECUTION"
	KindConfig           Kind = "CONFIG"
	KindConfirmTimeout   Kind = "CONFIRM_TIMEOUT"
	KindActionRejected   Kind = "ACTION_REJECTED"
	KindRateLimit        Kind = "RATE_LIMIT"
	KindIO               Kind = "IO"
	KindJSON             Kind = "JSON"
)

// AppError is the project-wide error shape. It always carries a Kind so
// callers can use errors.As + a Kind switch instead of string matching.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func new(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func wrap(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: cause}
}

func NewIpc(message string) *AppError                 { return new(KindIpc, message) }
func WrapIpc(message string, cause error) *AppError   { return wrap(KindIpc, message, cause) }
func NewConnectionClosed() *AppError                  { return new(KindConnectionClosed, "connection closed") }
func NewProtocol(message string) *AppError            { return new(KindProtocol, message) }
func NewProvider(message string) *AppError             { return new(KindProvider, message) }
func WrapProvider(message string, cause error) *AppError { return wrap(KindProvider, message, cause) }
func NewToolExecution(message string) *AppError       { return new(KindToolExecution, message) }
func NewConfig(message string) *AppError              { return new(KindConfig, message) }
func WrapConfig(message string, cause error) *AppError { return wrap(KindConfig, message, cause) }
func NewConfirmTimeout() *AppError                    { return new(KindConfirmTimeout, "confirmation timed out") }
func NewActionRejected() *AppError                    { return new(KindActionRejected, "action rejected by user") }
func NewRateLimit(message string) *AppError           { return new(KindRateLimit, message) }
func WrapIO(cause error) *AppError                    { return wrap(KindIO, "i/o error", cause) }
func WrapJSON(cause error) *AppError                  { return wrap(KindJSON, "json error", cause) }

// Is reports whether err is an *AppError of the given Kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
