// Package errors defines the fault taxonomy of the conversation runtime and
// the central handler that maps faults to user-visible messages. No fault is
// ever allowed to crash the process; everything is contained per-event.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// NewValidationError marks input that failed shape or length checks. The
// session is preserved and the user is prompted to retry.
func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
		Retryable:   true,
	}
}

// NewPersistenceFailure marks a durable-store write that failed. Persistence
// is best effort: the flow continues on in-memory state and the loss is
// logged.
func NewPersistenceFailure(op string, cause error) *AppError {
	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("persistence failure during %s: %v", op, cause),
		UserMessage: "",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewRoutingMiss marks a payload that matched no known node.
func NewRoutingMiss(payload string) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     fmt.Sprintf("no node matches routing payload %q", payload),
		UserMessage: "This conversation has ended. Send /start to begin again.",
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewHandlerException wraps any other fault raised while rendering a node.
// The auto-transition chain is aborted and the user gets a generic fallback.
func NewHandlerException(cause error) *AppError {
	var msg string
	if cause != nil {
		msg = cause.Error()
	}

	return &AppError{
		Code:        "E400",
		Message:     fmt.Sprintf("handler exception: %s", msg),
		UserMessage: "Something went wrong. Please try again later.",
		Severity:    SeverityHigh,
		Retryable:   false,
		cause:       cause,
	}
}

// NewChainOverflow marks an auto-transition chain that exceeded the hop
// ceiling, handled like any other handler fault.
func NewChainOverflow(nodeID string, hops int) *AppError {
	return &AppError{
		Code:        "E401",
		Message:     fmt.Sprintf("auto-transition ceiling (%d hops) exceeded at node %q", hops, nodeID),
		UserMessage: "Something went wrong. Please try again later.",
		Severity:    SeverityHigh,
		Retryable:   false,
	}
}
