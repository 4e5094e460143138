// Package kgerr defines the error taxonomy shared by the graph value model,
// the row cursor, the analytics engines and the remote datastore API.
//
// Every error produced by kektorgraph either is, or wraps, one of the
// sentinel values below, so callers can branch with errors.Is:
//
//	if errors.Is(err, kgerr.ErrValidation) {
//	    // fix the configuration, nothing was sent to the datastore
//	}
//
// Local errors are never swallowed and no operation retries internally.
package kgerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnection means the datastore session could not be established or was lost.
	ErrConnection = errors.New("connection error")

	// ErrQuery reports malformed query/predicate text or an unsupported feature
	// combination detected by the datastore.
	ErrQuery = errors.New("query error")

	// ErrValidation reports a local, pre-flight configuration problem.
	ErrValidation = errors.New("validation error")

	// ErrUnsupportedConfiguration reports a semantically invalid combination,
	// such as coreness over a directed interpretation.
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")

	// ErrCancelled is returned when a wait was abandoned through its context.
	ErrCancelled = errors.New("cancelled")

	// ErrTimedOut is returned when a wait exceeded its deadline.
	ErrTimedOut = errors.New("timed out")

	// ErrInvalidState is returned on reuse of a poisoned or disposed cursor,
	// or of an unknown remote session.
	ErrInvalidState = errors.New("invalid state")
)

// Wire codes used by the HTTP API.
const (
	CodeConnection   = "connection_error"
	CodeQuery        = "query_error"
	CodeValidation   = "validation_error"
	CodeUnsupported  = "unsupported_configuration"
	CodeCancelled    = "cancelled"
	CodeTimedOut     = "timed_out"
	CodeInvalidState = "invalid_state"
	CodeInternal     = "internal"
)

// ValidationError carries the offending names (type names, field names) so
// the caller can react without parsing the message.
type ValidationError struct {
	Reason string
	Names  []string
}

func (e *ValidationError) Error() string {
	if len(e.Names) == 0 {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Reason, strings.Join(e.Names, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validation builds a ValidationError.
func Validation(reason string, names ...string) error {
	return &ValidationError{Reason: reason, Names: names}
}

// QueryError carries the predicate or query text that failed.
type QueryError struct {
	Predicate string
	Reason    string
}

func (e *QueryError) Error() string {
	if e.Predicate == "" {
		return fmt.Sprintf("query error: %s", e.Reason)
	}
	return fmt.Sprintf("query error: %s (in %q)", e.Reason, e.Predicate)
}

func (e *QueryError) Unwrap() error { return ErrQuery }

// Query builds a QueryError.
func Query(predicate, reason string) error {
	return &QueryError{Predicate: predicate, Reason: reason}
}

// Unsupported wraps ErrUnsupportedConfiguration with a reason.
func Unsupported(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedConfiguration, reason)
}

// FromContext maps a context error onto ErrTimedOut when the deadline
// passed and onto ErrCancelled otherwise.
func FromContext(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimedOut, err)
	}
	return fmt.Errorf("%w: %v", ErrCancelled, err)
}

// Code maps an error onto its wire code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrQuery):
		return CodeQuery
	case errors.Is(err, ErrUnsupportedConfiguration):
		return CodeUnsupported
	case errors.Is(err, ErrCancelled):
		return CodeCancelled
	case errors.Is(err, ErrTimedOut):
		return CodeTimedOut
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrConnection):
		return CodeConnection
	default:
		return CodeInternal
	}
}

// Names returns the offending names of a ValidationError anywhere in the chain.
func Names(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Names
	}
	return nil
}

// FromCode rebuilds a local error from a wire code received from the datastore.
// Unknown codes are reported as query errors, the datastore being the only
// other party that can produce them.
func FromCode(code, message string, names []string) error {
	switch code {
	case CodeValidation:
		return &ValidationError{Reason: message, Names: names}
	case CodeQuery:
		return &QueryError{Reason: message}
	case CodeUnsupported:
		return Unsupported(message)
	case CodeCancelled:
		return fmt.Errorf("%w: %s", ErrCancelled, message)
	case CodeTimedOut:
		return fmt.Errorf("%w: %s", ErrTimedOut, message)
	case CodeInvalidState:
		return fmt.Errorf("%w: %s", ErrInvalidState, message)
	case CodeConnection:
		return fmt.Errorf("%w: %s", ErrConnection, message)
	default:
		return &QueryError{Reason: message}
	}
}
