// Package domain defines core types, interfaces, and errors for the query execution core.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ConnectionError indicates the descriptor is invalid or its target is unreachable.
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError indicates the backend rejected or failed to run a statement.
type QueryError struct {
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *QueryError) Unwrap() error { return e.Err }

// AlreadyRunningError rejects a submission to a session that has a query in flight.
type AlreadyRunningError struct {
	SessionID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("a query is already running in session %q", e.SessionID)
}

// EmptyInputError rejects a submission without a connection or statement.
type EmptyInputError struct {
	Message string
}

func (e *EmptyInputError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrConnection wraps err as a ConnectionError.
func ErrConnection(err error, format string, args ...interface{}) *ConnectionError {
	return &ConnectionError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrQuery wraps err as a QueryError.
func ErrQuery(err error, format string, args ...interface{}) *QueryError {
	return &QueryError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrAlreadyRunning creates an AlreadyRunningError for the session.
func ErrAlreadyRunning(sessionID string) *AlreadyRunningError {
	return &AlreadyRunningError{SessionID: sessionID}
}

// ErrEmptyInput creates an EmptyInputError with a formatted message.
func ErrEmptyInput(format string, args ...interface{}) *EmptyInputError {
	return &EmptyInputError{Message: fmt.Sprintf(format, args...)}
}
