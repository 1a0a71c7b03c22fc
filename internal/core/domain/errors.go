package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "SQ-SNAP-5020")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithMessage returns a copy of the error with a different message.
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: message,
		Details: e.Details,
		Cause:   e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Describe renders err as human-readable text without the error code.
//
// It is the text pages see in DB_ERROR messages and clients see in the
// "details" field of a failed query.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if !errors.As(err, &de) {
		return err.Error()
	}
	switch {
	case de.Details != "":
		return de.Message + ": " + de.Details
	case de.Cause != nil:
		return de.Message + ": " + Describe(de.Cause)
	default:
		return de.Message
	}
}

// ============================================================================
// Snapshot Errors (SNAP)
// ============================================================================

var (
	// ErrSnapshotFetch indicates the snapshot resource could not be retrieved
	// or answered with a non-success status.
	ErrSnapshotFetch = NewDomainError("SQ-SNAP-5020", "DB fetch failed")

	// ErrSnapshotFormat indicates the snapshot bytes are not a usable database image.
	ErrSnapshotFormat = NewDomainError("SQ-SNAP-5021", "DB format invalid")
)

// FetchError describes a snapshot resource that answered with a non-success status.
type FetchError struct {
	StatusCode int
	Reason     string
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Reason)
}

// NewFetchStatusError builds an ErrSnapshotFetch for a non-success response.
func NewFetchStatusError(statusCode int, reason string) *DomainError {
	fe := &FetchError{StatusCode: statusCode, Reason: reason}
	return ErrSnapshotFetch.WithDetails(fe.Error()).WithCause(fe)
}

// ============================================================================
// Query Errors (QUERY, POLICY, EXEC)
// ============================================================================

var (
	// ErrBadRequest indicates a malformed query request.
	ErrBadRequest = NewDomainError("SQ-QUERY-4000", "Bad Request")

	// ErrForbiddenQuery indicates the query text hit the denylist.
	ErrForbiddenQuery = NewDomainError("SQ-POLICY-4030", "Forbidden")

	// ErrForbiddenEndpoint indicates a write or authentication endpoint.
	ErrForbiddenEndpoint = NewDomainError("SQ-POLICY-4031", "Forbidden in static build")

	// ErrExecution indicates the engine failed to prepare, bind or step a query.
	ErrExecution = NewDomainError("SQ-EXEC-5000", "Internal Server Error")
)

// ============================================================================
// Protocol Errors (PROTO)
// ============================================================================

// ErrProtocol indicates a malformed or unexpected inbound page message.
var ErrProtocol = NewDomainError("SQ-PROTO-4000", "malformed message")
