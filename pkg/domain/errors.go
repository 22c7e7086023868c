package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when an analysis is requested for blank text.
var ErrEmptyInput = errors.New("input text is empty")

// ErrAnalysisInFlight is returned when an analysis is started while another is outstanding.
var ErrAnalysisInFlight = errors.New("analysis already in progress")

// ErrNoResult is returned when a correction is applied before any analysis succeeded.
var ErrNoResult = errors.New("no analysis result")

// ErrIssueNotFound is returned when the issue ID is not pending in the current result.
var ErrIssueNotFound = errors.New("issue not found")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrorKind is a coarse-grained categorization for analysis failures.
type ErrorKind string

const (
	KindEmptyInput        ErrorKind = "empty_input"
	KindTransport         ErrorKind = "transport"
	KindMalformedResponse ErrorKind = "malformed_response"
)

// UserFacingAnalysisError is the static message shown for every failed analysis.
// Diagnostic detail is only logged.
const UserFacingAnalysisError = "Failed to analyze text. Please ensure you have a valid internet connection."

// InterruptedAnalysisError is shown when a session is restored while a request was outstanding.
const InterruptedAnalysisError = "Analysis was interrupted. Please try again."

// AnalysisError wraps an underlying failure with the operation and its kind.
type AnalysisError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *AnalysisError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err carries an AnalysisError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf returns the kind of an AnalysisError, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
