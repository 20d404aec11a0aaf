package event

import (
	"errors"
	"fmt"
)

// ConvertError represents an error detected while building a dataset.
//
// Conversion errors include:
//   - Malformed input: missing or unparseable timestamp or subject
//   - Inconsistent code state: same identifier claimed by differing content
//   - Missing code-state reference: no resolvable prior snapshot
//   - Scope violation: ordering asserted across a restricted scope
//
// All categories except the missing reference abort the run; a missing
// reference is recovered locally by substituting EmptyCodeState.
type ConvertError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// SubjectID identifies the affected subject, when known.
	SubjectID string

	// Source names the offending source log, when known.
	Source string

	// Details contains additional context for diagnostics.
	Details map[string]string
}

// ErrorCode categorizes conversion errors.
type ErrorCode string

const (
	// ErrCodeMalformedInput indicates a record with a missing or
	// unparseable timestamp or subject.
	ErrCodeMalformedInput ErrorCode = "MALFORMED_INPUT_EVENT"

	// ErrCodeInconsistentCodeState indicates the same code-state identifier
	// was claimed by differing content.
	ErrCodeInconsistentCodeState ErrorCode = "INCONSISTENT_CODE_STATE"

	// ErrCodeMissingCodeStateReference indicates an event with no resolvable
	// prior snapshot. Recovered via the empty-state sentinel, so this code
	// appears in diagnostics rather than fatal errors.
	ErrCodeMissingCodeStateReference ErrorCode = "MISSING_CODE_STATE_REFERENCE"

	// ErrCodeScopeViolation indicates ordering was assumed across subjects
	// while the declared scope restricts comparisons.
	ErrCodeScopeViolation ErrorCode = "SCOPE_VIOLATION"
)

// Error implements the error interface.
func (e *ConvertError) Error() string {
	switch {
	case e.SubjectID != "" && e.Source != "":
		return fmt.Sprintf("%s: %s (subject=%s, source=%s)", e.Code, e.Message, e.SubjectID, e.Source)
	case e.SubjectID != "":
		return fmt.Sprintf("%s: %s (subject=%s)", e.Code, e.Message, e.SubjectID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsMalformedInput reports whether err is a malformed-input error.
// Uses errors.As to handle wrapped errors.
func IsMalformedInput(err error) bool {
	var ce *ConvertError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeMalformedInput
	}
	return false
}

// IsInconsistentCodeState reports whether err is an inconsistent-state error.
func IsInconsistentCodeState(err error) bool {
	var ce *ConvertError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeInconsistentCodeState
	}
	return false
}

// IsScopeViolation reports whether err is a scope-violation error.
func IsScopeViolation(err error) bool {
	var ce *ConvertError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeScopeViolation
	}
	return false
}

// NewMalformedInputError creates a ConvertError for a rejected source record.
func NewMalformedInputError(source, subjectID, message string) *ConvertError {
	return &ConvertError{
		Code:      ErrCodeMalformedInput,
		Message:   message,
		SubjectID: subjectID,
		Source:    source,
	}
}

// NewInconsistentCodeStateError creates a ConvertError for an identifier
// claimed by differing content.
func NewInconsistentCodeStateError(id int64, digest string) *ConvertError {
	return &ConvertError{
		Code:    ErrCodeInconsistentCodeState,
		Message: fmt.Sprintf("code state %d claimed by differing content", id),
		Details: map[string]string{"digest": digest},
	}
}

// NewScopeViolationError creates a ConvertError for an invalid ordering-scope
// declaration or use.
func NewScopeViolationError(message string) *ConvertError {
	return &ConvertError{
		Code:    ErrCodeScopeViolation,
		Message: message,
	}
}
