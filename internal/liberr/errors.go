// Package liberr defines the error taxonomy shared by every layer that
// touches the store. Each error carries a stable code so the CLI can report
// failure kinds without string matching.
package liberr

import (
	"errors"
	"fmt"
)

// Code categorizes a store error.
type Code string

const (
	// CodeIO: the store file is missing, unreadable, or locked by the host.
	CodeIO Code = "IO"

	// CodeNotFound: a key or name does not resolve to an entity.
	CodeNotFound Code = "NOT_FOUND"

	// CodeAmbiguous: an identifier matches more than one entity.
	CodeAmbiguous Code = "AMBIGUOUS"

	// CodeValidation: a create/update carries a missing or invalid field.
	CodeValidation Code = "VALIDATION"

	// CodeDuplicate: the operation would violate a uniqueness constraint.
	CodeDuplicate Code = "DUPLICATE"

	// CodeSelfMerge: merge source and target are the same entity.
	CodeSelfMerge Code = "SELF_MERGE"

	// CodeReferential: a delete is blocked by dependent membership rows.
	CodeReferential Code = "REFERENTIAL"

	// CodeConsistency: a post-condition check failed; always fatal to the
	// enclosing transaction.
	CodeConsistency Code = "CONSISTENCY"

	// CodeRange: a reorder position is outside the owner's member range.
	CodeRange Code = "RANGE"
)

// Error is a store error with a taxonomy code.
type Error struct {
	Code    Code
	Message string
	Err     error // underlying cause, optional
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a taxonomy code to an underlying error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the taxonomy code from an error chain. Returns "" for
// errors that never passed through this package.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code. Uses errors.As to
// handle wrapped errors.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsNotFound reports whether err is a missing key or name.
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

// IsDuplicate reports whether err is a uniqueness violation.
func IsDuplicate(err error) bool { return HasCode(err, CodeDuplicate) }

// IsConsistency reports whether err is a failed post-condition check.
func IsConsistency(err error) bool { return HasCode(err, CodeConsistency) }
