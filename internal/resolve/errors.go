package resolve

import (
	"errors"
	"fmt"

	"github.com/roach88/graphspec/internal/spec"
)

// ErrorCode categorizes resolution errors.
type ErrorCode string

const (
	// ErrCodeNoType indicates a source node declared no kind.
	ErrCodeNoType ErrorCode = "E201"

	// ErrCodeUnregistered indicates no resolver exists for a (kind, role) pair.
	ErrCodeUnregistered ErrorCode = "E202"

	// ErrCodeMultipleWhen indicates more than one when component.
	ErrCodeMultipleWhen ErrorCode = "E203"

	// ErrCodeMultipleTable indicates more than one table-kind then component.
	ErrCodeMultipleTable ErrorCode = "E204"

	// ErrCodeIncompatible indicates the when query kind cannot be verified
	// against the then shape.
	ErrCodeIncompatible ErrorCode = "E205"

	// ErrCodeUnsupportedFormat indicates a payload in an unknown format.
	ErrCodeUnsupportedFormat ErrorCode = "E206"

	// ErrCodeDirectory indicates a file payload path names a directory.
	ErrCodeDirectory ErrorCode = "E207"

	// ErrCodePayload indicates a payload that could not be read or parsed.
	ErrCodePayload ErrorCode = "E208"

	// ErrCodeNodeGraph indicates a cycle, dangling reference or depth
	// overrun while walking nested nodes.
	ErrCodeNodeGraph ErrorCode = "E209"

	// ErrCodeInternal indicates a resolver returned the wrong component
	// type for its role. This is a defect in the resolver, not the spec.
	ErrCodeInternal ErrorCode = "E210"

	// ErrCodeMissingRole indicates a role with no source nodes.
	ErrCodeMissingRole ErrorCode = "E211"

	// ErrCodeMixedThen indicates then components of both graph and table kind.
	ErrCodeMixedThen ErrorCode = "E212"
)

// SpecError is a problem with the shape of one specification.
type SpecError struct {
	Code    ErrorCode
	Subject string
	Kind    spec.Kind
	Role    spec.Role
	Message string
	Err     error
}

// Error implements the error interface.
func (e *SpecError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Subject != "" {
		msg += fmt.Sprintf(" (spec=%s)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SpecError) Unwrap() error { return e.Err }

// FileNotFoundError reports a payload file that does not exist.
type FileNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// IsSpecError checks if err is a SpecError.
func IsSpecError(err error) bool {
	var se *SpecError
	return errors.As(err, &se)
}

// IsInternalError checks if err is a SpecError with ErrCodeInternal.
func IsInternalError(err error) bool {
	var se *SpecError
	return errors.As(err, &se) && se.Code == ErrCodeInternal
}

// IsFileNotFound checks if err is a FileNotFoundError.
func IsFileNotFound(err error) bool {
	var fe *FileNotFoundError
	return errors.As(err, &fe)
}
